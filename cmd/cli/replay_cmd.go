package main

import (
	"context"
	"fmt"
	"time"

	"github.com/OnslaughtSnail/agenthost/kernel/history"
	"github.com/OnslaughtSnail/agenthost/kernel/model"
)

func (e *cliEnv) runReplay(ctx context.Context, args []string) error {
	fs, level := e.newFlagSet("replay")
	var (
		dbPath  = fs.String("db", e.cfg.HistoryDB, "History sqlite file (jsonl: directory named without the extension)")
		backend = fs.String("store", string(e.cfg.HistoryBackend), "History backend: sqlite|jsonl")
		taskID  = fs.String("task", "", "Task id to replay; empty lists tasks")
		asJSON  = fs.Bool("json", false, "Print assistant blocks as JSON")
		plain   = fs.Bool("plain", false, "Disable colors")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.applyLogLevel(*level); err != nil {
		return err
	}
	store, closeStore, err := openHistory(ctx, *backend, *dbPath)
	if err != nil {
		return err
	}
	defer closeStore()
	return e.replay(ctx, store, *taskID, *asJSON, newBlockPrinter(e.stdout, *plain))
}

func (e *cliEnv) replay(ctx context.Context, store history.Store, taskID string, asJSON bool, printer *blockPrinter) error {
	if taskID == "" {
		tasks, err := store.Tasks(ctx)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			printer.dim.Fprintln(printer.out, "(no tasks)")
		}
		for _, t := range tasks {
			fmt.Fprintf(printer.out, "%s  %3d messages  %s\n", t.TaskID, t.Messages, t.LastAt.Local().Format(time.DateTime))
		}
		return nil
	}
	entries, err := history.Replay(ctx, store, taskID, nil)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("replay: no messages for task %q", taskID)
	}
	for _, entry := range entries {
		if asJSON {
			if entry.Message.Role != model.RoleAssistant {
				continue
			}
			if err := writeBlocksJSON(printer.out, entry.Blocks); err != nil {
				return err
			}
			continue
		}
		printer.dim.Fprintf(printer.out, "== %s %s ==\n", entry.Message.Role, entry.Message.Time.Local().Format(time.DateTime))
		printer.printBlocks(entry.Blocks)
	}
	return nil
}
