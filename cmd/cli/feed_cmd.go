package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
)

var feedCommands = []string{":done", ":reset", ":blocks", ":quit"}

func (e *cliEnv) runFeed(ctx context.Context, args []string) error {
	fs, level := e.newFlagSet("feed")
	plain := fs.Bool("plain", false, "Disable colors")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.applyLogLevel(*level); err != nil {
		return err
	}
	editor := newLineEditor(lineEditorConfig{
		HistoryFile: filepath.Join(filepath.Dir(e.cfg.HistoryDB), "feed.history"),
		Commands:    feedCommands,
		In:          e.stdin,
		Out:         e.stdout,
	})
	defer editor.Close()
	return e.feedLoop(ctx, editor, newBlockPrinter(editor.Output(), *plain))
}

// feedLoop treats every input line, newline included, as one stream chunk.
func (e *cliEnv) feedLoop(ctx context.Context, editor lineEditor, printer *blockPrinter) error {
	p := assistantmsg.NewParser(assistantmsg.WithLimits(e.cfg.Limits))
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := editor.ReadLine("chunk> ")
		if errors.Is(err, errInputEOF) {
			return nil
		}
		if errors.Is(err, errInputInterrupt) {
			continue
		}
		if err != nil {
			return err
		}
		switch strings.TrimSpace(line) {
		case ":quit":
			return nil
		case ":reset":
			p.Reset()
			printer.dim.Fprintln(printer.out, "parser reset")
			continue
		case ":blocks":
			printer.printBlocks(p.Blocks())
			continue
		case ":done":
			blocks := p.Finalize()
			printer.printBlocks(blocks)
			printer.printSummary(blocks)
			p.Reset()
			continue
		}
		blocks, err := p.ProcessChunk(line + "\n")
		if err != nil {
			printer.failed.Fprintf(printer.out, "%v (use :reset)\n", err)
			continue
		}
		printer.printBlocks(blocks)
	}
}
