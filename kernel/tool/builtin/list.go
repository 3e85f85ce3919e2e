package builtin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/tool"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

const maxListEntries = 500

var errListLimit = errors.New("builtin: list limit reached")

type listArgs struct {
	Path      string `json:"path,omitempty" desc:"Directory to list; defaults to the workspace root."`
	Recursive bool   `json:"recursive,omitempty" desc:"List subdirectories too."`
}

func (w *Workspace) listTool() (tool.Tool, error) {
	return tool.NewFunction(toolvocab.ToolListFiles,
		"List files and directories in one path. Directories end with a slash.",
		w.list)
}

func (w *Workspace) list(ctx context.Context, args listArgs) (string, error) {
	if args.Path == "" {
		args.Path = "."
	}
	target, err := w.Resolve(args.Path)
	if err != nil {
		return "", err
	}
	var entries []string
	if !args.Recursive {
		items, err := os.ReadDir(target)
		if err != nil {
			return "", err
		}
		for _, item := range items {
			entries = append(entries, entryName(w.display(filepath.Join(target, item.Name())), item.IsDir()))
		}
	} else {
		err = filepath.WalkDir(target, func(path string, d fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if walkErr != nil || path == target {
				return nil
			}
			if d.IsDir() && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			entries = append(entries, entryName(w.display(path), d.IsDir()))
			if len(entries) >= maxListEntries {
				return errListLimit
			}
			return nil
		})
		if err != nil && !errors.Is(err, errListLimit) {
			return "", err
		}
	}
	sort.Strings(entries)
	if len(entries) == 0 {
		return fmt.Sprintf("%s is empty", w.display(target)), nil
	}
	out := strings.Join(entries, "\n")
	if len(entries) >= maxListEntries {
		out += fmt.Sprintf("\n... truncated at %d entries", maxListEntries)
	}
	return out, nil
}

func entryName(name string, dir bool) string {
	if dir {
		return name + "/"
	}
	return name
}
