package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/tool"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content" desc:"Complete new file content."`
}

func (w *Workspace) writeTool() (tool.Tool, error) {
	return tool.NewFunction(toolvocab.ToolWriteToFile,
		"Write the full content of a file, creating parent directories as needed.",
		w.write)
}

func (w *Workspace) write(ctx context.Context, args writeArgs) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := w.Resolve(args.Path)
	if err != nil {
		return "", err
	}
	mode := os.FileMode(0o644)
	created := false
	info, statErr := os.Stat(target)
	switch {
	case statErr == nil && info.IsDir():
		return "", fmt.Errorf("target %q is a directory", w.display(target))
	case statErr == nil:
		mode = info.Mode()
	case os.IsNotExist(statErr):
		created = true
	default:
		return "", statErr
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	content := args.Content
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := os.WriteFile(target, []byte(content), mode); err != nil {
		return "", err
	}
	verb := "Updated"
	if created {
		verb = "Created"
	}
	return fmt.Sprintf("%s %s (%d lines)", verb, w.display(target), lineCount(content)), nil
}

func lineCount(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(text, "\n"), "\n") + 1
}
