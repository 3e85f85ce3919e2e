package builtin

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/tool"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

const defaultReadLines = 400

type readArgs struct {
	Path      string `json:"path" desc:"File path relative to the workspace."`
	StartLine int    `json:"start_line,omitempty" desc:"First line to read, 1-based."`
	EndLine   int    `json:"end_line,omitempty" desc:"Last line to read, inclusive."`
}

func (w *Workspace) readTool() (tool.Tool, error) {
	return tool.NewFunction(toolvocab.ToolReadFile,
		"Read a text file with line numbers. start_line and end_line are 1-based and inclusive.",
		w.read)
}

func (w *Workspace) read(ctx context.Context, args readArgs) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := w.Resolve(args.Path)
	if err != nil {
		return "", err
	}
	start := max(args.StartLine, 1)
	end := args.EndLine
	if end <= 0 || end-start >= defaultReadLines {
		end = start + defaultReadLines - 1
	}
	if end < start {
		return "", fmt.Errorf("end_line %d is before start_line %d", end, start)
	}

	file, err := os.Open(target)
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	var (
		out     strings.Builder
		lineNo  int
		hasMore bool
	)
	for scanner.Scan() {
		lineNo++
		if lineNo < start {
			continue
		}
		if lineNo > end {
			hasMore = true
			break
		}
		fmt.Fprintf(&out, "%d | %s\n", lineNo, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if out.Len() == 0 {
		return fmt.Sprintf("%s has no lines in range %d-%d", w.display(target), start, end), nil
	}
	if hasMore {
		fmt.Fprintf(&out, "... more lines after %d\n", end)
	}
	return out.String(), nil
}
