package builtin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/tool"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

const maxSearchHits = 200

var errSearchLimit = errors.New("builtin: search limit reached")

type searchArgs struct {
	Path        string `json:"path"`
	Regex       string `json:"regex" desc:"RE2 regular expression."`
	FilePattern string `json:"file_pattern,omitempty" desc:"Glob on file names, e.g. *.go."`
}

func (w *Workspace) searchTool() (tool.Tool, error) {
	return tool.NewFunction(toolvocab.ToolSearchFiles,
		"Search files under a path for a regular expression. file_pattern filters file names with a glob.",
		w.search)
}

func (w *Workspace) search(ctx context.Context, args searchArgs) (string, error) {
	target, err := w.Resolve(args.Path)
	if err != nil {
		return "", err
	}
	re, err := regexp.Compile(args.Regex)
	if err != nil {
		return "", fmt.Errorf("invalid regex: %w", err)
	}
	if args.FilePattern != "" {
		if _, err := filepath.Match(args.FilePattern, ""); err != nil {
			return "", fmt.Errorf("invalid file_pattern: %w", err)
		}
	}

	var hits []string
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if path != target && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if args.FilePattern != "" {
			if ok, _ := filepath.Match(args.FilePattern, d.Name()); !ok {
				return nil
			}
		}
		if searchFile(path, w.display(path), re, &hits) {
			return errSearchLimit
		}
		return nil
	})
	if err != nil && !errors.Is(err, errSearchLimit) {
		return "", err
	}
	if len(hits) == 0 {
		return fmt.Sprintf("No matches for %q", args.Regex), nil
	}
	out := strings.Join(hits, "\n")
	if len(hits) >= maxSearchHits {
		out += fmt.Sprintf("\n... truncated at %d matches", maxSearchHits)
	}
	return out, nil
}

// searchFile appends "path:line: text" hits and reports whether the limit
// was reached.
func searchFile(path, display string, re *regexp.Regexp, hits *[]string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if !re.MatchString(text) {
			continue
		}
		*hits = append(*hits, fmt.Sprintf("%s:%d: %s", display, lineNo, strings.TrimSpace(text)))
		if len(*hits) >= maxSearchHits {
			return true
		}
	}
	return false
}
