// Package builtin provides workspace-rooted file tools for tag-protocol and
// native tool calls.
package builtin

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/tool"
)

// Workspace confines file tools to one directory tree.
type Workspace struct {
	root string
}

// NewWorkspace returns a workspace rooted at dir.
func NewWorkspace(dir string) (*Workspace, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("builtin: resolve workspace: %w", err)
	}
	return &Workspace{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve maps a model-supplied path to an absolute path inside the
// workspace.
func (w *Workspace) Resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the workspace", path)
	}
	return path, nil
}

func (w *Workspace) display(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// Tools returns the built-in tool set bound to w. Writes are included only
// when writable is set.
func (w *Workspace) Tools(writable bool) ([]tool.Tool, error) {
	ctors := []func() (tool.Tool, error){
		w.readTool,
		w.listTool,
		w.searchTool,
		completionTool,
	}
	if writable {
		ctors = append(ctors, w.writeTool)
	}
	out := make([]tool.Tool, 0, len(ctors))
	for _, ctor := range ctors {
		t, err := ctor()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
