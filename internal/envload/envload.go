// Package envload applies the nearest .env file to the process environment.
package envload

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the file LoadNearest looks for.
const FileName = ".env"

// LoadNearest walks from the working directory to the filesystem root and
// applies the first .env found. Variables already set are kept. It returns
// the applied path, or "" when there is none.
func LoadNearest() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path, ok := Find(wd)
	if !ok {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	vars, err := Parse(f)
	if err != nil {
		return "", fmt.Errorf("envload: %s: %w", path, err)
	}
	for _, kv := range vars {
		if _, exists := os.LookupEnv(kv[0]); exists {
			continue
		}
		if err := os.Setenv(kv[0], kv[1]); err != nil {
			return "", fmt.Errorf("envload: set %q: %w", kv[0], err)
		}
	}
	return path, nil
}

// Find returns the nearest .env at or above dir.
func Find(dir string) (string, bool) {
	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Parse reads KEY=VALUE lines in file order. Blank lines, # comments and an
// "export " prefix are skipped; a value wrapped in matching single or double
// quotes is unwrapped, otherwise a trailing " #" comment is dropped.
func Parse(r io.Reader) ([][2]string, error) {
	var out [][2]string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		out = append(out, [2]string{key, parseValue(strings.TrimSpace(value))})
	}
	return out, sc.Err()
}

func parseValue(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	if i := strings.Index(v, " #"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v
}
