package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/OnslaughtSnail/agenthost/internal/config"
	"github.com/OnslaughtSnail/agenthost/kernel/history"
	"github.com/OnslaughtSnail/agenthost/kernel/history/jsonl"
	"github.com/OnslaughtSnail/agenthost/kernel/history/sqlite"
)

// openHistory opens the configured backend. The jsonl backend uses path
// without its extension as the task directory.
func openHistory(ctx context.Context, backend, path string) (history.Store, func() error, error) {
	b, err := config.ParseHistoryBackend(backend)
	if err != nil {
		return nil, nil, err
	}
	switch b {
	case config.HistoryJSONL:
		root := strings.TrimSuffix(path, filepath.Ext(path))
		store, err := jsonl.New(root)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	default:
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}
