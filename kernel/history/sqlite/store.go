// Package sqlite is a durable history store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/OnslaughtSnail/agenthost/kernel/history"
	"github.com/OnslaughtSnail/agenthost/kernel/model"
)

const (
	driverName = "sqlite"
	dsnOptions = "?_pragma=busy_timeout(3000)&_pragma=journal_mode(WAL)"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL UNIQUE,
	task_id      TEXT NOT NULL,
	turn_id      TEXT NOT NULL DEFAULT '',
	role         TEXT NOT NULL,
	text         TEXT NOT NULL DEFAULT '',
	tool_calls   TEXT NOT NULL DEFAULT '',
	tool_call_id TEXT NOT NULL DEFAULT '',
	tool_name    TEXT NOT NULL DEFAULT '',
	is_error     INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_task ON messages(task_id, seq);`

// Store persists history in one sqlite database file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history: db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	db, err := sql.Open(driverName, path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Append(ctx context.Context, msg history.Message) (history.Message, error) {
	msg, err := history.Prepare(msg)
	if err != nil {
		return history.Message{}, err
	}
	calls := ""
	if len(msg.ToolCalls) > 0 {
		raw, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return history.Message{}, fmt.Errorf("history: encode tool calls: %w", err)
		}
		calls = string(raw)
	}
	const q = `
INSERT INTO messages (id, task_id, turn_id, role, text, tool_calls, tool_call_id, tool_name, is_error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		msg.ID, msg.TaskID, msg.TurnID, string(msg.Role), msg.Text, calls,
		msg.ToolCallID, msg.ToolName, boolInt(msg.IsError), msg.Time.UnixMilli(),
	)
	if err != nil {
		return history.Message{}, fmt.Errorf("history: append: %w", err)
	}
	return msg, nil
}

func (s *Store) List(ctx context.Context, taskID string) ([]history.Message, error) {
	const q = `
SELECT id, task_id, turn_id, role, text, tool_calls, tool_call_id, tool_name, is_error, created_at
FROM messages
WHERE task_id = ?
ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, q, taskID)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()
	var out []history.Message
	for rows.Next() {
		var (
			m         history.Message
			role      string
			calls     string
			isError   int
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.TaskID, &m.TurnID, &role, &m.Text, &calls, &m.ToolCallID, &m.ToolName, &isError, &createdAt); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		m.IsError = isError != 0
		m.Time = time.UnixMilli(createdAt).UTC()
		if calls != "" {
			if err := json.Unmarshal([]byte(calls), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("history: decode tool calls of %s: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Tasks(ctx context.Context) ([]history.TaskSummary, error) {
	const q = `
SELECT task_id, COUNT(*), MAX(created_at)
FROM messages
GROUP BY task_id
ORDER BY MAX(created_at) DESC, task_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("history: tasks: %w", err)
	}
	defer rows.Close()
	var out []history.TaskSummary
	for rows.Next() {
		var (
			sum    history.TaskSummary
			lastAt int64
		)
		if err := rows.Scan(&sum.TaskID, &sum.Messages, &lastAt); err != nil {
			return nil, err
		}
		sum.LastAt = time.UnixMilli(lastAt).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
