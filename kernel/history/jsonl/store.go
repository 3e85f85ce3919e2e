// Package jsonl stores task history as one append-only JSON-lines file per
// task.
package jsonl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OnslaughtSnail/agenthost/kernel/history"
	"github.com/OnslaughtSnail/agenthost/kernel/model"
)

const ext = ".jsonl"

// Store writes <root>/<task_id>.jsonl.
type Store struct {
	root string
	mu   sync.Mutex
}

var _ history.Store = (*Store)(nil)

type record struct {
	ID         string           `json:"id"`
	TaskID     string           `json:"task_id"`
	TurnID     string           `json:"turn_id,omitempty"`
	Role       model.Role       `json:"role"`
	Text       string           `json:"text,omitempty"`
	ToolCalls  []toolCallRecord `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolName   string           `json:"tool_name,omitempty"`
	IsError    bool             `json:"is_error,omitempty"`
	Time       time.Time        `json:"time"`
}

type toolCallRecord struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Args             map[string]any `json:"args,omitempty"`
	ThoughtSignature string         `json:"thought_signature,omitempty"`
}

// New creates root if needed.
func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("jsonl: root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Append(ctx context.Context, msg history.Message) (history.Message, error) {
	if err := ctx.Err(); err != nil {
		return history.Message{}, err
	}
	msg, err := history.Prepare(msg)
	if err != nil {
		return history.Message{}, err
	}
	path, err := s.taskPath(msg.TaskID)
	if err != nil {
		return history.Message{}, err
	}
	raw, err := json.Marshal(toRecord(msg))
	if err != nil {
		return history.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return history.Message{}, err
	}
	defer f.Close()
	if _, err := f.Write(append(raw, '\n')); err != nil {
		return history.Message{}, err
	}
	return msg, nil
}

func (s *Store) List(ctx context.Context, taskID string) ([]history.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.taskPath(taskID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return readFile(path)
}

// Tasks summarizes every task file, newest first.
func (s *Store) Tasks(ctx context.Context) ([]history.TaskSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var out []history.TaskSummary
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ext)
		if e.IsDir() || !ok {
			continue
		}
		msgs, err := readFile(filepath.Join(s.root, e.Name()))
		if err != nil {
			return nil, err
		}
		if len(msgs) == 0 {
			continue
		}
		out = append(out, history.TaskSummary{
			TaskID:   name,
			Messages: len(msgs),
			LastAt:   msgs[len(msgs)-1].Time,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastAt.Equal(out[j].LastAt) {
			return out[i].LastAt.After(out[j].LastAt)
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out, nil
}

func readFile(path string) ([]history.Message, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []history.Message
	dec := json.NewDecoder(f)
	for {
		var rec record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("jsonl: decode %s: %w", filepath.Base(path), err)
		}
		out = append(out, fromRecord(rec))
	}
	return out, nil
}

func (s *Store) taskPath(taskID string) (string, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" || taskID == "." || taskID == ".." ||
		strings.ContainsAny(taskID, `/\`) || filepath.Clean(taskID) != taskID {
		return "", fmt.Errorf("jsonl: invalid task id %q", taskID)
	}
	return filepath.Join(s.root, taskID+ext), nil
}

func toRecord(m history.Message) record {
	rec := record{
		ID:         m.ID,
		TaskID:     m.TaskID,
		TurnID:     m.TurnID,
		Role:       m.Role,
		Text:       m.Text,
		ToolCallID: m.ToolCallID,
		ToolName:   m.ToolName,
		IsError:    m.IsError,
		Time:       m.Time,
	}
	for _, c := range m.ToolCalls {
		rec.ToolCalls = append(rec.ToolCalls, toolCallRecord(c))
	}
	return rec
}

func fromRecord(rec record) history.Message {
	m := history.Message{
		ID:         rec.ID,
		TaskID:     rec.TaskID,
		TurnID:     rec.TurnID,
		Role:       rec.Role,
		Text:       rec.Text,
		ToolCallID: rec.ToolCallID,
		ToolName:   rec.ToolName,
		IsError:    rec.IsError,
		Time:       rec.Time,
	}
	for _, c := range rec.ToolCalls {
		m.ToolCalls = append(m.ToolCalls, model.ToolCall(c))
	}
	return m
}
