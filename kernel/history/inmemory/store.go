// Package inmemory is a process-local history store.
package inmemory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/OnslaughtSnail/agenthost/kernel/history"
)

// Store is a thread-safe in-memory history store.
type Store struct {
	mu   sync.RWMutex
	data map[string][]history.Message
}

func New() *Store {
	return &Store{data: make(map[string][]history.Message)}
}

func (s *Store) Append(ctx context.Context, msg history.Message) (history.Message, error) {
	_ = ctx
	msg, err := history.Prepare(msg)
	if err != nil {
		return history.Message{}, err
	}
	msg.ToolCalls = slices.Clone(msg.ToolCalls)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[msg.TaskID] = append(s.data[msg.TaskID], msg)
	return msg, nil
}

func (s *Store) List(ctx context.Context, taskID string) ([]history.Message, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.data[taskID]
	out := make([]history.Message, len(msgs))
	for i, m := range msgs {
		m.ToolCalls = slices.Clone(m.ToolCalls)
		out[i] = m
	}
	return out, nil
}

func (s *Store) Tasks(ctx context.Context) ([]history.TaskSummary, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]history.TaskSummary, 0, len(s.data))
	for id, msgs := range s.data {
		if len(msgs) == 0 {
			continue
		}
		out = append(out, history.TaskSummary{
			TaskID:   id,
			Messages: len(msgs),
			LastAt:   msgs[len(msgs)-1].Time,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastAt.Equal(out[j].LastAt) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].LastAt.After(out[j].LastAt)
	})
	return out, nil
}
