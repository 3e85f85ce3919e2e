// Package history persists the messages of agent tasks and replays stored
// assistant output through the batch parser.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/OnslaughtSnail/agenthost/kernel/model"
)

// ErrInvalidMessage reports a message missing its task or role.
var ErrInvalidMessage = errors.New("history: task_id and role are required")

// Message is one stored conversation entry. Assistant messages keep the raw
// streamed text; native tool calls are kept alongside it.
type Message struct {
	ID         string
	TaskID     string
	TurnID     string
	Role       model.Role
	Text       string
	ToolCalls  []model.ToolCall
	ToolCallID string
	ToolName   string
	IsError    bool
	Time       time.Time
}

// TaskSummary describes one stored task.
type TaskSummary struct {
	TaskID   string
	Messages int
	LastAt   time.Time
}

// Store is the persistence contract for task history.
type Store interface {
	Append(ctx context.Context, msg Message) (Message, error)
	List(ctx context.Context, taskID string) ([]Message, error)
	Tasks(ctx context.Context) ([]TaskSummary, error)
}

// Prepare validates msg and fills its id and timestamp.
func Prepare(msg Message) (Message, error) {
	if strings.TrimSpace(msg.TaskID) == "" || msg.Role == "" {
		return Message{}, ErrInvalidMessage
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}
	msg.Time = msg.Time.UTC()
	return msg, nil
}

// ToModel converts stored messages to model context in order.
func ToModel(msgs []Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == model.RoleTool {
			out = append(out, model.Message{
				Role: model.RoleTool,
				ToolResponse: &model.ToolResponse{
					ID:      m.ToolCallID,
					Name:    m.ToolName,
					Content: m.Text,
					IsError: m.IsError,
				},
			})
			continue
		}
		out = append(out, model.Message{
			Role:      m.Role,
			Text:      m.Text,
			ToolCalls: m.ToolCalls,
		})
	}
	return out
}

func (m Message) String() string {
	return fmt.Sprintf("%s %s/%s %s", m.Time.Format(time.RFC3339), m.TaskID, m.TurnID, m.Role)
}
