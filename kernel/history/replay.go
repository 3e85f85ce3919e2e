package history

import (
	"context"
	"encoding/json"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/model"
	"github.com/OnslaughtSnail/agenthost/kernel/nativecall"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

// Entry is one replayed message with its classified blocks.
type Entry struct {
	Message Message
	Blocks  []assistantmsg.Block
}

// Replay loads a task and classifies every assistant message with the batch
// parser. Stored native tool calls are appended as closed tool blocks. Other
// roles replay as a single text block.
func Replay(ctx context.Context, store Store, taskID string, vocab *toolvocab.Vocabulary) ([]Entry, error) {
	msgs, err := store.List(ctx, taskID)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Entry{Message: m, Blocks: Blocks(m, vocab)})
	}
	return out, nil
}

// Blocks classifies one stored message.
func Blocks(m Message, vocab *toolvocab.Vocabulary) []assistantmsg.Block {
	if m.Role != model.RoleAssistant {
		return []assistantmsg.Block{assistantmsg.TextBlock{Content: m.Text}}
	}
	blocks := assistantmsg.Seal(assistantmsg.ParseWith(vocab, m.Text))
	if len(m.ToolCalls) == 0 {
		return blocks
	}
	p := nativecall.NewParser(vocab)
	for _, c := range m.ToolCalls {
		p.StartCall(c.ID, c.Name)
		args := c.Args
		if args == nil {
			args = map[string]any{}
		}
		raw, err := json.Marshal(args)
		if err == nil {
			p.AppendDelta(c.ID, string(raw))
		}
		b, err := p.FinishCall(c.ID)
		if err != nil {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks
}
