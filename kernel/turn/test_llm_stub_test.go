package turn

import (
	"context"
	"iter"
	"sync"

	"github.com/OnslaughtSnail/agenthost/kernel/model"
)

// scriptedLLM replays one scripted stream per Generate call.
type scriptedLLM struct {
	mu       sync.Mutex
	turns    [][]*model.Response
	errs     []error
	requests []*model.Request
	block    chan struct{}
	started  chan struct{}
}

func (l *scriptedLLM) Name() string {
	return "scripted"
}

func (l *scriptedLLM) Generate(ctx context.Context, req *model.Request) iter.Seq2[*model.Response, error] {
	l.mu.Lock()
	n := len(l.requests)
	l.requests = append(l.requests, req)
	var script []*model.Response
	if n < len(l.turns) {
		script = l.turns[n]
	}
	var streamErr error
	if n < len(l.errs) {
		streamErr = l.errs[n]
	}
	l.mu.Unlock()

	return func(yield func(*model.Response, error) bool) {
		if l.started != nil {
			close(l.started)
		}
		if l.block != nil {
			select {
			case <-l.block:
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}
		for _, resp := range script {
			if !yield(resp, nil) {
				return
			}
		}
		if streamErr != nil {
			yield(nil, streamErr)
		}
	}
}

func (l *scriptedLLM) request(i int) *model.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests[i]
}

func textChunks(chunks ...string) []*model.Response {
	out := make([]*model.Response, 0, len(chunks)+1)
	full := ""
	for _, c := range chunks {
		full += c
		out = append(out, &model.Response{
			Message: model.Message{Role: model.RoleAssistant, Text: c},
			Partial: true,
		})
	}
	return append(out, &model.Response{
		Message:      model.Message{Role: model.RoleAssistant, Text: full},
		TurnComplete: true,
	})
}
