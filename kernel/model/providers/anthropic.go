package providers

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/OnslaughtSnail/agenthost/kernel/model"
)

// MessagesClient is the subset of the Anthropic messages service used here.
// *sdk.MessageService satisfies it.
type MessagesClient interface {
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

type anthropicLLM struct {
	name                string
	provider            string
	messages            MessagesClient
	maxOutputTok        int
	contextWindowTokens int
}

func newAnthropic(cfg Config, token string) model.LLM {
	opts := []option.RequestOption{
		option.WithAPIKey(token),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout()}),
	}
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	client := sdk.NewClient(opts...)
	return newAnthropicWithClient(cfg, &client.Messages)
}

func newAnthropicWithClient(cfg Config, messages MessagesClient) *anthropicLLM {
	maxTok := cfg.MaxOutputTok
	if maxTok <= 0 {
		maxTok = 4096
	}
	return &anthropicLLM{
		name:                cfg.Model,
		provider:            cfg.Provider,
		messages:            messages,
		maxOutputTok:        maxTok,
		contextWindowTokens: cfg.ContextWindowTokens,
	}
}

func (l *anthropicLLM) Name() string {
	return l.name
}

func (l *anthropicLLM) ContextWindowTokens() int {
	return l.contextWindowTokens
}

// Generate always streams; Request.Stream only controls whether partial
// chunks are yielded.
func (l *anthropicLLM) Generate(ctx context.Context, req *model.Request) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		if req == nil {
			yield(nil, fmt.Errorf("model: request is nil"))
			return
		}
		params := l.buildParams(req)
		stream := l.messages.NewStreaming(ctx, params)
		if stream == nil {
			yield(nil, fmt.Errorf("model: anthropic returned no stream"))
			return
		}
		defer stream.Close()

		acc := newAnthropicAccumulator()
		for stream.Next() {
			partial := acc.handle(stream.Current())
			if partial == nil || !req.Stream {
				continue
			}
			partial.Model = l.name
			partial.Provider = l.provider
			if !yield(partial, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield(nil, fmt.Errorf("model: anthropic stream: %w", err))
			return
		}
		yield(&model.Response{
			Message:      acc.message(),
			TurnComplete: true,
			Usage:        acc.usage,
			Model:        l.name,
			Provider:     l.provider,
		}, nil)
	}
}

func (l *anthropicLLM) buildParams(req *model.Request) sdk.MessageNewParams {
	maxTok := req.MaxTokens
	if maxTok <= 0 {
		maxTok = l.maxOutputTok
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(l.name),
		MaxTokens: int64(maxTok),
		Messages:  toAnthropicMessages(req.Messages),
		Tools:     toAnthropicTools(req.Tools),
	}
	if system := strings.TrimSpace(req.System); system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if req.Reasoning.Enabled != nil && *req.Reasoning.Enabled {
		budget := req.Reasoning.BudgetTokens
		if budget < 1024 {
			budget = 1024
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(int64(budget))
	}
	return params
}

// toAnthropicMessages merges consecutive tool responses into one user turn,
// which is how the messages API expects parallel tool results.
func toAnthropicMessages(msgs []model.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(msgs))
	var results []sdk.ContentBlockParamUnion
	flush := func() {
		if len(results) > 0 {
			out = append(out, sdk.NewUserMessage(results...))
			results = nil
		}
	}
	for _, m := range msgs {
		if m.ToolResponse != nil {
			results = append(results, sdk.NewToolResultBlock(m.ToolResponse.ID, m.ToolResponse.Content, m.ToolResponse.IsError))
			continue
		}
		flush()
		switch m.Role {
		case model.RoleSystem:
			// System text travels in MessageNewParams.System.
		case model.RoleAssistant:
			blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.ToolCalls)+1)
			if m.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Text))
			}
			for _, c := range m.ToolCalls {
				args := c.Args
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(c.ID, args, c.Name))
			}
			if len(blocks) > 0 {
				out = append(out, sdk.NewAssistantMessage(blocks...))
			}
		default:
			if m.Text != "" {
				out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Text)))
			}
		}
	}
	flush()
	return out
}

func toAnthropicTools(defs []model.ToolDefinition) []sdk.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: d.Parameters}, d.Name)
		if d.Description != "" && u.OfTool != nil {
			u.OfTool.Description = sdk.String(d.Description)
		}
		out = append(out, u)
	}
	return out
}

type anthropicToolSlot struct {
	id   string
	name string
	args strings.Builder
}

// anthropicAccumulator folds stream events into partial responses and the
// final assembled message. Content block indexes become tool-call delta
// indexes.
type anthropicAccumulator struct {
	text      strings.Builder
	reasoning strings.Builder
	tools     map[int]*anthropicToolSlot
	order     []int
	usage     model.Usage
}

func newAnthropicAccumulator() *anthropicAccumulator {
	return &anthropicAccumulator{tools: map[int]*anthropicToolSlot{}}
}

func (a *anthropicAccumulator) handle(event sdk.MessageStreamEventUnion) *model.Response {
	switch ev := event.AsAny().(type) {
	case sdk.MessageStartEvent:
		a.usage.PromptTokens = int(ev.Message.Usage.InputTokens)
	case sdk.ContentBlockStartEvent:
		toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock)
		if !ok {
			return nil
		}
		idx := int(ev.Index)
		a.tools[idx] = &anthropicToolSlot{id: toolUse.ID, name: toolUse.Name}
		a.order = append(a.order, idx)
		return &model.Response{
			Message:        model.Message{Role: model.RoleAssistant},
			ToolCallDeltas: []model.ToolCallDelta{{Index: idx, ID: toolUse.ID, Name: toolUse.Name}},
			Partial:        true,
		}
	case sdk.ContentBlockDeltaEvent:
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if delta.Text == "" {
				return nil
			}
			a.text.WriteString(delta.Text)
			return &model.Response{
				Message: model.Message{Role: model.RoleAssistant, Text: delta.Text},
				Partial: true,
			}
		case sdk.ThinkingDelta:
			if delta.Thinking == "" {
				return nil
			}
			a.reasoning.WriteString(delta.Thinking)
			return &model.Response{
				Message: model.Message{Role: model.RoleAssistant, Reasoning: delta.Thinking},
				Partial: true,
			}
		case sdk.InputJSONDelta:
			idx := int(ev.Index)
			slot := a.tools[idx]
			if slot == nil || delta.PartialJSON == "" {
				return nil
			}
			slot.args.WriteString(delta.PartialJSON)
			return &model.Response{
				Message:        model.Message{Role: model.RoleAssistant},
				ToolCallDeltas: []model.ToolCallDelta{{Index: idx, Arguments: delta.PartialJSON}},
				Partial:        true,
			}
		}
	case sdk.MessageDeltaEvent:
		if ev.Usage.InputTokens > 0 {
			a.usage.PromptTokens = int(ev.Usage.InputTokens)
		}
		a.usage.CompletionTokens = int(ev.Usage.OutputTokens)
		a.usage.TotalTokens = a.usage.PromptTokens + a.usage.CompletionTokens
	}
	return nil
}

func (a *anthropicAccumulator) message() model.Message {
	msg := model.Message{
		Role:      model.RoleAssistant,
		Text:      a.text.String(),
		Reasoning: a.reasoning.String(),
	}
	for _, idx := range a.order {
		slot := a.tools[idx]
		msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
			ID:   slot.id,
			Name: slot.name,
			Args: decodeArgs(slot.args.String()),
		})
	}
	return msg
}
