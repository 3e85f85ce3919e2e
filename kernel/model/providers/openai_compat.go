package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"sort"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/model"
)

// chatDialect captures the differences between OpenAI-style chat servers.
type chatDialect struct {
	// echoReasoning sends prior reasoning back as reasoning_content.
	echoReasoning bool
	// emptyReasoningOnCalls sends reasoning_content:"" on tool-call turns
	// that had no reasoning.
	emptyReasoningOnCalls bool
	applyReasoning        func(*chatRequest, model.ReasoningConfig)
}

type openAICompatLLM struct {
	name                string
	provider            string
	endpoint            string
	token               string
	client              *http.Client
	headers             map[string]string
	contextWindowTokens int
	maxOutputTokens     int
	dialect             chatDialect
}

func newOpenAICompat(cfg Config, token string) *openAICompatLLM {
	return &openAICompatLLM{
		name:                cfg.Model,
		provider:            cfg.Provider,
		endpoint:            strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		token:               token,
		client:              &http.Client{Timeout: cfg.timeout()},
		headers:             cfg.Headers,
		contextWindowTokens: cfg.ContextWindowTokens,
		maxOutputTokens:     cfg.MaxOutputTok,
		dialect:             chatDialect{applyReasoning: applyOpenAIReasoning},
	}
}

func (l *openAICompatLLM) Name() string {
	return l.name
}

func (l *openAICompatLLM) ContextWindowTokens() int {
	return l.contextWindowTokens
}

// Generate always requests an SSE stream; Request.Stream only controls
// whether partial chunks are yielded.
func (l *openAICompatLLM) Generate(ctx context.Context, req *model.Request) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		if req == nil {
			yield(nil, fmt.Errorf("model: request is nil"))
			return
		}
		resp, err := l.post(ctx, l.buildRequest(req))
		if err != nil {
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		acc := newChatAccumulator()
		stopped := false
		err = readSSE(resp.Body, func(data []byte) error {
			var chunk chatStreamChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				return fmt.Errorf("model: decode chunk: %w", err)
			}
			partial := acc.handle(chunk)
			if partial == nil || !req.Stream {
				return nil
			}
			partial.Provider = l.provider
			if !yield(partial, nil) {
				stopped = true
				return errStopSSE
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
			return
		}
		if stopped {
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

func (l *openAICompatLLM) buildRequest(req *model.Request) chatRequest {
	body := chatRequest{
		Model:         l.name,
		Messages:      l.toWireMessages(req.System, req.Messages),
		Tools:         toWireTools(req.Tools),
		Stream:        true,
		StreamOptions: &chatStreamOptions{IncludeUsage: true},
		MaxTokens:     req.MaxTokens,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = l.maxOutputTokens
	}
	if l.dialect.applyReasoning != nil {
		l.dialect.applyReasoning(&body, req.Reasoning)
	}
	return body
}

func (l *openAICompatLLM) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+l.token)
	for k, v := range l.headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

type chatRequest struct {
	Model           string             `json:"model"`
	Messages        []chatMessage      `json:"messages"`
	Tools           []chatTool         `json:"tools,omitempty"`
	Stream          bool               `json:"stream"`
	StreamOptions   *chatStreamOptions `json:"stream_options,omitempty"`
	MaxTokens       int                `json:"max_tokens,omitempty"`
	ReasoningEffort string             `json:"reasoning_effort,omitempty"`
	Reasoning       *openAIReasoning   `json:"reasoning,omitempty"`
	Thinking        *openAIThinking    `json:"thinking,omitempty"`
}

type chatMessage struct {
	Role             string         `json:"role"`
	Content          any            `json:"content,omitempty"`
	ReasoningContent *string        `json:"reasoning_content,omitempty"`
	ToolCallID       string         `json:"tool_call_id,omitempty"`
	ToolCalls        []chatToolCall `json:"tool_calls,omitempty"`
}

type chatStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIReasoning struct {
	Effort string `json:"effort,omitempty"`
}

type openAIThinking struct {
	Type string `json:"type"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id,omitempty"`
	Index    int              `json:"index,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function chatCallFunction `json:"function"`
}

type chatCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

type chatStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content          *string        `json:"content"`
			ReasoningContent string         `json:"reasoning_content"`
			ToolCalls        []chatToolCall `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type chatCallSlot struct {
	id   string
	name string
	args strings.Builder
}

// chatAccumulator folds stream chunks into partial responses and the final
// assembled message. Stream indexes become tool-call delta indexes.
type chatAccumulator struct {
	text      strings.Builder
	reasoning strings.Builder
	calls     map[int]*chatCallSlot
	usage     model.Usage
}

func newChatAccumulator() *chatAccumulator {
	return &chatAccumulator{calls: map[int]*chatCallSlot{}}
}

func (a *chatAccumulator) handle(chunk chatStreamChunk) *model.Response {
	if u := chunk.Usage; u != nil {
		a.usage = model.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	if len(chunk.Choices) == 0 {
		return nil
	}
	delta := chunk.Choices[0].Delta
	out := &model.Response{
		Message: model.Message{Role: model.RoleAssistant, Reasoning: delta.ReasoningContent},
		Partial: true,
		Model:   chunk.Model,
	}
	if delta.Content != nil {
		out.Message.Text = *delta.Content
	}
	a.text.WriteString(out.Message.Text)
	a.reasoning.WriteString(delta.ReasoningContent)
	for _, tc := range delta.ToolCalls {
		slot := a.calls[tc.Index]
		if slot == nil {
			slot = &chatCallSlot{}
			a.calls[tc.Index] = slot
		}
		if tc.ID != "" {
			slot.id = tc.ID
		}
		if tc.Function.Name != "" {
			slot.name = tc.Function.Name
		}
		slot.args.WriteString(tc.Function.Arguments)
		out.ToolCallDeltas = append(out.ToolCallDeltas, model.ToolCallDelta{
			Index:     tc.Index,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if out.Message.Text == "" && out.Message.Reasoning == "" && len(out.ToolCallDeltas) == 0 {
		return nil
	}
	return out
}

// message assembles the final message. Arguments that do not decode are left
// nil; the native-call parser reports them against the streamed deltas.
func (a *chatAccumulator) message() model.Message {
	msg := model.Message{
		Role:      model.RoleAssistant,
		Text:      a.text.String(),
		Reasoning: a.reasoning.String(),
	}
	indexes := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		slot := a.calls[idx]
		msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
			ID:   slot.id,
			Name: slot.name,
			Args: decodeArgs(slot.args.String()),
		})
	}
	return msg
}

func decodeArgs(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil
	}
	return args
}

func (l *openAICompatLLM) toWireMessages(system string, messages []model.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, chatMessage{Role: string(model.RoleSystem), Content: system})
	}
	for _, m := range messages {
		if m.Role == model.RoleSystem && m.ToolResponse == nil {
			continue
		}
		out = append(out, l.toWireMessage(m))
	}
	return out
}

func toWireTools(tools []model.ToolDefinition) []chatTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]chatTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, chatTool{
			Type:     "function",
			Function: chatFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}
	return out
}

func (l *openAICompatLLM) toWireMessage(m model.Message) chatMessage {
	if r := m.ToolResponse; r != nil {
		return chatMessage{Role: string(model.RoleTool), ToolCallID: r.ID, Content: r.Content}
	}
	msg := chatMessage{Role: string(m.Role), Content: m.Text}
	if len(m.ToolCalls) == 0 {
		msg.ReasoningContent = l.reasoningField(m.Reasoning, false)
		return msg
	}
	if m.Text == "" {
		msg.Content = nil
	}
	for _, c := range m.ToolCalls {
		args := c.Args
		if args == nil {
			args = map[string]any{}
		}
		raw, _ := json.Marshal(args)
		msg.ToolCalls = append(msg.ToolCalls, chatToolCall{
			ID:       c.ID,
			Type:     "function",
			Function: chatCallFunction{Name: c.Name, Arguments: string(raw)},
		})
	}
	msg.ReasoningContent = l.reasoningField(m.Reasoning, true)
	return msg
}

func (l *openAICompatLLM) reasoningField(reasoning string, hasCalls bool) *string {
	switch {
	case !l.dialect.echoReasoning:
		return nil
	case strings.TrimSpace(reasoning) != "":
		return &reasoning
	case hasCalls && l.dialect.emptyReasoningOnCalls:
		empty := ""
		return &empty
	default:
		return nil
	}
}

func applyOpenAIReasoning(body *chatRequest, cfg model.ReasoningConfig) {
	effort := strings.TrimSpace(cfg.Effort)
	if body == nil || effort == "" {
		return
	}
	body.Reasoning = &openAIReasoning{Effort: effort}
	// Some gateways only read the flat field.
	body.ReasoningEffort = effort
}
