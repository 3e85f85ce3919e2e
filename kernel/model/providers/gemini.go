package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/OnslaughtSnail/agenthost/kernel/model"
)

// ContentStreamer is the streaming half of the genai models service.
// *genai.Models satisfies it.
type ContentStreamer interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

type geminiLLM struct {
	name                string
	provider            string
	models              ContentStreamer
	maxOutputTok        int
	contextWindowTokens int
}

func newGemini(cfg Config, token string) (model.LLM, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:     token,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.timeout()},
	}
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	if len(cfg.Headers) > 0 {
		clientCfg.HTTPOptions.Headers = http.Header{}
		for k, v := range cfg.Headers {
			clientCfg.HTTPOptions.Headers.Set(k, v)
		}
	}
	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("providers: gemini client: %w", err)
	}
	return newGeminiWithStreamer(cfg, client.Models), nil
}

func newGeminiWithStreamer(cfg Config, models ContentStreamer) *geminiLLM {
	return &geminiLLM{
		name:                cfg.Model,
		provider:            cfg.Provider,
		models:              models,
		maxOutputTok:        cfg.MaxOutputTok,
		contextWindowTokens: cfg.ContextWindowTokens,
	}
}

func (l *geminiLLM) Name() string {
	return l.name
}

func (l *geminiLLM) ContextWindowTokens() int {
	return l.contextWindowTokens
}

// Generate streams through GenerateContentStream. Gemini delivers function
// calls whole, so each becomes a single tool-call delta in its own slot.
func (l *geminiLLM) Generate(ctx context.Context, req *model.Request) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		if req == nil {
			yield(nil, fmt.Errorf("model: request is nil"))
			return
		}
		acc := geminiAccumulator{}
		for resp, err := range l.models.GenerateContentStream(ctx, l.name, toGeminiContents(req.Messages), l.buildConfig(req)) {
			if err != nil {
				yield(nil, fmt.Errorf("model: gemini stream: %w", err))
				return
			}
			partial := acc.handle(resp)
			if partial == nil || !req.Stream {
				continue
			}
			partial.Model = l.name
			partial.Provider = l.provider
			if !yield(partial, nil) {
				return
			}
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

func (l *geminiLLM) buildConfig(req *model.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	maxTok := req.MaxTokens
	if maxTok <= 0 {
		maxTok = l.maxOutputTok
	}
	if maxTok > 0 {
		cfg.MaxOutputTokens = int32(maxTok)
	}
	if system := strings.TrimSpace(req.System); system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(system)}}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: t.Parameters,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	if req.Reasoning.Enabled != nil || req.Reasoning.BudgetTokens > 0 {
		thinking := &genai.ThinkingConfig{}
		switch {
		case req.Reasoning.BudgetTokens > 0:
			budget := int32(req.Reasoning.BudgetTokens)
			thinking.ThinkingBudget = &budget
			thinking.IncludeThoughts = true
		case !*req.Reasoning.Enabled:
			var off int32
			thinking.ThinkingBudget = &off
		default:
			thinking.IncludeThoughts = true
		}
		cfg.ThinkingConfig = thinking
	}
	return cfg
}

func toGeminiContents(msgs []model.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		if m.ToolResponse != nil {
			key := "output"
			if m.ToolResponse.IsError {
				key = "error"
			}
			out = append(out, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolResponse.ID,
					Name:     m.ToolResponse.Name,
					Response: map[string]any{key: m.ToolResponse.Content},
				}}},
			})
			continue
		}
		switch m.Role {
		case model.RoleSystem:
		case model.RoleAssistant:
			c := &genai.Content{Role: genai.RoleModel}
			if m.Text != "" {
				c.Parts = append(c.Parts, genai.NewPartFromText(m.Text))
			}
			for _, call := range m.ToolCalls {
				part := &genai.Part{FunctionCall: &genai.FunctionCall{ID: call.ID, Name: call.Name, Args: call.Args}}
				if sig, err := base64.StdEncoding.DecodeString(call.ThoughtSignature); err == nil && len(sig) > 0 {
					part.ThoughtSignature = sig
				}
				c.Parts = append(c.Parts, part)
			}
			if len(c.Parts) > 0 {
				out = append(out, c)
			}
		default:
			if m.Text != "" {
				out = append(out, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{genai.NewPartFromText(m.Text)}})
			}
		}
	}
	return out
}

type geminiAccumulator struct {
	text      strings.Builder
	reasoning strings.Builder
	calls     []model.ToolCall
	usage     model.Usage
}

func (a *geminiAccumulator) handle(resp *genai.GenerateContentResponse) *model.Response {
	if resp == nil {
		return nil
	}
	if u := resp.UsageMetadata; u != nil {
		a.usage = model.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	out := &model.Response{Message: model.Message{Role: model.RoleAssistant}, Partial: true}
	var text, reasoning strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		switch {
		case part.FunctionCall != nil:
			call := model.ToolCall{
				ID:   part.FunctionCall.ID,
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			}
			if call.ID == "" {
				call.ID = "call_" + uuid.NewString()
			}
			if len(part.ThoughtSignature) > 0 {
				call.ThoughtSignature = base64.StdEncoding.EncodeToString(part.ThoughtSignature)
			}
			args := call.Args
			if args == nil {
				args = map[string]any{}
			}
			raw, _ := json.Marshal(args)
			out.ToolCallDeltas = append(out.ToolCallDeltas, model.ToolCallDelta{
				Index:     len(a.calls),
				ID:        call.ID,
				Name:      call.Name,
				Arguments: string(raw),
			})
			a.calls = append(a.calls, call)
		case part.Thought:
			reasoning.WriteString(part.Text)
		default:
			text.WriteString(part.Text)
		}
	}
	a.text.WriteString(text.String())
	a.reasoning.WriteString(reasoning.String())
	out.Message.Text = text.String()
	out.Message.Reasoning = reasoning.String()
	if out.Message.Text == "" && out.Message.Reasoning == "" && len(out.ToolCallDeltas) == 0 {
		return nil
	}
	return out
}

func (a *geminiAccumulator) message() model.Message {
	return model.Message{
		Role:      model.RoleAssistant,
		Text:      a.text.String(),
		Reasoning: a.reasoning.String(),
		ToolCalls: append([]model.ToolCall(nil), a.calls...),
	}
}
