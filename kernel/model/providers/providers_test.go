package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/genai"

	"github.com/OnslaughtSnail/agenthost/kernel/model"
)

func TestListModelsRequiresRegistration(t *testing.T) {
	factory := NewFactory()
	if got := factory.ListModels(); len(got) != 0 {
		t.Fatalf("expected empty model list, got %v", got)
	}
	if _, err := factory.NewByAlias("deepseek/deepseek-chat"); err == nil {
		t.Fatalf("expected unknown alias error without registration")
	}

	cfg := Config{
		Alias:    "DeepSeek/deepseek-chat",
		Provider: "deepseek",
		API:      APIDeepSeek,
		Model:    "deepseek-chat",
		BaseURL:  "https://api.deepseek.com/v1",
		APIKey:   "secret",
	}
	if err := factory.Register(cfg); err != nil {
		t.Fatalf("register provider config: %v", err)
	}
	list := factory.ListModels()
	if len(list) != 1 || list[0] != "deepseek/deepseek-chat" {
		t.Fatalf("unexpected list models: %v", list)
	}
	llm, err := factory.NewByAlias("deepseek/deepseek-chat")
	if err != nil {
		t.Fatal(err)
	}
	if oa, ok := llm.(*openAICompatLLM); !ok || !oa.dialect.echoReasoning {
		t.Fatalf("expected thinking-style openai client, got %T", llm)
	}
}

func TestRegisterRejectsUnsupportedConfig(t *testing.T) {
	factory := NewFactory()
	if err := factory.Register(Config{Alias: "x", API: "soap"}); err == nil {
		t.Fatal("expected unsupported api error")
	}
	if err := factory.Register(Config{API: APIOpenAI}); err == nil {
		t.Fatal("expected missing alias error")
	}
}

func TestConfigAPIKeyFallsBackToEnv(t *testing.T) {
	t.Setenv("AGENTHOST_TEST_TOKEN", " from-env ")
	key, err := Config{APIKeyEnv: "AGENTHOST_TEST_TOKEN"}.apiKey()
	if err != nil || key != "from-env" {
		t.Fatalf("unexpected key %q err=%v", key, err)
	}
	t.Setenv("AGENTHOST_TEST_TOKEN", "")
	if _, err := (Config{APIKeyEnv: "AGENTHOST_TEST_TOKEN"}).apiKey(); err == nil || !strings.Contains(err.Error(), "AGENTHOST_TEST_TOKEN") {
		t.Fatalf("expected missing variable error, got %v", err)
	}
	if _, err := (Config{}).apiKey(); err == nil {
		t.Fatal("expected empty key error")
	}
}

func TestParseAPIType(t *testing.T) {
	for in, want := range map[string]APIType{"": APIOpenAICompatible, " Anthropic ": APIAnthropic, "gemini": APIGemini} {
		got, err := ParseAPIType(in)
		if err != nil || got != want {
			t.Fatalf("ParseAPIType(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseAPIType("soap"); err == nil {
		t.Fatal("expected unsupported api error")
	}
}

func TestOpenAICompatStream_PropagatesSSEErrorsWithoutTurnComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"model\":\"test-model\",\"choices\":[{\"delta\":{\"content\":\"hello\"}}]}\n\n")
		_, _ = fmt.Fprint(w, "data: {invalid-json}\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	llm := newOpenAICompat(Config{
		Provider: "openai-compatible",
		Model:    "test-model",
		BaseURL:  server.URL,
		Timeout:  2 * time.Second,
	}, "token")

	var (
		gotErr       error
		turnComplete bool
	)
	for resp, err := range llm.Generate(context.Background(), &model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "hi"}},
		Stream:   true,
	}) {
		if err != nil {
			gotErr = err
			continue
		}
		if resp != nil && resp.TurnComplete {
			turnComplete = true
		}
	}
	if gotErr == nil {
		t.Fatalf("expected stream error, got nil")
	}
	if turnComplete {
		t.Fatalf("did not expect turn_complete on stream error")
	}
}

func TestOpenAICompatStream_EmitsToolCallDeltas(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Reading.\"}}]}\n\n")
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"function\":{\"name\":\"read_file\",\"arguments\":\"{\\\"pa\"}}]}}]}\n\n")
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"th\\\":\\\"a.go\\\"}\"}}]}}]}\n\n")
		_, _ = fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":4,\"completion_tokens\":6,\"total_tokens\":10}}\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	llm := newOpenAICompat(Config{Model: "m", BaseURL: server.URL, Timeout: 2 * time.Second}, "token")
	var (
		deltas []model.ToolCallDelta
		text   string
		final  *model.Response
	)
	for resp, err := range llm.Generate(context.Background(), &model.Request{
		System:   "be brief",
		Messages: []model.Message{{Role: model.RoleUser, Text: "read a.go"}},
		Stream:   true,
	}) {
		if err != nil {
			t.Fatal(err)
		}
		if resp.TurnComplete {
			final = resp
			continue
		}
		text += resp.Message.Text
		deltas = append(deltas, resp.ToolCallDeltas...)
	}

	want := []model.ToolCallDelta{
		{Index: 0, ID: "call_1", Name: "read_file", Arguments: `{"pa`},
		{Index: 0, Arguments: `th":"a.go"}`},
	}
	if diff := cmp.Diff(want, deltas); diff != "" {
		t.Fatalf("unexpected deltas (-want +got):\n%s", diff)
	}
	if final == nil {
		t.Fatal("expected final response")
	}
	if text != "Reading." || final.Message.Text != "Reading." {
		t.Fatalf("unexpected text stream %q", text)
	}
	if len(final.Message.ToolCalls) != 1 || final.Message.ToolCalls[0].Args["path"] != "a.go" {
		t.Fatalf("unexpected final tool calls %#v", final.Message.ToolCalls)
	}
	if final.Usage.TotalTokens != 10 {
		t.Fatalf("expected usage from trailing chunk, got %#v", final.Usage)
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 || msgs[0].(map[string]any)["role"] != "system" {
		t.Fatalf("expected system message first, got %#v", gotBody["messages"])
	}
	if _, ok := gotBody["stream_options"]; !ok {
		t.Fatal("expected stream_options in streaming request")
	}
}

func TestOpenAICompatWireMessages(t *testing.T) {
	llm := newOpenAICompat(Config{Model: "gpt-4o-mini", Timeout: time.Second}, "token")
	call := llm.toWireMessage(model.Message{
		Role:      model.RoleAssistant,
		Reasoning: "thinking...",
		ToolCalls: []model.ToolCall{{ID: "c1", Name: "echo", Args: map[string]any{"text": "hello"}}},
	})
	want := chatMessage{
		Role: "assistant",
		ToolCalls: []chatToolCall{{
			ID:       "c1",
			Type:     "function",
			Function: chatCallFunction{Name: "echo", Arguments: `{"text":"hello"}`},
		}},
	}
	if diff := cmp.Diff(want, call); diff != "" {
		t.Fatalf("unexpected tool-call message (-want +got):\n%s", diff)
	}

	res := llm.toWireMessage(model.Message{ToolResponse: &model.ToolResponse{ID: "c1", Content: "done"}})
	if res.Role != "tool" || res.ToolCallID != "c1" || res.Content != "done" {
		t.Fatalf("unexpected tool response message %#v", res)
	}
}

func TestOpenAICompat_NonStreamingYieldsOnlyFinal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"one \"}}]}\n\n")
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"two\"}}]}\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	llm := newOpenAICompat(Config{Model: "m", BaseURL: server.URL, Timeout: 2 * time.Second}, "token")
	var got []*model.Response
	for resp, err := range llm.Generate(context.Background(), &model.Request{Stream: false}) {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, resp)
	}
	if len(got) != 1 || !got[0].TurnComplete || got[0].Message.Text != "one two" {
		t.Fatalf("expected a single final response, got %#v", got)
	}
}

func TestOpenAICompat_StatusErrorUsesProviderMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = fmt.Fprint(w, `{"error":{"message":"rate limited","type":"requests"}}`)
	}))
	defer server.Close()

	llm := newOpenAICompat(Config{Model: "m", BaseURL: server.URL, Timeout: 2 * time.Second}, "token")
	for _, err := range llm.Generate(context.Background(), &model.Request{Stream: true}) {
		if err == nil || err.Error() != "model: http status 429: rate limited" {
			t.Fatalf("unexpected error %v", err)
		}
	}
}

func TestReadSSE_JoinsDataLines(t *testing.T) {
	input := "event: message\ndata: {\"a\":\ndata: 1}\n\n: comment\ndata: second\n\ndata: [DONE]\n\ndata: after\n\n"
	var got []string
	err := readSSE(strings.NewReader(input), func(b []byte) error {
		got = append(got, string(b))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"{\"a\":\n1}", "second"}, got); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestDecodeArgsIsLenient(t *testing.T) {
	if got := decodeArgs(""); got == nil || len(got) != 0 {
		t.Fatalf("expected empty args, got %#v", got)
	}
	if got := decodeArgs(`{"path":`); got != nil {
		t.Fatalf("expected nil for truncated args, got %#v", got)
	}
}

func TestThinkingProvidersUseThinkingPayload(t *testing.T) {
	for _, cfg := range []Config{
		{Provider: "deepseek", API: APIDeepSeek, Model: "deepseek-chat"},
		{Provider: "xiaomi", API: APIOpenAICompatible, Model: "mimo"},
	} {
		if !isThinkingProvider(cfg) {
			t.Fatalf("expected %s to be a thinking provider", cfg.Provider)
		}
		llm := newThinkingCompat(cfg, "token").(*openAICompatLLM)
		enabled := true
		payload := chatRequest{
			Model: cfg.Model,
			Messages: llm.toWireMessages("", []model.Message{{
				Role:      model.RoleAssistant,
				ToolCalls: []model.ToolCall{{ID: "c1", Name: "echo", Args: map[string]any{"text": "hi"}}},
			}}),
		}
		llm.dialect.applyReasoning(&payload, model.ReasoningConfig{Enabled: &enabled, Effort: "high"})
		if payload.Thinking == nil || payload.Thinking.Type != "enabled" {
			t.Fatalf("%s: expected thinking config, got %#v", cfg.Provider, payload.Thinking)
		}
		if payload.Reasoning != nil || payload.ReasoningEffort != "" {
			t.Fatalf("%s: did not expect openai reasoning fields", cfg.Provider)
		}
		if len(payload.Messages) != 1 || payload.Messages[0].ReasoningContent == nil || *payload.Messages[0].ReasoningContent != "" {
			t.Fatalf("%s: expected empty reasoning_content for tool-call message", cfg.Provider)
		}
	}
	if isThinkingProvider(Config{Provider: "openai", API: APIOpenAI}) {
		t.Fatal("did not expect openai to be a thinking provider")
	}
}

// testDecoder feeds fixed events to an ssestream.Stream.
type testDecoder struct {
	events []ssestream.Event
	i      int
	err    error
}

func (d *testDecoder) Event() ssestream.Event { return d.events[d.i-1] }

func (d *testDecoder) Next() bool {
	if d.err != nil || d.i >= len(d.events) {
		return false
	}
	d.i++
	return true
}

func (d *testDecoder) Close() error { return nil }
func (d *testDecoder) Err() error   { return d.err }

type fakeMessages struct {
	events []string
	err    error
	got    sdk.MessageNewParams
}

func (f *fakeMessages) NewStreaming(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	f.got = body
	evs := make([]ssestream.Event, 0, len(f.events))
	for _, raw := range f.events {
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal([]byte(raw), &head)
		evs = append(evs, ssestream.Event{Type: head.Type, Data: []byte(raw)})
	}
	return ssestream.NewStream[sdk.MessageStreamEventUnion](&testDecoder{events: evs, err: f.err}, nil)
}

func TestAnthropicStream_TextAndToolDeltas(t *testing.T) {
	fake := &fakeMessages{events: []string{
		`{"type":"message_start","message":{"id":"m1","type":"message","role":"assistant","content":[],"model":"claude","usage":{"input_tokens":7,"output_tokens":0}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Let me look."}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"read_file","input":{}}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"path\":"}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"a.go\"}"}}`,
		`{"type":"content_block_stop","index":1}`,
		`{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":12}}`,
		`{"type":"message_stop"}`,
	}}
	llm := newAnthropicWithClient(Config{Model: "claude", Provider: "anthropic"}, fake)

	var (
		text   string
		deltas []model.ToolCallDelta
		final  *model.Response
	)
	for resp, err := range llm.Generate(context.Background(), &model.Request{
		System:   "sys",
		Messages: []model.Message{{Role: model.RoleUser, Text: "read a.go"}},
		Tools:    []model.ToolDefinition{{Name: "read_file", Description: "Read a file", Parameters: map[string]any{"type": "object"}}},
		Stream:   true,
	}) {
		if err != nil {
			t.Fatal(err)
		}
		if resp.TurnComplete {
			final = resp
			continue
		}
		text += resp.Message.Text
		deltas = append(deltas, resp.ToolCallDeltas...)
	}

	if text != "Let me look." {
		t.Fatalf("unexpected text %q", text)
	}
	want := []model.ToolCallDelta{
		{Index: 1, ID: "toolu_1", Name: "read_file"},
		{Index: 1, Arguments: `{"path":`},
		{Index: 1, Arguments: `"a.go"}`},
	}
	if diff := cmp.Diff(want, deltas); diff != "" {
		t.Fatalf("unexpected deltas (-want +got):\n%s", diff)
	}
	if final == nil || len(final.Message.ToolCalls) != 1 || final.Message.ToolCalls[0].Args["path"] != "a.go" {
		t.Fatalf("unexpected final response %#v", final)
	}
	if final.Usage.PromptTokens != 7 || final.Usage.CompletionTokens != 12 || final.Usage.TotalTokens != 19 {
		t.Fatalf("unexpected usage %#v", final.Usage)
	}
	if len(fake.got.System) != 1 || fake.got.System[0].Text != "sys" {
		t.Fatalf("expected system prompt in params, got %#v", fake.got.System)
	}
	if len(fake.got.Tools) != 1 || fake.got.Tools[0].OfTool == nil || fake.got.Tools[0].OfTool.Name != "read_file" {
		t.Fatalf("unexpected tools %#v", fake.got.Tools)
	}
}

func TestAnthropicStream_PropagatesDecoderError(t *testing.T) {
	fake := &fakeMessages{err: errors.New("connection reset")}
	llm := newAnthropicWithClient(Config{Model: "claude"}, fake)
	var gotErr error
	for resp, err := range llm.Generate(context.Background(), &model.Request{Stream: true}) {
		if err != nil {
			gotErr = err
			continue
		}
		if resp.TurnComplete {
			t.Fatal("did not expect turn_complete on stream error")
		}
	}
	if gotErr == nil {
		t.Fatal("expected stream error")
	}
}

func TestAnthropicMessagesMergeToolResults(t *testing.T) {
	msgs := toAnthropicMessages([]model.Message{
		{Role: model.RoleSystem, Text: "sys"},
		{Role: model.RoleUser, Text: "hi"},
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{
			{ID: "a", Name: "read_file", Args: map[string]any{"path": "x"}},
			{ID: "b", Name: "read_file"},
		}},
		{Role: model.RoleTool, ToolResponse: &model.ToolResponse{ID: "a", Content: "x body"}},
		{Role: model.RoleTool, ToolResponse: &model.ToolResponse{ID: "b", Content: "missing", IsError: true}},
	})
	if len(msgs) != 3 {
		t.Fatalf("expected user, assistant, merged results; got %d messages", len(msgs))
	}
	if msgs[1].Role != sdk.MessageParamRoleAssistant || len(msgs[1].Content) != 2 {
		t.Fatalf("unexpected assistant message %#v", msgs[1])
	}
	if msgs[2].Role != sdk.MessageParamRoleUser || len(msgs[2].Content) != 2 || msgs[2].Content[1].OfToolResult == nil {
		t.Fatalf("expected merged tool results, got %#v", msgs[2])
	}
}

type fakeStreamer struct {
	responses []*genai.GenerateContentResponse
	err       error
	gotConfig *genai.GenerateContentConfig
	gotInput  []*genai.Content
}

func (f *fakeStreamer) GenerateContentStream(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.gotConfig = cfg
	f.gotInput = contents
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, r := range f.responses {
			if !yield(r, nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

func geminiParts(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}}},
	}
}

func TestGeminiStream_WholeCallsBecomeSingleDeltas(t *testing.T) {
	last := geminiParts(&genai.Part{FunctionCall: &genai.FunctionCall{Name: "list_files", Args: map[string]any{"path": "."}}})
	last.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 2, TotalTokenCount: 5}
	fake := &fakeStreamer{responses: []*genai.GenerateContentResponse{
		geminiParts(&genai.Part{Text: "pondering", Thought: true}),
		geminiParts(&genai.Part{Text: "Listing."}),
		geminiParts(&genai.Part{
			FunctionCall:     &genai.FunctionCall{ID: "g1", Name: "read_file", Args: map[string]any{"path": "a.go"}},
			ThoughtSignature: []byte("sig"),
		}),
		last,
	}}
	llm := newGeminiWithStreamer(Config{Model: "gemini", MaxOutputTok: 256}, fake)
	enabled := false

	var (
		text, reasoning string
		deltas          []model.ToolCallDelta
		final           *model.Response
	)
	for resp, err := range llm.Generate(context.Background(), &model.Request{
		System:    "sys",
		Tools:     []model.ToolDefinition{{Name: "read_file"}},
		Stream:    true,
		Reasoning: model.ReasoningConfig{Enabled: &enabled},
	}) {
		if err != nil {
			t.Fatal(err)
		}
		if resp.TurnComplete {
			final = resp
			continue
		}
		text += resp.Message.Text
		reasoning += resp.Message.Reasoning
		deltas = append(deltas, resp.ToolCallDeltas...)
	}

	if text != "Listing." || reasoning != "pondering" {
		t.Fatalf("unexpected text %q reasoning %q", text, reasoning)
	}
	if len(deltas) != 2 || deltas[0].Index != 0 || deltas[1].Index != 1 {
		t.Fatalf("expected one delta per call, got %#v", deltas)
	}
	if deltas[0].ID != "g1" || deltas[0].Arguments != `{"path":"a.go"}` {
		t.Fatalf("unexpected first delta %#v", deltas[0])
	}
	if deltas[1].ID == "" {
		t.Fatal("expected generated id for call without one")
	}
	if final == nil || final.Usage.TotalTokens != 5 || len(final.Message.ToolCalls) != 2 {
		t.Fatalf("unexpected final response %#v", final)
	}
	if final.Message.ToolCalls[0].ThoughtSignature == "" {
		t.Fatal("expected thought signature to be kept")
	}
	cfg := fake.gotConfig
	if cfg.MaxOutputTokens != 256 || cfg.SystemInstruction == nil || len(cfg.Tools) != 1 {
		t.Fatalf("unexpected config %#v", cfg)
	}
	if cfg.ThinkingConfig == nil || cfg.ThinkingConfig.ThinkingBudget == nil || *cfg.ThinkingConfig.ThinkingBudget != 0 {
		t.Fatalf("expected thinking disabled, got %#v", cfg.ThinkingConfig)
	}
}

func TestGeminiStream_PropagatesError(t *testing.T) {
	fake := &fakeStreamer{err: errors.New("quota")}
	llm := newGeminiWithStreamer(Config{Model: "gemini"}, fake)
	var gotErr error
	for resp, err := range llm.Generate(context.Background(), &model.Request{Stream: true}) {
		if err != nil {
			gotErr = err
			continue
		}
		if resp.TurnComplete {
			t.Fatal("did not expect turn_complete on stream error")
		}
	}
	if gotErr == nil {
		t.Fatal("expected stream error")
	}
}

func TestGeminiContentsRoundTripThoughtSignature(t *testing.T) {
	contents := toGeminiContents([]model.Message{
		{Role: model.RoleSystem, Text: "sys"},
		{Role: model.RoleUser, Text: "hi"},
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{ID: "g1", Name: "read_file", ThoughtSignature: "c2ln"}}},
		{Role: model.RoleTool, ToolResponse: &model.ToolResponse{ID: "g1", Name: "read_file", Content: "body"}},
	})
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents without system, got %d", len(contents))
	}
	call := contents[1].Parts[0]
	if contents[1].Role != genai.RoleModel || string(call.ThoughtSignature) != "sig" {
		t.Fatalf("unexpected model content %#v", call)
	}
	resp := contents[2].Parts[0].FunctionResponse
	if resp == nil || resp.Response["output"] != "body" {
		t.Fatalf("unexpected function response %#v", resp)
	}
}
