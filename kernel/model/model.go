// Package model defines the provider-agnostic request and streaming response
// shapes that feed assistant output into a turn.
package model

import (
	"context"
	"iter"
)

// Role identifies message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolDefinition describes a callable tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a complete model-emitted tool invocation.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
	// ThoughtSignature is an opaque provider token (Gemini) that must be
	// echoed back with the call on the next request.
	ThoughtSignature string
}

// ToolCallDelta is one raw fragment of a native tool call as it streams.
// Index is the provider's stream slot; ID and Name are usually only set on
// the first fragment of a slot.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// ToolResponse is a tool execution result returned to model context.
type ToolResponse struct {
	ID      string
	Name    string
	Content string
	IsError bool
}

// Message is a single turn element in model context.
type Message struct {
	Role         Role
	Text         string
	Reasoning    string
	ToolCalls    []ToolCall
	ToolResponse *ToolResponse
}

// ReasoningConfig controls provider reasoning/thinking behavior.
type ReasoningConfig struct {
	Enabled      *bool
	BudgetTokens int
	// Effort is a provider-specific hint, e.g. low|medium|high.
	Effort string
}

// Request is a provider-agnostic model request. Providers always stream when
// Stream is set; Generate still yields a final TurnComplete response.
type Request struct {
	System    string
	Messages  []Message
	Tools     []ToolDefinition
	Stream    bool
	Reasoning ReasoningConfig
	MaxTokens int
}

// Usage reports model token usage (best-effort).
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is one streamed chunk. Partial chunks carry a text delta in
// Message.Text and raw tool-call fragments in ToolCallDeltas; the final
// chunk has TurnComplete set and the assembled message.
type Response struct {
	Message        Message
	ToolCallDeltas []ToolCallDelta
	Partial        bool
	TurnComplete   bool
	Usage          Usage
	Model          string
	Provider       string
}

// LLM is the model abstraction consumed by the turn driver.
type LLM interface {
	Name() string
	Generate(context.Context, *Request) iter.Seq2[*Response, error]
}
