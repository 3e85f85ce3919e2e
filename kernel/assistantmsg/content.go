// Package assistantmsg classifies assistant output into ordered content
// blocks: free text and tag-delimited tool invocations. Parser consumes a
// stream incrementally; Parse handles a complete, stored message.
package assistantmsg

import (
	"maps"

	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

// BlockKind discriminates content block variants.
type BlockKind string

const (
	KindText       BlockKind = "text"
	KindToolUse    BlockKind = "tool_use"
	KindMcpToolUse BlockKind = "mcp_tool_use"
)

// Block is one unit of classified assistant output.
type Block interface {
	Kind() BlockKind
	IsPartial() bool
	sealed()
}

// TextBlock is plain assistant text.
type TextBlock struct {
	Content string
	Partial bool
}

// ToolUseBlock is a tool invocation, either tag-delimited or native.
type ToolUseBlock struct {
	// ID is set for native tool calls only.
	ID   string
	Name toolvocab.ToolName
	// OriginalName keeps the provider-visible name when it was resolved
	// through an alias or is not part of the vocabulary.
	OriginalName string
	Params       map[toolvocab.ParamName]string
	Partial      bool
	NativeArgs   map[string]any
}

// McpToolUseBlock is a native call routed to an MCP server.
type McpToolUseBlock struct {
	ID         string
	ServerName string
	ToolName   string
	Params     map[string]any
	Partial    bool
}

func (TextBlock) Kind() BlockKind       { return KindText }
func (ToolUseBlock) Kind() BlockKind    { return KindToolUse }
func (McpToolUseBlock) Kind() BlockKind { return KindMcpToolUse }

func (b TextBlock) IsPartial() bool       { return b.Partial }
func (b ToolUseBlock) IsPartial() bool    { return b.Partial }
func (b McpToolUseBlock) IsPartial() bool { return b.Partial }

func (TextBlock) sealed()       {}
func (ToolUseBlock) sealed()    {}
func (McpToolUseBlock) sealed() {}

// Param returns one parameter value and whether it was captured.
func (b ToolUseBlock) Param(name toolvocab.ParamName) (string, bool) {
	v, ok := b.Params[name]
	return v, ok
}

// Clone returns b with its maps copied, so the result can be handed out
// without sharing mutable state.
func Clone(b Block) Block {
	switch v := b.(type) {
	case ToolUseBlock:
		v.Params = maps.Clone(v.Params)
		if v.Params == nil {
			v.Params = map[toolvocab.ParamName]string{}
		}
		v.NativeArgs = maps.Clone(v.NativeArgs)
		return v
	case McpToolUseBlock:
		v.Params = maps.Clone(v.Params)
		return v
	default:
		return b
	}
}

// CloneAll deep-copies a block sequence.
func CloneAll(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = Clone(b)
	}
	return out
}

// Closed returns a copy of b with Partial cleared.
func Closed(b Block) Block {
	return withPartial(Clone(b), false)
}

func withPartial(b Block, partial bool) Block {
	switch v := b.(type) {
	case TextBlock:
		v.Partial = partial
		return v
	case ToolUseBlock:
		v.Partial = partial
		return v
	case McpToolUseBlock:
		v.Partial = partial
		return v
	default:
		return b
	}
}

// HasPartial reports whether any block in the sequence is still partial.
func HasPartial(blocks []Block) bool {
	for _, b := range blocks {
		if b.IsPartial() {
			return true
		}
	}
	return false
}
