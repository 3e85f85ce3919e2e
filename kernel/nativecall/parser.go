// Package nativecall assembles natively-structured tool calls from streamed
// argument fragments into assistantmsg blocks.
package nativecall

import (
	"encoding/json"
	"errors"
	"maps"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/errcode"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

// MCPPrefix marks a native tool name routed to an MCP server:
// "mcp--<server>--<tool>".
const (
	MCPPrefix    = "mcp--"
	mcpSeparator = "--"
)

// RawChunk is one provider tool-call fragment. Providers identify a call by
// stream index; the id and name usually arrive only with the first fragment.
type RawChunk struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// EventKind discriminates Event.
type EventKind string

const (
	EventStart EventKind = "tool_call_start"
	EventDelta EventKind = "tool_call_delta"
)

// Event is emitted by ProcessRawChunk once a call can be attributed to an id.
type Event struct {
	Kind  EventKind
	ID    string
	Name  string
	Delta string
}

type rawCall struct {
	id      string
	name    string
	started bool
	pending strings.Builder
}

type call struct {
	id   string
	name string
	args strings.Builder
	// lastParams holds the members read from the last repairable prefix.
	lastParams map[string]any
}

// Parser tracks the native calls of one turn. It is not safe for concurrent
// use; the streaming manager serializes access.
type Parser struct {
	vocab *toolvocab.Vocabulary
	raw   map[int]*rawCall
	calls map[string]*call
	order []string
}

// NewParser returns an empty parser. A nil vocabulary selects the default.
func NewParser(vocab *toolvocab.Vocabulary) *Parser {
	if vocab == nil {
		vocab = toolvocab.Default()
	}
	return &Parser{
		vocab: vocab,
		raw:   map[int]*rawCall{},
		calls: map[string]*call{},
	}
}

// ProcessRawChunk maps an index-addressed fragment to id-addressed events.
// Argument text that arrives before the call's id and name is held back and
// emitted as the first delta after the start event.
func (p *Parser) ProcessRawChunk(chunk RawChunk) []Event {
	st := p.raw[chunk.Index]
	if st == nil {
		st = &rawCall{}
		p.raw[chunk.Index] = st
	}
	if st.id == "" {
		st.id = strings.TrimSpace(chunk.ID)
	}
	if st.name == "" {
		st.name = strings.TrimSpace(chunk.Name)
	}

	var events []Event
	if !st.started && st.id != "" && st.name != "" {
		st.started = true
		events = append(events, Event{Kind: EventStart, ID: st.id, Name: st.name})
		if st.pending.Len() > 0 {
			events = append(events, Event{Kind: EventDelta, ID: st.id, Delta: st.pending.String()})
			st.pending.Reset()
		}
	}
	if chunk.Arguments == "" {
		return events
	}
	if !st.started {
		st.pending.WriteString(chunk.Arguments)
		return events
	}
	return append(events, Event{Kind: EventDelta, ID: st.id, Delta: chunk.Arguments})
}

// StartCall opens a call and returns its initial partial block. Starting an
// id that is already open keeps the existing call.
func (p *Parser) StartCall(id, name string) assistantmsg.Block {
	if c, ok := p.calls[id]; ok {
		return p.partialBlock(c)
	}
	c := &call{id: id, name: name}
	p.calls[id] = c
	p.order = append(p.order, id)
	return p.partialBlock(c)
}

// AppendDelta adds an argument fragment and returns the call's partial block
// with every parameter that can be read from the arguments so far.
func (p *Parser) AppendDelta(id, fragment string) (assistantmsg.Block, bool) {
	c, ok := p.calls[id]
	if !ok {
		return nil, false
	}
	c.args.WriteString(fragment)
	return p.partialBlock(c), true
}

// FinishCall decodes the complete arguments and returns the sealed block.
// The call is closed even when decoding fails.
func (p *Parser) FinishCall(id string) (assistantmsg.Block, error) {
	c, ok := p.calls[id]
	if !ok {
		return nil, errcode.New(errcode.ErrorCodeUnknownTool, "nativecall: no open call %q", id)
	}
	p.remove(id)

	raw := strings.TrimSpace(c.args.String())
	if raw == "" {
		raw = "{}"
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, errcode.Wrap(errcode.ErrorCodeNativeArgsInvalid, err, "nativecall: call %s (%s) arguments", c.id, c.name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return p.block(c, args, false), nil
}

// FinishAll seals every open call in start order. Calls whose arguments do
// not decode are reported in the joined error and left out of the result.
func (p *Parser) FinishAll() ([]assistantmsg.Block, error) {
	ids := p.OpenIDs()
	out := make([]assistantmsg.Block, 0, len(ids))
	var errs []error
	for _, id := range ids {
		b, err := p.FinishCall(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, b)
	}
	return out, errors.Join(errs...)
}

// Open reports how many calls are still open.
func (p *Parser) Open() int {
	return len(p.order)
}

// OpenIDs returns the ids of open calls in start order.
func (p *Parser) OpenIDs() []string {
	return append([]string(nil), p.order...)
}

// ClearStreamingCalls drops every open call.
func (p *Parser) ClearStreamingCalls() {
	clear(p.calls)
	p.order = p.order[:0]
}

// ClearRawChunkState forgets the stream index to id mapping.
func (p *Parser) ClearRawChunkState() {
	clear(p.raw)
}

func (p *Parser) remove(id string) {
	delete(p.calls, id)
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

func (p *Parser) partialBlock(c *call) assistantmsg.Block {
	if obj, ok := partialObject(c.args.String()); ok {
		c.lastParams = anyParams(obj)
	}
	return p.block(c, maps.Clone(c.lastParams), true)
}

// block builds the block for a call. For partial blocks args may be nil when
// nothing could be read yet.
func (p *Parser) block(c *call, args map[string]any, partial bool) assistantmsg.Block {
	if server, tool, ok := SplitMCPName(c.name); ok {
		params := args
		if params == nil {
			params = map[string]any{}
		}
		return assistantmsg.McpToolUseBlock{
			ID:         c.id,
			ServerName: server,
			ToolName:   tool,
			Params:     params,
			Partial:    partial,
		}
	}

	b := assistantmsg.ToolUseBlock{
		ID:      c.id,
		Params:  map[toolvocab.ParamName]string{},
		Partial: partial,
	}
	if name, ok := p.vocab.Canonical(c.name); ok {
		b.Name = name
		if string(name) != c.name {
			b.OriginalName = c.name
		}
	} else {
		b.Name = toolvocab.ToolName(c.name)
		b.OriginalName = c.name
	}
	for k, v := range args {
		b.Params[toolvocab.ParamName(k)] = paramString(v)
	}
	if !partial {
		b.NativeArgs = args
	}
	return b
}

// SplitMCPName splits "mcp--server--tool". The tool part may itself contain
// the separator.
func SplitMCPName(name string) (server, tool string, ok bool) {
	rest, found := strings.CutPrefix(name, MCPPrefix)
	if !found {
		return "", "", false
	}
	server, tool, found = strings.Cut(rest, mcpSeparator)
	if !found || server == "" || tool == "" {
		return "", "", false
	}
	return server, tool, true
}

func paramString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
