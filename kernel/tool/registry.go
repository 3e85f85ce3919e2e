package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/errcode"
	"github.com/OnslaughtSnail/agenthost/kernel/model"
	"github.com/OnslaughtSnail/agenthost/kernel/streaming"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

// MCPHandler executes calls routed to MCP servers.
type MCPHandler interface {
	CallMCPTool(ctx context.Context, server, tool string, args map[string]any) (Result, error)
}

// Approver decides whether a complete tool block may run. A false answer
// rejects the tool and every later tool of the same message.
type Approver interface {
	Approve(ctx context.Context, block assistantmsg.Block) (bool, error)
}

// ApproveFunc adapts a function to Approver.
type ApproveFunc func(context.Context, assistantmsg.Block) (bool, error)

func (f ApproveFunc) Approve(ctx context.Context, block assistantmsg.Block) (bool, error) {
	return f(ctx, block)
}

// Registry resolves tool blocks to tools and runs them. It implements
// streaming.ToolExecutor.
type Registry struct {
	tools    map[toolvocab.ToolName]Tool
	ordered  []Tool
	mcp      MCPHandler
	approver Approver
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMCPHandler routes MCP blocks to h.
func WithMCPHandler(h MCPHandler) RegistryOption {
	return func(r *Registry) { r.mcp = h }
}

// WithApprover gates every execution on a.
func WithApprover(a Approver) RegistryOption {
	return func(r *Registry) { r.approver = a }
}

// NewRegistry indexes tools by name; duplicate names are an error.
func NewRegistry(tools []Tool, opts ...RegistryOption) (*Registry, error) {
	m, err := BuildMap(tools)
	if err != nil {
		return nil, err
	}
	r := &Registry{tools: m}
	for _, t := range tools {
		if t != nil {
			r.ordered = append(r.ordered, t)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name toolvocab.ToolName) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, string(name))
	}
	sort.Strings(out)
	return out
}

// Declarations returns declarations in registration order, followed by
// the MCP handler's declarations when it offers any.
func (r *Registry) Declarations() []model.ToolDefinition {
	out := Declarations(r.ordered)
	if d, ok := r.mcp.(interface{ Declarations() []model.ToolDefinition }); ok {
		out = append(out, d.Declarations()...)
	}
	return out
}

// ExecuteTool runs one complete block. Unknown tools and missing MCP
// routing become error outcomes, not errors.
func (r *Registry) ExecuteTool(ctx context.Context, block assistantmsg.Block) (streaming.Outcome, error) {
	if r.approver != nil {
		ok, err := r.approver.Approve(ctx, block)
		if err != nil {
			return streaming.Outcome{}, err
		}
		if !ok {
			return streaming.Outcome{
				Content:  fmt.Sprintf("The user denied tool [%s].", streaming.ToolLabel(block)),
				Rejected: true,
			}, nil
		}
	}

	switch b := block.(type) {
	case assistantmsg.ToolUseBlock:
		t, ok := r.tools[b.Name]
		if !ok && b.Name == toolvocab.ToolUseMCPTool {
			return r.useMCPTool(ctx, b)
		}
		if !ok {
			return codedOutcome(errcode.New(errcode.ErrorCodeUnknownTool, "tool: unknown tool %q", streaming.ToolLabel(b))), nil
		}
		res, err := t.Run(ctx, b)
		if err != nil {
			return streaming.Outcome{}, err
		}
		return streaming.Outcome{Content: res.Content, IsError: res.IsError}, nil
	case assistantmsg.McpToolUseBlock:
		if r.mcp == nil {
			return codedOutcome(errcode.New(errcode.ErrorCodeUnknownTool, "tool: no MCP handler for server %q", b.ServerName)), nil
		}
		res, err := r.mcp.CallMCPTool(ctx, b.ServerName, b.ToolName, b.Params)
		if err != nil {
			return streaming.Outcome{}, err
		}
		return streaming.Outcome{Content: res.Content, IsError: res.IsError}, nil
	default:
		return streaming.Outcome{}, errors.New("tool: block is not a tool call")
	}
}

// useMCPTool serves a tag-protocol use_mcp_tool block, whose arguments
// parameter holds a JSON object.
func (r *Registry) useMCPTool(ctx context.Context, b assistantmsg.ToolUseBlock) (streaming.Outcome, error) {
	if r.mcp == nil {
		return codedOutcome(errcode.New(errcode.ErrorCodeUnknownTool, "tool: no MCP handler configured")), nil
	}
	server := strings.TrimSpace(b.Params[toolvocab.ParamServerName])
	name := strings.TrimSpace(b.Params[toolvocab.ParamToolName])
	if server == "" || name == "" {
		return codedOutcome(errcode.New(errcode.ErrorCodeToolArgsInvalid, "tool: %s requires %s and %s",
			b.Name, toolvocab.ParamServerName, toolvocab.ParamToolName)), nil
	}
	args := map[string]any{}
	if raw := strings.TrimSpace(b.Params[toolvocab.ParamArguments]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return codedOutcome(errcode.Wrap(errcode.ErrorCodeToolArgsInvalid, err, "tool: %s arguments are not a JSON object", b.Name)), nil
		}
		if args == nil {
			args = map[string]any{}
		}
	}
	res, err := r.mcp.CallMCPTool(ctx, server, name, args)
	if err != nil {
		return streaming.Outcome{}, err
	}
	return streaming.Outcome{Content: res.Content, IsError: res.IsError}, nil
}

func codedOutcome(err error) streaming.Outcome {
	return streaming.Outcome{
		Content: fmt.Sprintf("[%s] %v", errcode.Of(err), err),
		IsError: true,
	}
}
