package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/model"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

type echoArgs struct {
	Text string `json:"text"`
}

func echoTool(t *testing.T, name toolvocab.ToolName) Tool {
	t.Helper()
	fn, err := NewFunction(name, "echo", func(_ context.Context, args echoArgs) (string, error) {
		if args.Text == "boom" {
			return "", errors.New("boom")
		}
		return args.Text, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return fn
}

type mcpRecorder struct {
	server, tool string
	args         map[string]any
}

func (m *mcpRecorder) CallMCPTool(_ context.Context, server, tool string, args map[string]any) (Result, error) {
	m.server, m.tool, m.args = server, tool, args
	return Result{Content: "mcp ok"}, nil
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Tool{echoTool(t, toolvocab.ToolReadFile), echoTool(t, toolvocab.ToolReadFile)})
	if err == nil {
		t.Fatal("expected duplicate tool error")
	}
}

func TestRegistry_ExecutesKnownTool(t *testing.T) {
	r, err := NewRegistry([]Tool{echoTool(t, toolvocab.ToolReadFile), nil})
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.ExecuteTool(context.Background(), assistantmsg.ToolUseBlock{
		Name:   toolvocab.ToolReadFile,
		Params: map[toolvocab.ParamName]string{"text": "hello"},
	})
	if err != nil || out.Content != "hello" || out.IsError {
		t.Fatalf("unexpected outcome %#v err=%v", out, err)
	}
	if _, err := r.ExecuteTool(context.Background(), assistantmsg.ToolUseBlock{
		Name:   toolvocab.ToolReadFile,
		Params: map[toolvocab.ParamName]string{"text": "boom"},
	}); err == nil {
		t.Fatal("expected handler error to propagate")
	}
	if names := r.Names(); len(names) != 1 || names[0] != "read_file" {
		t.Fatalf("unexpected names %v", names)
	}
	if decls := r.Declarations(); len(decls) != 1 || decls[0].Name != "read_file" {
		t.Fatalf("unexpected declarations %#v", decls)
	}
}

func TestRegistry_UnknownToolIsErrorOutcome(t *testing.T) {
	r, _ := NewRegistry(nil)
	out, err := r.ExecuteTool(context.Background(), assistantmsg.ToolUseBlock{
		Name:         "fly_to_moon",
		OriginalName: "fly_to_moon",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !out.IsError || !strings.Contains(out.Content, "ERR_UNKNOWN_TOOL") || !strings.Contains(out.Content, "fly_to_moon") {
		t.Fatalf("unexpected outcome %#v", out)
	}
}

func TestRegistry_RoutesMCPBlocks(t *testing.T) {
	r, _ := NewRegistry(nil)
	block := assistantmsg.McpToolUseBlock{ID: "c1", ServerName: "github", ToolName: "search", Params: map[string]any{"q": "go"}}
	out, _ := r.ExecuteTool(context.Background(), block)
	if !out.IsError {
		t.Fatal("expected error outcome without an MCP handler")
	}

	rec := &mcpRecorder{}
	r, _ = NewRegistry(nil, WithMCPHandler(rec))
	out, err := r.ExecuteTool(context.Background(), block)
	if err != nil || out.Content != "mcp ok" {
		t.Fatalf("unexpected outcome %#v err=%v", out, err)
	}
	if rec.server != "github" || rec.tool != "search" || rec.args["q"] != "go" {
		t.Fatalf("unexpected MCP routing %#v", rec)
	}
}

func TestRegistry_UseMCPToolBlock(t *testing.T) {
	rec := &mcpRecorder{}
	r, _ := NewRegistry(nil, WithMCPHandler(rec))
	block := assistantmsg.ToolUseBlock{
		Name: toolvocab.ToolUseMCPTool,
		Params: map[toolvocab.ParamName]string{
			toolvocab.ParamServerName: "github",
			toolvocab.ParamToolName:   "search",
			toolvocab.ParamArguments:  `{"q":"go"}`,
		},
	}
	out, err := r.ExecuteTool(context.Background(), block)
	if err != nil || out.Content != "mcp ok" {
		t.Fatalf("unexpected outcome %#v err=%v", out, err)
	}
	if rec.server != "github" || rec.tool != "search" || rec.args["q"] != "go" {
		t.Fatalf("unexpected MCP routing %#v", rec)
	}

	block.Params[toolvocab.ParamArguments] = "{not json"
	out, err = r.ExecuteTool(context.Background(), block)
	if err != nil || !out.IsError || !strings.Contains(out.Content, "ERR_TOOL_ARGS_INVALID") {
		t.Fatalf("expected invalid args outcome, got %#v err=%v", out, err)
	}

	delete(block.Params, toolvocab.ParamServerName)
	out, _ = r.ExecuteTool(context.Background(), block)
	if !out.IsError {
		t.Fatalf("expected missing server outcome, got %#v", out)
	}
}

func TestRegistry_UseMCPToolNullArgumentsBecomeEmptyObject(t *testing.T) {
	for _, raw := range []string{"null", ""} {
		rec := &mcpRecorder{}
		r, _ := NewRegistry(nil, WithMCPHandler(rec))
		block := assistantmsg.ToolUseBlock{
			Name: toolvocab.ToolUseMCPTool,
			Params: map[toolvocab.ParamName]string{
				toolvocab.ParamServerName: "github",
				toolvocab.ParamToolName:   "search",
				toolvocab.ParamArguments:  raw,
			},
		}
		if _, err := r.ExecuteTool(context.Background(), block); err != nil {
			t.Fatal(err)
		}
		if rec.args == nil || len(rec.args) != 0 {
			t.Fatalf("arguments %q: expected empty non-nil map, got %#v", raw, rec.args)
		}
	}
}

type declaringMCP struct{ mcpRecorder }

func (declaringMCP) Declarations() []model.ToolDefinition {
	return []model.ToolDefinition{{Name: "mcp--github--search"}}
}

func TestRegistry_DeclarationsIncludeMCP(t *testing.T) {
	r, _ := NewRegistry([]Tool{echoTool(t, toolvocab.ToolReadFile)}, WithMCPHandler(&declaringMCP{}))
	var names []string
	for _, d := range r.Declarations() {
		names = append(names, d.Name)
	}
	if len(names) != 2 || names[0] != string(toolvocab.ToolReadFile) || names[1] != "mcp--github--search" {
		t.Fatalf("unexpected declarations %v", names)
	}
}

func TestRegistry_ApproverRejects(t *testing.T) {
	r, _ := NewRegistry([]Tool{echoTool(t, toolvocab.ToolWriteToFile)}, WithApprover(ApproveFunc(
		func(context.Context, assistantmsg.Block) (bool, error) { return false, nil },
	)))
	out, err := r.ExecuteTool(context.Background(), assistantmsg.ToolUseBlock{Name: toolvocab.ToolWriteToFile})
	if err != nil || !out.Rejected {
		t.Fatalf("expected rejected outcome, got %#v err=%v", out, err)
	}
}
