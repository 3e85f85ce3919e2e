package nativecall

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/errcode"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

func TestProcessRawChunk_MapsIndexToID(t *testing.T) {
	p := NewParser(nil)
	got := p.ProcessRawChunk(RawChunk{Index: 0, ID: "call_1", Name: "read_file", Arguments: `{"pa`})
	want := []Event{
		{Kind: EventStart, ID: "call_1", Name: "read_file"},
		{Kind: EventDelta, ID: "call_1", Delta: `{"pa`},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected first events (-want +got):\n%s", diff)
	}

	got = p.ProcessRawChunk(RawChunk{Index: 0, Arguments: `th":"a"}`})
	want = []Event{{Kind: EventDelta, ID: "call_1", Delta: `th":"a"}`}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected follow-up events (-want +got):\n%s", diff)
	}
}

func TestProcessRawChunk_HoldsArgumentsUntilNamed(t *testing.T) {
	p := NewParser(nil)
	if got := p.ProcessRawChunk(RawChunk{Index: 2, Arguments: `{"a":`}); len(got) != 0 {
		t.Fatalf("expected no events before id and name, got %#v", got)
	}
	got := p.ProcessRawChunk(RawChunk{Index: 2, ID: "c", Name: "x", Arguments: `1}`})
	want := []Event{
		{Kind: EventStart, ID: "c", Name: "x"},
		{Kind: EventDelta, ID: "c", Delta: `{"a":`},
		{Kind: EventDelta, ID: "c", Delta: `1}`},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestAppendDelta_PartialParams(t *testing.T) {
	p := NewParser(nil)
	p.StartCall("call_1", "write_to_file")
	var b assistantmsg.Block
	for _, frag := range []string{`{"path":"src/ma`, `in.go","content":"pack`, `age main\n`} {
		var ok bool
		b, ok = p.AppendDelta("call_1", frag)
		if !ok {
			t.Fatal("expected open call")
		}
	}
	tool, ok := b.(assistantmsg.ToolUseBlock)
	if !ok || !tool.Partial {
		t.Fatalf("expected partial tool block, got %#v", b)
	}
	if v, _ := tool.Param(toolvocab.ParamPath); v != "src/main.go" {
		t.Fatalf("unexpected path %q", v)
	}
	if v, _ := tool.Param(toolvocab.ParamContent); v != "package main\n" {
		t.Fatalf("unexpected partial content %q", v)
	}

	if _, ok := p.AppendDelta("missing", "x"); ok {
		t.Fatal("expected unknown id to be rejected")
	}
}

func TestAppendDelta_CutOffKeyKeepsEarlierParams(t *testing.T) {
	p := NewParser(nil)
	p.StartCall("c", "execute_command")
	steps := []struct {
		fragment string
		want     map[toolvocab.ParamName]string
	}{
		{`{"command":"ls -la"`, map[toolvocab.ParamName]string{toolvocab.ParamCommand: "ls -la"}},
		{`,"cw`, map[toolvocab.ParamName]string{toolvocab.ParamCommand: "ls -la"}},
		{`d":"/tmp","recursive":tr`, map[toolvocab.ParamName]string{toolvocab.ParamCommand: "ls -la"}},
		{`ue`, map[toolvocab.ParamName]string{toolvocab.ParamCommand: "ls -la", toolvocab.ParamCwd: "/tmp", toolvocab.ParamName("recursive"): "true"}},
	}
	for i, step := range steps {
		b, ok := p.AppendDelta("c", step.fragment)
		if !ok {
			t.Fatalf("step %d: delta rejected", i)
		}
		tool := b.(assistantmsg.ToolUseBlock)
		if diff := cmp.Diff(step.want, tool.Params); diff != "" {
			t.Fatalf("step %d: unexpected params (-want +got):\n%s", i, diff)
		}
	}
}

func TestFinishCall(t *testing.T) {
	p := NewParser(nil)
	p.StartCall("call_1", "write_file")
	p.AppendDelta("call_1", `{"path":"a.txt","content":"hi","line":3}`)
	b, err := p.FinishCall("call_1")
	if err != nil {
		t.Fatal(err)
	}
	want := assistantmsg.ToolUseBlock{
		ID:           "call_1",
		Name:         toolvocab.ToolWriteToFile,
		OriginalName: "write_file",
		Params: map[toolvocab.ParamName]string{
			"path":    "a.txt",
			"content": "hi",
			"line":    "3",
		},
		NativeArgs: map[string]any{"path": "a.txt", "content": "hi", "line": float64(3)},
	}
	if diff := cmp.Diff(assistantmsg.Block(want), b); diff != "" {
		t.Fatalf("unexpected block (-want +got):\n%s", diff)
	}
	if p.Open() != 0 {
		t.Fatalf("expected call to be closed, %d open", p.Open())
	}
}

func TestFinishCall_InvalidArguments(t *testing.T) {
	p := NewParser(nil)
	p.StartCall("c", "read_file")
	p.AppendDelta("c", `{"path":`)
	_, err := p.FinishCall("c")
	if !errcode.Is(err, errcode.ErrorCodeNativeArgsInvalid) {
		t.Fatalf("expected %s, got %v", errcode.ErrorCodeNativeArgsInvalid, err)
	}
	if _, err := p.FinishCall("c"); !errcode.Is(err, errcode.ErrorCodeUnknownTool) {
		t.Fatalf("expected closed call to be unknown, got %v", err)
	}
}

func TestMCPCall(t *testing.T) {
	p := NewParser(nil)
	p.StartCall("m1", "mcp--github--list--issues")
	p.AppendDelta("m1", `{"repo":"x","limit":5}`)
	b, err := p.FinishCall("m1")
	if err != nil {
		t.Fatal(err)
	}
	want := assistantmsg.McpToolUseBlock{
		ID:         "m1",
		ServerName: "github",
		ToolName:   "list--issues",
		Params:     map[string]any{"repo": "x", "limit": float64(5)},
	}
	if diff := cmp.Diff(assistantmsg.Block(want), b); diff != "" {
		t.Fatalf("unexpected block (-want +got):\n%s", diff)
	}
}

func TestSplitMCPName(t *testing.T) {
	cases := []struct {
		in           string
		server, tool string
		ok           bool
	}{
		{in: "mcp--fs--read", server: "fs", tool: "read", ok: true},
		{in: "mcp--fs", ok: false},
		{in: "mcp----read", ok: false},
		{in: "read_file", ok: false},
	}
	for _, tc := range cases {
		server, tool, ok := SplitMCPName(tc.in)
		if server != tc.server || tool != tc.tool || ok != tc.ok {
			t.Fatalf("SplitMCPName(%q)=(%q,%q,%v), want (%q,%q,%v)", tc.in, server, tool, ok, tc.server, tc.tool, tc.ok)
		}
	}
}

func TestFinishAll_KeepsStartOrder(t *testing.T) {
	p := NewParser(nil)
	p.StartCall("b", "read_file")
	p.StartCall("a", "list_files")
	p.AppendDelta("b", `{"path":"x"}`)
	p.AppendDelta("a", `{"path":`)
	blocks, err := p.FinishAll()
	if err == nil {
		t.Fatal("expected error for the truncated call")
	}
	if len(blocks) != 1 || blocks[0].(assistantmsg.ToolUseBlock).ID != "b" {
		t.Fatalf("unexpected blocks %#v", blocks)
	}
	if p.Open() != 0 {
		t.Fatal("expected all calls closed")
	}
}

func TestClearState(t *testing.T) {
	p := NewParser(nil)
	p.ProcessRawChunk(RawChunk{Index: 0, ID: "old", Name: "read_file"})
	p.StartCall("old", "read_file")
	p.ClearStreamingCalls()
	p.ClearRawChunkState()
	if p.Open() != 0 {
		t.Fatal("expected no open calls")
	}
	got := p.ProcessRawChunk(RawChunk{Index: 0, ID: "new", Name: "list_files"})
	if len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("expected index 0 to map to the new call, got %#v", got)
	}
}

func TestRepairPartialJSON(t *testing.T) {
	cases := map[string]string{
		``:                `{}`,
		`{`:               `{}`,
		`{"a":"x`:         `{"a":"x"}`,
		`{"a":"x\`:        `{"a":"x"}`,
		`{"a":`:           `{"a":null}`,
		`{"a":1,`:         `{"a":1}`,
		`{"a":[1,{"b":2`:  `{"a":[1,{"b":2}]}`,
		`{"a":"}{[","b":`: `{"a":"}{[","b":null}`,
	}
	for in, want := range cases {
		if got := repairPartialJSON(in); got != want {
			t.Fatalf("repairPartialJSON(%q)=%q, want %q", in, got, want)
		}
	}
}
