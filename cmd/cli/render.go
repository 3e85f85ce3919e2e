package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/streaming"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

const defaultPreviewWidth = 100

type blockPrinter struct {
	out   io.Writer
	width int

	index   *color.Color
	text    *color.Color
	tool    *color.Color
	param   *color.Color
	partial *color.Color
	failed  *color.Color
	dim     *color.Color
}

func newBlockPrinter(out io.Writer, plain bool) *blockPrinter {
	p := &blockPrinter{
		out:     out,
		width:   terminalWidth(out),
		index:   color.New(color.FgHiBlack),
		text:    color.New(color.FgWhite),
		tool:    color.New(color.FgCyan, color.Bold),
		param:   color.New(color.FgYellow),
		partial: color.New(color.FgMagenta),
		failed:  color.New(color.FgRed),
		dim:     color.New(color.Faint),
	}
	if plain {
		for _, c := range []*color.Color{p.index, p.text, p.tool, p.param, p.partial, p.failed, p.dim} {
			c.DisableColor()
		}
	}
	return p
}

func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultPreviewWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w < 40 {
		return defaultPreviewWidth
	}
	return w
}

func (p *blockPrinter) printBlocks(blocks []assistantmsg.Block) {
	if len(blocks) == 0 {
		p.dim.Fprintln(p.out, "(no blocks)")
		return
	}
	for i, b := range blocks {
		p.printBlock(i, b)
	}
}

// printBlock prints one block; a negative index prints an arrow instead.
func (p *blockPrinter) printBlock(i int, b assistantmsg.Block) {
	if i >= 0 {
		p.index.Fprintf(p.out, "[%d] ", i)
	} else {
		p.index.Fprint(p.out, "-> ")
	}
	switch v := b.(type) {
	case assistantmsg.TextBlock:
		p.text.Fprint(p.out, preview(v.Content, p.width-6))
	case assistantmsg.ToolUseBlock:
		name := string(v.Name)
		if v.OriginalName != "" && v.OriginalName != name {
			name = v.OriginalName + " -> " + name
		}
		p.tool.Fprint(p.out, name)
		if v.ID != "" {
			p.dim.Fprintf(p.out, " %s", v.ID)
		}
	case assistantmsg.McpToolUseBlock:
		p.tool.Fprintf(p.out, "mcp %s/%s", v.ServerName, v.ToolName)
		if v.ID != "" {
			p.dim.Fprintf(p.out, " %s", v.ID)
		}
	}
	if b.IsPartial() {
		p.partial.Fprint(p.out, " (partial)")
	}
	fmt.Fprintln(p.out)

	switch v := b.(type) {
	case assistantmsg.ToolUseBlock:
		names := make([]string, 0, len(v.Params))
		for k := range v.Params {
			names = append(names, string(k))
		}
		sort.Strings(names)
		for _, k := range names {
			p.param.Fprintf(p.out, "      %s: ", k)
			fmt.Fprintln(p.out, preview(v.Params[toolvocab.ParamName(k)], p.width-len(k)-8))
		}
	case assistantmsg.McpToolUseBlock:
		names := make([]string, 0, len(v.Params))
		for k := range v.Params {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			p.param.Fprintf(p.out, "      %s: ", k)
			fmt.Fprintln(p.out, preview(fmt.Sprint(v.Params[k]), p.width-len(k)-8))
		}
	}
}

func (p *blockPrinter) printSummary(blocks []assistantmsg.Block) {
	p.dim.Fprintln(p.out, summarize(blocks))
}

func (p *blockPrinter) printToolResult(r streaming.ToolResult) {
	c := p.dim
	if r.IsError {
		c = p.failed
	}
	label := "result"
	if r.Skipped {
		label = "skipped"
	}
	c.Fprintf(p.out, "  %s [%s] ", label, r.ToolName)
	fmt.Fprintln(p.out, preview(r.Content, p.width-len(r.ToolName)-14))
}

// preview flattens s to one line and truncates it to width display cells.
func preview(s string, width int) string {
	if width < 10 {
		width = 10
	}
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "⏎")
	return runewidth.Truncate(s, width, "…")
}

// summarize counts blocks by kind and tools by capability group.
func summarize(blocks []assistantmsg.Block) string {
	var texts, tools, partial int
	groups := map[toolvocab.Group]int{}
	for _, b := range blocks {
		if b.IsPartial() {
			partial++
		}
		switch v := b.(type) {
		case assistantmsg.TextBlock:
			texts++
		case assistantmsg.ToolUseBlock:
			tools++
			groups[toolvocab.GroupOf(v.Name)]++
		case assistantmsg.McpToolUseBlock:
			tools++
			groups[toolvocab.GroupMCP]++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d blocks: %d text, %d tool", len(blocks), texts, tools)
	if len(groups) > 0 {
		keys := make([]string, 0, len(groups))
		for g := range groups {
			keys = append(keys, string(g))
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%d", k, groups[toolvocab.Group(k)]))
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	if partial > 0 {
		b.WriteString(", 1 partial")
	}
	return b.String()
}

func writeBlocksJSON(out io.Writer, blocks []assistantmsg.Block) error {
	raw, err := assistantmsg.EncodeBlocks(blocks)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(raw))
	return err
}
