package streaming

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

// Outcome is what a tool executor reports for one complete tool block.
type Outcome struct {
	Content string
	IsError bool
	// Rejected marks a tool the user declined; later tools in the same
	// message are skipped.
	Rejected bool
}

// ToolExecutor runs complete tool blocks. An error is a failure of the
// execution itself and is recorded as an error result for the block.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, block assistantmsg.Block) (Outcome, error)
}

// TextSink receives text blocks in order. Partial text may be delivered more
// than once as it grows.
type TextSink interface {
	PresentText(ctx context.Context, index int, block assistantmsg.TextBlock) error
}

// Presenter walks a Manager's blocks strictly in index order, presenting
// text and executing complete tools. At most one pass runs at a time; a call
// made during a pass only marks an update as pending and the running pass
// picks it up before releasing the lock.
type Presenter struct {
	Manager  *Manager
	Executor ToolExecutor
	Sink     TextSink
	// OneToolPerMessage skips every tool after the first executed one.
	OneToolPerMessage bool
	// Vocabulary, when set, holds back a trailing fragment of partial text
	// that may still become a tool open tag.
	Vocabulary *toolvocab.Vocabulary
}

// Present runs a presentation pass, or schedules one if a pass is running.
func (p *Presenter) Present(ctx context.Context) error {
	m := p.Manager
	if !m.acquirePresentation() {
		return nil
	}
	for {
		if err := p.drain(ctx); err != nil {
			m.releasePresentation()
			return err
		}
		if !m.continuePresentation() {
			return nil
		}
	}
}

func (p *Presenter) drain(ctx context.Context) error {
	m := p.Manager
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx, block, ok := m.nextToPresent()
		if !ok {
			return nil
		}
		if text, isText := block.(assistantmsg.TextBlock); isText {
			if text.Partial {
				text.Content = p.visibleText(text.Content)
			}
			if p.Sink != nil && (text.Content != "" || !text.Partial) {
				if err := p.Sink.PresentText(ctx, idx, text); err != nil {
					return err
				}
			}
			if text.Partial {
				return nil
			}
			m.completePresented(idx)
			continue
		}
		if block.IsPartial() {
			return nil
		}
		if err := p.runTool(ctx, idx, block); err != nil {
			return err
		}
		m.completePresented(idx)
	}
}

func (p *Presenter) runTool(ctx context.Context, idx int, block assistantmsg.Block) error {
	m := p.Manager
	result := ToolResult{BlockIndex: idx, ToolName: ToolLabel(block), CallID: callID(block)}

	if err := m.InvalidCall(idx); err != nil {
		result.Content = fmt.Sprintf("Tool [%s] was not executed: %v", result.ToolName, err)
		result.IsError = true
		result.Skipped = true
		m.AddUserContent(result)
		m.SetDidToolFail(true)
		return nil
	}
	if m.DidRejectTool() {
		result.Content = fmt.Sprintf("Skipping tool [%s] due to user rejecting a previous tool.", result.ToolName)
		result.Skipped = true
		m.AddUserContent(result)
		return nil
	}
	if p.OneToolPerMessage && m.DidAlreadyUseTool() {
		result.Content = fmt.Sprintf("Tool [%s] was not executed because a tool has already been used in this message. Only one tool may be used per message.", result.ToolName)
		result.Skipped = true
		m.AddUserContent(result)
		return nil
	}
	if p.Executor == nil {
		result.Content = fmt.Sprintf("Tool [%s] was not executed: no executor configured", result.ToolName)
		result.IsError = true
		result.Skipped = true
		m.AddUserContent(result)
		m.SetDidToolFail(true)
		return nil
	}

	out, err := p.Executor.ExecuteTool(ctx, block)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		out = Outcome{Content: err.Error(), IsError: true}
	}
	result.Content = out.Content
	result.IsError = out.IsError
	m.AddUserContent(result)
	m.SetDidAlreadyUseTool(true)
	if out.IsError {
		m.SetDidToolFail(true)
	}
	if out.Rejected {
		m.SetDidRejectTool(true)
	}
	return nil
}

// ToolLabel names the tool of a block for results and logs.
func ToolLabel(b assistantmsg.Block) string {
	switch v := b.(type) {
	case assistantmsg.ToolUseBlock:
		if v.OriginalName != "" {
			return v.OriginalName
		}
		return string(v.Name)
	case assistantmsg.McpToolUseBlock:
		return v.ServerName + "/" + v.ToolName
	default:
		return string(b.Kind())
	}
}

func callID(b assistantmsg.Block) string {
	switch v := b.(type) {
	case assistantmsg.ToolUseBlock:
		return v.ID
	case assistantmsg.McpToolUseBlock:
		return v.ID
	default:
		return ""
	}
}

func (p *Presenter) visibleText(content string) string {
	if p.Vocabulary == nil {
		return content
	}
	if i := p.Vocabulary.PendingToolTag(content); i >= 0 {
		return strings.TrimRightFunc(content[:i], unicode.IsSpace)
	}
	return content
}

// acquirePresentation takes the presentation lock, or records a pending
// update when a pass already holds it.
func (m *Manager) acquirePresentation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.presentationLocked {
		m.pendingUpdate = true
		return false
	}
	m.presentationLocked = true
	m.pendingUpdate = false
	return true
}

// continuePresentation either consumes a pending update, keeping the lock
// for another pass, or releases the lock.
func (m *Manager) continuePresentation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pendingUpdate {
		m.pendingUpdate = false
		return true
	}
	m.presentationLocked = false
	m.markReadyLocked()
	return false
}

func (m *Manager) releasePresentation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presentationLocked = false
	m.pendingUpdate = false
}

func (m *Manager) nextToPresent() (int, assistantmsg.Block, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.presentIndex >= len(m.content) {
		m.markReadyLocked()
		return 0, nil, false
	}
	return m.presentIndex, m.content[m.presentIndex], true
}

func (m *Manager) completePresented(idx int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.presentIndex == idx {
		m.presentIndex++
	}
}

func (m *Manager) markReadyLocked() {
	if m.didCompleteReadingStream && m.presentIndex >= len(m.content) {
		m.userContentReady = true
	}
}
