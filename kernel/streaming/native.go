package streaming

import (
	"errors"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/nativecall"
)

// ApplyNativeChunk merges one provider tool-call fragment into the block
// sequence. A starting call seals trailing text and any call still open, so
// at most one block is partial. The returned error reports calls whose
// arguments did not decode; their blocks are kept and fail when presented.
func (m *Manager) ApplyNativeChunk(chunk nativecall.RawChunk) error {
	m.mu.Lock()
	var errs []error
	for _, ev := range m.native.ProcessRawChunk(chunk) {
		switch ev.Kind {
		case nativecall.EventStart:
			errs = append(errs, m.finishNativeCallsLocked())
			m.sealNativeTextLocked()
			b := m.native.StartCall(ev.ID, ev.Name)
			m.toolCallIndices[ev.ID] = len(m.content)
			m.content = append(m.content, b)
			m.currentIndex = len(m.content)
		case nativecall.EventDelta:
			b, ok := m.native.AppendDelta(ev.ID, ev.Delta)
			if !ok {
				continue
			}
			if idx, ok := m.toolCallIndices[ev.ID]; ok && idx < len(m.content) {
				m.content[idx] = b
			}
		}
	}
	m.unlockAndNotifyContent()
	return errors.Join(errs...)
}

// AppendNativeText adds a text delta that arrived next to native tool calls.
func (m *Manager) AppendNativeText(delta string) error {
	if delta == "" {
		return nil
	}
	m.mu.Lock()
	err := m.finishNativeCallsLocked()
	n := len(m.content)
	if n == 0 || !isOpenText(m.content[n-1]) {
		m.nativeText.Reset()
		m.content = append(m.content, assistantmsg.TextBlock{Partial: true})
		n++
		m.currentIndex = n
	}
	m.nativeText.WriteString(delta)
	m.content[n-1] = assistantmsg.TextBlock{
		Content: strings.TrimSpace(m.nativeText.String()),
		Partial: true,
	}
	m.unlockAndNotifyContent()
	return err
}

// FinalizeNative seals open native calls and trailing text at stream end.
func (m *Manager) FinalizeNative() error {
	m.mu.Lock()
	err := m.finishNativeCallsLocked()
	m.sealNativeTextLocked()
	m.unlockAndNotifyContent()
	return err
}

// InvalidCall returns the decode error recorded for the block at index.
func (m *Manager) InvalidCall(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidCalls[index]
}

func (m *Manager) finishNativeCallsLocked() error {
	var errs []error
	for _, id := range m.native.OpenIDs() {
		idx, tracked := m.toolCallIndices[id]
		b, err := m.native.FinishCall(id)
		if !tracked || idx >= len(m.content) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			m.invalidCalls[idx] = err
			m.content[idx] = assistantmsg.Closed(m.content[idx])
			continue
		}
		m.content[idx] = b
	}
	return errors.Join(errs...)
}

func (m *Manager) sealNativeTextLocked() {
	n := len(m.content)
	if n == 0 || !isOpenText(m.content[n-1]) {
		return
	}
	text := strings.TrimSpace(m.nativeText.String())
	m.nativeText.Reset()
	if text == "" {
		m.content = m.content[:n-1]
		m.currentIndex = len(m.content)
		return
	}
	m.content[n-1] = assistantmsg.TextBlock{Content: text}
}

func isOpenText(b assistantmsg.Block) bool {
	t, ok := b.(assistantmsg.TextBlock)
	return ok && t.Partial
}
