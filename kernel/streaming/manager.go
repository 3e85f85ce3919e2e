// Package streaming tracks one in-flight assistant turn: the parsed content
// blocks, presentation ordering and the native tool-call index table.
package streaming

import (
	"strings"
	"sync"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/nativecall"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

// Options configures a Manager.
type Options struct {
	TaskID     string
	Vocabulary *toolvocab.Vocabulary
	// OnStateChange receives a snapshot whenever a lifecycle flag changes.
	OnStateChange func(State)
	// OnContentUpdate receives a copy of the block sequence whenever it changes.
	OnContentUpdate func([]assistantmsg.Block)
}

// Manager owns the streaming state of one turn. All methods are safe for
// concurrent use; callbacks run outside the internal lock.
type Manager struct {
	mu sync.Mutex

	taskID          string
	onStateChange   func(State)
	onContentUpdate func([]assistantmsg.Block)
	disposed        bool

	isStreaming              bool
	isWaitingForFirstChunk   bool
	currentIndex             int
	didCheckpoint            bool
	didCompleteReadingStream bool

	content      []assistantmsg.Block
	presentIndex int

	presentationLocked bool
	pendingUpdate      bool

	userContent      []ToolResult
	userContentReady bool

	didRejectTool     bool
	didAlreadyUseTool bool
	didToolFail       bool

	toolCallIndices map[string]int
	native          *nativecall.Parser
	nativeText      strings.Builder
	invalidCalls    map[int]error
}

// NewManager returns an idle manager.
func NewManager(opts Options) *Manager {
	return &Manager{
		taskID:          opts.TaskID,
		onStateChange:   opts.OnStateChange,
		onContentUpdate: opts.OnContentUpdate,
		toolCallIndices: map[string]int{},
		native:          nativecall.NewParser(opts.Vocabulary),
		invalidCalls:    map[int]error{},
	}
}

// TaskID returns the task this manager streams for.
func (m *Manager) TaskID() string {
	return m.taskID
}

// ResetStreamingState returns every per-turn field to its initial value,
// including the tool-call index table and native-call buffering.
func (m *Manager) ResetStreamingState() {
	m.mu.Lock()
	m.isStreaming = false
	m.isWaitingForFirstChunk = false
	m.currentIndex = 0
	m.didCheckpoint = false
	m.didCompleteReadingStream = false
	m.content = nil
	m.presentIndex = 0
	m.presentationLocked = false
	m.pendingUpdate = false
	m.userContent = nil
	m.userContentReady = false
	m.didRejectTool = false
	m.didAlreadyUseTool = false
	m.didToolFail = false
	clear(m.toolCallIndices)
	m.native.ClearStreamingCalls()
	m.native.ClearRawChunkState()
	m.nativeText.Reset()
	clear(m.invalidCalls)
	m.unlockAndNotifyState()
}

// StartStreaming enters the waiting-for-first-chunk phase.
func (m *Manager) StartStreaming() {
	m.mu.Lock()
	m.isStreaming = true
	m.isWaitingForFirstChunk = true
	m.unlockAndNotifyState()
}

// StopStreaming returns to idle.
func (m *Manager) StopStreaming() {
	m.mu.Lock()
	m.isStreaming = false
	m.isWaitingForFirstChunk = false
	m.unlockAndNotifyState()
}

func (m *Manager) SetStreaming(streaming bool) {
	m.mu.Lock()
	m.isStreaming = streaming
	m.unlockAndNotifyState()
}

func (m *Manager) SetWaitingForFirstChunk(waiting bool) {
	m.mu.Lock()
	m.isWaitingForFirstChunk = waiting
	m.unlockAndNotifyState()
}

func (m *Manager) SetDidCompleteReadingStream(done bool) {
	m.mu.Lock()
	m.didCompleteReadingStream = done
	m.unlockAndNotifyState()
}

func (m *Manager) DidCompleteReadingStream() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.didCompleteReadingStream
}

func (m *Manager) IsStreaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isStreaming
}

func (m *Manager) IsWaitingForFirstChunk() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isWaitingForFirstChunk
}

func (m *Manager) SetCurrentIndex(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentIndex = index
}

func (m *Manager) CurrentIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentIndex
}

func (m *Manager) SetDidCheckpoint(checkpoint bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.didCheckpoint = checkpoint
}

func (m *Manager) DidCheckpoint() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.didCheckpoint
}

// Phase derives the lifecycle phase from the streaming flags.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return phaseOf(m.isStreaming, m.isWaitingForFirstChunk, m.didCompleteReadingStream)
}

// Snapshot returns the current observable state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() State {
	return State{
		TaskID:                   m.taskID,
		Phase:                    phaseOf(m.isStreaming, m.isWaitingForFirstChunk, m.didCompleteReadingStream),
		IsStreaming:              m.isStreaming,
		IsWaitingForFirstChunk:   m.isWaitingForFirstChunk,
		CurrentIndex:             m.currentIndex,
		DidCheckpoint:            m.didCheckpoint,
		DidCompleteReadingStream: m.didCompleteReadingStream,
	}
}

// AppendContent appends one block and moves the current index past it.
func (m *Manager) AppendContent(b assistantmsg.Block) {
	m.mu.Lock()
	m.content = append(m.content, b)
	m.currentIndex = len(m.content)
	m.unlockAndNotifyContent()
}

// SetContent replaces the block sequence, typically with the parser's latest
// output, and moves the current index to its end.
func (m *Manager) SetContent(blocks []assistantmsg.Block) {
	m.mu.Lock()
	m.content = append(m.content[:0:0], blocks...)
	m.currentIndex = len(m.content)
	m.unlockAndNotifyContent()
}

// ClearContent empties the block sequence.
func (m *Manager) ClearContent() {
	m.mu.Lock()
	m.content = nil
	m.currentIndex = 0
	m.presentIndex = 0
	m.unlockAndNotifyContent()
}

// Content returns a copy of the block sequence.
func (m *Manager) Content() []assistantmsg.Block {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contentLocked()
}

func (m *Manager) contentLocked() []assistantmsg.Block {
	out := make([]assistantmsg.Block, len(m.content))
	copy(out, m.content)
	return out
}

// BlockAt returns the block at index i.
func (m *Manager) BlockAt(i int) (assistantmsg.Block, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.content) {
		return nil, false
	}
	return m.content[i], true
}

// Len returns the number of blocks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.content)
}

// PresentIndex is the index of the next block to present.
func (m *Manager) PresentIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presentIndex
}

func (m *Manager) SetPresentationLocked(locked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presentationLocked = locked
}

func (m *Manager) PresentationLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presentationLocked
}

func (m *Manager) SetPendingUpdate(pending bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingUpdate = pending
}

func (m *Manager) PendingUpdate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingUpdate
}

func (m *Manager) SetDidRejectTool(rejected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.didRejectTool = rejected
}

func (m *Manager) DidRejectTool() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.didRejectTool
}

func (m *Manager) SetDidAlreadyUseTool(used bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.didAlreadyUseTool = used
}

func (m *Manager) DidAlreadyUseTool() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.didAlreadyUseTool
}

func (m *Manager) SetDidToolFail(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.didToolFail = failed
}

func (m *Manager) DidToolFail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.didToolFail
}

func (m *Manager) SetUserContent(results []ToolResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userContent = append([]ToolResult(nil), results...)
}

// AddUserContent appends one tool result.
func (m *Manager) AddUserContent(r ToolResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userContent = append(m.userContent, r)
}

// UserContent returns a copy of the accumulated tool results.
func (m *Manager) UserContent() []ToolResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ToolResult(nil), m.userContent...)
}

func (m *Manager) ClearUserContent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userContent = nil
}

func (m *Manager) SetUserContentReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userContentReady = ready
}

func (m *Manager) UserContentReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userContentReady
}

// StartToolCall registers a native call id at index 0.
func (m *Manager) StartToolCall(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCallIndices[id] = 0
}

func (m *Manager) SetToolCallIndex(id string, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCallIndices[id] = index
}

// ToolCallIndex returns the index recorded for id, or 0.
func (m *Manager) ToolCallIndex(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toolCallIndices[id]
}

func (m *Manager) IncrementToolCallIndex(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCallIndices[id]++
}

func (m *Manager) ClearToolCallIndices() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.toolCallIndices)
}

// Native exposes the turn's native-call parser. Callers other than the
// manager must not use it while a turn is streaming.
func (m *Manager) Native() *nativecall.Parser {
	return m.native
}

// Dispose drops callbacks and per-turn state. Later notifications are
// suppressed.
func (m *Manager) Dispose() {
	m.ResetStreamingState()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed = true
	m.onStateChange = nil
	m.onContentUpdate = nil
}

func (m *Manager) unlockAndNotifyState() {
	cb := m.onStateChange
	if m.disposed {
		cb = nil
	}
	st := m.snapshotLocked()
	m.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

func (m *Manager) unlockAndNotifyContent() {
	cb := m.onContentUpdate
	if m.disposed {
		cb = nil
	}
	var blocks []assistantmsg.Block
	if cb != nil {
		blocks = m.contentLocked()
	}
	m.mu.Unlock()
	if cb != nil {
		cb(blocks)
	}
}
