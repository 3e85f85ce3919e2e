package streaming

// Phase is the per-turn streaming lifecycle:
// idle -> waiting for first chunk -> active -> complete -> idle.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseWaitingForFirstChunk Phase = "waiting_for_first_chunk"
	PhaseActive               Phase = "active"
	PhaseComplete             Phase = "complete"
)

// State is the observable streaming state reported to OnStateChange.
type State struct {
	TaskID                   string
	Phase                    Phase
	IsStreaming              bool
	IsWaitingForFirstChunk   bool
	CurrentIndex             int
	DidCheckpoint            bool
	DidCompleteReadingStream bool
}

func phaseOf(streaming, waiting, complete bool) Phase {
	switch {
	case !streaming:
		return PhaseIdle
	case waiting:
		return PhaseWaitingForFirstChunk
	case complete:
		return PhaseComplete
	default:
		return PhaseActive
	}
}

// ToolResult is what one presented tool block contributed to the next user
// message.
type ToolResult struct {
	BlockIndex int
	ToolName   string
	CallID     string
	Content    string
	IsError    bool
	// Skipped is set when the tool was not executed at all.
	Skipped bool
}
