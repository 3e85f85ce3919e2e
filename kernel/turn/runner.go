// Package turn drives one assistant turn: it streams a model response through
// the block parser, presents and executes the resulting blocks in order and
// persists the exchange.
package turn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/errcode"
	"github.com/OnslaughtSnail/agenthost/kernel/history"
	"github.com/OnslaughtSnail/agenthost/kernel/history/inmemory"
	"github.com/OnslaughtSnail/agenthost/kernel/model"
	"github.com/OnslaughtSnail/agenthost/kernel/nativecall"
	"github.com/OnslaughtSnail/agenthost/kernel/streaming"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

// Protocol selects how tool calls arrive from the model.
type Protocol string

const (
	// ProtocolXML reads tool calls as tags inside the text stream.
	ProtocolXML Protocol = "xml"
	// ProtocolNative reads tool calls from provider tool-call deltas.
	ProtocolNative Protocol = "native"
)

// ParseProtocol maps a config string to a Protocol. Empty means xml.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProtocolXML:
		return ProtocolXML, nil
	case ProtocolNative:
		return ProtocolNative, nil
	default:
		return "", fmt.Errorf("turn: unknown protocol %q", s)
	}
}

// Toolset executes tool blocks and declares native tool schemas.
// *tool.Registry satisfies it.
type Toolset interface {
	streaming.ToolExecutor
	Declarations() []model.ToolDefinition
}

// Config wires a Runner.
type Config struct {
	TaskID  string
	Model   model.LLM
	Tools   Toolset
	Sink    streaming.TextSink
	History history.Store

	Protocol          Protocol
	Limits            assistantmsg.Limits
	Vocabulary        *toolvocab.Vocabulary
	OneToolPerMessage bool

	System    string
	MaxTokens int
	Reasoning model.ReasoningConfig

	Logger        logrus.FieldLogger
	OnStateChange func(streaming.State)
}

// Result summarizes a finished turn.
type Result struct {
	TurnID      string
	Text        string
	Blocks      []assistantmsg.Block
	ToolResults []streaming.ToolResult
	Usage       model.Usage
	// Completion is set when attempt_completion ran in this turn.
	Completion *string
	Rejected   bool
}

// Runner runs turns for one task. At most one turn runs at a time.
type Runner struct {
	cfg       Config
	log       logrus.FieldLogger
	manager   *streaming.Manager
	presenter *streaming.Presenter
	parser    *assistantmsg.Parser

	mu      sync.Mutex
	running bool
}

// New validates cfg and returns a Runner. A nil History uses an in-memory
// store.
func New(cfg Config) (*Runner, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("turn: model is required")
	}
	if strings.TrimSpace(cfg.TaskID) == "" {
		cfg.TaskID = uuid.NewString()
	}
	if cfg.Protocol == "" {
		cfg.Protocol = ProtocolXML
	}
	if cfg.Vocabulary == nil {
		cfg.Vocabulary = toolvocab.Default()
	}
	if cfg.History == nil {
		cfg.History = inmemory.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	r := &Runner{
		cfg: cfg,
		log: logger.WithField("task_id", cfg.TaskID),
		parser: assistantmsg.NewParser(
			assistantmsg.WithLimits(cfg.Limits),
			assistantmsg.WithVocabulary(cfg.Vocabulary),
		),
	}
	r.manager = streaming.NewManager(streaming.Options{
		TaskID:        cfg.TaskID,
		Vocabulary:    cfg.Vocabulary,
		OnStateChange: r.stateChanged,
	})
	r.presenter = &streaming.Presenter{
		Manager:           r.manager,
		Executor:          cfg.Tools,
		Sink:              cfg.Sink,
		OneToolPerMessage: cfg.OneToolPerMessage,
	}
	if cfg.Protocol == ProtocolXML {
		r.presenter.Vocabulary = cfg.Vocabulary
	}
	return r, nil
}

// TaskID returns the task this runner serves.
func (r *Runner) TaskID() string {
	return r.cfg.TaskID
}

// Manager exposes the streaming state of the current or last turn.
func (r *Runner) Manager() *streaming.Manager {
	return r.manager
}

func (r *Runner) stateChanged(s streaming.State) {
	r.log.WithFields(logrus.Fields{
		"phase":         s.Phase,
		"current_index": s.CurrentIndex,
	}).Debug("turn: state changed")
	if r.cfg.OnStateChange != nil {
		r.cfg.OnStateChange(s)
	}
}

func (r *Runner) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	return true
}

func (r *Runner) release() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// Run appends input (if any) as a user message and runs one assistant turn
// against the task history.
func (r *Runner) Run(ctx context.Context, input string) (*Result, error) {
	if !r.acquire() {
		return nil, errcode.New(errcode.ErrorCodeTurnBusy, "turn: task %s already has a running turn", r.cfg.TaskID)
	}
	defer r.release()

	turnID := uuid.NewString()
	log := r.log.WithField("turn_id", turnID)

	if strings.TrimSpace(input) != "" {
		if _, err := r.cfg.History.Append(ctx, history.Message{
			TaskID: r.cfg.TaskID,
			TurnID: turnID,
			Role:   model.RoleUser,
			Text:   input,
		}); err != nil {
			return nil, err
		}
	}
	past, err := r.cfg.History.List(ctx, r.cfg.TaskID)
	if err != nil {
		return nil, err
	}
	req := &model.Request{
		System:    r.cfg.System,
		Messages:  history.ToModel(past),
		Stream:    true,
		Reasoning: r.cfg.Reasoning,
		MaxTokens: r.cfg.MaxTokens,
	}
	if r.cfg.Protocol == ProtocolNative && r.cfg.Tools != nil {
		req.Tools = r.cfg.Tools.Declarations()
	}

	r.manager.ResetStreamingState()
	r.parser.Reset()
	r.manager.StartStreaming()
	log.WithField("protocol", r.cfg.Protocol).Debug("turn: streaming started")

	st := &turnState{}
	runErr := r.consume(ctx, req, st, log)

	r.finalize(st, log)
	r.manager.SetDidCompleteReadingStream(true)
	if runErr == nil {
		if err := r.presenter.Present(ctx); err != nil {
			runErr = errcode.Wrap(errcode.ErrorCodeTurnAborted, err, "turn: presentation stopped")
		}
	}
	r.manager.StopStreaming()

	res := &Result{
		TurnID:      turnID,
		Text:        st.text.String(),
		Blocks:      r.manager.Content(),
		ToolResults: r.manager.UserContent(),
		Usage:       st.usage,
		Rejected:    r.manager.DidRejectTool(),
	}
	res.Completion = completion(res.Blocks, res.ToolResults)

	// Persist even when the turn failed so replay sees what the model said.
	if err := r.persist(context.WithoutCancel(ctx), turnID, res); err != nil {
		log.WithError(err).Error("turn: persist history")
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		log.WithError(runErr).WithFields(logrus.Fields{
			"code":      errcode.Of(runErr),
			"retryable": errcode.Retryable(runErr),
		}).Warn("turn: failed")
		return res, runErr
	}
	log.WithFields(logrus.Fields{
		"blocks": len(res.Blocks),
		"tools":  len(res.ToolResults),
	}).Debug("turn: complete")
	return res, nil
}

type turnState struct {
	text     strings.Builder
	sawText  bool
	sawCalls bool
	usage    model.Usage
}

func (r *Runner) consume(ctx context.Context, req *model.Request, st *turnState, log logrus.FieldLogger) error {
	first := true
	for resp, err := range r.cfg.Model.Generate(ctx, req) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return errcode.Wrap(errcode.ErrorCodeTurnAborted, ctxErr, "turn: canceled")
			}
			return errcode.Wrap(errcode.ErrorCodeStreamFailed, err, "turn: model stream")
		}
		if resp == nil {
			continue
		}
		if first {
			first = false
			r.manager.SetWaitingForFirstChunk(false)
		}
		if resp.TurnComplete {
			st.usage = resp.Usage
			if err := r.applyFinal(resp, st, log); err != nil {
				return err
			}
			continue
		}
		if err := r.applyText(resp.Message.Text, st, log); err != nil {
			return err
		}
		r.applyCalls(resp.ToolCallDeltas, st, log)
		if err := r.presenter.Present(ctx); err != nil {
			return errcode.Wrap(errcode.ErrorCodeTurnAborted, err, "turn: presentation stopped")
		}
	}
	if err := ctx.Err(); err != nil {
		return errcode.Wrap(errcode.ErrorCodeTurnAborted, err, "turn: canceled")
	}
	return nil
}

// applyFinal covers providers that deliver nothing but the assembled
// message.
func (r *Runner) applyFinal(resp *model.Response, st *turnState, log logrus.FieldLogger) error {
	if !st.sawText && resp.Message.Text != "" {
		if err := r.applyText(resp.Message.Text, st, log); err != nil {
			return err
		}
	}
	if !st.sawCalls && len(resp.Message.ToolCalls) > 0 {
		deltas := make([]model.ToolCallDelta, 0, len(resp.Message.ToolCalls))
		for i, call := range resp.Message.ToolCalls {
			args := call.Args
			if args == nil {
				args = map[string]any{}
			}
			raw, err := json.Marshal(args)
			if err != nil {
				return fmt.Errorf("turn: encode tool call %s: %w", call.ID, err)
			}
			deltas = append(deltas, model.ToolCallDelta{Index: i, ID: call.ID, Name: call.Name, Arguments: string(raw)})
		}
		r.applyCalls(deltas, st, log)
	}
	return nil
}

func (r *Runner) applyText(delta string, st *turnState, log logrus.FieldLogger) error {
	if delta == "" {
		return nil
	}
	if r.cfg.Protocol == ProtocolNative {
		st.sawText = true
		st.text.WriteString(delta)
		if err := r.manager.AppendNativeText(delta); err != nil {
			log.WithError(err).Warn("turn: native call arguments invalid")
		}
		return nil
	}
	blocks, err := r.parser.ProcessChunk(delta)
	if err != nil {
		if assistantmsg.IsBufferOverflow(err) {
			return errcode.Wrap(errcode.ErrorCodeTurnAborted, err, "turn: assistant message too large")
		}
		return err
	}
	st.sawText = true
	st.text.WriteString(delta)
	r.manager.SetContent(blocks)
	return nil
}

func (r *Runner) applyCalls(deltas []model.ToolCallDelta, st *turnState, log logrus.FieldLogger) {
	if len(deltas) == 0 {
		return
	}
	if r.cfg.Protocol != ProtocolNative {
		log.WithField("deltas", len(deltas)).Debug("turn: ignoring native tool calls in xml protocol")
		return
	}
	st.sawCalls = true
	for _, d := range deltas {
		err := r.manager.ApplyNativeChunk(nativecall.RawChunk{
			Index:     d.Index,
			ID:        d.ID,
			Name:      d.Name,
			Arguments: d.Arguments,
		})
		if err != nil {
			log.WithError(err).Warn("turn: native call arguments invalid")
		}
	}
}

func (r *Runner) finalize(st *turnState, log logrus.FieldLogger) {
	if r.cfg.Protocol == ProtocolNative {
		if err := r.manager.FinalizeNative(); err != nil {
			log.WithError(err).Warn("turn: native call arguments invalid")
		}
		return
	}
	r.manager.SetContent(r.parser.Finalize())
}

func (r *Runner) persist(ctx context.Context, turnID string, res *Result) error {
	assistant := history.Message{
		TaskID: r.cfg.TaskID,
		TurnID: turnID,
		Role:   model.RoleAssistant,
		Text:   res.Text,
	}
	if r.cfg.Protocol == ProtocolNative {
		assistant.ToolCalls = nativeToolCalls(res.Blocks)
	}
	if assistant.Text == "" && len(assistant.ToolCalls) == 0 {
		return nil
	}
	if _, err := r.cfg.History.Append(ctx, assistant); err != nil {
		return err
	}
	var errs []error
	for _, tr := range res.ToolResults {
		msg := history.Message{
			TaskID:     r.cfg.TaskID,
			TurnID:     turnID,
			Role:       model.RoleTool,
			Text:       tr.Content,
			ToolCallID: tr.CallID,
			ToolName:   tr.ToolName,
			IsError:    tr.IsError,
		}
		if tr.CallID == "" {
			msg.Role = model.RoleUser
			msg.Text = fmt.Sprintf("[%s] Result:\n%s", tr.ToolName, tr.Content)
			msg.ToolName = ""
		}
		if _, err := r.cfg.History.Append(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func nativeToolCalls(blocks []assistantmsg.Block) []model.ToolCall {
	var out []model.ToolCall
	for _, b := range blocks {
		switch v := b.(type) {
		case assistantmsg.ToolUseBlock:
			if v.ID == "" {
				continue
			}
			name := v.OriginalName
			if name == "" {
				name = string(v.Name)
			}
			out = append(out, model.ToolCall{ID: v.ID, Name: name, Args: v.NativeArgs})
		case assistantmsg.McpToolUseBlock:
			out = append(out, model.ToolCall{
				ID:   v.ID,
				Name: nativecall.MCPPrefix + v.ServerName + "--" + v.ToolName,
				Args: v.Params,
			})
		}
	}
	return out
}

func completion(blocks []assistantmsg.Block, results []streaming.ToolResult) *string {
	for _, tr := range results {
		if tr.Skipped || tr.IsError || tr.BlockIndex >= len(blocks) {
			continue
		}
		b, ok := blocks[tr.BlockIndex].(assistantmsg.ToolUseBlock)
		if ok && b.Name == toolvocab.ToolAttemptCompletion {
			out := tr.Content
			return &out
		}
	}
	return nil
}
