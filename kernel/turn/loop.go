package turn

import (
	"context"

	"github.com/OnslaughtSnail/agenthost/kernel/errcode"
)

// DefaultMaxTurns bounds Loop when maxTurns is not positive.
const DefaultMaxTurns = 25

// Loop runs turns until the model completes the task, answers without
// using a tool, or the user rejects a tool. Tool results of one turn are
// already in history when the next turn starts.
func (r *Runner) Loop(ctx context.Context, input string, maxTurns int) (*Result, error) {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	next := input
	for i := 0; i < maxTurns; i++ {
		res, err := r.Run(ctx, next)
		if err != nil {
			return res, err
		}
		if res.Completion != nil || res.Rejected || len(res.ToolResults) == 0 {
			return res, nil
		}
		next = ""
	}
	return nil, errcode.New(errcode.ErrorCodeTurnAborted, "turn: task %s not completed after %d turns", r.cfg.TaskID, maxTurns)
}
