package builtin

import (
	"context"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/tool"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

type completionArgs struct {
	Result string `json:"result" desc:"Final result shown to the user."`
}

func completionTool() (tool.Tool, error) {
	return tool.NewFunction(toolvocab.ToolAttemptCompletion,
		"Report that the task is done, with a final result for the user.",
		func(_ context.Context, args completionArgs) (string, error) {
			return strings.TrimSpace(args.Result), nil
		})
}
