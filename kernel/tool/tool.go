// Package tool executes complete tool blocks on behalf of a turn.
package tool

import (
	"context"
	"fmt"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/model"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

// Result is the text handed back to the model for one tool call.
type Result struct {
	Content string
	IsError bool
}

// Tool is the executable tool contract.
type Tool interface {
	Name() toolvocab.ToolName
	Description() string
	Declaration() model.ToolDefinition
	Run(context.Context, assistantmsg.ToolUseBlock) (Result, error)
}

// BuildMap creates a name-indexed tool lookup map.
func BuildMap(tools []Tool) (map[toolvocab.ToolName]Tool, error) {
	out := make(map[toolvocab.ToolName]Tool, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool: empty name")
		}
		if _, exists := out[name]; exists {
			return nil, fmt.Errorf("tool: duplicate tool %q", name)
		}
		out[name] = t
	}
	return out, nil
}

// Declarations returns model-visible declarations for tools.
func Declarations(tools []Tool) []model.ToolDefinition {
	decls := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		decls = append(decls, t.Declaration())
	}
	return decls
}
