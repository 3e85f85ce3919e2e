package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/model"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

// Handler is a typed function tool handler. The returned string is the
// tool result shown to the model.
type Handler[TArgs any] func(context.Context, TArgs) (string, error)

type functionTool[TArgs any] struct {
	name        toolvocab.ToolName
	description string
	schema      map[string]any
	handler     Handler[TArgs]
}

// NewFunction creates a typed function-backed tool. Arguments come from the
// block's native JSON arguments when present, otherwise from its tag
// parameters, coerced to the field types declared by TArgs.
func NewFunction[TArgs any](name toolvocab.ToolName, description string, handler Handler[TArgs]) (Tool, error) {
	if name == "" {
		return nil, fmt.Errorf("tool: name is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("tool: handler is nil")
	}
	schema := schemaForType[TArgs]()
	if err := checkTagParams(name, schema, toolvocab.Default()); err != nil {
		return nil, err
	}
	return &functionTool[TArgs]{
		name:        name,
		description: description,
		schema:      schema,
		handler:     handler,
	}, nil
}

func (t *functionTool[TArgs]) Name() toolvocab.ToolName {
	return t.name
}

func (t *functionTool[TArgs]) Description() string {
	return t.description
}

func (t *functionTool[TArgs]) Declaration() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        string(t.name),
		Description: t.description,
		Parameters:  t.schema,
	}
}

func (t *functionTool[TArgs]) Run(ctx context.Context, block assistantmsg.ToolUseBlock) (Result, error) {
	var args TArgs
	if err := decodeArgs(block, t.schema, &args); err != nil {
		return Result{
			Content: fmt.Sprintf("Invalid arguments for tool [%s]: %v", t.name, err),
			IsError: true,
		}, nil
	}
	out, err := t.handler(ctx, args)
	if err != nil {
		return Result{}, err
	}
	return Result{Content: out}, nil
}

func decodeArgs(block assistantmsg.ToolUseBlock, schema map[string]any, out any) error {
	if block.NativeArgs != nil {
		return convertViaJSON(block.NativeArgs, out)
	}
	return convertViaJSON(coerceParams(block.Params, schema), out)
}

// coerceParams turns tag parameter strings into the JSON types the schema
// declares. Values that do not parse stay strings and fail the decode.
func coerceParams(params map[toolvocab.ParamName]string, schema map[string]any) map[string]any {
	props, _ := schema["properties"].(map[string]any)
	out := make(map[string]any, len(params))
	for name, raw := range params {
		prop, _ := props[string(name)].(map[string]any)
		typ, _ := prop["type"].(string)
		if typ != "" && typ != "string" && strings.TrimSpace(raw) == "" {
			continue
		}
		out[string(name)] = coerceValue(raw, typ)
	}
	return out
}

func coerceValue(raw, typ string) any {
	trimmed := strings.TrimSpace(raw)
	switch typ {
	case "integer":
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n
		}
	case "number":
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	case "boolean":
		if b, err := strconv.ParseBool(trimmed); err == nil {
			return b
		}
	case "array", "object":
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return raw
}

func convertViaJSON(in any, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
