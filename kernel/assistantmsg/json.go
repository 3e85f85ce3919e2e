package assistantmsg

import (
	"encoding/json"
	"fmt"

	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

type wireBlock struct {
	Type         BlockKind       `json:"type"`
	Content      string          `json:"content,omitempty"`
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name,omitempty"`
	OriginalName string          `json:"original_name,omitempty"`
	ServerName   string          `json:"server_name,omitempty"`
	ToolName     string          `json:"tool_name,omitempty"`
	Params       json.RawMessage `json:"params,omitempty"`
	NativeArgs   map[string]any  `json:"native_args,omitempty"`
	Partial      bool            `json:"partial"`
}

// EncodeBlocks serializes blocks with a "type" discriminator.
func EncodeBlocks(blocks []Block) ([]byte, error) {
	out := make([]wireBlock, 0, len(blocks))
	for _, b := range blocks {
		w, err := toWire(b)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return json.Marshal(out)
}

// DecodeBlocks restores blocks produced by EncodeBlocks.
func DecodeBlocks(raw []byte) ([]Block, error) {
	var in []wireBlock
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("assistantmsg: decode blocks: %w", err)
	}
	out := make([]Block, 0, len(in))
	for i, w := range in {
		b, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("assistantmsg: decode block %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func toWire(b Block) (wireBlock, error) {
	switch v := b.(type) {
	case TextBlock:
		return wireBlock{Type: KindText, Content: v.Content, Partial: v.Partial}, nil
	case ToolUseBlock:
		params, err := json.Marshal(v.Params)
		if err != nil {
			return wireBlock{}, err
		}
		return wireBlock{
			Type:         KindToolUse,
			ID:           v.ID,
			Name:         string(v.Name),
			OriginalName: v.OriginalName,
			Params:       params,
			NativeArgs:   v.NativeArgs,
			Partial:      v.Partial,
		}, nil
	case McpToolUseBlock:
		params, err := json.Marshal(v.Params)
		if err != nil {
			return wireBlock{}, err
		}
		return wireBlock{
			Type:       KindMcpToolUse,
			ID:         v.ID,
			ServerName: v.ServerName,
			ToolName:   v.ToolName,
			Params:     params,
			Partial:    v.Partial,
		}, nil
	default:
		return wireBlock{}, fmt.Errorf("assistantmsg: unsupported block %T", b)
	}
}

func fromWire(w wireBlock) (Block, error) {
	switch w.Type {
	case KindText:
		return TextBlock{Content: w.Content, Partial: w.Partial}, nil
	case KindToolUse:
		params := map[toolvocab.ParamName]string{}
		if len(w.Params) > 0 && string(w.Params) != "null" {
			if err := json.Unmarshal(w.Params, &params); err != nil {
				return nil, err
			}
		}
		return ToolUseBlock{
			ID:           w.ID,
			Name:         toolvocab.ToolName(w.Name),
			OriginalName: w.OriginalName,
			Params:       params,
			NativeArgs:   w.NativeArgs,
			Partial:      w.Partial,
		}, nil
	case KindMcpToolUse:
		params := map[string]any{}
		if len(w.Params) > 0 && string(w.Params) != "null" {
			if err := json.Unmarshal(w.Params, &params); err != nil {
				return nil, err
			}
		}
		return McpToolUseBlock{
			ID:         w.ID,
			ServerName: w.ServerName,
			ToolName:   w.ToolName,
			Params:     params,
			Partial:    w.Partial,
		}, nil
	default:
		return nil, fmt.Errorf("unknown block type %q", w.Type)
	}
}
