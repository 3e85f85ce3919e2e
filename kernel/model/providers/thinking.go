package providers

import (
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/model"
)

// thinkingProviders speak the OpenAI chat dialect but toggle reasoning with a
// "thinking" object and expect reasoning_content echoed on tool-call turns.
var thinkingProviders = map[string]bool{
	"deepseek": true,
	"xiaomi":   true,
	"mimo":     true,
}

func isThinkingProvider(cfg Config) bool {
	if cfg.API == APIDeepSeek {
		return true
	}
	return thinkingProviders[strings.ToLower(strings.TrimSpace(cfg.Provider))]
}

func newThinkingCompat(cfg Config, token string) model.LLM {
	llm := newOpenAICompat(cfg, token)
	llm.dialect = chatDialect{
		echoReasoning:         true,
		emptyReasoningOnCalls: true,
		applyReasoning:        applyThinkingReasoning,
	}
	return llm
}

func applyThinkingReasoning(payload *chatRequest, cfg model.ReasoningConfig) {
	if payload == nil || cfg.Enabled == nil {
		return
	}
	state := "disabled"
	if *cfg.Enabled {
		state = "enabled"
	}
	payload.Thinking = &openAIThinking{Type: state}
	payload.Reasoning = nil
	payload.ReasoningEffort = ""
}
