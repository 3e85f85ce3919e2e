package providers

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/model"
)

type builder func(cfg Config, key string) (model.LLM, error)

var builders = map[APIType]builder{
	APIOpenAI:           buildChatCompletions,
	APIOpenAICompatible: buildChatCompletions,
	APIDeepSeek:         buildChatCompletions,
	APIAnthropic: func(cfg Config, key string) (model.LLM, error) {
		return newAnthropic(cfg, key), nil
	},
	APIGemini: newGemini,
}

func buildChatCompletions(cfg Config, key string) (model.LLM, error) {
	if isThinkingProvider(cfg) {
		return newThinkingCompat(cfg, key), nil
	}
	return newOpenAICompat(cfg, key), nil
}

// Factory holds alias configs and builds an LLM per alias on demand.
type Factory struct {
	configs map[string]Config
}

func NewFactory() *Factory {
	return &Factory{configs: map[string]Config{}}
}

func normalizeAlias(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}

// Register validates cfg and stores it under its normalized alias, replacing
// any earlier entry.
func (f *Factory) Register(cfg Config) error {
	alias := normalizeAlias(cfg.Alias)
	if alias == "" {
		return fmt.Errorf("providers: alias is required")
	}
	if _, ok := builders[cfg.API]; !ok {
		return fmt.Errorf("providers: alias %q: unsupported api type %q", alias, cfg.API)
	}
	cfg.Alias = alias
	f.configs[alias] = cfg
	return nil
}

// NewByAlias resolves the alias's key and constructs its client.
func (f *Factory) NewByAlias(alias string) (model.LLM, error) {
	alias = normalizeAlias(alias)
	cfg, ok := f.configs[alias]
	if !ok {
		return nil, fmt.Errorf("providers: unknown model alias %q", alias)
	}
	key, err := cfg.apiKey()
	if err != nil {
		return nil, fmt.Errorf("providers: alias %q: %w", alias, err)
	}
	return builders[cfg.API](cfg, key)
}

// ListModels returns the registered aliases sorted.
func (f *Factory) ListModels() []string {
	return slices.Sorted(maps.Keys(f.configs))
}
