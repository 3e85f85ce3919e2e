// Package config reads agenthost settings from the environment. Command-line
// flags override the values returned here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/model/providers"
	"github.com/OnslaughtSnail/agenthost/kernel/turn"
)

const (
	EnvMaxAccumulatorBytes = "AGENTHOST_MAX_ACCUMULATOR_BYTES"
	EnvMaxParamBytes       = "AGENTHOST_MAX_PARAM_BYTES"
	EnvProtocol            = "AGENTHOST_PROTOCOL"
	EnvHistoryDB           = "AGENTHOST_HISTORY_DB"
	EnvHistoryBackend      = "AGENTHOST_HISTORY_BACKEND"
	EnvLogLevel            = "AGENTHOST_LOG_LEVEL"
	EnvOneToolPerMessage   = "AGENTHOST_ONE_TOOL_PER_MESSAGE"
	EnvMaxTurns            = "AGENTHOST_MAX_TURNS"

	EnvAPI       = "AGENTHOST_API"
	EnvModel     = "AGENTHOST_MODEL"
	EnvBaseURL   = "AGENTHOST_BASE_URL"
	EnvTokenEnv  = "AGENTHOST_TOKEN_ENV"
	EnvMaxTokens = "AGENTHOST_MAX_TOKENS"
	EnvTimeout   = "AGENTHOST_TIMEOUT"
)

// Config is the resolved process configuration.
type Config struct {
	Limits            assistantmsg.Limits
	Protocol          turn.Protocol
	HistoryDB         string
	HistoryBackend    HistoryBackend
	LogLevel          logrus.Level
	OneToolPerMessage bool
	MaxTurns          int

	Model ModelConfig
}

// HistoryBackend selects where task history is kept.
type HistoryBackend string

const (
	HistorySQLite HistoryBackend = "sqlite"
	// HistoryJSONL keeps one file per task in a directory.
	HistoryJSONL HistoryBackend = "jsonl"
)

// ParseHistoryBackend accepts sqlite or jsonl.
func ParseHistoryBackend(s string) (HistoryBackend, error) {
	switch b := HistoryBackend(strings.ToLower(strings.TrimSpace(s))); b {
	case HistorySQLite, HistoryJSONL:
		return b, nil
	default:
		return "", fmt.Errorf("config: unknown history backend %q (want sqlite or jsonl)", s)
	}
}

// ModelConfig selects the upstream chunk producer for the run command.
type ModelConfig struct {
	API       providers.APIType
	Model     string
	BaseURL   string
	TokenEnv  string
	MaxTokens int
	Timeout   time.Duration
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		Limits:            assistantmsg.DefaultLimits(),
		Protocol:          turn.ProtocolXML,
		HistoryDB:         defaultHistoryDB(),
		HistoryBackend:    HistorySQLite,
		LogLevel:          logrus.InfoLevel,
		OneToolPerMessage: true,
		MaxTurns:          turn.DefaultMaxTurns,
		Model: ModelConfig{
			API:     providers.APIOpenAICompatible,
			Timeout: 60 * time.Second,
		},
	}
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup, starting from Default.
func LoadFrom(lookup LookupFunc) (Config, error) {
	cfg := Default()
	r := reader{lookup: lookup}

	cfg.Limits.MaxAccumulatorBytes = r.positiveInt(EnvMaxAccumulatorBytes, cfg.Limits.MaxAccumulatorBytes)
	cfg.Limits.MaxParamBytes = r.positiveInt(EnvMaxParamBytes, cfg.Limits.MaxParamBytes)
	cfg.MaxTurns = r.positiveInt(EnvMaxTurns, cfg.MaxTurns)
	cfg.OneToolPerMessage = r.bool(EnvOneToolPerMessage, cfg.OneToolPerMessage)
	if v, ok := r.get(EnvProtocol); ok {
		p, err := turn.ParseProtocol(v)
		if err != nil {
			r.fail(EnvProtocol, err)
		}
		cfg.Protocol = p
	}
	if v, ok := r.get(EnvHistoryDB); ok {
		cfg.HistoryDB = v
	}
	if v, ok := r.get(EnvHistoryBackend); ok {
		b, err := ParseHistoryBackend(v)
		if err != nil {
			r.fail(EnvHistoryBackend, err)
		}
		cfg.HistoryBackend = b
	}
	if v, ok := r.get(EnvLogLevel); ok {
		level, err := logrus.ParseLevel(v)
		if err != nil {
			r.fail(EnvLogLevel, err)
		}
		cfg.LogLevel = level
	}

	if v, ok := r.get(EnvAPI); ok {
		api, err := providers.ParseAPIType(v)
		if err != nil {
			r.fail(EnvAPI, err)
		}
		cfg.Model.API = api
	}
	if v, ok := r.get(EnvModel); ok {
		cfg.Model.Model = v
	}
	if v, ok := r.get(EnvBaseURL); ok {
		cfg.Model.BaseURL = v
	}
	if v, ok := r.get(EnvTokenEnv); ok {
		cfg.Model.TokenEnv = v
	}
	cfg.Model.MaxTokens = r.positiveInt(EnvMaxTokens, cfg.Model.MaxTokens)
	if v, ok := r.get(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			r.fail(EnvTimeout, fmt.Errorf("invalid duration %q", v))
		} else {
			cfg.Model.Timeout = d
		}
	}
	if cfg.Model.TokenEnv == "" {
		cfg.Model.TokenEnv = DefaultTokenEnv(cfg.Model.API)
	}
	if cfg.Limits.MaxParamBytes > cfg.Limits.MaxAccumulatorBytes {
		r.fail(EnvMaxParamBytes, fmt.Errorf("must not exceed %s", EnvMaxAccumulatorBytes))
	}
	if r.err != nil {
		return Config{}, r.err
	}
	return cfg, nil
}

// DefaultTokenEnv names the conventional API key variable for api.
func DefaultTokenEnv(api providers.APIType) string {
	switch api {
	case providers.APIAnthropic:
		return "ANTHROPIC_API_KEY"
	case providers.APIGemini:
		return "GEMINI_API_KEY"
	case providers.APIDeepSeek:
		return "DEEPSEEK_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

// ProviderConfig turns the model settings into a provider alias config.
func (m ModelConfig) ProviderConfig(alias string) providers.Config {
	return providers.Config{
		Alias:        alias,
		Provider:     string(m.API),
		API:          m.API,
		Model:        m.Model,
		BaseURL:      m.BaseURL,
		Timeout:      m.Timeout,
		MaxOutputTok: m.MaxTokens,
		APIKeyEnv:    m.TokenEnv,
	}
}

func defaultHistoryDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".agenthost", "history.db")
	}
	return filepath.Join(home, ".agenthost", "history.db")
}

// reader keeps the first parse error so every variable is read in one pass.
type reader struct {
	lookup LookupFunc
	err    error
}

func (r *reader) get(key string) (string, bool) {
	if r.lookup == nil {
		return "", false
	}
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("config: %s: %w", key, err)
	}
}

func (r *reader) positiveInt(key string, def int) int {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		r.fail(key, fmt.Errorf("expected a positive integer, got %q", v))
		return def
	}
	return n
}

func (r *reader) bool(key string, def bool) bool {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}
