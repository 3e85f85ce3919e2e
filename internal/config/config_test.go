package config

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/model/providers"
	"github.com/OnslaughtSnail/agenthost/kernel/turn"
)

func envMap(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(nil))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Limits != assistantmsg.DefaultLimits() {
		t.Fatalf("unexpected limits %#v", cfg.Limits)
	}
	if cfg.Protocol != turn.ProtocolXML || cfg.LogLevel != logrus.InfoLevel {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if cfg.Model.TokenEnv != "OPENAI_API_KEY" {
		t.Fatalf("unexpected token env %q", cfg.Model.TokenEnv)
	}
	if !strings.HasSuffix(cfg.HistoryDB, "history.db") {
		t.Fatalf("unexpected history db %q", cfg.HistoryDB)
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		EnvMaxAccumulatorBytes: "4096",
		EnvMaxParamBytes:       "1024",
		EnvProtocol:            "native",
		EnvHistoryDB:           "/tmp/h.db",
		EnvHistoryBackend:      "JSONL",
		EnvLogLevel:            "debug",
		EnvOneToolPerMessage:   "false",
		EnvAPI:                 "Anthropic",
		EnvModel:               "claude-sonnet",
		EnvTimeout:             "5s",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Limits.MaxAccumulatorBytes != 4096 || cfg.Limits.MaxParamBytes != 1024 {
		t.Fatalf("unexpected limits %#v", cfg.Limits)
	}
	if cfg.Protocol != turn.ProtocolNative || cfg.HistoryDB != "/tmp/h.db" || cfg.LogLevel != logrus.DebugLevel {
		t.Fatalf("unexpected config %#v", cfg)
	}
	if cfg.OneToolPerMessage {
		t.Fatal("expected one-tool-per-message disabled")
	}
	if cfg.HistoryBackend != HistoryJSONL {
		t.Fatalf("unexpected history backend %q", cfg.HistoryBackend)
	}
	pc := cfg.Model.ProviderConfig("main")
	if pc.API != providers.APIAnthropic || pc.APIKeyEnv != "ANTHROPIC_API_KEY" || pc.Timeout != 5*time.Second {
		t.Fatalf("unexpected provider config %#v", pc)
	}
}

func TestLoadFrom_RejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"non-numeric cap":  {EnvMaxAccumulatorBytes: "lots"},
		"zero cap":         {EnvMaxParamBytes: "0"},
		"unknown protocol": {EnvProtocol: "json"},
		"bad level":        {EnvLogLevel: "loud"},
		"bad bool":         {EnvOneToolPerMessage: "maybe"},
		"bad timeout":      {EnvTimeout: "soon"},
		"bad backend":      {EnvHistoryBackend: "postgres"},
		"bad api":          {EnvAPI: "soap"},
		"param over cap":   {EnvMaxAccumulatorBytes: "10", EnvMaxParamBytes: "20"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFrom(envMap(env)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFrom_BlankValuesKeepDefaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{EnvProtocol: "  ", EnvMaxTurns: ""}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Protocol != turn.ProtocolXML || cfg.MaxTurns != turn.DefaultMaxTurns {
		t.Fatalf("unexpected config %#v", cfg)
	}
}
