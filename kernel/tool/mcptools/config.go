package mcptools

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultConfigPath is read when no MCP config path is given.
const DefaultConfigPath = "~/.agents/mcp_servers.json"

type configFile struct {
	CacheTTLSeconds int                     `json:"cache_ttl_seconds,omitempty"`
	MCPServers      map[string]serverRecord `json:"mcpServers"`
}

type serverRecord struct {
	Transport    string            `json:"transport,omitempty"`
	Command      string            `json:"command,omitempty"`
	Args         []string          `json:"args,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	WorkDir      string            `json:"workdir,omitempty"`
	URL          string            `json:"url,omitempty"`
	IncludeTools []string          `json:"include_tools,omitempty"`
	CallTimeout  int               `json:"call_timeout_seconds,omitempty"`
}

// LoadConfig reads an mcpServers JSON file. A missing file or an empty
// server map yields ok=false.
func LoadConfig(path string) (cfg Config, ok bool, err error) {
	if path = strings.TrimSpace(path); path == "" {
		path = DefaultConfigPath
	}
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, false, fmt.Errorf("mcptools: resolve path %q: %w", path, err)
	}
	raw, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("mcptools: read %q: %w", resolved, err)
	}
	var file configFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return Config{}, false, fmt.Errorf("mcptools: parse %q: %w", resolved, err)
	}
	if len(file.MCPServers) == 0 {
		return Config{}, false, nil
	}
	names := make([]string, 0, len(file.MCPServers))
	for name := range file.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	if file.CacheTTLSeconds > 0 {
		cfg.CacheTTL = time.Duration(file.CacheTTLSeconds) * time.Second
	}
	for _, name := range names {
		rec := file.MCPServers[name]
		transport := strings.ToLower(strings.TrimSpace(rec.Transport))
		if transport == "" {
			switch {
			case strings.TrimSpace(rec.Command) != "":
				transport = string(TransportStdio)
			case strings.TrimSpace(rec.URL) != "":
				transport = string(TransportStreamable)
			}
		}
		item := ServerConfig{
			Name:         strings.TrimSpace(name),
			Transport:    TransportType(transport),
			Command:      strings.TrimSpace(rec.Command),
			Args:         append([]string(nil), rec.Args...),
			Env:          rec.Env,
			URL:          strings.TrimSpace(rec.URL),
			IncludeTools: append([]string(nil), rec.IncludeTools...),
		}
		if item.Name == "" {
			return Config{}, false, fmt.Errorf("mcptools: mcpServers has an empty key")
		}
		if dir := strings.TrimSpace(rec.WorkDir); dir != "" {
			if item.WorkDir, err = resolvePath(dir); err != nil {
				return Config{}, false, fmt.Errorf("mcptools: resolve workdir for %s: %w", item.Name, err)
			}
		}
		if rec.CallTimeout > 0 {
			item.CallTimeout = time.Duration(rec.CallTimeout) * time.Second
		}
		cfg.Servers = append(cfg.Servers, item)
	}
	return cfg, true, nil
}

func resolvePath(input string) (string, error) {
	if rest, ok := strings.CutPrefix(input, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		input = filepath.Join(home, rest)
	}
	return filepath.Abs(input)
}
