// Package mcptools connects to MCP servers and serves their tools to the
// registry, both as tag-protocol use_mcp_tool calls and as native calls
// named "mcp--<server>--<tool>".
package mcptools

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/OnslaughtSnail/agenthost/internal/version"
	"github.com/OnslaughtSnail/agenthost/kernel/model"
	"github.com/OnslaughtSnail/agenthost/kernel/nativecall"
	"github.com/OnslaughtSnail/agenthost/kernel/tool"
)

// TransportType is an MCP transport.
type TransportType string

const (
	TransportStdio      TransportType = "stdio"
	TransportSSE        TransportType = "sse"
	TransportStreamable TransportType = "streamable"
)

// maxNativeName is the longest tool name providers accept.
const maxNativeName = 64

// ServerConfig configures one MCP server endpoint.
type ServerConfig struct {
	Name      string
	Transport TransportType

	// Stdio transport.
	Command string
	Args    []string
	Env     map[string]string
	WorkDir string

	// HTTP transport (sse/streamable).
	URL string

	// IncludeTools limits the exposed tools by their MCP names.
	IncludeTools []string
	CallTimeout  time.Duration
}

// Config configures a Manager.
type Config struct {
	Servers []ServerConfig
	// CacheTTL bounds how long listed declarations stay fresh. <=0 never
	// expires.
	CacheTTL time.Duration
}

// Manager keeps one client session per server, opened on first use.
type Manager struct {
	mu       sync.Mutex
	servers  map[string]*server
	order    []string
	cacheTTL time.Duration
	cacheAt  time.Time
	decls    []model.ToolDefinition
}

type server struct {
	name    string
	cfg     ServerConfig
	allow   map[string]struct{}
	client  *mcp.Client
	session *mcp.ClientSession
	// aliases maps an exposed tool part back to the MCP tool name when the
	// native name had to be shortened.
	aliases map[string]string
}

// NewManager validates cfg. No connection is made until a tool is listed
// or called.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{servers: map[string]*server{}, cacheTTL: cfg.CacheTTL}
	for i, one := range cfg.Servers {
		s, err := newServer(one, i)
		if err != nil {
			return nil, err
		}
		if _, dup := m.servers[s.name]; dup {
			return nil, fmt.Errorf("mcptools: duplicate server %q", s.name)
		}
		m.servers[s.name] = s
		m.order = append(m.order, s.name)
	}
	sort.Strings(m.order)
	return m, nil
}

func newServer(cfg ServerConfig, idx int) (*server, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, fmt.Errorf("mcptools: server[%d] name is required", idx)
	}
	if strings.Contains(name, "--") {
		return nil, fmt.Errorf("mcptools: server name %q must not contain \"--\"", name)
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	switch cfg.Transport {
	case TransportStdio:
		if strings.TrimSpace(cfg.Command) == "" {
			return nil, fmt.Errorf("mcptools: server[%s] command is required for stdio transport", name)
		}
	case TransportSSE, TransportStreamable:
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("mcptools: server[%s] url is required for %s transport", name, cfg.Transport)
		}
	default:
		return nil, fmt.Errorf("mcptools: server[%s] unsupported transport %q", name, cfg.Transport)
	}
	allow := map[string]struct{}{}
	for _, item := range cfg.IncludeTools {
		if item = strings.TrimSpace(item); item != "" {
			allow[item] = struct{}{}
		}
	}
	return &server{
		name:    name,
		cfg:     cfg,
		allow:   allow,
		aliases: map[string]string{},
		client:  mcp.NewClient(&mcp.Implementation{Name: "agenthost", Version: version.Version}, nil),
	}, nil
}

// ServerNames returns the configured servers in sorted order.
func (m *Manager) ServerNames() []string {
	return append([]string(nil), m.order...)
}

// Close closes every open session.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []string
	for _, name := range m.order {
		srv := m.servers[name]
		if srv.session == nil {
			continue
		}
		if err := srv.session.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
		srv.session = nil
	}
	m.decls = nil
	m.cacheAt = time.Time{}
	if len(errs) > 0 {
		return fmt.Errorf("mcptools: close sessions: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Refresh lists tools from every server and caches their native
// declarations.
func (m *Manager) Refresh(ctx context.Context) ([]model.ToolDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cacheExpiredLocked() {
		return append([]model.ToolDefinition(nil), m.decls...), nil
	}
	var decls []model.ToolDefinition
	seen := map[string]struct{}{}
	for _, name := range m.order {
		srv := m.servers[name]
		session, err := m.sessionLocked(ctx, srv)
		if err != nil {
			return nil, err
		}
		for mt, iterErr := range session.Tools(ctx, nil) {
			if iterErr != nil {
				return nil, fmt.Errorf("mcptools: list tools from %s: %w", srv.name, iterErr)
			}
			if mt == nil || strings.TrimSpace(mt.Name) == "" {
				continue
			}
			original := strings.TrimSpace(mt.Name)
			if len(srv.allow) > 0 {
				if _, ok := srv.allow[original]; !ok {
					continue
				}
			}
			part := exposedToolPart(srv.name, original)
			if part != original {
				srv.aliases[part] = original
			}
			native := nativeName(srv.name, part)
			if _, dup := seen[native]; dup {
				return nil, fmt.Errorf("mcptools: duplicate exposed tool name %q", native)
			}
			seen[native] = struct{}{}
			decls = append(decls, model.ToolDefinition{
				Name:        native,
				Description: toolDescription(mt.Description, srv.name, original),
				Parameters:  normalizeSchema(mt.InputSchema),
			})
		}
	}
	m.decls = decls
	m.cacheAt = time.Now()
	return append([]model.ToolDefinition(nil), decls...), nil
}

// Declarations returns the declarations cached by the last Refresh.
func (m *Manager) Declarations() []model.ToolDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ToolDefinition(nil), m.decls...)
}

func (m *Manager) cacheExpiredLocked() bool {
	if m.cacheAt.IsZero() {
		return true
	}
	return m.cacheTTL > 0 && time.Since(m.cacheAt) > m.cacheTTL
}

// CallMCPTool calls toolName on serverName. A tool-level failure reported
// by the server is an error result; transport failures are errors.
func (m *Manager) CallMCPTool(ctx context.Context, serverName, toolName string, args map[string]any) (tool.Result, error) {
	m.mu.Lock()
	srv, ok := m.servers[serverName]
	if !ok {
		m.mu.Unlock()
		return tool.Result{Content: fmt.Sprintf("MCP server %q is not configured", serverName), IsError: true}, nil
	}
	if original, aliased := srv.aliases[toolName]; aliased {
		toolName = original
	}
	session, err := m.sessionLocked(ctx, srv)
	m.mu.Unlock()
	if err != nil {
		return tool.Result{}, err
	}

	callCtx := ctx
	if srv.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, srv.cfg.CallTimeout)
		defer cancel()
	}
	if args == nil {
		args = map[string]any{}
	}
	res, err := session.CallTool(callCtx, &mcp.CallToolParams{Name: toolName, Arguments: args})
	if err != nil {
		return tool.Result{}, fmt.Errorf("mcptools: call %s/%s: %w", serverName, toolName, err)
	}
	return toResult(res), nil
}

func (m *Manager) sessionLocked(ctx context.Context, srv *server) (*mcp.ClientSession, error) {
	if srv.session != nil {
		return srv.session, nil
	}
	transport, err := buildTransport(srv.cfg)
	if err != nil {
		return nil, err
	}
	session, err := srv.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcptools: connect %s: %w", srv.name, err)
	}
	srv.session = session
	return session, nil
}

func buildTransport(cfg ServerConfig) (mcp.Transport, error) {
	switch cfg.Transport {
	case TransportStdio:
		cmd := exec.Command(strings.TrimSpace(cfg.Command), cfg.Args...)
		if dir := strings.TrimSpace(cfg.WorkDir); dir != "" {
			cmd.Dir = dir
		}
		if len(cfg.Env) > 0 {
			env := os.Environ()
			for k, v := range cfg.Env {
				if k = strings.TrimSpace(k); k != "" {
					env = append(env, k+"="+v)
				}
			}
			cmd.Env = env
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	case TransportSSE:
		return &mcp.SSEClientTransport{Endpoint: strings.TrimSpace(cfg.URL)}, nil
	case TransportStreamable:
		return &mcp.StreamableClientTransport{Endpoint: strings.TrimSpace(cfg.URL)}, nil
	default:
		return nil, fmt.Errorf("mcptools: unsupported transport %q", cfg.Transport)
	}
}

func toResult(res *mcp.CallToolResult) tool.Result {
	if res == nil {
		return tool.Result{Content: "(no output)"}
	}
	text := extractText(res.Content)
	if text == "" && res.StructuredContent != nil {
		if raw, err := json.Marshal(res.StructuredContent); err == nil {
			text = string(raw)
		}
	}
	if res.IsError {
		if text == "" {
			text = "MCP tool reported an error without details"
		}
		return tool.Result{Content: text, IsError: true}
	}
	if text == "" {
		text = "(no output)"
	}
	return tool.Result{Content: text}
}

func extractText(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		switch value := c.(type) {
		case *mcp.TextContent:
			if text := strings.TrimSpace(value.Text); text != "" {
				parts = append(parts, text)
			}
		default:
			raw, err := json.Marshal(value)
			if err == nil {
				if text := strings.TrimSpace(string(raw)); text != "" && text != "{}" {
					parts = append(parts, text)
				}
			}
		}
	}
	return strings.Join(parts, "\n")
}

func toolDescription(desc, serverName, original string) string {
	prefix := fmt.Sprintf("[MCP:%s/%s]", serverName, original)
	if desc = strings.TrimSpace(desc); desc == "" {
		return prefix
	}
	return prefix + " " + desc
}

func normalizeSchema(schema any) map[string]any {
	if m, ok := schema.(map[string]any); ok && len(m) > 0 {
		return m
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || len(out) == 0 {
		return map[string]any{"type": "object"}
	}
	return out
}

func nativeName(serverName, part string) string {
	return nativecall.MCPPrefix + serverName + "--" + part
}

// exposedToolPart returns the tool part of the native name, shortened with
// a hash suffix when the full name would exceed provider limits.
func exposedToolPart(serverName, original string) string {
	if len(nativeName(serverName, original)) <= maxNativeName {
		return original
	}
	sum := sha1.Sum([]byte(serverName + "/" + original))
	suffix := hex.EncodeToString(sum[:4])
	room := maxNativeName - len(nativeName(serverName, "")) - len(suffix) - 1
	if room < 1 {
		return suffix
	}
	return strings.Trim(original[:min(room, len(original))], "-_") + "_" + suffix
}
