package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/OnslaughtSnail/agenthost/internal/config"
	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
	"github.com/OnslaughtSnail/agenthost/kernel/errcode"
	"github.com/OnslaughtSnail/agenthost/kernel/model/providers"
	"github.com/OnslaughtSnail/agenthost/kernel/streaming"
	"github.com/OnslaughtSnail/agenthost/kernel/tool"
	"github.com/OnslaughtSnail/agenthost/kernel/tool/builtin"
	"github.com/OnslaughtSnail/agenthost/kernel/tool/mcptools"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
	"github.com/OnslaughtSnail/agenthost/kernel/turn"
)

const defaultSystemPrompt = `You are a coding assistant working inside a local workspace.
Use one tool per message by writing it as XML, for example:
<read_file>
<path>main.go</path>
</read_file>
Available tools: %s.
When the task is done, call attempt_completion with a <result>.`

const modelAlias = "main"

func (e *cliEnv) runTask(ctx context.Context, args []string) error {
	fs, level := e.newFlagSet("run")
	var (
		taskID    = fs.String("task", "", "Task id (default: new task)")
		dbPath    = fs.String("db", e.cfg.HistoryDB, "History sqlite file (jsonl: directory named without the extension)")
		backend   = fs.String("store", string(e.cfg.HistoryBackend), "History backend: sqlite|jsonl")
		workspace = fs.String("workspace", ".", "Workspace directory for file tools")
		writable  = fs.Bool("write", false, "Enable write_to_file")
		allowExec = fs.Bool("exec", false, "Enable execute_command")
		autoYes   = fs.Bool("yes", false, "Approve every tool without asking")
		protocol  = fs.String("protocol", string(e.cfg.Protocol), "Tool protocol: xml|native")
		maxTurns  = fs.Int("max-turns", e.cfg.MaxTurns, "Maximum model turns")
		api       = fs.String("api", string(e.cfg.Model.API), "Provider api: openai|openai_compatible|anthropic|gemini|deepseek")
		modelName = fs.String("model", e.cfg.Model.Model, "Model name")
		baseURL   = fs.String("base-url", e.cfg.Model.BaseURL, "Provider base URL")
		tokenEnv  = fs.String("token-env", "", "Env var holding the API key (default by api)")
		system    = fs.String("system", "", "System prompt override")
		plain     = fs.Bool("plain", false, "Disable colors")
		mcpConfig = fs.String("mcp-config", mcptools.DefaultConfigPath, "MCP servers JSON file (missing file disables MCP)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.applyLogLevel(*level); err != nil {
		return err
	}
	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return fmt.Errorf("run: a prompt is required")
	}
	proto, err := turn.ParseProtocol(*protocol)
	if err != nil {
		return err
	}

	mc := e.cfg.Model
	mc.API = providers.APIType(strings.ToLower(strings.TrimSpace(*api)))
	mc.Model = *modelName
	mc.BaseURL = *baseURL
	if *tokenEnv != "" {
		mc.TokenEnv = *tokenEnv
	} else if *api != string(e.cfg.Model.API) {
		mc.TokenEnv = config.DefaultTokenEnv(mc.API)
	}
	if strings.TrimSpace(mc.Model) == "" {
		return fmt.Errorf("run: -model is required")
	}
	factory := providers.NewFactory()
	if err := factory.Register(mc.ProviderConfig(modelAlias)); err != nil {
		return err
	}
	llm, err := factory.NewByAlias(modelAlias)
	if err != nil {
		return err
	}

	ws, err := builtin.NewWorkspace(*workspace)
	if err != nil {
		return err
	}
	tools, err := ws.Tools(*writable)
	if err != nil {
		return err
	}
	if *allowExec {
		cmdTool, err := ws.CommandTool(builtin.CommandConfig{})
		if err != nil {
			return err
		}
		tools = append(tools, cmdTool)
	}
	printer := newBlockPrinter(e.stdout, *plain)
	var opts []tool.RegistryOption
	if !*autoYes {
		editor := newLineEditor(lineEditorConfig{In: e.stdin, Out: e.stdout})
		defer editor.Close()
		opts = append(opts, tool.WithApprover(&consoleApprover{editor: editor, printer: printer}))
	}
	mcpManager, err := e.loadMCP(ctx, *mcpConfig)
	if err != nil {
		return err
	}
	if mcpManager != nil {
		defer mcpManager.Close()
		opts = append(opts, tool.WithMCPHandler(mcpManager))
	}
	registry, err := tool.NewRegistry(tools, opts...)
	if err != nil {
		return err
	}

	store, closeStore, err := openHistory(ctx, *backend, *dbPath)
	if err != nil {
		return err
	}
	defer closeStore()

	systemPrompt := *system
	if systemPrompt == "" {
		names := registry.Names()
		if mcpManager != nil {
			names = append(names, fmt.Sprintf("%s (servers: %s)", toolvocab.ToolUseMCPTool, strings.Join(mcpManager.ServerNames(), ", ")))
		}
		systemPrompt = fmt.Sprintf(defaultSystemPrompt, strings.Join(names, ", "))
	}
	runner, err := turn.New(turn.Config{
		TaskID:            *taskID,
		Model:             llm,
		Tools:             &reportingTools{Toolset: registry, printer: printer},
		Sink:              &streamSink{out: e.stdout},
		History:           store,
		Protocol:          proto,
		Limits:            e.cfg.Limits,
		OneToolPerMessage: e.cfg.OneToolPerMessage,
		System:            systemPrompt,
		MaxTokens:         mc.MaxTokens,
		Logger:            e.log,
	})
	if err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{
		"task_id":   runner.TaskID(),
		"model":     llm.Name(),
		"protocol":  proto,
		"workspace": ws.Root(),
	}).Info("run: starting")

	res, err := runner.Loop(ctx, prompt, *maxTurns)
	fmt.Fprintln(e.stdout)
	if res != nil && res.Completion != nil {
		printer.tool.Fprintln(e.stdout, "Task completed:")
		fmt.Fprintln(e.stdout, *res.Completion)
	}
	printer.dim.Fprintf(e.stdout, "task %s (replay with: %s replay -task %s)\n", runner.TaskID(), programName, runner.TaskID())
	if errcode.Retryable(err) {
		printer.dim.Fprintf(e.stdout, "the turn can be retried: %s run -task %s\n", programName, runner.TaskID())
	}
	return err
}

// loadMCP connects the configured MCP servers. Servers that cannot list
// their tools are reported and left out of the declarations.
func (e *cliEnv) loadMCP(ctx context.Context, path string) (*mcptools.Manager, error) {
	cfg, ok, err := mcptools.LoadConfig(path)
	if err != nil || !ok {
		return nil, err
	}
	m, err := mcptools.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	decls, err := m.Refresh(ctx)
	if err != nil {
		e.log.WithError(err).Warn("mcp: list tools failed")
		return m, nil
	}
	e.log.WithFields(logrus.Fields{
		"servers": strings.Join(m.ServerNames(), ","),
		"tools":   len(decls),
	}).Info("mcp: tools loaded")
	return m, nil
}

// streamSink prints text blocks as they grow. Partial text is reported
// whole each time, so only the unseen suffix is written.
type streamSink struct {
	mu      sync.Mutex
	out     io.Writer
	index   int
	printed string
	started bool
}

func (s *streamSink) PresentText(_ context.Context, index int, b assistantmsg.TextBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || index != s.index {
		if s.started {
			fmt.Fprintln(s.out)
		}
		s.started = true
		s.index = index
		s.printed = ""
	}
	if rest, ok := strings.CutPrefix(b.Content, s.printed); ok {
		fmt.Fprint(s.out, rest)
	} else {
		fmt.Fprint(s.out, "\n"+b.Content)
	}
	s.printed = b.Content
	return nil
}

// reportingTools prints each tool call and its outcome around the registry.
type reportingTools struct {
	turn.Toolset
	printer *blockPrinter
}

func (r *reportingTools) ExecuteTool(ctx context.Context, block assistantmsg.Block) (streaming.Outcome, error) {
	fmt.Fprintln(r.printer.out)
	r.printer.printBlock(-1, block)
	out, err := r.Toolset.ExecuteTool(ctx, block)
	if err != nil {
		return out, err
	}
	r.printer.printToolResult(streaming.ToolResult{
		ToolName: streaming.ToolLabel(block),
		Content:  out.Content,
		IsError:  out.IsError,
		Skipped:  out.Rejected,
	})
	return out, nil
}

// consoleApprover asks before tools with side effects run.
type consoleApprover struct {
	editor  lineEditor
	printer *blockPrinter
}

func (a *consoleApprover) Approve(_ context.Context, block assistantmsg.Block) (bool, error) {
	if b, ok := block.(assistantmsg.ToolUseBlock); ok && !toolvocab.HasSideEffects(b.Name) {
		return true, nil
	}
	line, err := a.editor.ReadLine(fmt.Sprintf("allow %s? [y/N] ", streaming.ToolLabel(block)))
	if err != nil {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
