package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OnslaughtSnail/agenthost/kernel/tool"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

const (
	defaultCommandTimeout = 90 * time.Second
	defaultCommandIdle    = 45 * time.Second
	maxCommandOutput      = 32 << 10
)

var errIdleTimeout = errors.New("idle timeout")

// CommandConfig configures execute_command.
type CommandConfig struct {
	Timeout     time.Duration
	IdleTimeout time.Duration
	// Shell runs the command as Shell -c COMMAND. Defaults to bash, then sh.
	Shell string
}

type commandArgs struct {
	Command string `json:"command" desc:"Shell command to run."`
	Cwd     string `json:"cwd,omitempty" desc:"Working directory relative to the workspace."`
}

// CommandTool returns execute_command bound to w.
func (w *Workspace) CommandTool(cfg CommandConfig) (tool.Tool, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCommandTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultCommandIdle
	}
	if cfg.Shell == "" {
		cfg.Shell = "sh"
		if path, err := exec.LookPath("bash"); err == nil {
			cfg.Shell = path
		}
	}
	return tool.NewFunction(toolvocab.ToolExecuteCommand,
		"Run a shell command in the workspace and return its combined output and exit code.",
		func(ctx context.Context, args commandArgs) (string, error) {
			return w.execute(ctx, cfg, args)
		})
}

func (w *Workspace) execute(ctx context.Context, cfg CommandConfig, args commandArgs) (string, error) {
	command := strings.TrimSpace(args.Command)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}
	dir := w.root
	if strings.TrimSpace(args.Cwd) != "" {
		resolved, err := w.Resolve(args.Cwd)
		if err != nil {
			return "", err
		}
		dir = resolved
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	cmd := exec.CommandContext(runCtx, cfg.Shell, "-c", command)
	cmd.Dir = dir
	// Background children may hold the output pipe after the shell exits.
	cmd.WaitDelay = time.Second
	cmd.Env = append(os.Environ(),
		"CI=1",
		"TERM=dumb",
		"GIT_TERMINAL_PROMPT=0",
		"PAGER=cat",
		"NO_COLOR=1",
	)
	out := &activityBuffer{}
	out.touch()
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("command start failed: %w", err)
	}
	err := waitWithIdleTimeout(runCtx, cmd, cfg.IdleTimeout, out)

	text := truncateOutput(out.String())
	switch {
	case err == nil:
		return formatCommandResult(command, 0, text), nil
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("command timed out after %s\n%s", cfg.Timeout, text)
	case errors.Is(err, errIdleTimeout):
		return "", fmt.Errorf("command produced no output for %s and was terminated\n%s", cfg.IdleTimeout, text)
	case ctx.Err() != nil:
		return "", ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return formatCommandResult(command, exitErr.ExitCode(), text), nil
	}
	return "", fmt.Errorf("command failed: %w", err)
}

func formatCommandResult(command string, code int, output string) string {
	if strings.TrimSpace(output) == "" {
		output = "(no output)"
	}
	return fmt.Sprintf("Command: %s\nExit code: %d\nOutput:\n%s", command, code, output)
}

func truncateOutput(s string) string {
	if len(s) <= maxCommandOutput {
		return s
	}
	return s[:maxCommandOutput] + fmt.Sprintf("\n... output truncated (%d bytes total)", len(s))
}

func waitWithIdleTimeout(ctx context.Context, cmd *exec.Cmd, idle time.Duration, out *activityBuffer) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	tick := idle / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
			if time.Since(out.last()) > idle {
				_ = cmd.Process.Kill()
				<-done
				return errIdleTimeout
			}
		case <-ctx.Done():
			// CommandContext kills the process; Wait reports it.
			return <-done
		}
	}
}

// activityBuffer collects output and records when it last grew.
type activityBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	lastNano atomic.Int64
}

func (b *activityBuffer) Write(p []byte) (int, error) {
	b.touch()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *activityBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *activityBuffer) touch() {
	b.lastNano.Store(time.Now().UnixNano())
}

func (b *activityBuffer) last() time.Time {
	return time.Unix(0, b.lastNano.Load())
}
