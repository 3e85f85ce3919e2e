package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/OnslaughtSnail/agenthost/cmd/launcher"
	"github.com/OnslaughtSnail/agenthost/internal/config"
	"github.com/OnslaughtSnail/agenthost/internal/envload"
	"github.com/OnslaughtSnail/agenthost/internal/version"
)

const programName = "agenthost"

// cliEnv carries process-wide dependencies into each subcommand.
type cliEnv struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	cfg    config.Config
	log    *logrus.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := envload.LoadNearest(); err != nil {
		exitErr(err)
	}
	cfg, err := config.Load()
	if err != nil {
		exitErr(err)
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(cfg.LogLevel)

	env := &cliEnv{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, cfg: cfg, log: log}
	l := newLauncher(env)
	if err := l.Execute(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, launcher.ErrUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(os.Stderr, l.CommandLineSyntax())
			os.Exit(2)
		}
		exitErr(err)
	}
}

func newLauncher(env *cliEnv) launcher.Launcher {
	return launcher.NewRouter(programName,
		launcher.NewCommand("parse", "parse assistant output from a file or stdin",
			"  parse [-chunk N] [-batch] [-json] [-trace] FILE|-", env.runParse),
		launcher.NewCommand("feed", "feed lines interactively as stream chunks",
			"  feed [-plain]   (:done finalizes, :reset clears, :quit exits)", env.runFeed),
		launcher.NewCommand("replay", "re-parse stored assistant messages",
			"  replay [-db PATH] [-task ID] [-json]   (no -task lists tasks)", env.runReplay),
		launcher.NewCommand("run", "run a task against a model with workspace tools",
			"  run [-task ID] [-workspace DIR] [-write] [-yes] [-protocol xml|native] PROMPT...", env.runTask),
		launcher.NewCommand("version", "print version", "", func(context.Context, []string) error {
			fmt.Fprintln(env.stdout, version.String())
			return nil
		}),
	)
}

// newFlagSet registers the flags every subcommand shares.
func (e *cliEnv) newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	level := fs.String("log-level", e.cfg.LogLevel.String(), "Log level: debug|info|warn|error")
	return fs, level
}

func (e *cliEnv) applyLogLevel(value string) error {
	level, err := logrus.ParseLevel(value)
	if err != nil {
		return fmt.Errorf("cli: -log-level: %w", err)
	}
	e.log.SetLevel(level)
	return nil
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
