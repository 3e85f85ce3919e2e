package launcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUsage is returned when no subcommand was given or help was requested.
var ErrUsage = errors.New("launcher: usage requested")

type router struct {
	program      string
	chosen       SubLauncher
	sublaunchers []SubLauncher
}

// NewRouter returns a Launcher that selects a subcommand by its keyword in
// the first argument.
func NewRouter(program string, sublaunchers ...SubLauncher) Launcher {
	return &router{program: program, sublaunchers: sublaunchers}
}

func (u *router) Execute(ctx context.Context, args []string) error {
	rest, err := u.parse(args)
	if err != nil {
		return err
	}
	if err := ErrorOnUnparsedArgs(rest); err != nil {
		return err
	}
	return u.chosen.Run(ctx)
}

func (u *router) parse(args []string) ([]string, error) {
	byKey := map[string]SubLauncher{}
	for _, one := range u.sublaunchers {
		if one == nil {
			continue
		}
		key := one.Keyword()
		if key == "" {
			return nil, fmt.Errorf("launcher: empty keyword")
		}
		if _, exists := byKey[key]; exists {
			return nil, fmt.Errorf("launcher: duplicate keyword %q", key)
		}
		byKey[key] = one
	}
	if len(byKey) == 0 {
		return nil, fmt.Errorf("launcher: no subcommands configured")
	}
	if len(args) == 0 {
		return nil, ErrUsage
	}
	switch args[0] {
	case "help", "-h", "-help", "--help":
		return nil, ErrUsage
	}
	chosen, ok := byKey[args[0]]
	if !ok {
		return nil, fmt.Errorf("launcher: unknown command %q", args[0])
	}
	u.chosen = chosen
	return chosen.Parse(args[1:])
}

func (u *router) CommandLineSyntax() string {
	var b strings.Builder
	b.WriteString("Usage:\n")
	fmt.Fprintf(&b, "  %s <command> [flags]\n\n", u.program)
	b.WriteString("Commands:\n")
	for _, one := range u.sublaunchers {
		if one == nil {
			continue
		}
		fmt.Fprintf(&b, "  %-8s %s\n", one.Keyword(), one.SimpleDescription())
	}
	for _, one := range u.sublaunchers {
		if one == nil || one.CommandLineSyntax() == "" {
			continue
		}
		fmt.Fprintf(&b, "\n[%s]\n%s\n", one.Keyword(), one.CommandLineSyntax())
	}
	return b.String()
}

// ErrorOnUnparsedArgs rejects arguments a subcommand left unconsumed.
func ErrorOnUnparsedArgs(args []string) error {
	if len(args) == 0 {
		return nil
	}
	return fmt.Errorf("launcher: unparsed args: %v", args)
}
