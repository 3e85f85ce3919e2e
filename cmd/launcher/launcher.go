// Package launcher routes a command line to one of several subcommands.
package launcher

import (
	"context"
	"fmt"
)

// RunWithArgs runs a subcommand with the arguments after its keyword.
type RunWithArgs func(context.Context, []string) error

// Launcher routes args and starts the selected subcommand.
type Launcher interface {
	Execute(context.Context, []string) error
	CommandLineSyntax() string
}

// SubLauncher is one runnable subcommand.
type SubLauncher interface {
	Keyword() string
	Parse([]string) ([]string, error)
	CommandLineSyntax() string
	SimpleDescription() string
	Run(context.Context) error
}

type command struct {
	keyword     string
	description string
	syntax      string
	run         RunWithArgs
	args        []string
}

// NewCommand wraps run as a subcommand that receives every remaining arg.
func NewCommand(keyword, description, syntax string, run RunWithArgs) SubLauncher {
	return &command{keyword: keyword, description: description, syntax: syntax, run: run}
}

func (c *command) Keyword() string {
	return c.keyword
}

func (c *command) Parse(args []string) ([]string, error) {
	c.args = append([]string(nil), args...)
	return nil, nil
}

func (c *command) CommandLineSyntax() string {
	return c.syntax
}

func (c *command) SimpleDescription() string {
	return c.description
}

func (c *command) Run(ctx context.Context) error {
	if c.run == nil {
		return fmt.Errorf("launcher(%s): run function is nil", c.keyword)
	}
	return c.run(ctx, c.args)
}
