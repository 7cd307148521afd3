// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     runtime
// Description: Checker and runner contracts, their registry and built-ins
// License:     MIT
// ============================================================================

// Package runtime defines how a parsed command is checked and run. Checkers
// and runners are bound per descriptor by name and resolved through a
// Registry.
package runtime

import (
	"context"

	"github.com/msto63/mdwterm/pkg/terminal/commands"
	"github.com/msto63/mdwterm/pkg/terminal/licensing"
)

// Context carries one command invocation through check and run
type Context struct {
	Route      *commands.CommandRoute
	Parsed     *commands.ParsedCommand
	License    *licensing.License
	Authorized bool
	Properties map[string]interface{}
}

// Command returns the parsed command
func (c *Context) Command() *commands.Command {
	if c == nil || c.Parsed == nil {
		return nil
	}
	return c.Parsed.Command
}

// CheckResult is the outcome of a successful check
type CheckResult struct {
	Warnings []string
}

// RunResult is the outcome of a run. Value is passed to the transport as is.
type RunResult struct {
	Value interface{}
}

// Checker validates a command before it runs
type Checker interface {
	Check(ctx context.Context, c *Context) (*CheckResult, error)
}

// Runner executes a checked command
type Runner interface {
	Run(ctx context.Context, c *Context) (*RunResult, error)
}

// HelpProvider produces help for a command
type HelpProvider interface {
	ProvideHelp(ctx context.Context, c *Context) (*RunResult, error)
}

// HelpDelegator is implemented by runners that take part in producing help.
// Runners without it get the help provider's output directly.
type HelpDelegator interface {
	DelegateHelp(ctx context.Context, c *Context, help HelpProvider) (*RunResult, error)
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context, c *Context) (*CheckResult, error)

// Check calls f
func (f CheckerFunc) Check(ctx context.Context, c *Context) (*CheckResult, error) {
	return f(ctx, c)
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, c *Context) (*RunResult, error)

// Run calls f
func (f RunnerFunc) Run(ctx context.Context, c *Context) (*RunResult, error) {
	return f(ctx, c)
}

// HelpProviderFunc adapts a function to HelpProvider
type HelpProviderFunc func(ctx context.Context, c *Context) (*RunResult, error)

// ProvideHelp calls f
func (f HelpProviderFunc) ProvideHelp(ctx context.Context, c *Context) (*RunResult, error) {
	return f(ctx, c)
}
