package router

import (
	"context"

	"github.com/msto63/mdwterm/pkg/terminal/commands"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/licensing"
	"github.com/msto63/mdwterm/pkg/terminal/runtime"
)

// HandlerResult is what the handler produced for a parsed command
type HandlerResult struct {
	Parsed  *commands.ParsedCommand
	License *licensing.CheckResult
	Check   *runtime.CheckResult
	Run     *runtime.RunResult

	// Help is true when the help option bypassed the checker
	Help bool
}

// Handler checks and runs a parsed command
type Handler interface {
	Handle(ctx context.Context, rc *Context, parsed *commands.ParsedCommand, license *licensing.License) (*HandlerResult, error)
}

// HandlerConfig holds the collaborators of a CommandHandler
type HandlerConfig struct {
	Options  Options
	Store    commands.Store
	Resolver runtime.Resolver
	Licenses licensing.Checker
	Help     runtime.HelpProvider

	// Events is optional
	Events EventHandler
}

// CommandHandler checks the license, then either produces help or runs the
// checker followed by the runner bound to the command's descriptor
type CommandHandler struct {
	opts     Options
	store    commands.Store
	resolver runtime.Resolver
	licenses licensing.Checker
	help     runtime.HelpProvider
	events   EventHandler
}

// NewHandler creates a command handler
func NewHandler(cfg HandlerConfig) (*CommandHandler, error) {
	switch {
	case cfg.Store == nil:
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the command store is missing")
	case cfg.Resolver == nil:
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the command resolver is missing")
	case cfg.Licenses == nil:
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the license checker is missing")
	case cfg.Help == nil && cfg.Options.Parser.Help.Enabled:
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the help provider is missing")
	}
	return &CommandHandler{
		opts:     cfg.Options,
		store:    cfg.Store,
		resolver: cfg.Resolver,
		licenses: cfg.Licenses,
		help:     cfg.Help,
		events:   cfg.Events,
	}, nil
}

// Handle implements Handler
func (h *CommandHandler) Handle(ctx context.Context, rc *Context, parsed *commands.ParsedCommand, license *licensing.License) (*HandlerResult, error) {
	if parsed == nil || parsed.Command == nil {
		return nil, terrors.New(terrors.CodeInvalidRequest, "the parsed command is missing")
	}

	usage := licensing.UsageOf(h.store, parsed.Command)
	usage.StrictDataType = h.opts.Parser.StrictDataType || parsed.StrictDataType
	usage.StoreImplementation = h.opts.StoreImplementation
	usage.ServiceImplementation = h.opts.ServiceImplementation
	licResult, err := h.licenses.Check(license, usage)
	if err != nil {
		return nil, err
	}

	rtx := &runtime.Context{
		Route:      rc.Route,
		Parsed:     parsed,
		License:    license,
		Authorized: rc.Authorized,
		Properties: rc.Properties,
	}
	result := &HandlerResult{Parsed: parsed, License: licResult}

	if h.opts.Parser.Help.IsHelp(parsed.Command) {
		result.Help = true
		run, err := h.runHelp(ctx, rtx)
		if err != nil {
			return nil, err
		}
		result.Run = run
		return result, nil
	}

	if err := h.before(ctx, rtx, EventHandler.BeforeCheck); err != nil {
		return nil, err
	}
	checker, err := h.resolver.ResolveChecker(parsed.Command.Descriptor)
	if err != nil {
		return nil, err
	}
	check, err := checker.Check(ctx, rtx)
	if err != nil {
		return nil, err
	}
	result.Check = check
	if h.events != nil {
		if err := h.events.AfterCheck(ctx, rtx, check); err != nil {
			return nil, err
		}
	}

	if err := h.before(ctx, rtx, EventHandler.BeforeRun); err != nil {
		return nil, err
	}
	runner, err := h.resolver.ResolveRunner(parsed.Command.Descriptor)
	if err != nil {
		return nil, err
	}
	run, err := runner.Run(ctx, rtx)
	if err != nil {
		return nil, err
	}
	result.Run = run
	if h.events != nil {
		if err := h.events.AfterRun(ctx, rtx, run); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// runHelp skips the checker. A runner implementing runtime.HelpDelegator
// takes part in producing the help; a command without a runner binding gets
// the help provider's output.
func (h *CommandHandler) runHelp(ctx context.Context, rtx *runtime.Context) (*runtime.RunResult, error) {
	d := rtx.Parsed.Command.Descriptor

	var runner runtime.Runner
	if d.Runner != "" {
		r, err := h.resolver.ResolveRunner(d)
		if err != nil {
			return nil, err
		}
		runner = r
	}

	if err := h.before(ctx, rtx, EventHandler.BeforeRun); err != nil {
		return nil, err
	}

	var run *runtime.RunResult
	var err error
	if delegator, ok := runner.(runtime.HelpDelegator); ok {
		run, err = delegator.DelegateHelp(ctx, rtx, h.help)
	} else {
		run, err = h.help.ProvideHelp(ctx, rtx)
	}
	if err != nil {
		return nil, err
	}

	if h.events != nil {
		if err := h.events.AfterRun(ctx, rtx, run); err != nil {
			return nil, err
		}
	}
	return run, nil
}

func (h *CommandHandler) before(ctx context.Context, rtx *runtime.Context, hook func(EventHandler, context.Context, *runtime.Context) error) error {
	if h.events == nil {
		return nil
	}
	return hook(h.events, ctx, rtx)
}
