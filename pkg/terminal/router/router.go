package router

import (
	"context"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/msto63/mdwterm/pkg/terminal/commands"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/licensing"
	"github.com/msto63/mdwterm/pkg/terminal/parser"
)

// TracerName names the tracer used for route spans
const TracerName = "github.com/msto63/mdwterm/pkg/terminal/router"

// Context is the input of one route invocation
type Context struct {
	Route      *commands.CommandRoute
	Authorized bool
	Properties map[string]interface{}
}

// NewContext creates a route context for raw with the given id
func NewContext(id, raw string) *Context {
	return &Context{Route: commands.NewCommandRoute(id, raw)}
}

// Result is the output of one route invocation
type Result struct {
	Route   *commands.CommandRoute
	Handler *HandlerResult
}

// Value returns the run result value, if any
func (r *Result) Value() interface{} {
	if r == nil || r.Handler == nil || r.Handler.Run == nil {
		return nil
	}
	return r.Handler.Run.Value
}

// Router routes a single command
type Router interface {
	Route(ctx context.Context, rc *Context) (*Result, error)
}

// RouterFunc adapts a function to Router
type RouterFunc func(ctx context.Context, rc *Context) (*Result, error)

// Route calls f
func (f RouterFunc) Route(ctx context.Context, rc *Context) (*Result, error) {
	return f(ctx, rc)
}

// Config holds the collaborators of a CommandRouter
type Config struct {
	Options  Options
	Licenses licensing.Extractor
	Parser   parser.Parser
	Handler  Handler

	// Events is optional
	Events EventHandler

	// Tracer defaults to the global tracer provider
	Tracer trace.Tracer
}

// CommandRouter is the routing pipeline. It keeps no state between
// invocations.
type CommandRouter struct {
	opts     Options
	licenses licensing.Extractor
	parser   parser.Parser
	handler  Handler
	events   EventHandler
	tracer   trace.Tracer
}

// New creates a command router
func New(cfg Config) (*CommandRouter, error) {
	switch {
	case cfg.Licenses == nil:
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the license extractor is missing")
	case cfg.Parser == nil:
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the command parser is missing")
	case cfg.Handler == nil:
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the command handler is missing")
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return &CommandRouter{
		opts:     cfg.Options,
		licenses: cfg.Licenses,
		parser:   cfg.Parser,
		handler:  cfg.Handler,
		events:   cfg.Events,
		tracer:   tracer,
	}, nil
}

// Options returns the router options
func (r *CommandRouter) Options() Options {
	return r.opts
}

// Route implements Router. Errors are returned to the caller; the transport
// boundary reports them.
func (r *CommandRouter) Route(ctx context.Context, rc *Context) (result *Result, err error) {
	if rc == nil || rc.Route == nil {
		return nil, terrors.New(terrors.CodeInvalidRequest, "the route context is missing")
	}

	ctx, span := r.tracer.Start(ctx, "terminal.route", trace.WithAttributes(
		attribute.String("terminal.route.id", rc.Route.ID()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(terrors.CodeOf(err)))
		}
		span.End()
	}()

	if r.events != nil {
		defer func() {
			if afterErr := r.events.AfterRoute(ctx, rc, result, err); afterErr != nil && err == nil {
				result, err = nil, afterErr
			}
		}()
	}

	raw := rc.Route.Raw()
	if n := utf8.RuneCountInString(raw); n > r.opts.Router.MaxLength {
		return nil, terrors.New(terrors.CodeInvalidRequest,
			"the command exceeds the maximum length. max=%d current=%d", r.opts.Router.MaxLength, n)
	}

	license, err := r.licenses.Extract(ctx)
	if err != nil {
		if terrors.CodeOf(err) == terrors.CodeUnknown {
			err = terrors.Wrap(err, terrors.CodeUnauthorizedAccess, "failed to extract the license")
		}
		return nil, err
	}

	if r.events != nil {
		if err := r.events.BeforeRoute(ctx, rc); err != nil {
			return nil, err
		}
	}

	parseCtx := ctx
	if license != nil && license.Limits.StrictDataType {
		parseCtx = parser.WithStrictDataType(ctx)
	}
	parsed, err := r.parser.Extract(parseCtx, rc.Route)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("terminal.command.id", parsed.Command.ID()))

	handled, err := r.handler.Handle(ctx, rc, parsed, license)
	if err != nil {
		return nil, err
	}
	return &Result{Route: rc.Route, Handler: handled}, nil
}
