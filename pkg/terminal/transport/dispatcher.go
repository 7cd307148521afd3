package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/msto63/mdwterm/pkg/core/logging"
	"github.com/msto63/mdwterm/pkg/terminal/commands"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/router"
)

var dispatchLogger = logging.New("terminal-dispatcher")

// Peer describes where a request came from
type Peer struct {
	Transport string
	Address   string
}

type peerKey struct{}

// WithPeer attaches the request origin to ctx
func WithPeer(ctx context.Context, p Peer) context.Context {
	return context.WithValue(ctx, peerKey{}, p)
}

// PeerFromContext returns the request origin, if any
func PeerFromContext(ctx context.Context) (Peer, bool) {
	p, ok := ctx.Value(peerKey{}).(Peer)
	return p, ok
}

// Authorizer decides whether requests from ctx may use protected commands
type Authorizer func(ctx context.Context) bool

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithAuthorizer sets the authorizer, by default nothing is authorized
func WithAuthorizer(a Authorizer) DispatcherOption {
	return func(d *Dispatcher) { d.authorize = a }
}

// Dispatcher is the transport boundary: it routes each request under the
// route timeout, reports failures to the exception handler and converts the
// outcome into a response
type Dispatcher struct {
	router     router.Router
	exceptions router.ExceptionHandler
	timeout    time.Duration
	authorize  Authorizer
}

// NewDispatcher creates a dispatcher. A nil exception handler logs failures.
func NewDispatcher(r router.Router, exceptions router.ExceptionHandler, opts router.RouterOptions, options ...DispatcherOption) *Dispatcher {
	if exceptions == nil {
		exceptions = router.NewLoggingExceptionHandler()
	}
	d := &Dispatcher{
		router:     r,
		exceptions: exceptions,
		timeout:    opts.Timeout,
		authorize:  func(context.Context) bool { return false },
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

type outcome struct {
	result *router.Result
	err    error
}

// DispatchRequest routes one request. It always returns a response; a
// failure is reported to the exception handler exactly once.
func (d *Dispatcher) DispatchRequest(ctx context.Context, req TerminalRequest) TerminalRequest {
	start := time.Now()
	rc := router.NewContext(req.ID, req.Raw)
	rc.Authorized = d.authorize(ctx)
	if peer, ok := PeerFromContext(ctx); ok {
		rc.Properties = map[string]interface{}{
			"transport":   peer.Transport,
			"remote_addr": peer.Address,
		}
	}

	var cancel context.CancelFunc
	rctx := ctx
	if d.timeout > 0 {
		rctx, cancel = context.WithTimeout(ctx, d.timeout)
	} else {
		rctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: terrors.New(terrors.CodeServerError, "panic while routing: %v", p)}
			}
		}()
		result, err := d.router.Route(rctx, rc)
		done <- outcome{result: result, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-rctx.Done():
		out = outcome{err: terrors.FromContext(rctx.Err())}
	}

	if out.err != nil {
		return d.fail(ctx, out.err, rc.Route)
	}
	dispatchLogger.Debug("Request routed", "route_id", rc.Route.ID(), "duration", time.Since(start).String())
	return TerminalRequest{ID: rc.Route.ID(), Raw: rc.Route.Raw(), Result: out.result.Value()}
}

// Dispatch routes every request of in, one after the other, in order
func (d *Dispatcher) Dispatch(ctx context.Context, in TerminalInput) TerminalOutput {
	out := TerminalOutput{BatchID: in.BatchID, Requests: make([]TerminalRequest, 0, len(in.Requests))}
	for _, req := range in.Requests {
		out.Requests = append(out.Requests, d.DispatchRequest(ctx, req))
	}
	return out
}

// Fail reports a failure that happened before any request could be routed,
// such as a malformed message, and returns the response for it
func (d *Dispatcher) Fail(ctx context.Context, err error) TerminalOutput {
	return TerminalOutput{Requests: []TerminalRequest{d.fail(ctx, err, nil)}}
}

func (d *Dispatcher) fail(ctx context.Context, err error, route *commands.CommandRoute) TerminalRequest {
	e := terrors.Normalize(err)
	d.exceptions.Handle(ctx, e, route)

	resp := TerminalRequest{IsError: true, Result: &ErrorResult{Error: string(e.Code()), Description: e.Error()}}
	if route != nil {
		resp.ID, resp.Raw = route.ID(), route.Raw()
	}
	return resp
}

// Summary renders an output in one line per request for logs and consoles
func Summary(out TerminalOutput) []string {
	lines := make([]string, 0, len(out.Requests))
	for _, req := range out.Requests {
		if e, ok := ErrorOf(req); ok {
			lines = append(lines, fmt.Sprintf("%s: %s %s", req.ID, e.Error, e.Description))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %v", req.ID, req.Result))
	}
	return lines
}
