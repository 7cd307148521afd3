package router

import (
	"context"

	"github.com/msto63/mdwterm/pkg/terminal/runtime"
)

// EventHandler receives the pipeline events. Every hook is awaited; an error
// aborts the current request only.
type EventHandler interface {
	BeforeRoute(ctx context.Context, rc *Context) error
	AfterRoute(ctx context.Context, rc *Context, result *Result, routeErr error) error
	BeforeCheck(ctx context.Context, c *runtime.Context) error
	AfterCheck(ctx context.Context, c *runtime.Context, result *runtime.CheckResult) error
	BeforeRun(ctx context.Context, c *runtime.Context) error
	AfterRun(ctx context.Context, c *runtime.Context, result *runtime.RunResult) error
}

// NopEvents implements EventHandler with no-ops. Embed it to handle only
// some events.
type NopEvents struct{}

func (NopEvents) BeforeRoute(context.Context, *Context) error                { return nil }
func (NopEvents) AfterRoute(context.Context, *Context, *Result, error) error { return nil }
func (NopEvents) BeforeCheck(context.Context, *runtime.Context) error        { return nil }
func (NopEvents) AfterCheck(context.Context, *runtime.Context, *runtime.CheckResult) error {
	return nil
}
func (NopEvents) BeforeRun(context.Context, *runtime.Context) error                   { return nil }
func (NopEvents) AfterRun(context.Context, *runtime.Context, *runtime.RunResult) error { return nil }

// ChainEvents calls handlers in order and stops at the first error. Nil
// handlers are skipped; nil is returned when none remain.
func ChainEvents(handlers ...EventHandler) EventHandler {
	var chain eventChain
	for _, h := range handlers {
		if h != nil {
			chain = append(chain, h)
		}
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	}
	return chain
}

type eventChain []EventHandler

func (c eventChain) each(fn func(EventHandler) error) error {
	for _, h := range c {
		if err := fn(h); err != nil {
			return err
		}
	}
	return nil
}

func (c eventChain) BeforeRoute(ctx context.Context, rc *Context) error {
	return c.each(func(h EventHandler) error { return h.BeforeRoute(ctx, rc) })
}

func (c eventChain) AfterRoute(ctx context.Context, rc *Context, result *Result, routeErr error) error {
	return c.each(func(h EventHandler) error { return h.AfterRoute(ctx, rc, result, routeErr) })
}

func (c eventChain) BeforeCheck(ctx context.Context, rtx *runtime.Context) error {
	return c.each(func(h EventHandler) error { return h.BeforeCheck(ctx, rtx) })
}

func (c eventChain) AfterCheck(ctx context.Context, rtx *runtime.Context, result *runtime.CheckResult) error {
	return c.each(func(h EventHandler) error { return h.AfterCheck(ctx, rtx, result) })
}

func (c eventChain) BeforeRun(ctx context.Context, rtx *runtime.Context) error {
	return c.each(func(h EventHandler) error { return h.BeforeRun(ctx, rtx) })
}

func (c eventChain) AfterRun(ctx context.Context, rtx *runtime.Context, result *runtime.RunResult) error {
	return c.each(func(h EventHandler) error { return h.AfterRun(ctx, rtx, result) })
}
