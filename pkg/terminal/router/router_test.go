package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msto63/mdwterm/pkg/terminal/commands"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/licensing"
	"github.com/msto63/mdwterm/pkg/terminal/parser"
	"github.com/msto63/mdwterm/pkg/terminal/runtime"
)

type countingExtractor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *countingExtractor) Extract(ctx context.Context) (*licensing.License, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return &licensing.License{Plan: "test"}, nil
}

type countingParser struct {
	inner parser.Parser
	calls int
}

func (p *countingParser) Extract(ctx context.Context, route *commands.CommandRoute) (*commands.ParsedCommand, error) {
	p.calls++
	return p.inner.Extract(ctx, route)
}

type countingChecker struct {
	calls int
	err   error
}

func (c *countingChecker) Check(ctx context.Context, rc *runtime.Context) (*runtime.CheckResult, error) {
	c.calls++
	return &runtime.CheckResult{}, c.err
}

// helpRunner runs commands and takes part in help
type helpRunner struct {
	runs      int
	helpCalls int
	err       error
}

func (r *helpRunner) Run(ctx context.Context, c *runtime.Context) (*runtime.RunResult, error) {
	r.runs++
	if r.err != nil {
		return nil, r.err
	}
	return &runtime.RunResult{Value: "ran " + c.Command().ID()}, nil
}

func (r *helpRunner) DelegateHelp(ctx context.Context, c *runtime.Context, help runtime.HelpProvider) (*runtime.RunResult, error) {
	r.helpCalls++
	result, err := help.ProvideHelp(ctx, c)
	if err != nil {
		return nil, err
	}
	return &runtime.RunResult{Value: "custom " + result.Value.(string)}, nil
}

// recorder records the order of pipeline events
type recorder struct {
	mu     sync.Mutex
	events []string
	fail   string

	afterRouteErr error
}

func (r *recorder) record(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
	if r.fail == name {
		return errors.New(name + " failed")
	}
	return nil
}

func (r *recorder) BeforeRoute(ctx context.Context, rc *Context) error { return r.record("before_route") }
func (r *recorder) AfterRoute(ctx context.Context, rc *Context, result *Result, routeErr error) error {
	r.mu.Lock()
	r.afterRouteErr = routeErr
	r.mu.Unlock()
	return r.record("after_route")
}
func (r *recorder) BeforeCheck(ctx context.Context, c *runtime.Context) error {
	return r.record("before_check")
}
func (r *recorder) AfterCheck(ctx context.Context, c *runtime.Context, result *runtime.CheckResult) error {
	return r.record("after_check")
}
func (r *recorder) BeforeRun(ctx context.Context, c *runtime.Context) error {
	return r.record("before_run")
}
func (r *recorder) AfterRun(ctx context.Context, c *runtime.Context, result *runtime.RunResult) error {
	return r.record("after_run")
}

type harness struct {
	router    *CommandRouter
	licenses  *countingExtractor
	parser    *countingParser
	checker   *countingChecker
	runner    *helpRunner
	events    *recorder
	licChecks licensing.Checker
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()

	opts, err := commands.NewOptionDescriptors(nil, &commands.OptionDescriptor{ID: "name", Alias: "n"})
	require.NoError(t, err)
	store, err := commands.NewImmutableStore(nil,
		&commands.Descriptor{ID: "pi", Type: commands.TypeRoot},
		&commands.Descriptor{ID: "math", Type: commands.TypeGroup, OwnerIDs: []string{"pi"}},
		&commands.Descriptor{ID: "add", Type: commands.TypeSubCommand, OwnerIDs: []string{"math"}, Options: opts, Checker: "counting", Runner: "help-runner"},
		&commands.Descriptor{ID: "unbound", Type: commands.TypeNativeCommand, Checker: "counting"},
	)
	require.NoError(t, err)

	options := DefaultOptions()
	options.Router.MaxLength = 40
	if mutate != nil {
		mutate(&options)
	}

	p, err := parser.New(store, options.Parser)
	require.NoError(t, err)

	h := &harness{
		licenses:  &countingExtractor{},
		parser:    &countingParser{inner: p},
		checker:   &countingChecker{},
		runner:    &helpRunner{},
		events:    &recorder{},
		licChecks: licensing.NewLimitChecker(),
	}

	registry := runtime.NewRegistry()
	require.NoError(t, registry.RegisterChecker("counting", h.checker))
	require.NoError(t, registry.RegisterRunner("help-runner", h.runner))

	handler, err := NewHandler(HandlerConfig{
		Options:  options,
		Store:    store,
		Resolver: registry,
		Licenses: h.licChecks,
		Help:     runtime.DescriptorHelpProvider{Store: store, Text: options.Parser.Text, Help: options.Parser.Help},
		Events:   h.events,
	})
	require.NoError(t, err)

	h.router, err = New(Config{
		Options:  options,
		Licenses: h.licenses,
		Parser:   h.parser,
		Handler:  handler,
		Events:   h.events,
	})
	require.NoError(t, err)
	return h
}

func TestRoute_CheckThenRun(t *testing.T) {
	h := newHarness(t, nil)

	result, err := h.router.Route(context.Background(), NewContext("r1", "pi math add --name x"))
	require.NoError(t, err)

	assert.Equal(t, "r1", result.Route.ID())
	assert.Equal(t, "ran add", result.Value())
	assert.False(t, result.Handler.Help)
	assert.Equal(t, 1, h.checker.calls)
	assert.Equal(t, 1, h.runner.runs)
	assert.Equal(t, []string{
		"before_route", "before_check", "after_check", "before_run", "after_run", "after_route",
	}, h.events.events)
}

func TestRoute_HelpBypassesChecker(t *testing.T) {
	h := newHarness(t, nil)

	for _, raw := range []string{"pi math add --help", "pi math add -h"} {
		result, err := h.router.Route(context.Background(), NewContext("", raw))
		require.NoError(t, err)
		assert.True(t, result.Handler.Help)
		assert.True(t, strings.HasPrefix(result.Value().(string), "custom pi math add"))
	}

	assert.Equal(t, 0, h.checker.calls)
	assert.Equal(t, 0, h.runner.runs)
	assert.Equal(t, 2, h.runner.helpCalls)
	assert.NotContains(t, h.events.events, "before_check")
	assert.NotContains(t, h.events.events, "after_check")
	assert.Contains(t, h.events.events, "before_run")
	assert.Contains(t, h.events.events, "after_run")
}

func TestRoute_HelpWithoutRunner(t *testing.T) {
	h := newHarness(t, nil)

	result, err := h.router.Route(context.Background(), NewContext("", "pi math --help"))
	require.NoError(t, err)
	assert.Contains(t, result.Value(), "Commands:")
	assert.Equal(t, 0, h.checker.calls)
	assert.Equal(t, 0, h.runner.helpCalls)
}

func TestRoute_HelpDisabled(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Parser.Help.Enabled = false })

	_, err := h.router.Route(context.Background(), NewContext("", "pi math add --help"))
	assert.True(t, terrors.HasCode(err, terrors.CodeInvalidOption))
}

func TestRoute_LengthLimitBeforeLicenseAndParse(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.router.Route(context.Background(), NewContext("", "pi math add --name "+strings.Repeat("x", 40)))
	require.Error(t, err)
	assert.True(t, terrors.HasCode(err, terrors.CodeInvalidRequest))
	assert.Contains(t, err.Error(), "max=40")

	assert.Equal(t, 0, h.licenses.calls)
	assert.Equal(t, 0, h.parser.calls)
	assert.Equal(t, []string{"after_route"}, h.events.events)
}

func TestRoute_LengthCountsCharacters(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Router.MaxLength = 24 })

	// 24 characters, more than 24 bytes
	_, err := h.router.Route(context.Background(), NewContext("", "pi math add --name äöüäö"))
	require.NoError(t, err)
}

func TestRoute_AfterRouteAlwaysFires(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.router.Route(context.Background(), NewContext("", "pi nope"))
	require.Error(t, err)
	assert.Equal(t, []string{"before_route", "after_route"}, h.events.events)
	assert.Equal(t, err, h.events.afterRouteErr)
}

func TestRoute_EventErrorAborts(t *testing.T) {
	h := newHarness(t, nil)
	h.events.fail = "before_route"

	_, err := h.router.Route(context.Background(), NewContext("", "pi math add"))
	require.Error(t, err)
	assert.Equal(t, 0, h.parser.calls)

	h = newHarness(t, nil)
	h.events.fail = "after_check"
	_, err = h.router.Route(context.Background(), NewContext("", "pi math add"))
	require.Error(t, err)
	assert.Equal(t, 0, h.runner.runs)

	h = newHarness(t, nil)
	h.events.fail = "after_route"
	_, err = h.router.Route(context.Background(), NewContext("", "pi math add"))
	require.Error(t, err)
	assert.Equal(t, 1, h.runner.runs)
}

func TestRoute_Failures(t *testing.T) {
	h := newHarness(t, nil)
	h.licenses.err = errors.New("license server down")
	_, err := h.router.Route(context.Background(), NewContext("", "pi math add"))
	assert.True(t, terrors.HasCode(err, terrors.CodeUnauthorizedAccess))
	assert.Equal(t, 0, h.parser.calls)

	h = newHarness(t, nil)
	h.checker.err = terrors.New(terrors.CodeMissingOption, "missing")
	_, err = h.router.Route(context.Background(), NewContext("", "pi math add"))
	assert.True(t, terrors.HasCode(err, terrors.CodeMissingOption))
	assert.Equal(t, 0, h.runner.runs)
	assert.NotContains(t, h.events.events, "after_check")

	h = newHarness(t, nil)
	h.runner.err = errors.New("boom")
	_, err = h.router.Route(context.Background(), NewContext("", "pi math add"))
	assert.EqualError(t, err, "boom")
	assert.NotContains(t, h.events.events, "after_run")

	h = newHarness(t, nil)
	_, err = h.router.Route(context.Background(), NewContext("", "unbound"))
	assert.True(t, terrors.IsServerError(err))
	assert.Equal(t, 1, h.checker.calls)

	_, err = h.router.Route(context.Background(), nil)
	assert.True(t, terrors.HasCode(err, terrors.CodeInvalidRequest))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Options: DefaultOptions()})
	assert.True(t, terrors.HasCode(err, terrors.CodeInvalidConfiguration))

	_, err = NewHandler(HandlerConfig{Options: DefaultOptions()})
	assert.True(t, terrors.HasCode(err, terrors.CodeInvalidConfiguration))
}

func TestOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"max length", func(o *Options) { o.Router.MaxLength = 0 }},
		{"max clients", func(o *Options) { o.Router.MaxClients = -1 }},
		{"negative timeout", func(o *Options) { o.Router.Timeout = -1 }},
		{"message size", func(o *Options) { o.Router.MaxMessageSize = 0 }},
		{"same delimiters", func(o *Options) { o.Router.BatchDelimiter = o.Router.StreamDelimiter }},
		{"zero delimiter", func(o *Options) { o.Router.IDDelimiter = 0 }},
		{"parser", func(o *Options) { o.Parser.Text.OptionPrefix = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			assert.True(t, terrors.HasCode(opts.Validate(), terrors.CodeInvalidConfiguration))
		})
	}
}

func TestChainEvents(t *testing.T) {
	assert.Nil(t, ChainEvents(nil, nil))

	single := &recorder{}
	assert.Same(t, single, ChainEvents(nil, single))

	first := &recorder{fail: "before_run"}
	second := &recorder{}
	chain := ChainEvents(first, NopEvents{}, second)

	require.NoError(t, chain.BeforeCheck(context.Background(), nil))
	assert.Error(t, chain.BeforeRun(context.Background(), nil))
	assert.Equal(t, []string{"before_check", "before_run"}, first.events)
	assert.Equal(t, []string{"before_check"}, second.events)
}

func TestLoggingExceptionHandler(t *testing.T) {
	h := NewLoggingExceptionHandler()
	route := commands.NewCommandRoute("r", "raw")

	h.Handle(context.Background(), terrors.New(terrors.CodeServerError, "bad"), route)
	h.Handle(context.Background(), terrors.New(terrors.CodeRequestCanceled, "canceled"), route)
	h.Handle(context.Background(), terrors.New(terrors.CodeInvalidCommand, "nope"), nil)
	h.Handle(context.Background(), errors.New("plain"), route)
}
