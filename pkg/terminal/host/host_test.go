package host

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msto63/mdwterm/internal/demo"
	"github.com/msto63/mdwterm/pkg/core/health"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/journal"
	"github.com/msto63/mdwterm/pkg/terminal/licensing"
	"github.com/msto63/mdwterm/pkg/terminal/router"
	"github.com/msto63/mdwterm/pkg/terminal/runtime"
	"github.com/msto63/mdwterm/pkg/terminal/text"
	"github.com/msto63/mdwterm/pkg/terminal/transport"
	"github.com/msto63/mdwterm/pkg/terminal/transport/httpapi"
	"github.com/msto63/mdwterm/pkg/terminal/transport/tcp"
)

func demoConfig(t *testing.T) Config {
	t.Helper()
	store, err := demo.NewStore(text.CaseSensitive)
	require.NoError(t, err)
	reg := runtime.NewRegistry()
	require.NoError(t, demo.Register(reg, store))

	opts := router.DefaultOptions()
	opts.Router.Timeout = 2 * time.Second
	opts.Router.RouteDelay = 5 * time.Millisecond
	return Config{
		Name:     "test",
		Options:  opts,
		Store:    store,
		Registry: reg,
		Licenses: licensing.StaticExtractor{License: demo.License()},
	}
}

func serve(t *testing.T, h *Host) <-chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("host did not stop")
		}
	})
	return done
}

func waitReady(t *testing.T, ready <-chan struct{}) {
	t.Helper()
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("transport did not start")
	}
}

func TestHost_RoutesOverTransports(t *testing.T) {
	cfg := demoConfig(t)
	cfg.Transports = Transports{TCP: "127.0.0.1:0", HTTP: "127.0.0.1:0"}
	h, err := New(cfg)
	require.NoError(t, err)
	serve(t, h)
	waitReady(t, h.TCP().Ready())
	waitReady(t, h.HTTP().Ready())

	ctx := context.Background()
	c, err := tcp.Dial(ctx, h.TCP().Addr().String(), cfg.Options.Router)
	require.NoError(t, err)
	defer c.Close()

	out, err := c.SendRaw(ctx, "pi math add 2 3")
	require.NoError(t, err)
	require.Len(t, out.Requests, 1)
	assert.False(t, out.Requests[0].IsError, "%v", out.Requests[0].Result)
	assert.EqualValues(t, 5, out.Requests[0].Result)

	out, err = c.SendRaw(ctx, "echo hello -u")
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out.Requests[0].Result)

	// protected commands are reserved for the console
	out, err = c.SendRaw(ctx, "whoami")
	require.NoError(t, err)
	e, ok := transport.ErrorOf(out.Requests[0])
	require.True(t, ok)
	assert.Equal(t, string(terrors.CodeUnauthorizedAccess), e.Error)

	web := httpapi.NewClient(h.HTTP().Addr().String(), nil)
	out, err = web.SendRaw(ctx, "pi math divide 1 0")
	require.NoError(t, err)
	e, ok = transport.ErrorOf(out.Requests[0])
	require.True(t, ok)
	assert.Equal(t, string(terrors.CodeInvalidArgument), e.Error)
}

func TestHost_RouteInProcess(t *testing.T) {
	h, err := New(demoConfig(t))
	require.NoError(t, err)
	assert.Nil(t, h.TCP())

	out := h.Route(context.Background(), "whoami")
	require.Len(t, out.Requests, 1)
	require.False(t, out.Requests[0].IsError, "%v", out.Requests[0].Result)
	result, ok := out.Requests[0].Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "console", result["transport"])
	assert.Equal(t, "local", result["tenant"])

	out = h.Route(context.Background(), "nope")
	e, ok := transport.ErrorOf(out.Requests[0])
	require.True(t, ok)
	assert.Equal(t, string(terrors.CodeInvalidCommand), e.Error)
}

func TestHost_Timeout(t *testing.T) {
	cfg := demoConfig(t)
	cfg.Options.Router.Timeout = 30 * time.Millisecond
	cfg.Transports = Transports{TCP: "127.0.0.1:0"}
	h, err := New(cfg)
	require.NoError(t, err)

	out := h.Route(context.Background(), "sleep 5000")
	e, ok := transport.ErrorOf(out.Requests[0])
	require.True(t, ok)
	assert.Equal(t, string(terrors.CodeRequestTimeout), e.Error)
}

func TestHost_Journal(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	cfg := demoConfig(t)
	cfg.Journal = j
	cfg.Transports = Transports{TCP: "127.0.0.1:0"}
	h, err := New(cfg)
	require.NoError(t, err)

	h.Route(context.Background(), "pi status")
	h.Route(context.Background(), "pi math add x 1")

	entries, err := j.Entries(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "pi math add x 1", entries[0].Raw)
	assert.Equal(t, journal.StatusFailed, entries[0].Status)
	assert.Equal(t, "status", entries[1].CommandID)
	assert.Equal(t, journal.StatusSucceeded, entries[1].Status)
}

func TestHost_Health(t *testing.T) {
	cfg := demoConfig(t)
	cfg.Transports = Transports{TCP: "127.0.0.1:0"}
	h, err := New(cfg)
	require.NoError(t, err)

	// the listener is not bound yet
	report := h.Health().Check(context.Background())
	statuses := map[string]health.Status{}
	for _, c := range report.Checks {
		statuses[c.Name] = c.Status
	}
	assert.Equal(t, health.StatusHealthy, statuses["license"])
	assert.Equal(t, health.StatusHealthy, statuses["store"])
	assert.Equal(t, health.StatusUnknown, statuses["tcp"])

	serve(t, h)
	waitReady(t, h.TCP().Ready())
	report = h.Health().Check(context.Background())
	for _, c := range report.Checks {
		assert.Equal(t, health.StatusHealthy, c.Status, "check %s: %s", c.Name, c.Message)
	}
}

type scriptedConsole struct {
	mu    sync.Mutex
	lines []string
}

func (s *scriptedConsole) Readline() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedConsole) Close() error { return nil }

func TestHost_ConsoleExitStopsHost(t *testing.T) {
	cfg := demoConfig(t)
	cfg.Transports = Transports{
		TCP:     "127.0.0.1:0",
		Console: &scriptedConsole{lines: []string{"echo hi", "exit"}},
	}
	h, err := New(cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- h.Serve(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("host did not stop after the console exited")
	}
}

func TestHost_DispatchBatchInProcess(t *testing.T) {
	h, err := New(demoConfig(t))
	require.NoError(t, err)

	out := h.Dispatch(context.Background(), transport.Batch("b1",
		transport.TerminalRequest{ID: "one", Raw: "pi math add 1 2"},
		transport.TerminalRequest{ID: "two", Raw: "echo hi -u"},
	))
	require.Len(t, out.Requests, 2)
	assert.Equal(t, "one", out.Requests[0].ID)
	assert.EqualValues(t, 3, out.Requests[0].Result)
	assert.Equal(t, "HI", out.Requests[1].Result)
}

func TestHost_ServeWithoutTransports(t *testing.T) {
	h, err := New(demoConfig(t))
	require.NoError(t, err)

	err = h.Serve(context.Background())
	assert.True(t, terrors.HasCode(err, terrors.CodeInvalidConfiguration), "got %v", err)
}

func TestHost_LicenseRequiresStrictDataType(t *testing.T) {
	lic := demo.License()
	lic.Limits.StrictDataType = true
	cfg := demoConfig(t)
	cfg.Licenses = licensing.StaticExtractor{License: lic}
	h, err := New(cfg)
	require.NoError(t, err)

	out := h.Route(context.Background(), "pi status")
	require.False(t, out.Requests[0].IsError, "%v", out.Requests[0].Result)

	out = h.Route(context.Background(), "pi math add 1 2")
	require.False(t, out.Requests[0].IsError, "%v", out.Requests[0].Result)
	assert.EqualValues(t, 3, out.Requests[0].Result)

	out = h.Route(context.Background(), "pi math add x 2")
	e, ok := transport.ErrorOf(out.Requests[0])
	require.True(t, ok)
	assert.Equal(t, string(terrors.CodeInvalidArgument), e.Error)
}

func TestHost_LicenseFailure(t *testing.T) {
	cfg := demoConfig(t)
	cfg.Licenses = licensing.StaticExtractor{}
	cfg.Transports = Transports{TCP: "127.0.0.1:0"}
	h, err := New(cfg)
	require.NoError(t, err)

	err = h.Serve(context.Background())
	assert.True(t, terrors.HasCode(err, terrors.CodeUnauthorizedAccess), "got %v", err)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no store", func(c *Config) { c.Store = nil }},
		{"no registry", func(c *Config) { c.Registry = nil }},
		{"no license", func(c *Config) { c.Licenses = nil }},
		{"unbound runner", func(c *Config) { c.Registry = runtime.NewRegistry() }},
		{"bad options", func(c *Config) { c.Options.Router.MaxClients = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := demoConfig(t)
			cfg.Transports = Transports{TCP: "127.0.0.1:0"}
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
		})
	}
}
