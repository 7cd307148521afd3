// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     host
// Description: Wires the routing pipeline and runs the enabled transports
// License:     MIT
// ============================================================================

// Package host assembles a command store, its checkers and runners, the
// license and the router options into a running terminal: one dispatcher
// shared by every enabled transport.
package host

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	coregrpc "github.com/msto63/mdwterm/pkg/core/grpc"
	"github.com/msto63/mdwterm/pkg/core/health"
	"github.com/msto63/mdwterm/pkg/core/logging"
	"github.com/msto63/mdwterm/pkg/core/version"
	"github.com/msto63/mdwterm/pkg/terminal/commands"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/journal"
	"github.com/msto63/mdwterm/pkg/terminal/licensing"
	"github.com/msto63/mdwterm/pkg/terminal/parser"
	"github.com/msto63/mdwterm/pkg/terminal/router"
	"github.com/msto63/mdwterm/pkg/terminal/runtime"
	"github.com/msto63/mdwterm/pkg/terminal/transport"
	"github.com/msto63/mdwterm/pkg/terminal/transport/console"
	"github.com/msto63/mdwterm/pkg/terminal/transport/grpcapi"
	"github.com/msto63/mdwterm/pkg/terminal/transport/httpapi"
	"github.com/msto63/mdwterm/pkg/terminal/transport/tcp"
	"github.com/msto63/mdwterm/pkg/terminal/transport/udp"
)

var hostLogger = logging.New("host")

// dialTimeout bounds the listener health checks
const dialTimeout = time.Second

// Config holds everything a Host is built from
type Config struct {
	Name    string
	Options router.Options

	Store    commands.Store
	Registry *runtime.Registry

	// Licenses is required. LicenseFile is watched for changes when
	// WatchLicense is set.
	Licenses     licensing.Extractor
	LicenseFile  string
	WatchLicense bool

	// Events, Exceptions, Help and Journal are optional
	Events     router.EventHandler
	Exceptions router.ExceptionHandler
	Help       runtime.HelpProvider
	Journal    *journal.Journal

	Transports Transports
}

// Transports selects the transports to serve. An empty address disables a
// network transport, a nil reader disables the console. A host without
// transports routes in process only.
type Transports struct {
	TCP            string
	UDP            string
	HTTP           string
	GRPC           string
	GRPCReflection bool

	Console    console.LineReader
	ConsoleOut io.Writer
}

// server is implemented by every transport router
type server interface {
	Serve(ctx context.Context) error
}

// Host is a wired terminal
type Host struct {
	name       string
	store      commands.Store
	holder     *licensing.Holder
	router     *router.CommandRouter
	dispatcher *transport.Dispatcher
	health     *health.Registry
	cfg        Config

	tcp     *tcp.Router
	udp     *udp.Router
	http    *httpapi.Router
	grpc    *grpcapi.Router
	console *console.Router
}

// New wires the pipeline and creates the enabled transports. Nothing is
// bound until Serve.
func New(cfg Config) (*Host, error) {
	switch {
	case cfg.Store == nil:
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the command store is missing")
	case cfg.Registry == nil:
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the runtime registry is missing")
	case cfg.Licenses == nil:
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the license extractor is missing")
	}
	if cfg.Name == "" {
		cfg.Name = "mdwterm"
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Registry.Verify(cfg.Store); err != nil {
		return nil, err
	}

	p, err := parser.New(cfg.Store, cfg.Options.Parser)
	if err != nil {
		return nil, err
	}

	help := cfg.Help
	if help == nil {
		help = runtime.DescriptorHelpProvider{Store: cfg.Store, Text: cfg.Options.Parser.Text, Help: cfg.Options.Parser.Help}
	}

	events := cfg.Events
	if cfg.Journal != nil {
		events = router.ChainEvents(cfg.Events, cfg.Journal)
	}

	handler, err := router.NewHandler(router.HandlerConfig{
		Options:  cfg.Options,
		Store:    cfg.Store,
		Resolver: cfg.Registry,
		Licenses: licensing.NewLimitChecker(),
		Help:     help,
		Events:   events,
	})
	if err != nil {
		return nil, err
	}

	holder := licensing.NewHolder(cfg.Licenses)
	r, err := router.New(router.Config{
		Options:  cfg.Options,
		Licenses: holder,
		Parser:   p,
		Handler:  handler,
		Events:   events,
	})
	if err != nil {
		return nil, err
	}

	exceptions := cfg.Exceptions
	if exceptions == nil {
		exceptions = router.NewLoggingExceptionHandler()
	}
	dispatcher := transport.NewDispatcher(r, exceptions, cfg.Options.Router, transport.WithAuthorizer(localOnly))

	h := &Host{
		name:       cfg.Name,
		store:      cfg.Store,
		holder:     holder,
		router:     r,
		dispatcher: dispatcher,
		health:     health.NewRegistry(cfg.Name, version.Framework),
		cfg:        cfg,
	}
	if err := h.buildTransports(); err != nil {
		return nil, err
	}
	h.registerChecks()
	return h, nil
}

// localOnly authorizes protected commands for the console only
func localOnly(ctx context.Context) bool {
	p, ok := transport.PeerFromContext(ctx)
	return ok && p.Transport == "console"
}

func (h *Host) buildTransports() error {
	t := h.cfg.Transports
	opts := h.cfg.Options.Router
	var err error

	if t.TCP != "" {
		if h.tcp, err = tcp.NewRouter(t.TCP, h.dispatcher, opts); err != nil {
			return err
		}
	}
	if t.UDP != "" {
		if h.udp, err = udp.NewRouter(t.UDP, h.dispatcher, opts); err != nil {
			return err
		}
	}
	if t.HTTP != "" {
		if h.http, err = httpapi.NewRouter(t.HTTP, h.dispatcher, opts, h.health); err != nil {
			return err
		}
	}
	if t.GRPC != "" {
		grpcCfg := coregrpc.DefaultServerConfig(t.GRPC)
		grpcCfg.EnableReflection = t.GRPCReflection
		if h.grpc, err = grpcapi.NewRouter(grpcCfg, h.dispatcher, opts, h.health); err != nil {
			return err
		}
	}
	if t.Console != nil {
		out := t.ConsoleOut
		if out == nil {
			out = io.Discard
		}
		if h.console, err = console.NewRouter(t.Console, out, h.dispatcher, opts); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) hasTransports() bool {
	return h.tcp != nil || h.udp != nil || h.http != nil || h.grpc != nil || h.console != nil
}

func (h *Host) registerChecks() {
	h.health.RegisterFunc("license", func(ctx context.Context) health.CheckResult {
		result := health.CheckResult{Name: "license", Status: health.StatusHealthy}
		lic, err := h.holder.Extract(ctx)
		if err != nil {
			result.Status = health.StatusUnhealthy
			result.Message = err.Error()
			return result
		}
		result.Details = map[string]interface{}{"plan": lic.Plan, "tenant": lic.Claims.TenantID}
		if !lic.Claims.ExpiresAt.IsZero() && time.Now().After(lic.Claims.ExpiresAt) {
			result.Status = health.StatusUnhealthy
			result.Message = "the license has expired"
			return result
		}
		result.Message = "license valid"
		return result
	})

	h.health.RegisterFunc("store", func(ctx context.Context) health.CheckResult {
		n := len(h.store.All())
		result := health.CheckResult{
			Name:    "store",
			Status:  health.StatusHealthy,
			Message: fmt.Sprintf("%d commands registered", n),
			Details: map[string]interface{}{"commands": n},
		}
		if err := h.cfg.Registry.Verify(h.store); err != nil {
			result.Status = health.StatusDegraded
			result.Message = err.Error()
		}
		return result
	})

	if h.tcp != nil {
		h.health.Register(health.DialCheck("tcp", func() string { return addrString(h.tcp.Addr()) }, dialTimeout))
	}
	if h.http != nil {
		h.health.Register(health.DialCheck("http", func() string { return addrString(h.http.Addr()) }, dialTimeout))
	}
	if h.grpc != nil {
		h.health.Register(health.DialCheck("grpc", h.grpc.Address, dialTimeout))
	}
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// Health returns the health registry
func (h *Host) Health() *health.Registry { return h.health }

// License returns the license holder
func (h *Host) License() *licensing.Holder { return h.holder }

// TCP returns the TCP router or nil
func (h *Host) TCP() *tcp.Router { return h.tcp }

// UDP returns the UDP router or nil
func (h *Host) UDP() *udp.Router { return h.udp }

// HTTP returns the HTTP router or nil
func (h *Host) HTTP() *httpapi.Router { return h.http }

// GRPC returns the gRPC router or nil
func (h *Host) GRPC() *grpcapi.Router { return h.grpc }

// Route dispatches one command in process, as the console would
func (h *Host) Route(ctx context.Context, raw string) transport.TerminalOutput {
	return h.Dispatch(ctx, transport.Single("", raw))
}

// Dispatch routes in in process, as the console would
func (h *Host) Dispatch(ctx context.Context, in transport.TerminalInput) transport.TerminalOutput {
	ctx = transport.WithPeer(ctx, transport.Peer{Transport: "console", Address: "local"})
	return h.dispatcher.Dispatch(ctx, in)
}

// Serve extracts the license and runs every enabled transport until ctx is
// canceled or one of them fails. Leaving the console stops the host.
func (h *Host) Serve(ctx context.Context) error {
	if !h.hasTransports() {
		return terrors.New(terrors.CodeInvalidConfiguration, "no transport is enabled")
	}
	if _, err := h.holder.Extract(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	run := func(name string, s server) {
		g.Go(func() error {
			hostLogger.Debug("Starting transport", "transport", name, "version", version.TransportVersion(name))
			if err := s.Serve(ctx); err != nil {
				return fmt.Errorf("%s transport: %w", name, err)
			}
			return nil
		})
	}
	if h.tcp != nil {
		run("tcp", h.tcp)
	}
	if h.udp != nil {
		run("udp", h.udp)
	}
	if h.http != nil {
		run("http", h.http)
	}
	if h.grpc != nil {
		run("grpc", h.grpc)
	}
	if h.console != nil {
		g.Go(func() error {
			defer cancel()
			return h.console.Serve(ctx)
		})
	}

	if h.cfg.WatchLicense && h.cfg.LicenseFile != "" {
		w, err := licensing.NewWatcher(h.holder, h.cfg.LicenseFile)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(func() error { return w.Run(ctx) })
	}

	hostLogger.Info("Terminal host started", "name", h.name, "commands", len(h.store.All()))
	err := g.Wait()
	hostLogger.Info("Terminal host stopped", "name", h.name)
	return err
}
