// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     httpapi
// Description: HTTP transport: JSON envelopes over POST and websocket
// License:     MIT
// ============================================================================

// Package httpapi serves terminal requests over HTTP.
//
//	POST /terminal/route   TerminalInput in, TerminalOutput out
//	GET  /terminal/ws      websocket, one message per TerminalInput
//	GET  /health           health report
package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/msto63/mdwterm/pkg/core/health"
	"github.com/msto63/mdwterm/pkg/core/logging"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/router"
	"github.com/msto63/mdwterm/pkg/terminal/transport"
)

var httpLogger = logging.New("http-router")

// Routes
const (
	RoutePath     = "/terminal/route"
	WebSocketPath = "/terminal/ws"
	HealthPath    = "/health"
)

// ShutdownTimeout bounds the graceful shutdown of in-flight requests
const ShutdownTimeout = 5 * time.Second

// Router serves the HTTP endpoints
type Router struct {
	address    string
	opts       router.RouterOptions
	dispatcher *transport.Dispatcher
	framer     *transport.Framer
	health     *health.Registry
	upgrader   websocket.Upgrader

	ready    chan struct{}
	listener net.Listener
}

// NewRouter creates an HTTP router. registry may be nil.
func NewRouter(address string, d *transport.Dispatcher, opts router.RouterOptions, registry *health.Registry) (*Router, error) {
	if d == nil {
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the dispatcher is missing")
	}
	// websocket text frames are always UTF-8
	wsOpts := opts
	wsOpts.Encoding = "utf-8"
	framer, err := transport.NewFramer(wsOpts)
	if err != nil {
		return nil, err
	}
	return &Router{
		address:    address,
		opts:       opts,
		dispatcher: d,
		framer:     framer,
		health:     registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		ready: make(chan struct{}),
	}, nil
}

// Ready is closed once the listener is bound
func (r *Router) Ready() <-chan struct{} { return r.ready }

// Addr returns the bound address. It is nil before Ready is closed.
func (r *Router) Addr() net.Addr {
	select {
	case <-r.ready:
		return r.listener.Addr()
	default:
		return nil
	}
}

// Handler returns the routes
func (r *Router) Handler() http.Handler {
	mux := httprouter.New()
	mux.POST(RoutePath, r.handleRoute)
	mux.GET(WebSocketPath, r.handleWebSocket)
	mux.GET(HealthPath, r.handleHealth)
	return mux
}

// Serve serves until ctx is canceled, then shuts down gracefully
func (r *Router) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", r.address)
	if err != nil {
		return terrors.Wrap(err, terrors.CodeInvalidConfiguration, "failed to listen. address=%s", r.address)
	}
	r.listener = ln
	close(r.ready)

	server := &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()
	httpLogger.Info("HTTP router started", "address", ln.Addr().String())

	select {
	case err := <-errCh:
		return terrors.Wrap(err, terrors.CodeServerError, "HTTP router failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		httpLogger.Warn("HTTP router shutdown incomplete", "error", err)
		server.Close()
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return terrors.Wrap(err, terrors.CodeServerError, "HTTP router failed")
	}
	httpLogger.Info("HTTP router stopped", "address", ln.Addr().String())
	return nil
}

func (r *Router) handleRoute(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	ctx := transport.WithPeer(req.Context(), transport.Peer{Transport: "http", Address: req.RemoteAddr})

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, int64(r.framer.MaxMessageSize())))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			r.writeOutput(w, http.StatusRequestEntityTooLarge, r.dispatcher.Fail(ctx, terrors.Wrap(err, terrors.CodeInvalidRequest,
				"the message exceeds the maximum size. max=%d", r.framer.MaxMessageSize())))
			return
		}
		r.writeOutput(w, http.StatusBadRequest, r.dispatcher.Fail(ctx, terrors.Wrap(err, terrors.CodeConnectionClosed, "failed to read the request")))
		return
	}

	in, err := transport.DecodeJSONInput(body)
	if err != nil {
		r.writeOutput(w, http.StatusBadRequest, r.dispatcher.Fail(ctx, err))
		return
	}
	r.writeOutput(w, http.StatusOK, r.dispatcher.Dispatch(ctx, in))
}

func (r *Router) writeOutput(w http.ResponseWriter, code int, out transport.TerminalOutput) {
	if r.opts.DisableResponse {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	data, err := transport.MarshalJSON(out)
	if err != nil {
		httpLogger.Error("Failed to encode response", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		httpLogger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(int64(r.framer.MaxMessageSize()))

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	ctx = transport.WithPeer(ctx, transport.Peer{Transport: "websocket", Address: req.RemoteAddr})
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	httpLogger.Debug("WebSocket connection established", "remote_addr", req.RemoteAddr)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				httpLogger.Warn("WebSocket read failed", "error", err)
			}
			return
		}

		var out transport.TerminalOutput
		if in, err := r.framer.Decode(msg); err != nil {
			out = r.dispatcher.Fail(ctx, err)
		} else {
			out = r.dispatcher.Dispatch(ctx, in)
		}
		if r.opts.DisableResponse {
			continue
		}

		data, err := transport.MarshalJSON(out)
		if err != nil {
			httpLogger.Error("Failed to encode response", "error", err)
			return
		}
		if r.opts.Timeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(r.opts.Timeout))
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if r.health == nil {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
		return
	}
	r.health.Handler().ServeHTTP(w, req)
}
