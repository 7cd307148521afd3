// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     tcp
// Description: Stream transport: delimiter framed messages over TCP
// License:     MIT
// ============================================================================

// Package tcp serves terminal requests over TCP. Messages are framed by the
// stream delimiter. Each connection routes its messages one after the other;
// distinct connections route concurrently, bounded by MaxClients.
package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/msto63/mdwterm/pkg/core/logging"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/router"
	"github.com/msto63/mdwterm/pkg/terminal/transport"
)

var tcpLogger = logging.New("tcp-router")

// queued is the number of decoded messages a connection buffers while a
// previous message is still being routed
const queued = 16

// Router accepts TCP connections and routes their messages
type Router struct {
	address    string
	opts       router.RouterOptions
	dispatcher *transport.Dispatcher
	framer     *transport.Framer
	clients    *semaphore.Weighted

	ready    chan struct{}
	listener net.Listener
	connIDs  atomic.Uint64
	active   atomic.Int64
	wg       sync.WaitGroup
}

// NewRouter creates a TCP router listening on address
func NewRouter(address string, d *transport.Dispatcher, opts router.RouterOptions) (*Router, error) {
	if d == nil {
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the dispatcher is missing")
	}
	if opts.MaxClients <= 0 {
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the maximum clients must be positive. max_clients=%d", opts.MaxClients)
	}
	framer, err := transport.NewFramer(opts)
	if err != nil {
		return nil, err
	}
	return &Router{
		address:    address,
		opts:       opts,
		dispatcher: d,
		framer:     framer,
		clients:    semaphore.NewWeighted(int64(opts.MaxClients)),
		ready:      make(chan struct{}),
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

// Active returns the number of connections being served
func (r *Router) Active() int { return int(r.active.Load()) }

// Serve listens and serves until ctx is canceled. It returns after every
// connection has been closed.
func (r *Router) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", r.address)
	if err != nil {
		return terrors.Wrap(err, terrors.CodeInvalidConfiguration, "failed to listen. address=%s", r.address)
	}
	r.listener = ln
	close(r.ready)
	tcpLogger.Info("TCP router started", "address", ln.Addr().String(), "max_clients", r.opts.MaxClients)

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		if !r.opts.RejectOverflow {
			// the next connection waits in the backlog until a slot frees
			if err := r.clients.Acquire(ctx, 1); err != nil {
				break
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if !r.opts.RejectOverflow {
				r.clients.Release(1)
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			tcpLogger.Warn("Failed to accept connection", "error", err)
			if !r.pause(ctx) {
				break
			}
			continue
		}

		if r.opts.RejectOverflow && !r.clients.TryAcquire(1) {
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.reject(ctx, conn)
			}()
			continue
		}

		id := r.connIDs.Add(1)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer r.clients.Release(1)
			r.serveConn(ctx, id, conn)
		}()
	}

	ln.Close()
	r.wg.Wait()
	tcpLogger.Info("TCP router stopped", "address", ln.Addr().String())
	return nil
}

// pause waits RouteDelay and reports whether serving should go on
func (r *Router) pause(ctx context.Context) bool {
	if r.opts.RouteDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(r.opts.RouteDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// reject answers a connection beyond MaxClients with one error and closes it
func (r *Router) reject(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	peer := transport.Peer{Transport: "tcp", Address: conn.RemoteAddr().String()}
	out := r.dispatcher.Fail(transport.WithPeer(ctx, peer),
		terrors.New(terrors.CodeInvalidRequest, "too many clients. max=%d", r.opts.MaxClients))
	if err := r.write(conn, out); err != nil {
		tcpLogger.Debug("Failed to answer rejected connection", "remote_addr", peer.Address, "error", err)
	}
}

func (r *Router) serveConn(ctx context.Context, id uint64, conn net.Conn) {
	r.active.Add(1)
	defer r.active.Add(-1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	peer := transport.Peer{Transport: "tcp", Address: conn.RemoteAddr().String()}
	ctx = transport.WithPeer(ctx, peer)
	tcpLogger.Debug("Connection accepted", "conn_id", id, "remote_addr", peer.Address)

	// closing the connection unblocks the reader on shutdown
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	messages := make(chan []byte, queued)
	var readErr error
	go func() {
		defer close(messages)

		scanner := r.framer.NewScanner(conn)
		for scanner.Scan() {
			msg := append([]byte(nil), scanner.Bytes()...)
			select {
			case messages <- msg:
			case <-ctx.Done():
				return
			}
		}
		readErr = scanner.Err()
		// a failed connection cancels its in-flight route. After EOF the
		// queued messages are still answered, as is an oversized message.
		if readErr != nil && !terrors.HasCode(readErr, terrors.CodeInvalidRequest) {
			cancel()
		}
	}()

	for msg := range messages {
		out := r.route(ctx, msg)
		if r.opts.DisableResponse {
			continue
		}
		if err := r.write(conn, out); err != nil {
			tcpLogger.Debug("Failed to write response", "conn_id", id, "error", err)
			cancel()
			break
		}
	}
	// drain so the reader can exit
	for range messages {
	}

	if readErr != nil && ctx.Err() == nil {
		tcpLogger.Warn("Connection read failed", "conn_id", id, "error", readErr)
	}
	if terrors.HasCode(readErr, terrors.CodeInvalidRequest) {
		out := r.dispatcher.Fail(ctx, readErr)
		if !r.opts.DisableResponse {
			_ = r.write(conn, out)
		}
	}
	tcpLogger.Debug("Connection closed", "conn_id", id, "remote_addr", peer.Address)
}

func (r *Router) route(ctx context.Context, msg []byte) transport.TerminalOutput {
	in, err := r.framer.Decode(msg)
	if err != nil {
		return r.dispatcher.Fail(ctx, err)
	}
	return r.dispatcher.Dispatch(ctx, in)
}

func (r *Router) write(conn net.Conn, out transport.TerminalOutput) error {
	data, err := r.framer.EncodeOutput(out)
	if err != nil {
		return err
	}
	if r.opts.Timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(r.opts.Timeout))
	}
	_, err = conn.Write(r.framer.Frame(data))
	return err
}
