// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     udp
// Description: Datagram transport: one datagram per message
// License:     MIT
// ============================================================================

// Package udp serves terminal requests over UDP. Every datagram is one
// message, optionally a batch, and is answered with one datagram.
package udp

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/msto63/mdwterm/pkg/core/logging"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/router"
	"github.com/msto63/mdwterm/pkg/terminal/transport"
)

var udpLogger = logging.New("udp-router")

// Router receives datagrams and routes them
type Router struct {
	address    string
	opts       router.RouterOptions
	dispatcher *transport.Dispatcher
	framer     *transport.Framer
	inflight   *semaphore.Weighted

	ready chan struct{}
	conn  net.PacketConn
	wg    sync.WaitGroup
}

// NewRouter creates a UDP router listening on address
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
		inflight:   semaphore.NewWeighted(int64(opts.MaxClients)),
		ready:      make(chan struct{}),
	}, nil
}

// Ready is closed once the socket is bound
func (r *Router) Ready() <-chan struct{} { return r.ready }

// Addr returns the bound address. It is nil before Ready is closed.
func (r *Router) Addr() net.Addr {
	select {
	case <-r.ready:
		return r.conn.LocalAddr()
	default:
		return nil
	}
}

// Serve receives datagrams until ctx is canceled. At most MaxClients
// datagrams are routed at the same time.
func (r *Router) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", r.address)
	if err != nil {
		return terrors.Wrap(err, terrors.CodeInvalidConfiguration, "failed to listen. address=%s", r.address)
	}
	r.conn = conn
	close(r.ready)
	udpLogger.Info("UDP router started", "address", conn.LocalAddr().String())

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	buf := make([]byte, r.framer.MaxMessageSize()+1)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			udpLogger.Warn("Failed to read datagram", "error", err)
			if !r.pause(ctx) {
				break
			}
			continue
		}
		if n == 0 {
			continue
		}
		msg := append([]byte(nil), buf[:n]...)

		if err := r.inflight.Acquire(ctx, 1); err != nil {
			break
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer r.inflight.Release(1)
			r.handle(ctx, conn, addr, msg, n > r.framer.MaxMessageSize())
		}()
	}

	conn.Close()
	r.wg.Wait()
	udpLogger.Info("UDP router stopped", "address", conn.LocalAddr().String())
	return nil
}

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

func (r *Router) handle(ctx context.Context, conn net.PacketConn, addr net.Addr, msg []byte, tooLarge bool) {
	ctx = transport.WithPeer(ctx, transport.Peer{Transport: "udp", Address: addr.String()})

	var out transport.TerminalOutput
	if tooLarge {
		out = r.dispatcher.Fail(ctx, terrors.New(terrors.CodeInvalidRequest,
			"the message exceeds the maximum size. max=%d", r.framer.MaxMessageSize()))
	} else {
		in, err := r.framer.Decode(r.trim(msg))
		if err != nil {
			out = r.dispatcher.Fail(ctx, err)
		} else {
			out = r.dispatcher.Dispatch(ctx, in)
		}
	}
	if r.opts.DisableResponse {
		return
	}

	data, err := r.framer.EncodeOutput(out)
	if err != nil {
		udpLogger.Error("Failed to encode response", "remote_addr", addr.String(), "error", err)
		return
	}
	if _, err := conn.WriteTo(data, addr); err != nil && ctx.Err() == nil {
		udpLogger.Warn("Failed to send response", "remote_addr", addr.String(), "error", err)
	}
}

// trim drops a trailing stream delimiter sent by stream oriented clients
func (r *Router) trim(msg []byte) []byte {
	stream, err := r.framer.Encoding().Encode(string(rune(r.opts.StreamDelimiter)))
	if err != nil || !bytes.HasSuffix(msg, stream) || (len(msg)-len(stream))%r.framer.Encoding().Unit() != 0 {
		return msg
	}
	return msg[:len(msg)-len(stream)]
}
