package udp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/router"
	"github.com/msto63/mdwterm/pkg/terminal/transport"
)

// Client sends one datagram per input and waits for the reply datagram
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	framer *transport.Framer
}

// Dial creates a client for the router at address
func Dial(ctx context.Context, address string, opts router.RouterOptions) (*Client, error) {
	framer, err := transport.NewFramer(opts)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", address)
	if err != nil {
		return nil, terrors.Wrap(err, terrors.CodeConnectionClosed, "failed to connect. address=%s", address)
	}
	return &Client{conn: conn, framer: framer}, nil
}

// SendRaw routes one command text
func (c *Client) SendRaw(ctx context.Context, raw string) (transport.TerminalOutput, error) {
	return c.Send(ctx, transport.Single("", raw))
}

// Send routes in and waits for the output. Without a deadline on ctx the
// call waits until ctx is canceled.
func (c *Client) Send(ctx context.Context, in transport.TerminalInput) (transport.TerminalOutput, error) {
	data, err := c.framer.EncodeInput(in)
	if err != nil {
		return transport.TerminalOutput{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := c.conn.Write(data); err != nil {
		return transport.TerminalOutput{}, c.wrap(ctx, err)
	}
	buf := make([]byte, c.framer.MaxMessageSize())
	n, err := c.conn.Read(buf)
	if err != nil {
		return transport.TerminalOutput{}, c.wrap(ctx, err)
	}
	return c.framer.DecodeOutput(buf[:n])
}

// Close releases the socket
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return terrors.FromContext(ctx.Err())
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return terrors.Wrap(err, terrors.CodeRequestTimeout, "no reply from the router")
	}
	return terrors.Wrap(err, terrors.CodeConnectionClosed, "the datagram exchange failed")
}
