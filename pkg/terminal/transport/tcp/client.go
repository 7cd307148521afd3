package tcp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/router"
	"github.com/msto63/mdwterm/pkg/terminal/transport"
)

// Client sends framed messages to a TCP router. Calls are serialized, one
// response is read per request message.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	framer  *transport.Framer
	scanner *bufio.Scanner
}

// Dial connects to a TCP router. opts must match the router's framing.
func Dial(ctx context.Context, address string, opts router.RouterOptions) (*Client, error) {
	framer, err := transport.NewFramer(opts)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, terrors.Wrap(err, terrors.CodeConnectionClosed, "failed to connect. address=%s", address)
	}
	return &Client{conn: conn, framer: framer, scanner: framer.NewScanner(conn)}, nil
}

// SendRaw routes one command text
func (c *Client) SendRaw(ctx context.Context, raw string) (transport.TerminalOutput, error) {
	return c.Send(ctx, transport.Single("", raw))
}

// Send routes in as a JSON message and waits for the output
func (c *Client) Send(ctx context.Context, in transport.TerminalInput) (transport.TerminalOutput, error) {
	data, err := c.framer.EncodeInput(in)
	if err != nil {
		return transport.TerminalOutput{}, err
	}
	return c.roundTrip(ctx, data)
}

// SendText routes in using the delimited text form
func (c *Client) SendText(ctx context.Context, in transport.TerminalInput) (transport.TerminalOutput, error) {
	data, err := c.framer.EncodeText(in)
	if err != nil {
		return transport.TerminalOutput{}, err
	}
	return c.roundTrip(ctx, data)
}

// Post writes in without waiting for a response, for routers that have
// responses disabled
func (c *Client) Post(ctx context.Context, in transport.TerminalInput) error {
	data, err := c.framer.EncodeInput(in)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	stop := c.watch(ctx)
	defer stop()
	return c.wrap(ctx, c.write(data))
}

// Receive reads the next output without sending anything
func (c *Client) Receive(ctx context.Context) (transport.TerminalOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stop := c.watch(ctx)
	defer stop()
	return c.read(ctx)
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(ctx context.Context, data []byte) (transport.TerminalOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stop := c.watch(ctx)
	defer stop()

	if err := c.write(data); err != nil {
		return transport.TerminalOutput{}, c.wrap(ctx, err)
	}
	return c.read(ctx)
}

// watch applies the deadline of ctx to the connection and interrupts I/O
// when ctx is canceled
func (c *Client) watch(ctx context.Context) func() {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = c.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetDeadline(time.Now()) })
	return func() { stop() }
}

func (c *Client) write(data []byte) error {
	_, err := c.conn.Write(c.framer.Frame(data))
	return err
}

func (c *Client) read(ctx context.Context) (transport.TerminalOutput, error) {
	if !c.scanner.Scan() {
		err := c.scanner.Err()
		if err == nil {
			return transport.TerminalOutput{}, terrors.New(terrors.CodeConnectionClosed, "the connection was closed by the router")
		}
		return transport.TerminalOutput{}, c.wrap(ctx, err)
	}
	return c.framer.DecodeOutput(c.scanner.Bytes())
}

func (c *Client) wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return terrors.FromContext(ctx.Err())
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return terrors.Wrap(err, terrors.CodeRequestTimeout, "the request timed out")
	}
	if terrors.CodeOf(err) != terrors.CodeUnknown {
		return err
	}
	return terrors.Wrap(err, terrors.CodeConnectionClosed, "the connection failed")
}
