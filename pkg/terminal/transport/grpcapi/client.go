package grpcapi

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	coregrpc "github.com/msto63/mdwterm/pkg/core/grpc"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/transport"
)

// Client calls a gRPC router
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for target
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := coregrpc.Dial(coregrpc.DefaultClientConfig(target), opts...)
	if err != nil {
		return nil, terrors.Wrap(err, terrors.CodeConnectionClosed, "failed to connect. address=%s", target)
	}
	return &Client{conn: conn}, nil
}

// Conn returns the underlying connection
func (c *Client) Conn() *grpc.ClientConn { return c.conn }

// SendRaw routes one command text
func (c *Client) SendRaw(ctx context.Context, raw string) (transport.TerminalOutput, error) {
	return c.Send(ctx, transport.Single("", raw))
}

// Send routes in and returns the output. An empty reply, from a router with
// responses disabled, yields an empty output.
func (c *Client) Send(ctx context.Context, in transport.TerminalInput) (transport.TerminalOutput, error) {
	data, err := transport.MarshalJSON(in)
	if err != nil {
		return transport.TerminalOutput{}, err
	}
	reply := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, RouteMethod, wrapperspb.String(string(data)), reply); err != nil {
		return transport.TerminalOutput{}, fromStatus(err)
	}
	if reply.GetValue() == "" {
		return transport.TerminalOutput{}, nil
	}

	var out transport.TerminalOutput
	if err := json.Unmarshal([]byte(reply.GetValue()), &out); err != nil {
		return transport.TerminalOutput{}, terrors.Wrap(err, terrors.CodeInvalidRequest, "malformed terminal output")
	}
	return out, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

func fromStatus(err error) error {
	st := status.Convert(err)
	var code terrors.Code
	switch st.Code() {
	case codes.InvalidArgument:
		code = terrors.CodeInvalidRequest
	case codes.DeadlineExceeded:
		code = terrors.CodeRequestTimeout
	case codes.Canceled:
		code = terrors.CodeRequestCanceled
	case codes.Unavailable:
		code = terrors.CodeConnectionClosed
	default:
		code = terrors.CodeServerError
	}
	return terrors.Wrap(err, code, "%s", st.Message())
}
