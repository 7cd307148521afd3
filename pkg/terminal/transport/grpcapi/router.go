package grpcapi

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	coregrpc "github.com/msto63/mdwterm/pkg/core/grpc"
	"github.com/msto63/mdwterm/pkg/core/health"
	"github.com/msto63/mdwterm/pkg/core/logging"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/router"
	"github.com/msto63/mdwterm/pkg/terminal/transport"
)

var grpcLogger = logging.New("grpc-router")

// HealthInterval is how often the health registry is mirrored into the
// gRPC health service
const HealthInterval = 10 * time.Second

// Router serves the TerminalRouter service
type Router struct {
	server     *coregrpc.Server
	dispatcher *transport.Dispatcher
	opts       router.RouterOptions
	health     *health.Registry
}

// NewRouter creates a gRPC router. registry may be nil.
func NewRouter(cfg coregrpc.ServerConfig, d *transport.Dispatcher, opts router.RouterOptions, registry *health.Registry) (*Router, error) {
	if d == nil {
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the dispatcher is missing")
	}
	if opts.MaxMessageSize > 0 {
		cfg.MaxRecvMsgSize = opts.MaxMessageSize
	}
	r := &Router{
		server:     coregrpc.NewServer(cfg),
		dispatcher: d,
		opts:       opts,
		health:     registry,
	}
	RegisterTerminalRouterServer(r.server.GRPCServer(), r)
	return r, nil
}

// Ready is closed once the listener is bound
func (r *Router) Ready() <-chan struct{} { return r.server.Ready() }

// Address returns the bound address
func (r *Router) Address() string { return r.server.Address() }

// Serve serves until ctx is canceled
func (r *Router) Serve(ctx context.Context) error {
	r.server.SetServing("", true)
	r.server.SetServing(ServiceName, true)
	if r.health != nil {
		go r.health.Watch(ctx, HealthInterval, func(report *health.Report) {
			r.server.SetServing(ServiceName, report.Status != health.StatusUnhealthy)
		})
	}
	if err := r.server.Serve(ctx); err != nil {
		return terrors.Wrap(err, terrors.CodeInvalidConfiguration, "gRPC router failed. address=%s", r.server.Address())
	}
	return nil
}

// Route implements TerminalRouterServer. A malformed envelope fails the
// call with InvalidArgument; failures of single requests are reported in
// the output.
func (r *Router) Route(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	p := transport.Peer{Transport: "grpc"}
	if pr, ok := peer.FromContext(ctx); ok && pr.Addr != nil {
		p.Address = pr.Addr.String()
	}
	ctx = transport.WithPeer(ctx, p)

	input, err := transport.DecodeJSONInput([]byte(in.GetValue()))
	if err != nil {
		r.dispatcher.Fail(ctx, err)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	out := r.dispatcher.Dispatch(ctx, input)
	if r.opts.DisableResponse {
		return &wrapperspb.StringValue{}, nil
	}
	data, err := transport.MarshalJSON(out)
	if err != nil {
		grpcLogger.Error("Failed to encode response", "error", err)
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.String(string(data)), nil
}
