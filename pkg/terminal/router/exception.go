package router

import (
	"context"

	"github.com/msto63/mdwterm/pkg/core/logging"
	"github.com/msto63/mdwterm/pkg/terminal/commands"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
)

// ExceptionHandler is told about every failed request exactly once, at the
// transport boundary. route is nil when the failure happened before a route
// existed.
type ExceptionHandler interface {
	Handle(ctx context.Context, err error, route *commands.CommandRoute)
}

// ExceptionHandlerFunc adapts a function to ExceptionHandler
type ExceptionHandlerFunc func(ctx context.Context, err error, route *commands.CommandRoute)

// Handle calls f
func (f ExceptionHandlerFunc) Handle(ctx context.Context, err error, route *commands.CommandRoute) {
	f(ctx, err, route)
}

// LoggingExceptionHandler logs failures by severity: server errors at error
// level, cancellations at debug level and request errors at warn level.
type LoggingExceptionHandler struct {
	logger *logging.Logger
}

// NewLoggingExceptionHandler creates a logging exception handler
func NewLoggingExceptionHandler() *LoggingExceptionHandler {
	return &LoggingExceptionHandler{logger: logging.New("terminal-exception")}
}

// Handle implements ExceptionHandler
func (h *LoggingExceptionHandler) Handle(ctx context.Context, err error, route *commands.CommandRoute) {
	var id, raw string
	if route != nil {
		id, raw = route.ID(), route.Raw()
	}
	code := terrors.CodeOf(err)

	switch {
	case terrors.IsServerError(err) || code == terrors.CodeUnknown:
		h.logger.Error("Request failed", "route_id", id, "raw", raw, "code", code, "error", err)
	case terrors.IsCancellation(err):
		h.logger.Debug("Request canceled", "route_id", id, "code", code, "error", err)
	default:
		h.logger.Warn("Request rejected", "route_id", id, "raw", raw, "code", code, "error", err)
	}
}
