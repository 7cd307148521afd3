// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     router
// Description: Command router, handler pipeline, events and exceptions
// License:     MIT
// ============================================================================

// Package router runs a command route through the length check, license,
// parser and the check-then-run handler pipeline.
package router

import (
	"time"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/parser"
)

// Default router values
const (
	DefaultMaxLength        = 1024
	DefaultMaxClients       = 64
	DefaultTimeout          = 30 * time.Second
	DefaultRouteDelay       = 50 * time.Millisecond
	DefaultMaxMessageSize   = 1 << 20
	DefaultStreamDelimiter  = 0x1E
	DefaultCommandDelimiter = 0x1F
	DefaultBatchDelimiter   = 0x1D
	DefaultIDDelimiter      = 0x1C
	DefaultEncoding         = "utf-8"
)

// RouterOptions configures routing and the transports
type RouterOptions struct {
	// MaxLength is the maximum number of characters of a raw route
	MaxLength int

	// MaxClients bounds concurrent remote clients
	MaxClients int

	// Timeout bounds a single route. Zero disables the timeout.
	Timeout time.Duration

	// RouteDelay paces accept and receive loops after a failure
	RouteDelay time.Duration

	// DisableResponse suppresses all responses
	DisableResponse bool

	StreamDelimiter  byte
	CommandDelimiter byte
	BatchDelimiter   byte
	IDDelimiter      byte

	// Encoding of text on the wire: utf-8, utf-16le, utf-16be or latin1
	Encoding string

	// RejectOverflow answers and closes connections beyond MaxClients
	// instead of queueing them
	RejectOverflow bool

	// MaxMessageSize bounds a single framed message in bytes
	MaxMessageSize int
}

// Options is the complete router configuration
type Options struct {
	Router RouterOptions
	Parser parser.Options

	// StoreImplementation and ServiceImplementation are reported to the
	// license checker
	StoreImplementation   string
	ServiceImplementation string
}

// DefaultOptions returns the default options
func DefaultOptions() Options {
	return Options{
		Router: RouterOptions{
			MaxLength:        DefaultMaxLength,
			MaxClients:       DefaultMaxClients,
			Timeout:          DefaultTimeout,
			RouteDelay:       DefaultRouteDelay,
			StreamDelimiter:  DefaultStreamDelimiter,
			CommandDelimiter: DefaultCommandDelimiter,
			BatchDelimiter:   DefaultBatchDelimiter,
			IDDelimiter:      DefaultIDDelimiter,
			Encoding:         DefaultEncoding,
			MaxMessageSize:   DefaultMaxMessageSize,
		},
		Parser:                parser.DefaultOptions(),
		StoreImplementation:   "immutable",
		ServiceImplementation: "default",
	}
}

// Validate checks the options for consistency
func (o Options) Validate() error {
	r := o.Router
	switch {
	case r.MaxLength <= 0:
		return terrors.New(terrors.CodeInvalidConfiguration, "the maximum length must be positive. max_length=%d", r.MaxLength)
	case r.MaxClients <= 0:
		return terrors.New(terrors.CodeInvalidConfiguration, "the maximum clients must be positive. max_clients=%d", r.MaxClients)
	case r.Timeout < 0 || r.RouteDelay < 0:
		return terrors.New(terrors.CodeInvalidConfiguration, "the timeout and route delay cannot be negative")
	case r.MaxMessageSize <= 0:
		return terrors.New(terrors.CodeInvalidConfiguration, "the maximum message size must be positive")
	}

	delims := []byte{r.StreamDelimiter, r.CommandDelimiter, r.BatchDelimiter, r.IDDelimiter}
	seen := make(map[byte]bool, len(delims))
	for _, d := range delims {
		if d == 0 {
			return terrors.New(terrors.CodeInvalidConfiguration, "the delimiters cannot be zero")
		}
		if seen[d] {
			return terrors.New(terrors.CodeInvalidConfiguration, "the delimiters must be distinct. delimiter=0x%02X", d)
		}
		seen[d] = true
	}
	return o.Parser.Text.Validate()
}
