// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     console
// Description: Interactive console transport
// License:     MIT
// ============================================================================

// Package console routes command lines typed on a terminal. Each line is
// one request; exit, quit or end of input stop the console.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/msto63/mdwterm/pkg/core/logging"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/router"
	"github.com/msto63/mdwterm/pkg/terminal/transport"
)

var consoleLogger = logging.New("console-router")

// LineReader reads command lines. *readline.Instance implements it.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// Router reads lines from a LineReader and prints the results
type Router struct {
	reader     LineReader
	out        io.Writer
	dispatcher *transport.Dispatcher
	opts       router.RouterOptions
	styles     Styles
}

// NewRouter creates a console router writing to out
func NewRouter(reader LineReader, out io.Writer, d *transport.Dispatcher, opts router.RouterOptions) (*Router, error) {
	if reader == nil || out == nil {
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the console input and output are required")
	}
	if d == nil {
		return nil, terrors.New(terrors.CodeInvalidConfiguration, "the dispatcher is missing")
	}
	return &Router{reader: reader, out: out, dispatcher: d, opts: opts, styles: NewStyles(out)}, nil
}

// Serve reads and routes lines until the input ends, the user exits or ctx
// is canceled
func (r *Router) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { r.reader.Close() })
	defer stop()
	defer r.reader.Close()

	ctx = transport.WithPeer(ctx, transport.Peer{Transport: "console", Address: "local"})
	for {
		line, err := r.reader.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if ctx.Err() != nil {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return terrors.Wrap(err, terrors.CodeConnectionClosed, "failed to read from the console")
		}

		line = strings.TrimSpace(line)
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		out := r.dispatcher.Dispatch(ctx, transport.Single("", line))
		if !r.opts.DisableResponse {
			r.print(out)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *Router) print(out transport.TerminalOutput) {
	for _, req := range out.Requests {
		if e, ok := transport.ErrorOf(req); ok {
			fmt.Fprintln(r.out, r.styles.Code.Render(e.Error)+" "+r.styles.Error.Render(e.Description))
			continue
		}
		if req.Result == nil {
			fmt.Fprintln(r.out, r.styles.Muted.Render("ok"))
			continue
		}
		fmt.Fprintln(r.out, r.styles.Result.Render(render(req.Result)))
	}
}

func render(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		consoleLogger.Debug("Failed to render result", "error", err)
		return fmt.Sprint(v)
	}
	return string(data)
}
