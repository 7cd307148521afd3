package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/msto63/mdwterm/pkg/core/config"
	"github.com/msto63/mdwterm/pkg/terminal/host"
	"github.com/msto63/mdwterm/pkg/terminal/transport"
	"github.com/msto63/mdwterm/pkg/terminal/transport/grpcapi"
	"github.com/msto63/mdwterm/pkg/terminal/transport/httpapi"
	"github.com/msto63/mdwterm/pkg/terminal/transport/tcp"
	"github.com/msto63/mdwterm/pkg/terminal/transport/udp"
)

var (
	execTransport string
	execAddr      string
	execTimeout   time.Duration
	execJSON      bool
)

var execCmd = &cobra.Command{
	Use:   "exec <command>...",
	Short: "Route commands through a running router or in process",
	Long: `Sends each argument as one command of a batch. Without --transport
the commands are routed in process.

Examples:
  mdwterm exec "pi status"
  mdwterm exec -t tcp --addr 127.0.0.1:9600 "pi math add 1 2" "echo hi -u"
  mdwterm exec -t grpc "pi status" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().StringVarP(&execTransport, "transport", "t", "", "transport to use (tcp, udp, http, grpc); empty routes in process")
	execCmd.Flags().StringVar(&execAddr, "addr", "", "router address (default: the configured address)")
	execCmd.Flags().DurationVar(&execTimeout, "timeout", 30*time.Second, "request timeout")
	execCmd.Flags().BoolVar(&execJSON, "json", false, "print the raw JSON output")
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("failed to load configuration", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), execTimeout)
	defer cancel()

	requests := make([]transport.TerminalRequest, 0, len(args))
	for _, raw := range args {
		requests = append(requests, transport.TerminalRequest{Raw: raw})
	}
	in := transport.Batch("", requests...)

	out, err := send(ctx, cfg, in)
	if err != nil && len(out.Requests) == 0 {
		printError("failed to route", err)
		return err
	}

	if execJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		fmt.Println(strings.Join(transport.Summary(out), "\n"))
	}

	for _, req := range out.Requests {
		if req.IsError {
			return fmt.Errorf("%d of %d commands failed", countErrors(out), len(out.Requests))
		}
	}
	return nil
}

func send(ctx context.Context, cfg *config.Config, in transport.TerminalInput) (transport.TerminalOutput, error) {
	addr := execAddr
	if addr == "" {
		addr = cfg.GetTransportAddress(execTransport)
	}
	opts := cfg.ToRouterOptions().Router

	switch execTransport {
	case "":
		store, err := newStore(cfg)
		if err != nil {
			return transport.TerminalOutput{}, err
		}
		h, closeFn, err := newHost(ctx, cfg, store, host.Transports{})
		if err != nil {
			return transport.TerminalOutput{}, err
		}
		defer closeFn()
		if _, err := h.License().Extract(ctx); err != nil {
			return transport.TerminalOutput{}, err
		}
		return h.Dispatch(ctx, in), nil
	case "tcp":
		c, err := tcp.Dial(ctx, addr, opts)
		if err != nil {
			return transport.TerminalOutput{}, err
		}
		defer c.Close()
		return c.Send(ctx, in)
	case "udp":
		c, err := udp.Dial(ctx, addr, opts)
		if err != nil {
			return transport.TerminalOutput{}, err
		}
		defer c.Close()
		return c.Send(ctx, in)
	case "http":
		return httpapi.NewClient(addr, nil).Send(ctx, in)
	case "grpc":
		c, err := grpcapi.Dial(addr)
		if err != nil {
			return transport.TerminalOutput{}, err
		}
		defer c.Close()
		return c.Send(ctx, in)
	default:
		return transport.TerminalOutput{}, fmt.Errorf("unknown transport %q", execTransport)
	}
}

func countErrors(out transport.TerminalOutput) int {
	n := 0
	for _, req := range out.Requests {
		if req.IsError {
			n++
		}
	}
	return n
}
