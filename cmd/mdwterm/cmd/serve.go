package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/msto63/mdwterm/pkg/terminal/transport/console"
)

var serveTransports []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enabled transports",
	Long: `Starts every transport enabled in the configuration. With
--transport only the given transports are started on their configured
addresses.

Examples:
  mdwterm serve                       # transports from the config file
  mdwterm serve -t tcp -t http        # TCP and HTTP only
  MDWTERM_TCP_ADDR=:7000 mdwterm serve -t tcp`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringSliceVarP(&serveTransports, "transport", "t", nil, "transports to start (tcp, udp, http, grpc, console)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("failed to load configuration", err)
		return err
	}
	if len(serveTransports) > 0 {
		cfg.Transports.TCP.Enabled = false
		cfg.Transports.UDP.Enabled = false
		cfg.Transports.HTTP.Enabled = false
		cfg.Transports.GRPC.Enabled = false
		cfg.Transports.Console.Enabled = false
		for _, name := range serveTransports {
			switch name {
			case "tcp":
				cfg.Transports.TCP.Enabled = true
			case "udp":
				cfg.Transports.UDP.Enabled = true
			case "http":
				cfg.Transports.HTTP.Enabled = true
			case "grpc":
				cfg.Transports.GRPC.Enabled = true
			case "console":
				cfg.Transports.Console.Enabled = true
			default:
				err := fmt.Errorf("unknown transport %q", name)
				printError("invalid --transport", err)
				return err
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(cfg)
	if err != nil {
		printError("failed to build the command store", err)
		return err
	}

	transports := networkTransports(cfg)
	if cfg.Transports.Console.Enabled {
		rl, err := console.NewReadline(cfg.Transports.Console.Prompt, cfg.Transports.Console.HistoryFile, store)
		if err != nil {
			printError("failed to open the console", err)
			return err
		}
		transports.Console = rl
		transports.ConsoleOut = rl.Stdout()
	}

	h, closeFn, err := newHost(ctx, cfg, store, transports)
	if err != nil {
		printError("failed to create the host", err)
		return err
	}
	defer closeFn()

	fmt.Printf("mdwterm %s: %v\n", cfg.General.Name, cfg.Enabled())
	if err := h.Serve(ctx); err != nil {
		printError("host stopped", err)
		return err
	}
	return nil
}
