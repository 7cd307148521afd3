package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/msto63/mdwterm/pkg/terminal/host"
	"github.com/msto63/mdwterm/pkg/terminal/transport/console"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Route commands typed in an interactive console",
	Long: `Opens a line editor with history and completion of the registered
commands. Protected commands are authorized in the console.
Leave with exit, quit or Ctrl-D.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("failed to load configuration", err)
		return err
	}

	// interrupts are handled by the line editor
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	store, err := newStore(cfg)
	if err != nil {
		printError("failed to build the command store", err)
		return err
	}
	rl, err := console.NewReadline(cfg.Transports.Console.Prompt, cfg.Transports.Console.HistoryFile, store)
	if err != nil {
		printError("failed to open the console", err)
		return err
	}

	h, closeFn, err := newHost(ctx, cfg, store, host.Transports{Console: rl, ConsoleOut: rl.Stdout()})
	if err != nil {
		printError("failed to create the host", err)
		return err
	}
	defer closeFn()
	return h.Serve(ctx)
}
