package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/msto63/mdwterm/pkg/core/config"
	"github.com/msto63/mdwterm/pkg/core/logging"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mdwterm",
	Short: "mdwterm - terminal command routing",
	Long: `mdwterm routes terminal commands to registered handlers over
TCP, UDP, HTTP, WebSocket, gRPC and an interactive console.

Transports:
  tcp      - delimiter framed stream
  udp      - one message per datagram
  http     - POST /terminal/route, GET /terminal/ws
  grpc     - mdwterm.v1.TerminalRouter/Route
  console  - interactive line editor`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/mdwterm.toml or $MDWTERM_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the configuration and configures logging from it
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logCfg := logging.DefaultLoggerConfig(cfg.General.Name)
	logCfg.Level = cfg.General.LogLevel
	logCfg.Format = cfg.General.LogFormat
	if verbose {
		logCfg.Level = "debug"
	}
	logging.Configure(logCfg)
	return cfg, nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
}
