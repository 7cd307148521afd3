package cmd

import (
	"context"

	"github.com/msto63/mdwterm/internal/demo"
	"github.com/msto63/mdwterm/pkg/core/config"
	"github.com/msto63/mdwterm/pkg/core/logging"
	"github.com/msto63/mdwterm/pkg/terminal/commands"
	"github.com/msto63/mdwterm/pkg/terminal/host"
	"github.com/msto63/mdwterm/pkg/terminal/journal"
	"github.com/msto63/mdwterm/pkg/terminal/licensing"
	"github.com/msto63/mdwterm/pkg/terminal/runtime"
	"github.com/msto63/mdwterm/pkg/terminal/text"
)

var cliLogger = logging.New("mdwterm")

// newStore builds the demo command store with the configured comparer
func newStore(cfg *config.Config) (commands.Store, error) {
	cmp := text.CaseSensitive
	if cfg.Parser.CaseInsensitive {
		cmp = text.CaseInsensitive
	}
	return demo.NewStore(cmp)
}

// newHost wires a host from the configuration. The returned close function
// releases the journal.
func newHost(ctx context.Context, cfg *config.Config, store commands.Store, transports host.Transports) (*host.Host, func(), error) {
	reg := runtime.NewRegistry()
	if err := demo.Register(reg, store); err != nil {
		return nil, nil, err
	}

	var extractor licensing.Extractor = licensing.StaticExtractor{License: demo.License()}
	if cfg.License.File != "" {
		extractor = licensing.FileExtractor{Path: cfg.License.File}
	}

	hcfg := host.Config{
		Name:         cfg.General.Name,
		Options:      cfg.ToRouterOptions(),
		Store:        store,
		Registry:     reg,
		Licenses:     extractor,
		LicenseFile:  cfg.License.File,
		WatchLicense: cfg.License.Watch,
		Transports:   transports,
	}

	closeFn := func() {}
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, nil, err
		}
		if n, err := j.Prune(ctx, cfg.Journal.Retention.Duration); err != nil {
			cliLogger.Warn("Failed to prune route journal", "error", err)
		} else if n > 0 {
			cliLogger.Info("Route journal pruned", "entries", n)
		}
		hcfg.Journal = j
		closeFn = func() { j.Close() }
	}

	h, err := host.New(hcfg)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return h, closeFn, nil
}

// networkTransports returns the enabled network transports of cfg
func networkTransports(cfg *config.Config) host.Transports {
	var t host.Transports
	if cfg.Transports.TCP.Enabled {
		t.TCP = cfg.Transports.TCP.Address
	}
	if cfg.Transports.UDP.Enabled {
		t.UDP = cfg.Transports.UDP.Address
	}
	if cfg.Transports.HTTP.Enabled {
		t.HTTP = cfg.Transports.HTTP.Address
	}
	if cfg.Transports.GRPC.Enabled {
		t.GRPC = cfg.Transports.GRPC.Address
		t.GRPCReflection = cfg.Transports.GRPC.EnableReflection
	}
	return t
}
