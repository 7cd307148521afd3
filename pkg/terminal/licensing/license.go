// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     licensing
// Description: License model, extraction, caching and limit checks
// License:     MIT
// ============================================================================

// Package licensing extracts the license a host runs under and checks
// per-request usage against its limits.
package licensing

import (
	"context"
	"time"

	"github.com/msto63/mdwterm/pkg/terminal/commands"
)

// Claims identify the licensee and the validity window
type Claims struct {
	TenantID  string    `json:"tenant_id" toml:"tenant_id" yaml:"tenant_id"`
	Subject   string    `json:"subject" toml:"subject" yaml:"subject"`
	Issuer    string    `json:"issuer" toml:"issuer" yaml:"issuer"`
	Name      string    `json:"name" toml:"name" yaml:"name"`
	IssuedAt  time.Time `json:"issued_at" toml:"issued_at" yaml:"issued_at"`
	ExpiresAt time.Time `json:"expires_at" toml:"expires_at" yaml:"expires_at"`
}

// Limits restrict what a host may register and route. Zero means unlimited,
// an empty list means everything is allowed.
type Limits struct {
	RootCommandLimit       int      `json:"root_command_limit" toml:"root_command_limit" yaml:"root_command_limit"`
	GroupedCommandLimit    int      `json:"grouped_command_limit" toml:"grouped_command_limit" yaml:"grouped_command_limit"`
	SubCommandLimit        int      `json:"sub_command_limit" toml:"sub_command_limit" yaml:"sub_command_limit"`
	OptionLimit            int      `json:"option_limit" toml:"option_limit" yaml:"option_limit"`
	ArgumentLimit          int      `json:"argument_limit" toml:"argument_limit" yaml:"argument_limit"`
	DataTypes              []string `json:"data_types" toml:"data_types" yaml:"data_types"`
	StrictDataType         bool     `json:"strict_data_type" toml:"strict_data_type" yaml:"strict_data_type"`
	StoreImplementations   []string `json:"store_implementations" toml:"store_implementations" yaml:"store_implementations"`
	ServiceImplementations []string `json:"service_implementations" toml:"service_implementations" yaml:"service_implementations"`
}

// License is an immutable license snapshot. Refreshing replaces the whole
// snapshot, it is never modified in place.
type License struct {
	ID     string `json:"id" toml:"id" yaml:"id"`
	Plan   string `json:"plan" toml:"plan" yaml:"plan"`
	Usage  string `json:"usage" toml:"usage" yaml:"usage"`
	Claims Claims `json:"claims" toml:"claims" yaml:"claims"`
	Limits Limits `json:"limits" toml:"limits" yaml:"limits"`
}

// Usage is what a single request uses, compared against the license limits
type Usage struct {
	Counts                commands.Counts
	Command               string
	Options               int
	Arguments             int
	DataTypes             []commands.DataType
	StrictDataType        bool
	StoreImplementation   string
	ServiceImplementation string
	Now                   time.Time
}

// UsageOf builds the usage of a parsed command. The store counts are taken
// from store.
func UsageOf(store commands.Store, cmd *commands.Command) Usage {
	u := Usage{Counts: commands.Count(store)}
	if cmd == nil {
		return u
	}

	u.Command = cmd.ID()
	u.Options = len(cmd.Options)
	u.Arguments = len(cmd.Arguments)

	seen := make(map[commands.DataType]bool)
	add := func(dt commands.DataType) {
		dt = dt.Normalized()
		if !seen[dt] {
			seen[dt] = true
			u.DataTypes = append(u.DataTypes, dt)
		}
	}
	for _, opt := range cmd.Options {
		if opt.Descriptor != nil {
			add(opt.Descriptor.DataType)
		}
	}
	for _, arg := range cmd.Arguments {
		if arg.Descriptor != nil {
			add(arg.Descriptor.DataType)
		}
	}
	return u
}

// Extractor obtains the current license
type Extractor interface {
	Extract(ctx context.Context) (*License, error)
}

// ExtractorFunc adapts a function to Extractor
type ExtractorFunc func(ctx context.Context) (*License, error)

// Extract calls f
func (f ExtractorFunc) Extract(ctx context.Context) (*License, error) {
	return f(ctx)
}

// CheckResult is the outcome of a successful license check
type CheckResult struct {
	Warnings []string
}

// Checker compares a usage snapshot against a license. Implementations must
// not perform I/O.
type Checker interface {
	Check(license *License, usage Usage) (*CheckResult, error)
}
