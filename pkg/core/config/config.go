// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     config
// Description: TOML/YAML configuration with environment overrides
// License:     MIT
// ============================================================================

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/msto63/mdwterm/pkg/terminal/commands"
	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
	"github.com/msto63/mdwterm/pkg/terminal/parser"
	"github.com/msto63/mdwterm/pkg/terminal/router"
	"github.com/msto63/mdwterm/pkg/terminal/text"
)

// EnvConfigPath names the variable holding the config file path
const EnvConfigPath = "MDWTERM_CONFIG"

// Config holds the complete application configuration
type Config struct {
	General    GeneralConfig    `toml:"general" yaml:"general"`
	Router     RouterConfig     `toml:"router" yaml:"router"`
	Parser     ParserConfig     `toml:"parser" yaml:"parser"`
	Help       HelpConfig       `toml:"help" yaml:"help"`
	License    LicenseConfig    `toml:"license" yaml:"license"`
	Transports TransportsConfig `toml:"transports" yaml:"transports"`
	Journal    JournalConfig    `toml:"journal" yaml:"journal"`
}

// GeneralConfig holds general application settings
type GeneralConfig struct {
	Name      string `toml:"name" yaml:"name"`
	DataDir   string `toml:"data_dir" yaml:"data_dir"`
	LogLevel  string `toml:"log_level" yaml:"log_level" env:"MDWTERM_LOG_LEVEL"`
	LogFormat string `toml:"log_format" yaml:"log_format" env:"MDWTERM_LOG_FORMAT"`
}

// RouterConfig holds routing and framing settings shared by all transports
type RouterConfig struct {
	MaxLength        int       `toml:"max_length" yaml:"max_length"`
	MaxClients       int       `toml:"max_clients" yaml:"max_clients"`
	Timeout          Duration  `toml:"timeout" yaml:"timeout"`
	RouteDelay       Duration  `toml:"route_delay" yaml:"route_delay"`
	DisableResponse  bool      `toml:"disable_response" yaml:"disable_response"`
	StreamDelimiter  Delimiter `toml:"stream_delimiter" yaml:"stream_delimiter"`
	CommandDelimiter Delimiter `toml:"command_delimiter" yaml:"command_delimiter"`
	BatchDelimiter   Delimiter `toml:"batch_delimiter" yaml:"batch_delimiter"`
	IDDelimiter      Delimiter `toml:"id_delimiter" yaml:"id_delimiter"`
	Encoding         string    `toml:"encoding" yaml:"encoding"`
	RejectOverflow   bool      `toml:"reject_overflow" yaml:"reject_overflow"`
	MaxMessageSize   int       `toml:"max_message_size" yaml:"max_message_size"`
}

// ParserConfig holds tokenizer and parser settings
type ParserConfig struct {
	OptionPrefix         string `toml:"option_prefix" yaml:"option_prefix"`
	OptionAliasPrefix    string `toml:"option_alias_prefix" yaml:"option_alias_prefix"`
	OptionValueSeparator string `toml:"option_value_separator" yaml:"option_value_separator"`
	ValueDelimiter       string `toml:"value_delimiter" yaml:"value_delimiter"`
	Separator            string `toml:"separator" yaml:"separator"`
	ParseHierarchy       bool   `toml:"parse_hierarchy" yaml:"parse_hierarchy"`
	StrictDataType       bool   `toml:"strict_data_type" yaml:"strict_data_type"`
	CaseInsensitive      bool   `toml:"case_insensitive" yaml:"case_insensitive"`
}

// HelpConfig holds the help option settings
type HelpConfig struct {
	Enabled     bool   `toml:"enabled" yaml:"enabled"`
	OptionID    string `toml:"option_id" yaml:"option_id"`
	OptionAlias string `toml:"option_alias" yaml:"option_alias"`
}

// LicenseConfig locates the license document
type LicenseConfig struct {
	File  string `toml:"file" yaml:"file" env:"MDWTERM_LICENSE_FILE"`
	Watch bool   `toml:"watch" yaml:"watch"`
}

// TransportsConfig holds one section per transport
type TransportsConfig struct {
	TCP     ListenerConfig `toml:"tcp" yaml:"tcp"`
	UDP     ListenerConfig `toml:"udp" yaml:"udp"`
	HTTP    ListenerConfig `toml:"http" yaml:"http"`
	GRPC    GRPCConfig     `toml:"grpc" yaml:"grpc"`
	Console ConsoleConfig  `toml:"console" yaml:"console"`
}

// ListenerConfig enables a network transport on an address
type ListenerConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Address string `toml:"address" yaml:"address"`
}

// GRPCConfig holds the gRPC transport settings
type GRPCConfig struct {
	Enabled          bool   `toml:"enabled" yaml:"enabled"`
	Address          string `toml:"address" yaml:"address" env:"MDWTERM_GRPC_ADDR"`
	EnableReflection bool   `toml:"enable_reflection" yaml:"enable_reflection"`
}

// ConsoleConfig holds the interactive console settings
type ConsoleConfig struct {
	Enabled     bool   `toml:"enabled" yaml:"enabled"`
	Prompt      string `toml:"prompt" yaml:"prompt"`
	HistoryFile string `toml:"history_file" yaml:"history_file"`
}

// JournalConfig holds the route journal settings
type JournalConfig struct {
	Enabled   bool     `toml:"enabled" yaml:"enabled"`
	Path      string   `toml:"path" yaml:"path" env:"MDWTERM_JOURNAL_PATH"`
	Retention Duration `toml:"retention" yaml:"retention"`
}

// envOverrides lists the variables read on top of the file. The network
// addresses live on ListenerConfig which is shared by three transports, so
// they are read here and copied over.
type envOverrides struct {
	TCPAddr  string `env:"MDWTERM_TCP_ADDR"`
	UDPAddr  string `env:"MDWTERM_UDP_ADDR"`
	HTTPAddr string `env:"MDWTERM_HTTP_ADDR"`
}

// Duration wraps time.Duration for TOML and YAML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML parses a duration string
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// Delimiter is a single byte control character. It is written as a hex
// literal ("0x1E"), a decimal number or a single character.
type Delimiter byte

// UnmarshalText parses a delimiter
func (d *Delimiter) UnmarshalText(text []byte) error {
	s := string(text)
	if len(s) == 1 {
		*d = Delimiter(s[0])
		return nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return fmt.Errorf("invalid delimiter %q: expected a single character, a hex or a decimal byte", s)
	}
	*d = Delimiter(n)
	return nil
}

// MarshalText formats the delimiter as a hex literal
func (d Delimiter) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("0x%02X", byte(d))), nil
}

// UnmarshalYAML parses a delimiter
func (d *Delimiter) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// Default returns the configuration used when no file sets a value
func Default() *Config {
	var cfg Config
	cfg.Parser.ParseHierarchy = true
	cfg.Help.Enabled = true
	cfg.applyDefaults()
	return &cfg
}

// Load loads configuration from a TOML or YAML file, chosen by extension,
// and applies the MDWTERM_* environment overrides
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.expandEnvVars()
	return cfg, nil
}

// LoadFromEnv loads configuration from the MDWTERM_CONFIG environment
// variable or the default locations. Without a file the defaults plus the
// environment overrides are returned.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		defaultPaths := []string{
			"./configs/mdwterm.toml",
			"./configs/mdwterm.yaml",
			"./mdwterm.toml",
			filepath.Join(os.Getenv("HOME"), ".config/mdwterm/mdwterm.toml"),
		}
		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		cfg := Default()
		if err := cfg.applyEnv(); err != nil {
			return nil, err
		}
		cfg.applyDefaults()
		return cfg, nil
	}
	return Load(path)
}

// applyEnv overrides values from MDWTERM_* variables
func (c *Config) applyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.TCPAddr != "" {
		c.Transports.TCP.Address = o.TCPAddr
	}
	if o.UDPAddr != "" {
		c.Transports.UDP.Address = o.UDPAddr
	}
	if o.HTTPAddr != "" {
		c.Transports.HTTP.Address = o.HTTPAddr
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// General
	if c.General.Name == "" {
		c.General.Name = "mdwterm"
	}
	if c.General.DataDir == "" {
		c.General.DataDir = "./data"
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.General.LogFormat == "" {
		c.General.LogFormat = "json"
	}

	// Router
	defaults := router.DefaultOptions().Router
	if c.Router.MaxLength == 0 {
		c.Router.MaxLength = defaults.MaxLength
	}
	if c.Router.MaxClients == 0 {
		c.Router.MaxClients = defaults.MaxClients
	}
	if c.Router.Timeout.Duration == 0 {
		c.Router.Timeout.Duration = defaults.Timeout
	}
	if c.Router.RouteDelay.Duration == 0 {
		c.Router.RouteDelay.Duration = defaults.RouteDelay
	}
	if c.Router.StreamDelimiter == 0 {
		c.Router.StreamDelimiter = Delimiter(defaults.StreamDelimiter)
	}
	if c.Router.CommandDelimiter == 0 {
		c.Router.CommandDelimiter = Delimiter(defaults.CommandDelimiter)
	}
	if c.Router.BatchDelimiter == 0 {
		c.Router.BatchDelimiter = Delimiter(defaults.BatchDelimiter)
	}
	if c.Router.IDDelimiter == 0 {
		c.Router.IDDelimiter = Delimiter(defaults.IDDelimiter)
	}
	if c.Router.Encoding == "" {
		c.Router.Encoding = defaults.Encoding
	}
	if c.Router.MaxMessageSize == 0 {
		c.Router.MaxMessageSize = defaults.MaxMessageSize
	}

	// Parser
	textDefaults := text.DefaultOptions()
	if c.Parser.OptionPrefix == "" {
		c.Parser.OptionPrefix = textDefaults.OptionPrefix
	}
	if c.Parser.OptionAliasPrefix == "" {
		c.Parser.OptionAliasPrefix = textDefaults.OptionAliasPrefix
	}
	if c.Parser.OptionValueSeparator == "" {
		c.Parser.OptionValueSeparator = textDefaults.OptionValueSeparator
	}
	if c.Parser.ValueDelimiter == "" {
		c.Parser.ValueDelimiter = textDefaults.ValueDelimiter
	}
	if c.Parser.Separator == "" {
		c.Parser.Separator = textDefaults.Separator
	}

	// Help
	helpDefaults := commands.DefaultHelpOptions()
	if c.Help.OptionID == "" {
		c.Help.OptionID = helpDefaults.OptionID
	}
	if c.Help.OptionAlias == "" {
		c.Help.OptionAlias = helpDefaults.OptionAlias
	}

	// Transports
	if c.Transports.TCP.Address == "" {
		c.Transports.TCP.Address = "127.0.0.1:9600"
	}
	if c.Transports.UDP.Address == "" {
		c.Transports.UDP.Address = "127.0.0.1:9601"
	}
	if c.Transports.HTTP.Address == "" {
		c.Transports.HTTP.Address = "127.0.0.1:9602"
	}
	if c.Transports.GRPC.Address == "" {
		c.Transports.GRPC.Address = "127.0.0.1:9603"
	}
	if c.Transports.Console.Prompt == "" {
		c.Transports.Console.Prompt = "mdwterm> "
	}

	// Journal
	if c.Journal.Path == "" {
		c.Journal.Path = filepath.Join(c.General.DataDir, "journal.db")
	}
	if c.Journal.Retention.Duration == 0 {
		c.Journal.Retention.Duration = 30 * 24 * time.Hour
	}
}

// expandEnvVars expands environment variables in path values
func (c *Config) expandEnvVars() {
	c.General.DataDir = os.ExpandEnv(c.General.DataDir)
	c.License.File = os.ExpandEnv(c.License.File)
	c.Journal.Path = os.ExpandEnv(c.Journal.Path)
	c.Transports.Console.HistoryFile = os.ExpandEnv(c.Transports.Console.HistoryFile)
}

// ToRouterOptions converts the configuration into router options
func (c *Config) ToRouterOptions() router.Options {
	opts := router.DefaultOptions()
	opts.Router = router.RouterOptions{
		MaxLength:        c.Router.MaxLength,
		MaxClients:       c.Router.MaxClients,
		Timeout:          c.Router.Timeout.Duration,
		RouteDelay:       c.Router.RouteDelay.Duration,
		DisableResponse:  c.Router.DisableResponse,
		StreamDelimiter:  byte(c.Router.StreamDelimiter),
		CommandDelimiter: byte(c.Router.CommandDelimiter),
		BatchDelimiter:   byte(c.Router.BatchDelimiter),
		IDDelimiter:      byte(c.Router.IDDelimiter),
		Encoding:         c.Router.Encoding,
		RejectOverflow:   c.Router.RejectOverflow,
		MaxMessageSize:   c.Router.MaxMessageSize,
	}
	opts.Parser = parser.Options{
		Text: text.Options{
			OptionPrefix:         c.Parser.OptionPrefix,
			OptionAliasPrefix:    c.Parser.OptionAliasPrefix,
			OptionValueSeparator: c.Parser.OptionValueSeparator,
			ValueDelimiter:       c.Parser.ValueDelimiter,
			Separator:            c.Parser.Separator,
		},
		ParseHierarchy:  c.Parser.ParseHierarchy,
		StrictDataType:  c.Parser.StrictDataType,
		CaseInsensitive: c.Parser.CaseInsensitive,
		Help: commands.HelpOptions{
			Enabled:     c.Help.Enabled,
			OptionID:    c.Help.OptionID,
			OptionAlias: c.Help.OptionAlias,
		},
	}
	return opts
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	opts := c.ToRouterOptions()
	if err := opts.Validate(); err != nil {
		return err
	}
	if c.Help.Enabled && c.Help.OptionID == "" {
		return terrors.New(terrors.CodeInvalidConfiguration, "the help option id cannot be empty")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return terrors.New(terrors.CodeInvalidConfiguration, "the journal path cannot be empty")
	}
	return nil
}

// Enabled returns the names of the enabled transports
func (c *Config) Enabled() []string {
	var names []string
	if c.Transports.TCP.Enabled {
		names = append(names, "tcp")
	}
	if c.Transports.UDP.Enabled {
		names = append(names, "udp")
	}
	if c.Transports.HTTP.Enabled {
		names = append(names, "http")
	}
	if c.Transports.GRPC.Enabled {
		names = append(names, "grpc")
	}
	if c.Transports.Console.Enabled {
		names = append(names, "console")
	}
	return names
}

// GetTransportAddress returns the listen address of a network transport
func (c *Config) GetTransportAddress(transport string) string {
	switch transport {
	case "tcp":
		return c.Transports.TCP.Address
	case "udp":
		return c.Transports.UDP.Address
	case "http":
		return c.Transports.HTTP.Address
	case "grpc":
		return c.Transports.GRPC.Address
	default:
		return ""
	}
}
