package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	terrors "github.com/msto63/mdwterm/pkg/terminal/errors"
)

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"seconds", "30s", 30 * time.Second, false},
		{"minutes", "5m", 5 * time.Minute, false},
		{"hours", "2h", 2 * time.Hour, false},
		{"complex", "1h30m", 90 * time.Minute, false},
		{"milliseconds", "100ms", 100 * time.Millisecond, false},
		{"invalid", "invalid", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))

			if (err != nil) != tt.wantErr {
				t.Errorf("UnmarshalText() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && d.Duration != tt.expected {
				t.Errorf("UnmarshalText() = %v, want %v", d.Duration, tt.expected)
			}
		})
	}
}

func TestDuration_MarshalText(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds", 30 * time.Second, "30s"},
		{"minutes", 5 * time.Minute, "5m0s"},
		{"hours", 2 * time.Hour, "2h0m0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Duration{tt.duration}
			result, err := d.MarshalText()

			if err != nil {
				t.Errorf("MarshalText() error = %v", err)
				return
			}

			if string(result) != tt.expected {
				t.Errorf("MarshalText() = %v, want %v", string(result), tt.expected)
			}
		})
	}
}

func TestDelimiter_UnmarshalText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Delimiter
		wantErr  bool
	}{
		{"hex", "0x1E", 0x1E, false},
		{"lower hex", "0x1f", 0x1F, false},
		{"decimal", "29", 29, false},
		{"character", "|", '|', false},
		{"too large", "0x100", 0, true},
		{"word", "tab", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Delimiter
			err := d.UnmarshalText([]byte(tt.input))

			if (err != nil) != tt.wantErr {
				t.Errorf("UnmarshalText() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && d != tt.expected {
				t.Errorf("UnmarshalText() = %v, want %v", d, tt.expected)
			}
		})
	}
}

func TestConfig_applyDefaults(t *testing.T) {
	cfg := Default()

	if cfg.General.Name != "mdwterm" {
		t.Errorf("General.Name = %v, want mdwterm", cfg.General.Name)
	}
	if cfg.General.LogLevel != "info" {
		t.Errorf("General.LogLevel = %v, want info", cfg.General.LogLevel)
	}

	if cfg.Router.MaxLength != 1024 {
		t.Errorf("Router.MaxLength = %v, want 1024", cfg.Router.MaxLength)
	}
	if cfg.Router.MaxClients != 64 {
		t.Errorf("Router.MaxClients = %v, want 64", cfg.Router.MaxClients)
	}
	if cfg.Router.Timeout.Duration != 30*time.Second {
		t.Errorf("Router.Timeout = %v, want 30s", cfg.Router.Timeout.Duration)
	}
	if cfg.Router.StreamDelimiter != 0x1E {
		t.Errorf("Router.StreamDelimiter = %#x, want 0x1e", byte(cfg.Router.StreamDelimiter))
	}
	if cfg.Router.Encoding != "utf-8" {
		t.Errorf("Router.Encoding = %v, want utf-8", cfg.Router.Encoding)
	}

	if cfg.Parser.OptionPrefix != "--" || cfg.Parser.OptionAliasPrefix != "-" {
		t.Errorf("Parser prefixes = %q %q, want -- -", cfg.Parser.OptionPrefix, cfg.Parser.OptionAliasPrefix)
	}
	if !cfg.Parser.ParseHierarchy {
		t.Error("Parser.ParseHierarchy = false, want true")
	}
	if !cfg.Help.Enabled || cfg.Help.OptionID != "help" || cfg.Help.OptionAlias != "h" {
		t.Errorf("Help = %+v, want enabled help/h", cfg.Help)
	}

	if cfg.Journal.Path != filepath.Join("./data", "journal.db") {
		t.Errorf("Journal.Path = %v, want data/journal.db", cfg.Journal.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_GetTransportAddress(t *testing.T) {
	cfg := Default()

	tests := []struct {
		transport string
		expected  string
	}{
		{"tcp", "127.0.0.1:9600"},
		{"udp", "127.0.0.1:9601"},
		{"http", "127.0.0.1:9602"},
		{"grpc", "127.0.0.1:9603"},
		{"console", ""},
	}

	for _, tt := range tests {
		t.Run(tt.transport, func(t *testing.T) {
			result := cfg.GetTransportAddress(tt.transport)
			if result != tt.expected {
				t.Errorf("GetTransportAddress(%q) = %v, want %v", tt.transport, result, tt.expected)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/mdwterm.toml")
	if err == nil {
		t.Error("Load() expected error for non-existent file")
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mdwterm.toml")

	configContent := `
[general]
name = "test-terminal"

[router]
max_length = 256
timeout = "5s"
stream_delimiter = "0x1E"
command_delimiter = 31
encoding = "utf-16le"
reject_overflow = true

[parser]
option_prefix = "/"
option_alias_prefix = "-"
parse_hierarchy = false

[help]
enabled = false

[transports.tcp]
enabled = true
address = "127.0.0.1:7000"

[transports.console]
enabled = true
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.General.Name != "test-terminal" {
		t.Errorf("General.Name = %v, want test-terminal", cfg.General.Name)
	}
	if cfg.Router.MaxLength != 256 {
		t.Errorf("Router.MaxLength = %v, want 256", cfg.Router.MaxLength)
	}
	if cfg.Router.Timeout.Duration != 5*time.Second {
		t.Errorf("Router.Timeout = %v, want 5s", cfg.Router.Timeout.Duration)
	}
	if cfg.Router.CommandDelimiter != 0x1F {
		t.Errorf("Router.CommandDelimiter = %#x, want 0x1f", byte(cfg.Router.CommandDelimiter))
	}
	if cfg.Parser.ParseHierarchy {
		t.Error("Parser.ParseHierarchy = true, want false")
	}
	if cfg.Help.Enabled {
		t.Error("Help.Enabled = true, want false")
	}

	// Defaults stay for missing values
	if cfg.Router.MaxClients != 64 {
		t.Errorf("Router.MaxClients = %v, want 64 (default)", cfg.Router.MaxClients)
	}

	opts := cfg.ToRouterOptions()
	if opts.Router.Encoding != "utf-16le" || !opts.Router.RejectOverflow {
		t.Errorf("ToRouterOptions() router = %+v", opts.Router)
	}
	if opts.Parser.Text.OptionPrefix != "/" {
		t.Errorf("ToRouterOptions() option prefix = %q, want /", opts.Parser.Text.OptionPrefix)
	}

	enabled := cfg.Enabled()
	if len(enabled) != 2 || enabled[0] != "tcp" || enabled[1] != "console" {
		t.Errorf("Enabled() = %v, want [tcp console]", enabled)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mdwterm.yaml")

	configContent := `
router:
  max_clients: 8
  route_delay: 10ms
  batch_delimiter: "0x1D"
transports:
  grpc:
    enabled: true
    address: 127.0.0.1:7100
journal:
  enabled: true
  path: $MDWTERM_TEST_DIR/journal.db
  retention: 24h
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	t.Setenv("MDWTERM_TEST_DIR", tmpDir)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Router.MaxClients != 8 {
		t.Errorf("Router.MaxClients = %v, want 8", cfg.Router.MaxClients)
	}
	if cfg.Router.RouteDelay.Duration != 10*time.Millisecond {
		t.Errorf("Router.RouteDelay = %v, want 10ms", cfg.Router.RouteDelay.Duration)
	}
	if cfg.Router.BatchDelimiter != 0x1D {
		t.Errorf("Router.BatchDelimiter = %#x, want 0x1d", byte(cfg.Router.BatchDelimiter))
	}
	if !cfg.Transports.GRPC.Enabled || cfg.Transports.GRPC.Address != "127.0.0.1:7100" {
		t.Errorf("Transports.GRPC = %+v", cfg.Transports.GRPC)
	}
	if cfg.Journal.Path != tmpDir+"/journal.db" {
		t.Errorf("Journal.Path = %v, want %s/journal.db", cfg.Journal.Path, tmpDir)
	}
	if cfg.Journal.Retention.Duration != 24*time.Hour {
		t.Errorf("Journal.Retention = %v, want 24h", cfg.Journal.Retention.Duration)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mdwterm.toml")
	if err := os.WriteFile(configPath, []byte("[transports.tcp]\naddress = \"127.0.0.1:1\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	t.Setenv("MDWTERM_LOG_LEVEL", "debug")
	t.Setenv("MDWTERM_TCP_ADDR", "127.0.0.1:2")
	t.Setenv("MDWTERM_GRPC_ADDR", "127.0.0.1:3")
	t.Setenv("MDWTERM_LICENSE_FILE", "/etc/mdwterm/license.toml")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.General.LogLevel != "debug" {
		t.Errorf("General.LogLevel = %v, want debug", cfg.General.LogLevel)
	}
	if cfg.Transports.TCP.Address != "127.0.0.1:2" {
		t.Errorf("Transports.TCP.Address = %v, want 127.0.0.1:2", cfg.Transports.TCP.Address)
	}
	if cfg.Transports.GRPC.Address != "127.0.0.1:3" {
		t.Errorf("Transports.GRPC.Address = %v, want 127.0.0.1:3", cfg.Transports.GRPC.Address)
	}
	if cfg.License.File != "/etc/mdwterm/license.toml" {
		t.Errorf("License.File = %v", cfg.License.File)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative max length", func(c *Config) { c.Router.MaxLength = -1 }},
		{"negative max clients", func(c *Config) { c.Router.MaxClients = -1 }},
		{"same delimiters", func(c *Config) { c.Router.BatchDelimiter = c.Router.StreamDelimiter }},
		{"same prefixes", func(c *Config) { c.Parser.OptionAliasPrefix = c.Parser.OptionPrefix }},
		{"help without id", func(c *Config) { c.Help.OptionID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !terrors.HasCode(err, terrors.CodeInvalidConfiguration) {
				t.Errorf("Validate() error = %v, want INVALID_CONFIGURATION", err)
			}
		})
	}
}

func TestLoadFromEnv_NoConfigFound(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	// Change to a temp directory without config files
	originalWd, _ := os.Getwd()
	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	defer os.Chdir(originalWd)
	t.Setenv("HOME", tmpDir)
	t.Setenv("MDWTERM_UDP_ADDR", "127.0.0.1:4")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.Transports.UDP.Address != "127.0.0.1:4" {
		t.Errorf("Transports.UDP.Address = %v, want 127.0.0.1:4", cfg.Transports.UDP.Address)
	}
	if cfg.Router.MaxLength != 1024 {
		t.Errorf("Router.MaxLength = %v, want 1024", cfg.Router.MaxLength)
	}
}
