package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// capture routes the process-wide logger into a buffer for the test
func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	previous := base.Load()
	t.Cleanup(func() { base.Store(previous) })

	var buf bytes.Buffer
	Configure(LoggerConfig{ServiceName: "test", Level: level, Format: "json", Output: &buf})
	return &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{Level(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNew(t *testing.T) {
	logger := New("test-service")

	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.name != "test-service" {
		t.Errorf("name = %v, want test-service", logger.name)
	}
}

func TestLogger_Fields(t *testing.T) {
	buf := capture(t, "debug")

	New("tcp-router").Info("client connected", "address", "127.0.0.1:5000", "clients", 2, "err", errors.New("boom"))

	entries := decodeLines(t, buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["message"] != "client connected" {
		t.Errorf("message = %v", e["message"])
	}
	if e["component"] != "tcp-router" {
		t.Errorf("component = %v, want tcp-router", e["component"])
	}
	if e["service"] != "test" {
		t.Errorf("service = %v, want test", e["service"])
	}
	if e["clients"] != float64(2) {
		t.Errorf("clients = %v, want 2", e["clients"])
	}
	if e["err"] != "boom" {
		t.Errorf("err = %v, want boom", e["err"])
	}
	if e["level"] != "info" {
		t.Errorf("level = %v, want info", e["level"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	buf := capture(t, "warn")

	logger := New("test")
	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept")

	if got := len(decodeLines(t, buf)); got != 2 {
		t.Errorf("got %d entries, want 2", got)
	}
}

func TestLogger_WithLevel(t *testing.T) {
	buf := capture(t, "debug")

	logger := New("test").WithLevel(LevelError)
	if logger.name != "test" {
		t.Errorf("name should be preserved: got %v", logger.name)
	}
	logger.Warn("dropped")
	logger.Error("kept")

	if got := len(decodeLines(t, buf)); got != 1 {
		t.Errorf("got %d entries, want 1", got)
	}
}

func TestLogger_OddKeyValues(t *testing.T) {
	buf := capture(t, "info")

	New("test").Info("message", "key1", "value1", "orphan")

	entries := decodeLines(t, buf)
	if _, ok := entries[0]["orphan"]; ok {
		t.Error("orphan key should be skipped")
	}
	if entries[0]["key1"] != "value1" {
		t.Errorf("key1 = %v, want value1", entries[0]["key1"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDefaultLoggerConfig(t *testing.T) {
	cfg := DefaultLoggerConfig("my-service")

	if cfg.ServiceName != "my-service" {
		t.Errorf("ServiceName = %v, want my-service", cfg.ServiceName)
	}
	if cfg.Level != "info" {
		t.Errorf("Level = %v, want info", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %v, want json", cfg.Format)
	}
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{ServiceName: "svc", Level: "info", Format: "text", Output: &buf, NoColor: true})
	logger.Info().Msg("hello")

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("output %q does not contain message", buf.String())
	}
	if strings.HasPrefix(buf.String(), "{") {
		t.Error("text format should not produce JSON")
	}
}

func TestToFields(t *testing.T) {
	if fields := toFields(); fields != nil {
		t.Error("toFields() with no args should return nil")
	}

	fields := toFields("key1", "value1", "key2", 42)
	if fields["key1"] != "value1" {
		t.Errorf("fields[key1] = %v, want value1", fields["key1"])
	}
	if fields["key2"] != 42 {
		t.Errorf("fields[key2] = %v, want 42", fields["key2"])
	}

	fields = toFields(123, "value")
	if len(fields) != 0 {
		t.Errorf("Non-string key should be skipped, got %v fields", len(fields))
	}
}

func BenchmarkLogger_Info(b *testing.B) {
	previous := base.Load()
	defer base.Store(previous)
	Configure(LoggerConfig{Level: "info", Output: io.Discard})

	logger := New("benchmark")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark message", "iteration", i)
	}
}
