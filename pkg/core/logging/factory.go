// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     logging
// Description: Factory functions for creating loggers
// License:     MIT
// ============================================================================

package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// base is the process-wide logger every component logger writes through.
// Configure swaps it, so loggers created in package variables pick up the
// configuration applied later in main.
var base atomic.Pointer[zerolog.Logger]

func init() {
	l := NewLogger(DefaultLoggerConfig("mdwterm"))
	base.Store(&l)
}

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	// Service name
	ServiceName string

	// Log level (trace, debug, info, warn, error, fatal, disabled)
	Level string

	// Output format
	Format string // "json" or "text" (default: json)

	// Output defaults to stderr
	Output io.Writer

	// Additional outputs besides Output
	AdditionalOutputs []io.Writer

	// NoColor disables colors in text format
	NoColor bool
}

// DefaultLoggerConfig returns a default configuration
func DefaultLoggerConfig(serviceName string) LoggerConfig {
	return LoggerConfig{
		ServiceName: serviceName,
		Level:       "info",
		Format:      "json",
	}
}

// NewLogger creates a zerolog logger from the configuration
func NewLogger(cfg LoggerConfig) zerolog.Logger {
	var output io.Writer = os.Stderr
	if cfg.Output != nil {
		output = cfg.Output
	}

	if cfg.Format == "text" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		}
	}

	if len(cfg.AdditionalOutputs) > 0 {
		writers := append([]io.Writer{output}, cfg.AdditionalOutputs...)
		output = zerolog.MultiLevelWriter(writers...)
	}

	ctx := zerolog.New(output).Level(parseLevel(cfg.Level)).With().Timestamp()
	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	return ctx.Logger()
}

// Configure replaces the process-wide logger used by all component loggers
func Configure(cfg LoggerConfig) {
	l := NewLogger(cfg)
	base.Store(&l)
}

// parseLevel converts a string level to a zerolog level
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger is a named component logger taking key/value pairs
type Logger struct {
	name     string
	minLevel zerolog.Level
}

// New creates a component logger
func New(name string) *Logger {
	return &Logger{name: name, minLevel: zerolog.TraceLevel}
}

// WithLevel returns a logger that drops entries below level
func (l *Logger) WithLevel(level Level) *Logger {
	return &Logger{name: l.name, minLevel: level.zerolog()}
}

// Zerolog returns the underlying logger tagged with the component name
func (l *Logger) Zerolog() zerolog.Logger {
	return base.Load().With().Str("component", l.name).Logger()
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(zerolog.DebugLevel, msg, keysAndValues)
}

// Info logs an info message
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log(zerolog.InfoLevel, msg, keysAndValues)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log(zerolog.WarnLevel, msg, keysAndValues)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log(zerolog.ErrorLevel, msg, keysAndValues)
}

func (l *Logger) log(level zerolog.Level, msg string, keysAndValues []interface{}) {
	if level < l.minLevel {
		return
	}
	zl := base.Load()
	zl.WithLevel(level).
		Str("component", l.name).
		Fields(toFields(keysAndValues...)).
		Msg(msg)
}

// toFields converts key-value pairs to a field map. Non-string keys and a
// trailing key without value are skipped.
func toFields(keysAndValues ...interface{}) map[string]interface{} {
	if len(keysAndValues) == 0 {
		return nil
	}

	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields[key] = err.Error()
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
