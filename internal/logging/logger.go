// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

// Package logging is the one place pvrmirror configures zerolog. main
// calls Init once; everything else either uses the package-level event
// starters or derives a component logger:
//
//	log := logging.With().Str("component", "htsp").Logger()
//
// Event chains must end in .Msg() or .Send(), otherwise zerolog drops
// them without output.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, format, and destination for all log output.
type Config struct {
	// Level: trace, debug, info, warn, error, disabled. Defaults to info.
	Level string

	// Format: "json" (default) or "console" for development.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// active holds the current global logger. Swapped whole on Init or
// SetLogger so readers never need a lock.
var active atomic.Pointer[zerolog.Logger]

func init() {
	Init(Config{})
}

// Init builds and installs the global logger. Calling it again
// reconfigures everything, including loggers previously derived via
// With (they hold a copy, so they keep their old settings; derive after
// Init).
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	logger := zerolog.New(out).With().Timestamp().Logger()
	active.Store(&logger)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "", "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	return *active.Load()
}

// SetLogger installs a replacement global logger. Tests use it with
// NewTestLogger to capture output.
func SetLogger(l zerolog.Logger) {
	active.Store(&l)
}

// With opens a context for deriving a component logger with standing
// fields.
func With() zerolog.Context {
	return active.Load().With()
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event {
	return active.Load().Debug()
}

// Info starts an info-level event.
func Info() *zerolog.Event {
	return active.Load().Info()
}

// Warn starts a warn-level event.
func Warn() *zerolog.Event {
	return active.Load().Warn()
}

// Error starts an error-level event.
func Error() *zerolog.Event {
	return active.Load().Error()
}

// Fatal starts a fatal-level event; the process exits after Msg.
func Fatal() *zerolog.Event {
	return active.Load().Fatal()
}

// NewTestLogger returns a logger writing JSON to w, for capturing output
// in tests.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
