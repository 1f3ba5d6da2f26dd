// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the handler used by NewWithOptions.
type Options struct {
	// Format is "text" (default) or "json".
	Format string
	Level  slog.Level
}

// New returns a slog.Logger writing one timestamped line per record to stdout.
// USBVLAN_LOG_FORMAT and USBVLAN_LOG_LEVEL adjust the handler.
func New(subsystem string) *slog.Logger {
	opts := Options{
		Format: os.Getenv("USBVLAN_LOG_FORMAT"),
		Level:  ParseLevel(os.Getenv("USBVLAN_LOG_LEVEL")),
	}
	return NewWithOptions(os.Stdout, opts).With("subsystem", subsystem)
}

// NewWithOptions builds a logger on an arbitrary writer.
func NewWithOptions(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
