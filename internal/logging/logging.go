// Package logging builds the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options select the level, output format and optional log file.
type Options struct {
	Level string
	// Format is "json" (default) or "text".
	Format string
	// File, when set, receives a copy of every record in addition to stderr.
	File string
}

// New builds a logger from opts and installs it as the slog default. The
// returned cleanup func closes the log file if one was opened; callers must
// defer it.
func New(opts Options) (*slog.Logger, func(), error) {
	out, cleanup, err := sink(opts.File)
	if err != nil {
		return nil, nil, err
	}

	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	default:
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	logger := slog.New(handler).With("app", "renobudget")
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

func sink(file string) (io.Writer, func(), error) {
	if file == "" {
		return os.Stderr, func() {}, nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return io.MultiWriter(os.Stderr, f), func() { _ = f.Close() }, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
