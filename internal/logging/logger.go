// Package logging builds the process slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"

	"issuecompass/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger writing to stderr and, when cfg.File is set, to that
// file as JSON. The returned closer releases the file.
func New(cfg config.LogConfig) (*slog.Logger, io.Closer, error) {
	return NewWithWriter(cfg, os.Stderr)
}

func NewWithWriter(cfg config.LogConfig, w io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var terminal slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		terminal = slog.NewTextHandler(w, opts)
	case "json":
		terminal = slog.NewJSONHandler(w, opts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.File == "" {
		return slog.New(terminal), nopCloser{}, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file failed: %w", err)
	}
	handler := slogmulti.Fanout(terminal, slog.NewJSONHandler(f, opts))
	return slog.New(handler), f, nil
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
