package logging

import (
	"io"
	"log/slog"

	"github.com/August26/proxytest-go/internal/model"
)

// Level picks the log level for a run.
// Default is Warn so per-attempt lines stay hidden; -verbose shows them at
// Info and -debug adds connection details.
func Level(cfg model.Config) slog.Level {
	switch {
	case cfg.Debug:
		return slog.LevelDebug
	case cfg.Verbose:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// NewLogger returns a structured logger writing JSON to w (stderr in main).
// Quiet discards everything.
func NewLogger(w io.Writer, cfg model.Config) *slog.Logger {
	if cfg.Quiet {
		return slog.New(slog.DiscardHandler)
	}
	level := new(slog.LevelVar)
	level.Set(Level(cfg))

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}
