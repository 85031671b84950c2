package log

import (
	"io"
	"log/slog"
)

// Options selects the level and format of a logger.
type Options struct {
	// Verbosity is the number of -v flags: 1 shows info, 2 or more shows debug.
	Verbosity int

	// Quiet shows errors only. It wins over Verbosity.
	Quiet bool

	// JSON selects the JSON handler instead of the text handler.
	JSON bool
}

// Level maps the options to a slog level. Warnings are shown by default.
func (o Options) Level() slog.Level {
	switch {
	case o.Quiet:
		return slog.LevelError
	case o.Verbosity >= 2:
		return slog.LevelDebug
	case o.Verbosity == 1:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// NewLogger creates a slog.Logger that writes to w and sanitizes sensitive
// values in all output.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level()}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(NewSecureHandler(handler))
}
