package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON on stdout so log shippers can index
// the audit fields emitted by the services.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
