// Package logger builds the process logger for each deployment environment.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/iliyamo/vacation-rental-marketplace/internal/lib/logger/slogpretty"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Setup returns a colored human-readable logger for local runs, JSON at
// debug level for dev and JSON at info level for prod.  Unknown
// environments get the prod logger.
func Setup(env string) *slog.Logger {
	return setup(env, os.Stdout)
}

func setup(env string, out io.Writer) *slog.Logger {
	switch env {
	case EnvLocal:
		opts := slogpretty.PrettyHandlerOptions{
			SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
		}
		return slog.New(opts.NewPrettyHandler(out))
	case EnvDev:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
