package svcutil

import (
	"io"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v2"
)

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "error":
		return slog.LevelError
	case "warn":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Builds the JSON handler selected by the "log-level" flag.
func JSONHandler(cctx *cli.Context, writer io.Writer) slog.Handler {
	return slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: ParseLevel(cctx.String("log-level")),
	})
}

// Installs a logger as the process default. If wrap is non-nil, it decorates the JSON handler (eg, to tee records into another sink).
func ConfigLogger(cctx *cli.Context, writer io.Writer, wrap func(slog.Handler) slog.Handler) *slog.Logger {
	h := JSONHandler(cctx, writer)
	if wrap != nil {
		h = wrap(h)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
