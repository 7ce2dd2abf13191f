package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

func setupLogging(w io.Writer, debug, noColor bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	logger := slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    noColor,
		}),
	)
	slog.SetDefault(logger)
	return logger
}
