// Package logging builds the zerolog logger used for debug diagnostics.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New creates a console logger writing to w at the given level.
func New(w io.Writer, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    true,
	}
	return zerolog.New(output).
		With().
		Timestamp().
		Logger().
		Level(ParseLevel(level))
}

// ParseLevel falls back to warn for empty or unknown values.
func ParseLevel(raw string) zerolog.Level {
	if raw == "" {
		return zerolog.WarnLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.WarnLevel
	}
	return level
}
