// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Setup sets the global level and output format (console, json or auto)
// and returns the configured logger.
func Setup(level, format string) zerolog.Logger {
	return setup(os.Stderr, level, format, term.IsTerminal(int(os.Stderr.Fd())))
}

func setup(w io.Writer, level, format string, tty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	out := w
	switch strings.ToLower(format) {
	case "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	case "json":
	default:
		if tty {
			out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
		}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}
