// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Options mirror the log section of the config file.
type Options struct {
	Level string
	// Format is auto, console or json. auto picks console output when the
	// writer is a terminal.
	Format string
}

// New returns a logger writing to w. An unknown level falls back to info.
func New(opts Options, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = timeFormat

	out := w
	if useConsole(opts.Format, w) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat}
	}
	return zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().
		Logger()
}

// ParseLevel accepts trace, debug, info, warn (or warning) and error in any case.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func useConsole(format string, w io.Writer) bool {
	switch format {
	case "console":
		return true
	case "json":
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
