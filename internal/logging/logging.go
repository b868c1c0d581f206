// Package logging provides the package-level logger used across the
// engine core. Structured fields go through zerolog; the package-level
// Infof/Warnf/Errorf helpers keep call sites terse, matching the shape
// the rest of the codebase expects from a "logger" package.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var base zerolog.Logger

func init() {
	base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()
}

// SetOutput redirects the base logger, mainly for tests that want to
// capture or silence output.
func SetOutput(w io.Writer) {
	base = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel adjusts the minimum emitted level ("debug", "info", "warn", "error").
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	base = base.Level(lvl)
}

func Info(msg string)                     { base.Info().Msg(msg) }
func Infof(format string, args ...any)     { base.Info().Msgf(format, args...) }
func Warn(msg string)                      { base.Warn().Msg(msg) }
func Warnf(format string, args ...any)     { base.Warn().Msgf(format, args...) }
func Errorf(format string, args ...any)    { base.Error().Msgf(format, args...) }
func Error(msg string, err error)          { base.Error().Err(err).Msg(msg) }
func Debugf(format string, args ...any)    { base.Debug().Msgf(format, args...) }

// Fields is a small convenience wrapper returning a *zerolog.Event
// pre-populated with a field set, for call sites that need structured
// key/value logging rather than a formatted string (e.g. compliance
// violations, order lifecycle transitions).
func Fields(kv map[string]any) *zerolog.Event {
	ev := base.Info()
	for k, v := range kv {
		ev = ev.Interface(k, v)
	}
	return ev
}

// Logger exposes the underlying zerolog.Logger for packages that need
// to bridge into a different logging library.
func Logger() zerolog.Logger { return base }
