// Package logging builds the zerolog.Logger shared by every core component.
// It replaces the teacher's plain fmt.Fprintf(os.Stderr, ...) progress
// writes (kept verbatim in cmd/ for the spinner) with structured, leveled
// events for cache degradation and collector warnings. Retries and
// individual requests are not logged.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger writing to w (typically os.Stderr). When pretty is
// true, output goes through zerolog's console writer (colorized, human
// readable); otherwise it emits one JSON object per line, suitable for
// piping into a log aggregator.
func New(w io.Writer, level zerolog.Level, pretty bool) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Default returns a logger at info level, pretty-printed when stderr is a
// terminal. internal/config hands it to the pipeline, collector, and
// cache it builds.
func Default() zerolog.Logger {
	pretty := false
	if fi, err := os.Stderr.Stat(); err == nil {
		pretty = fi.Mode()&os.ModeCharDevice != 0
	}
	return New(os.Stderr, zerolog.InfoLevel, pretty)
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
