// Package logging wraps zerolog behind the process-wide leveled sink
// every field-bus component logs through, in place of the original
// agent's logging-adapter calls.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	log = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// SetOutput redirects the sink, which writes to stderr by default.
func SetOutput(w io.Writer) {
	log = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel sets the minimum severity logged, accepting zerolog's level
// names as passed to cmd/dlogg2csv's -log-level flag.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

func Debug() *zerolog.Event { return log.Debug() }
func Info() *zerolog.Event  { return log.Info() }
func Warn() *zerolog.Event  { return log.Warn() }
func Error() *zerolog.Event { return log.Error() }
