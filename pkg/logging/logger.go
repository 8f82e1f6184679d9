// Package logging provides structured logging configuration and utilities.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	Level  string
	Pretty bool
	// Writer overrides the default stderr destination. The interactive
	// console sets this to a file because the alternate screen owns the
	// terminal while it runs.
	Writer io.Writer
}

// New builds the process logger. Logs go to stderr so command output stays
// pipeable: mission documents and descriptor plans are printed on stdout and
// must not interleave with log lines.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stderr
	if cfg.Writer != nil {
		output = cfg.Writer
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
