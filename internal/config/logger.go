package config

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger configures the global zerolog logger: console output in
// development, JSON otherwise, at LOG_LEVEL (debug when VERBOSE is set).
func (c Config) SetupLogger() {
	log.Logger = c.Logger(os.Stderr)
}

func (c Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if c.Verbose && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	if c.Environment == "development" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
