package config

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// SetupLogger creates the configured zerolog logger. The MCP transport owns
// stdout, so all logging goes to stderr.
func SetupLogger(cfg LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
