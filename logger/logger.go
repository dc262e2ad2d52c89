// Package logger bootstraps HiveBoard's structured logger.
package logger

import (
	"os"

	"github.com/hiveboard/hiveboard/config"
	"github.com/rs/zerolog"
)

// New returns a configured zerolog.Logger. Local mode logs at debug level
// with a human-readable console writer; production logs structured JSON
// at info level.
func New(cfg *config.Config) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if cfg.IsLocal() {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if cfg.IsLocal() {
		out := zerolog.ConsoleWriter{Out: os.Stderr}
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
