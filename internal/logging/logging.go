// Package logging configures the global zerolog logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets up the global logger with the given level. Unknown levels
// fall back to info rather than failing startup.
func Init(level string) {
	zerolog.TimeFieldFormat = time.RFC3339

	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// WithComponent returns a logger tagged with a component name.
func WithComponent(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
