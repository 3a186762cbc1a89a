// Package logging configures zerolog for the CLI and the HTTP server.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentKey names the subsystem that wrote an entry.
const ComponentKey = "component"

// Init sets the global level and replaces log.Logger with one writing to
// stderr. Progress bars also draw on stderr, so console output stays terse.
func Init(verbose, jsonOutput bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(Level(verbose))
	log.Logger = New(os.Stderr, jsonOutput)
}

// Level maps the --verbose flag to a zerolog level.
func Level(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// New returns a timestamped logger on out, as JSON lines or console text.
func New(out io.Writer, jsonOutput bool) zerolog.Logger {
	if !jsonOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// Component tags logger with the subsystem name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str(ComponentKey, name).Logger()
}

// WithComponent tags the global logger.
func WithComponent(name string) zerolog.Logger {
	return Component(log.Logger, name)
}
