// Package logger builds the zerolog root logger for the planner. All
// component loggers derive from the one returned by New, which also
// replaces zerolog's package-level logger so stray log calls end up in
// the same stream.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the log level and output format.
type Config struct {
	// Level is one of debug, info, warn, error. Unknown values fall
	// back to info.
	Level string
	// Pretty switches to human-readable console output for local runs.
	Pretty bool
}

// New builds the root logger and installs it as the zerolog global.
func New(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	l := zerolog.New(out).With().Timestamp().Caller().Logger()
	log.Logger = l
	return l
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
