package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. LOG_LEVEL overrides the
// fallback level; LOG_FILE sends JSON lines to a file instead of the
// console, which keeps the interactive call screen clean.
func Init(fallback zerolog.Level) {
	level := ParseLevel(os.Getenv("LOG_LEVEL"), fallback)
	zerolog.SetGlobalLevel(level)

	out := output(os.Getenv("LOG_FILE"), os.Stderr)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// output opens path for JSON logs. Without a path, or when it cannot be
// opened, logs go to a console writer on stderr.
func output(path string, stderr io.Writer) io.Writer {
	console := zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}
	if path == "" {
		return console
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(stderr, "warning: cannot open LOG_FILE, logging to stderr: %v\n", err)
		return console
	}
	return f
}

// ParseLevel maps the LOG_LEVEL vocabulary onto zerolog levels.
func ParseLevel(value string, fallback zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "development", "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error", "production", "prod":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return fallback
	}
}
