// Package logging sets up the server's shared zerolog logger, grounded on
// rcourtman-Pulse/cmd/pulse-agent/main.go's level-parsing/logger-construction
// shape. Logs are a shared resource (spec §5): the server's root logger,
// built by NewAsync, funnels every write through a single bounded async
// queue (async.go) that drops the newest record on overflow rather than
// blocking the caller. New builds a logger that writes directly to stdout.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ParseLevel maps a spec-style level name (INFO, DEBUG, WARN, ...) to a
// zerolog.Level, defaulting to Info the same way pulse-agent's
// parseLogLevel does for an empty or unrecognized value.
func ParseLevel(value string) zerolog.Level {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(normalized)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// New builds the server's root logger writing directly to stdout at the
// given level, matching pulse-agent's
// zerolog.New(os.Stdout).Level(...).With().Timestamp() construction.
func New(level string) zerolog.Logger {
	lvl := ParseLevel(level)
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

// NewAsync builds a root logger backed by a BoundedWriter over os.Stdout,
// for deployments that want the bounded-queue behavior New bypasses.
func NewAsync(level string, capacity int) (zerolog.Logger, *BoundedWriter) {
	lvl := ParseLevel(level)
	zerolog.SetGlobalLevel(lvl)
	w := NewBoundedWriter(os.Stdout, capacity)
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), w
}
