package observer

import (
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/qtilities/qtilities-go/pkg/log"
)

// Config configures a Manager.
type Config struct {
	// MaxWalkDepth bounds the cycle check walk through nested observers.
	MaxWalkDepth int

	// Logger receives operational diagnostics. Nil discards them.
	Logger *slog.Logger

	// TraceLogger receives structured trace events. Nil disables tracing.
	TraceLogger log.Logger

	// SessionID tags trace events. Empty generates a UUID.
	SessionID string
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		MaxWalkDepth: 256,
	}
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.MaxWalkDepth <= 0 {
		c.MaxWalkDepth = DefaultConfig().MaxWalkDepth
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.TraceLogger == nil {
		c.TraceLogger = log.NoopLogger{}
	}
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	return c
}
