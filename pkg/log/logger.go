package log

// Logger receives trace events from the observer core.
// Pass nil or NoopLogger to disable tracing.
type Logger interface {
	// Log records a trace event. It is called synchronously from attach and
	// detach paths, so implementations should return quickly.
	Log(event Event)
}

// NoopLogger discards all events. It is usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}
