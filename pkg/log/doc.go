// Package log provides structured trace logging for the observer core.
//
// This package defines the Logger interface and Event types for capturing
// ownership decisions as they happen: attaches, detaches, filter verdicts,
// resolver outcomes and codec runs. It is separate from operational logging
// (slog) - the trace is a machine-readable record for debugging why a subject
// was deleted, kept or rejected.
//
// # Basic Usage
//
// Applications configure tracing by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.TraceLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.TraceLogger, _ = log.NewFileLogger("/var/log/app/observers.olog")
//
//	// Both: use MultiLogger
//	cfg.TraceLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Every Event has a Category. Category-specific payloads carry the details:
//   - Attach/Detach: AttachEvent (policy, category, rename)
//   - Ownership: OwnershipEvent (policy, trigger, decision)
//   - Filter: FilterEvent (filter, hook, reason)
//   - Codec: CodecEvent (direction, format, version, result)
//
// # File Format
//
// Trace files are a CBOR stream with the .olog extension. The obsctl trace
// command views and filters them.
package log
