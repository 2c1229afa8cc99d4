package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger.
// Useful for development when you want to see ownership decisions in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("category", event.Category.String()),
		slog.String("outcome", event.Outcome.String()),
	}

	if event.ObserverID != 0 {
		attrs = append(attrs, slog.Int("observer_id", event.ObserverID))
	}
	if event.ObserverName != "" {
		attrs = append(attrs, slog.String("observer", event.ObserverName))
	}
	if event.SubjectName != "" {
		attrs = append(attrs, slog.String("subject", event.SubjectName))
	}

	switch {
	case event.Attach != nil:
		attrs = append(attrs, slog.String("policy", event.Attach.Policy))
		if event.Attach.Category != "" {
			attrs = append(attrs, slog.String("subject_category", event.Attach.Category))
		}
		if event.Attach.Renamed != "" {
			attrs = append(attrs, slog.String("renamed", event.Attach.Renamed))
			if event.Attach.RenamedBy != "" {
				attrs = append(attrs, slog.String("renamed_by", event.Attach.RenamedBy))
			}
		}
		if event.Attach.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Attach.Reason))
		}
	case event.Ownership != nil:
		attrs = append(attrs,
			slog.String("policy", event.Ownership.Policy),
			slog.String("decision", event.Ownership.Decision),
			slog.Int("remaining_edges", event.Ownership.RemainingEdges),
		)
		if event.Ownership.Trigger != "" {
			attrs = append(attrs, slog.String("trigger", event.Ownership.Trigger))
		}
	case event.Filter != nil:
		attrs = append(attrs,
			slog.String("filter", event.Filter.Filter),
			slog.String("hook", event.Filter.Hook),
		)
		if event.Filter.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Filter.Reason))
		}
	case event.Codec != nil:
		attrs = append(attrs,
			slog.String("direction", event.Codec.Direction.String()),
			slog.String("format", event.Codec.Format),
			slog.String("version", event.Codec.Version),
			slog.String("result", event.Codec.Result),
			slog.Int("subjects", event.Codec.Subjects),
		)
		if event.Codec.Duration > 0 {
			attrs = append(attrs, slog.Duration("duration", event.Codec.Duration))
		}
	case event.Error != nil:
		attrs = append(attrs, slog.String("error_msg", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "trace", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
