package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/qtilities/qtilities-go/pkg/log"
)

// TraceOptions specifies the events shown by the trace command.
type TraceOptions struct {
	Category   string
	Outcome    string
	Session    string
	ObserverID int
	Subject    string
	TimeStart  string
	TimeEnd    string
}

// Filter converts the options to a log filter.
func (o TraceOptions) Filter() (log.Filter, error) {
	f := log.Filter{
		SessionID:   o.Session,
		ObserverID:  o.ObserverID,
		SubjectName: o.Subject,
	}
	if o.Category != "" {
		c, err := ParseCategoryFlag(o.Category)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	if o.Outcome != "" {
		out, err := ParseOutcomeFlag(o.Outcome)
		if err != nil {
			return f, err
		}
		f.Outcome = &out
	}
	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return f, fmt.Errorf("invalid time-start: %w", err)
		}
		f.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return f, fmt.Errorf("invalid time-end: %w", err)
		}
		f.TimeEnd = &t
	}
	return f, nil
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	if c, ok := log.ParseCategory(strings.ToUpper(s)); ok {
		return c, nil
	}
	return 0, fmt.Errorf("invalid category: %s (must be attach, detach, ownership, filter, codec, lifecycle, or error)", s)
}

// ParseOutcomeFlag parses an outcome string from command-line flag (case-insensitive).
func ParseOutcomeFlag(s string) (log.Outcome, error) {
	if o, ok := log.ParseOutcome(strings.ToUpper(s)); ok {
		return o, nil
	}
	return 0, fmt.Errorf("invalid outcome: %s (must be success, rejected, or failed)", s)
}

// RunTrace prints the events of a trace file that match filter.
func RunTrace(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	err = reader.Each(func(event log.Event) error {
		formatEvent(output, event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read event: %w", err)
	}
	return nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session] CATEGORY OUTCOME observer subject
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [session:%s] %s %s", ts, shortenID(event.SessionID), event.Category, event.Outcome)
	if event.ObserverName != "" {
		fmt.Fprintf(w, " %s(%d)", event.ObserverName, event.ObserverID)
	}
	if event.SubjectName != "" {
		fmt.Fprintf(w, " %q", event.SubjectName)
	}
	fmt.Fprintln(w)

	switch {
	case event.Attach != nil:
		if event.Attach.Policy != "" {
			fmt.Fprintf(w, "  Policy: %s\n", event.Attach.Policy)
		}
		if event.Attach.Category != "" {
			fmt.Fprintf(w, "  Category: %s\n", event.Attach.Category)
		}
		if event.Attach.Renamed != "" {
			if event.Attach.RenamedBy != "" {
				fmt.Fprintf(w, "  Renamed: %s (by %s)\n", event.Attach.Renamed, event.Attach.RenamedBy)
			} else {
				fmt.Fprintf(w, "  Renamed: %s\n", event.Attach.Renamed)
			}
		}
		if event.Attach.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", event.Attach.Reason)
		}
	case event.Ownership != nil:
		o := event.Ownership
		if o.Policy != "" {
			fmt.Fprintf(w, "  Policy: %s\n", o.Policy)
		}
		fmt.Fprintf(w, "  Decision: %s", o.Decision)
		if o.Trigger != "" {
			fmt.Fprintf(w, " (%s)", o.Trigger)
		}
		fmt.Fprintf(w, "\n  Remaining contexts: %d\n", o.RemainingEdges)
	case event.Filter != nil:
		fmt.Fprintf(w, "  Filter: %s (%s)\n", event.Filter.Filter, event.Filter.Hook)
		if event.Filter.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", event.Filter.Reason)
		}
	case event.Codec != nil:
		c := event.Codec
		fmt.Fprintf(w, "  %s %s v%s: %s, %d subjects", c.Direction, c.Format, c.Version, c.Result, c.Subjects)
		if c.Duration > 0 {
			fmt.Fprintf(w, " in %s", formatDuration(c.Duration))
		}
		fmt.Fprintln(w)
	case event.Error != nil:
		fmt.Fprintf(w, "  Error: %s\n", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", event.Error.Context)
		}
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenID returns the first 8 characters of a session ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}
