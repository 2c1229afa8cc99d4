package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/qtilities/qtilities-go/pkg/log"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	EventsByOutcome  map[log.Outcome]int
	Decisions        map[string]int // "policy/decision"
	FilterRejections map[string]int
	Sessions         map[string]*SessionStats
	CodecRuns        int
	CodecIncomplete  int
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for a single manager session.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Observers map[int]string
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	err = reader.Each(func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read event: %w", err)
	}

	printStats(w, stats)
	return nil
}

func newStats() *Stats {
	return &Stats{
		EventsByCategory: make(map[log.Category]int),
		EventsByOutcome:  make(map[log.Outcome]int),
		Decisions:        make(map[string]int),
		FilterRejections: make(map[string]int),
		Sessions:         make(map[string]*SessionStats),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++
	s.EventsByOutcome[event.Outcome]++

	// Track time range
	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	sess, ok := s.Sessions[event.SessionID]
	if !ok {
		sess = &SessionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Observers: make(map[int]string),
		}
		s.Sessions[event.SessionID] = sess
	}
	sess.Events++
	if event.Timestamp.After(sess.LastSeen) {
		sess.LastSeen = event.Timestamp
	}
	if event.ObserverID != 0 {
		sess.Observers[event.ObserverID] = event.ObserverName
	}

	switch {
	case event.Ownership != nil && event.Category == log.CategoryOwnership:
		s.Decisions[event.Ownership.Policy+"/"+event.Ownership.Decision]++
	case event.Filter != nil && event.Outcome == log.OutcomeRejected:
		s.FilterRejections[event.Filter.Filter]++
	case event.Codec != nil:
		s.CodecRuns++
		if event.Codec.Result == "Incomplete" {
			s.CodecIncomplete++
		}
	case event.Error != nil:
		s.Errors++
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Ownership Trace Statistics ===")
	fmt.Fprintln(w)

	// Time range
	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for c := log.CategoryAttach; c <= log.CategoryError; c++ {
		if count := stats.EventsByCategory[c]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", c.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Outcome:")
	for o := log.OutcomeSuccess; o <= log.OutcomeFailed; o++ {
		if count := stats.EventsByOutcome[o]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", o.String()+":", count)
		}
	}

	if len(stats.Decisions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Ownership Decisions:")
		for _, k := range sortedKeys(stats.Decisions) {
			fmt.Fprintf(w, "  %-40s %d\n", k+":", stats.Decisions[k])
		}
	}

	if len(stats.FilterRejections) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Filter Rejections:")
		for _, k := range sortedKeys(stats.FilterRejections) {
			fmt.Fprintf(w, "  %-20s %d\n", k+":", stats.FilterRejections[k])
		}
	}

	if stats.CodecRuns > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Codec Runs: %d (%d incomplete)\n", stats.CodecRuns, stats.CodecIncomplete)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		fmt.Fprintln(w, "")
		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, %d observers, duration %s\n",
				shortenID(s.id), s.stats.Events, len(s.stats.Observers), duration)
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
