package log

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects trace events. Zero-valued fields match everything.
type Filter struct {
	SessionID string
	Category  *Category
	Outcome   *Outcome

	// ObserverID of 0 matches every observer.
	ObserverID  int
	SubjectName string

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time
}

// Matches reports whether event passes every set criterion.
func (f *Filter) Matches(event Event) bool {
	switch {
	case f.SessionID != "" && event.SessionID != f.SessionID,
		f.Category != nil && event.Category != *f.Category,
		f.Outcome != nil && event.Outcome != *f.Outcome,
		f.ObserverID != 0 && event.ObserverID != f.ObserverID,
		f.SubjectName != "" && event.SubjectName != f.SubjectName,
		f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart),
		f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	}
	return true
}

// Reader streams events out of a trace, skipping those the filter rejects.
type Reader struct {
	src     io.Closer
	dec     *cbor.Decoder
	filter  Filter
	skipped int
}

// NewReader opens the trace file at path with no filter.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens the trace file at path.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewStreamReader(f, filter)
	r.src = f
	return r, nil
}

// NewStreamReader reads events from r. Close does not close r.
func NewStreamReader(r io.Reader, filter Filter) *Reader {
	return &Reader{dec: traceDec.NewDecoder(r), filter: filter}
}

// Next returns the next matching event, or io.EOF at the end of the trace.
// A trace cut mid-event ends with io.ErrUnexpectedEOF.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.dec.Decode(&event); err != nil {
			return Event{}, err
		}
		if r.filter.Matches(event) {
			return event, nil
		}
		r.skipped++
	}
}

// Each calls fn for every remaining matching event and stops at the first
// error fn returns. Reaching the end of the trace is not an error.
func (r *Reader) Each(fn func(Event) error) error {
	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// Skipped counts events the filter has rejected so far.
func (r *Reader) Skipped() int { return r.skipped }

// Close releases the file opened by NewReader or NewFilteredReader.
func (r *Reader) Close() error {
	if r.src == nil {
		return nil
	}
	return r.src.Close()
}
