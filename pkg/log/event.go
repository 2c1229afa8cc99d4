package log

import "time"

// Event is a trace record of one ownership decision.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the manager that produced the event (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// Outcome tells whether the operation went through.
	Outcome Outcome `cbor:"4,keyasint"`

	// ObserverID is the context ID of the observer involved (0 if none).
	ObserverID int `cbor:"5,keyasint,omitempty"`

	// ObserverName is the name of the observer involved.
	ObserverName string `cbor:"6,keyasint,omitempty"`

	// SubjectName is the object name of the subject involved.
	SubjectName string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (at most one is set).
	Attach    *AttachEvent    `cbor:"10,keyasint,omitempty"` // Attach/detach
	Ownership *OwnershipEvent `cbor:"11,keyasint,omitempty"` // Resolver decision
	Filter    *FilterEvent    `cbor:"12,keyasint,omitempty"` // Filter verdict
	Codec     *CodecEvent     `cbor:"13,keyasint,omitempty"` // Export/import run
	Error     *ErrorEventData `cbor:"14,keyasint,omitempty"` // Failures
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryAttach is a subject attached to an observer.
	CategoryAttach Category = 0
	// CategoryDetach is a subject detached from an observer.
	CategoryDetach Category = 1
	// CategoryOwnership is a resolver decision.
	CategoryOwnership Category = 2
	// CategoryFilter is a filter verdict.
	CategoryFilter Category = 3
	// CategoryCodec is an export or import run.
	CategoryCodec Category = 4
	// CategoryLifecycle is an observer created or destroyed.
	CategoryLifecycle Category = 5
	// CategoryError is an error event.
	CategoryError Category = 6
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryAttach:
		return "ATTACH"
	case CategoryDetach:
		return "DETACH"
	case CategoryOwnership:
		return "OWNERSHIP"
	case CategoryFilter:
		return "FILTER"
	case CategoryCodec:
		return "CODEC"
	case CategoryLifecycle:
		return "LIFECYCLE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name as printed by String.
func ParseCategory(s string) (Category, bool) {
	for c := CategoryAttach; c <= CategoryError; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// Outcome is the result of the traced operation.
type Outcome uint8

const (
	// OutcomeSuccess means the operation was committed.
	OutcomeSuccess Outcome = 0
	// OutcomeRejected means a check or filter refused the operation.
	OutcomeRejected Outcome = 1
	// OutcomeFailed means the operation failed.
	OutcomeFailed Outcome = 2
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeRejected:
		return "REJECTED"
	case OutcomeFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ParseOutcome parses an outcome name as printed by String.
func ParseOutcome(s string) (Outcome, bool) {
	for o := OutcomeSuccess; o <= OutcomeFailed; o++ {
		if o.String() == s {
			return o, true
		}
	}
	return 0, false
}

// AttachEvent captures an attach or detach.
type AttachEvent struct {
	// Policy is the ownership policy of the edge.
	Policy string `cbor:"1,keyasint"`

	// Category is the category path the subject was filed under.
	Category string `cbor:"2,keyasint,omitempty"`

	// Renamed is the name a filter gave the subject during attach.
	Renamed string `cbor:"3,keyasint,omitempty"`

	// Reason explains a rejection.
	Reason string `cbor:"4,keyasint,omitempty"`

	// RenamedBy names the filter that renamed the subject.
	RenamedBy string `cbor:"5,keyasint,omitempty"`
}

// OwnershipEvent captures a resolver decision.
type OwnershipEvent struct {
	// Policy is the ownership policy of the edge being resolved.
	Policy string `cbor:"1,keyasint"`

	// Decision is the resolver outcome (Deleted, Orphaned, Retained).
	Decision string `cbor:"2,keyasint"`

	// Trigger is what caused the resolution (detach, observer destroyed, ...).
	Trigger string `cbor:"3,keyasint,omitempty"`

	// RemainingEdges is the number of contexts still holding the subject.
	RemainingEdges int `cbor:"4,keyasint"`
}

// FilterEvent captures a filter verdict.
type FilterEvent struct {
	// Filter is the filter name.
	Filter string `cbor:"1,keyasint"`

	// Hook is the filter hook that produced the verdict.
	Hook string `cbor:"2,keyasint"`

	// Reason is the rejection reason.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// CodecDirection tells whether a codec run exported or imported.
type CodecDirection uint8

const (
	// CodecExport is an export run.
	CodecExport CodecDirection = 0
	// CodecImport is an import run.
	CodecImport CodecDirection = 1
)

// String returns the direction name.
func (d CodecDirection) String() string {
	switch d {
	case CodecExport:
		return "EXPORT"
	case CodecImport:
		return "IMPORT"
	default:
		return "UNKNOWN"
	}
}

// CodecEvent captures an export or import run.
type CodecEvent struct {
	// Direction of the run.
	Direction CodecDirection `cbor:"1,keyasint"`

	// Format is "binary" or "tree".
	Format string `cbor:"2,keyasint"`

	// Version is the format version written or read.
	Version string `cbor:"3,keyasint"`

	// Result is the codec result name.
	Result string `cbor:"4,keyasint"`

	// Subjects is the number of subject records processed.
	Subjects int `cbor:"5,keyasint"`

	// Duration of the run.
	Duration time.Duration `cbor:"6,keyasint,omitempty"`
}

// ErrorEventData captures a failure.
type ErrorEventData struct {
	// Message is the error text.
	Message string `cbor:"1,keyasint"`

	// Context describes the operation that failed.
	Context string `cbor:"2,keyasint,omitempty"`
}
