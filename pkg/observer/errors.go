package observer

import (
	"errors"
	"fmt"
)

// Attach and detach errors. A failed operation never changes state.
var (
	ErrNilSubject          = errors.New("nil subject")
	ErrDestroyed           = errors.New("object destroyed")
	ErrInvalidPolicy       = errors.New("invalid ownership policy")
	ErrAccessDenied        = errors.New("access mode does not permit changes")
	ErrLimitReached        = errors.New("subject limit reached")
	ErrAlreadyAttached     = errors.New("subject already attached")
	ErrNotAttached         = errors.New("subject not attached")
	ErrCycle               = errors.New("attach would create a cycle")
	ErrWalkDepth           = errors.New("attach graph too deep")
	ErrSpecificOwnerExists = errors.New("subject already has a specific owner")
	ErrFilterRejected      = errors.New("rejected by filter")
)

// Configuration errors.
var (
	ErrLimitBelowCount = errors.New("limit below current subject count")
	ErrFilterAfterUse  = errors.New("filters must be installed before the first attach")
	ErrDuplicateFilter = errors.New("filter already installed")
	ErrNilFilter       = errors.New("nil filter")
	ErrIntegrity       = errors.New("integrity check failed")
)

// FilterError is returned when a filter rejects an operation. It matches
// ErrFilterRejected with errors.Is.
type FilterError struct {
	Filter string
	Hook   string
	Reason string
}

func (e *FilterError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", ErrFilterRejected, e.Filter)
	}
	return fmt.Sprintf("%s: %s: %s", ErrFilterRejected, e.Filter, e.Reason)
}

// Unwrap returns ErrFilterRejected.
func (e *FilterError) Unwrap() error { return ErrFilterRejected }
