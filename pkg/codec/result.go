package codec

import (
	"errors"
	"fmt"
)

// Result is the outcome of an export or import.
type Result uint8

const (
	// Complete means every subject was written or restored.
	Complete Result = iota

	// Incomplete means the run finished but skipped some subjects.
	Incomplete

	// VersionTooNew means the stream needs a newer reader.
	VersionTooNew

	// VersionTooOld means the stream predates the oldest readable version.
	VersionTooOld

	// Failed means the stream is corrupt or could not be written. An import
	// that fails leaves the target untouched.
	Failed
)

var resultNames = [...]string{
	Complete:      "Complete",
	Incomplete:    "Incomplete",
	VersionTooNew: "VersionTooNew",
	VersionTooOld: "VersionTooOld",
	Failed:        "Failed",
}

// String returns the result name.
func (r Result) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return fmt.Sprintf("Result(%d)", uint8(r))
}

// OK returns true for Complete and Incomplete.
func (r Result) OK() bool { return r == Complete || r == Incomplete }

// Codec errors.
var (
	ErrMissingMarker      = errors.New("missing marker")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrInvalidRecord      = errors.New("invalid record")
	ErrBadReference       = errors.New("reference to unknown subject record")
	ErrTooDeep            = errors.New("observer nesting too deep")
	ErrNoRegistry         = errors.New("no factory registry")
	ErrNotExportable      = errors.New("subject cannot be re-created")
	ErrNotObserver        = errors.New("re-created subject has no observer")
)
