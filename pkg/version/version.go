// Package version parses and compares export format versions and loads the
// embedded manifests that declare which record fields each version carries.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Current is the format version written by default.
const Current = "1.2"

// Minimum is the oldest format version that can still be read.
const Minimum = "1.0"

// Negotiation errors.
var (
	ErrTooNew = errors.New("format version is newer than supported")
	ErrTooOld = errors.New("format version is older than supported")
)

// FormatVersion represents a parsed "major.minor" format version.
type FormatVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (FormatVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return FormatVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return FormatVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return FormatVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return FormatVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// MustParse is Parse for constants. It panics on malformed input.
func MustParse(s string) FormatVersion {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// CurrentVersion returns Current parsed.
func CurrentVersion() FormatVersion { return MustParse(Current) }

// MinimumVersion returns Minimum parsed.
func MinimumVersion() FormatVersion { return MustParse(Minimum) }

// String returns the version as "major.minor".
func (v FormatVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare returns -1, 0 or 1 as v is older than, equal to or newer than other.
func (v FormatVersion) Compare(other FormatVersion) int {
	switch {
	case v.Major != other.Major:
		if v.Major < other.Major {
			return -1
		}
		return 1
	case v.Minor < other.Minor:
		return -1
	case v.Minor > other.Minor:
		return 1
	}
	return 0
}

// Less returns true if v is older than other.
func (v FormatVersion) Less(other FormatVersion) bool { return v.Compare(other) < 0 }

// Compatible returns true if the other version has the same major version.
func (v FormatVersion) Compatible(other FormatVersion) bool {
	return v.Major == other.Major
}

// Negotiate returns the version a reader should apply to a stream written
// with version stream. A newer minor of the current major is read as Current
// and its unknown fields are ignored. A newer major fails with ErrTooNew and
// anything below Minimum with ErrTooOld.
func Negotiate(stream FormatVersion) (FormatVersion, error) {
	cur := CurrentVersion()
	if stream.Major > cur.Major {
		return FormatVersion{}, fmt.Errorf("%w: %s > %s", ErrTooNew, stream, cur)
	}
	if stream.Less(MinimumVersion()) {
		return FormatVersion{}, fmt.Errorf("%w: %s < %s", ErrTooOld, stream, Minimum)
	}
	if cur.Less(stream) {
		return cur, nil
	}
	return stream, nil
}
