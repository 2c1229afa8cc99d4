// Package filters provides the standard subject filters.
//
//   - [NamingPolicy] validates display names and keeps them unique within an
//     observer, rejecting or renaming conflicting subjects.
//   - [ActivityPolicy] tracks which attached subjects are active.
//   - [SubjectTypeFilter] restricts which subject types may be attached.
//
// Filters are installed on an observer before its first attach:
//
//	naming := filters.NewNamingPolicy()
//	naming.SetConflictPolicy(filters.AutoRename)
//	if err := obs.InstallFilter(naming); err != nil {
//	    return err
//	}
package filters

import "errors"

// Filter errors.
var (
	ErrInvalidName   = errors.New("invalid name")
	ErrNameConflict  = errors.New("name already in use")
	ErrTooManyActive = errors.New("only one subject may be active")
	ErrNoneActive    = errors.New("at least one subject must be active")
)
