package observer

import "fmt"

// Policy is the ownership policy of one (observer, subject) edge.
type Policy uint8

const (
	// ManualOwnership never deletes the subject.
	ManualOwnership Policy = iota

	// AutoOwnership deletes the subject when its last AutoOwnership edge is
	// removed, unless a native parent owns it.
	AutoOwnership

	// SpecificObserverOwnership deletes the subject when this observer is
	// destroyed, detaching it from every other observer first.
	SpecificObserverOwnership

	// ObserverScopeOwnership deletes the subject once no observer holds an
	// ObserverScopeOwnership edge to it.
	ObserverScopeOwnership

	// OwnedBySubjectOwnership inverts the relation: destroying the subject
	// destroys the observer.
	OwnedBySubjectOwnership
)

var policyNames = [...]string{
	ManualOwnership:           "ManualOwnership",
	AutoOwnership:             "AutoOwnership",
	SpecificObserverOwnership: "SpecificObserverOwnership",
	ObserverScopeOwnership:    "ObserverScopeOwnership",
	OwnedBySubjectOwnership:   "OwnedBySubjectOwnership",
}

// String returns the policy name.
func (p Policy) String() string {
	if p.IsValid() {
		return policyNames[p]
	}
	return fmt.Sprintf("Policy(%d)", uint8(p))
}

// IsValid returns true for the defined policies.
func (p Policy) IsValid() bool {
	return int(p) < len(policyNames)
}

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	for i, name := range policyNames {
		if name == s {
			return Policy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
}

// AccessMode gates mutation of an observer or one of its categories.
type AccessMode uint8

const (
	// FullAccess permits all changes.
	FullAccess AccessMode = iota

	// ReadOnlyAccess rejects client changes. Framework callers (import) pass.
	ReadOnlyAccess

	// LockedAccess rejects all changes.
	LockedAccess
)

// String returns the access mode name.
func (a AccessMode) String() string {
	switch a {
	case FullAccess:
		return "FullAccess"
	case ReadOnlyAccess:
		return "ReadOnlyAccess"
	case LockedAccess:
		return "LockedAccess"
	default:
		return fmt.Sprintf("AccessMode(%d)", uint8(a))
	}
}

// ParseAccessMode parses an access mode name.
func ParseAccessMode(s string) (AccessMode, error) {
	for a := FullAccess; a <= LockedAccess; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown access mode %q", s)
}

// permits reports whether a change is allowed.
func (a AccessMode) permits(framework bool) bool {
	switch a {
	case FullAccess:
		return true
	case ReadOnlyAccess:
		return framework
	default:
		return false
	}
}

// Decision is the outcome of ownership resolution for one edge.
type Decision uint8

const (
	// Retained leaves the subject alive and untouched.
	Retained Decision = iota

	// Orphaned leaves the subject alive, stripped of the context's properties.
	Orphaned

	// Deleted queues the subject for destruction.
	Deleted
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Retained:
		return "Retained"
	case Orphaned:
		return "Orphaned"
	case Deleted:
		return "Deleted"
	default:
		return fmt.Sprintf("Decision(%d)", uint8(d))
	}
}

// Trigger is what caused an edge to be resolved.
type Trigger uint8

const (
	// TriggerDetach is an explicit DetachSubject call.
	TriggerDetach Trigger = iota

	// TriggerObserverDestroyed is the destruction of the observer.
	TriggerObserverDestroyed

	// TriggerSubjectDestroyed is the destruction of the subject.
	TriggerSubjectDestroyed

	// TriggerForced is a detach forced by another observer's specific ownership.
	TriggerForced
)

// String returns the trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerDetach:
		return "detach"
	case TriggerObserverDestroyed:
		return "observer-destroyed"
	case TriggerSubjectDestroyed:
		return "subject-destroyed"
	case TriggerForced:
		return "forced"
	default:
		return "unknown"
	}
}
