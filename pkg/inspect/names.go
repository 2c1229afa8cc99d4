package inspect

import (
	"strings"

	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/property"
)

// Name tables for resolving short, human-typed names (CLI, shell) to values.
// Full names as printed by String are accepted too.
var (
	policyNames = map[string]observer.Policy{
		"manual":   observer.ManualOwnership,
		"auto":     observer.AutoOwnership,
		"specific": observer.SpecificObserverOwnership,
		"scope":    observer.ObserverScopeOwnership,
		"owned":    observer.OwnedBySubjectOwnership,
	}
	accessModeNames = map[string]observer.AccessMode{
		"full":     observer.FullAccess,
		"readonly": observer.ReadOnlyAccess,
		"locked":   observer.LockedAccess,
	}
)

// ResolvePolicyName resolves a policy name to its value (case-insensitive).
func ResolvePolicyName(name string) (observer.Policy, bool) {
	lname := strings.ToLower(name)
	if p, ok := policyNames[lname]; ok {
		return p, true
	}
	for _, p := range policyNames {
		if strings.ToLower(p.String()) == lname {
			return p, true
		}
	}
	return 0, false
}

// GetPolicyName returns the short name for a policy.
func GetPolicyName(p observer.Policy) string {
	for name, v := range policyNames {
		if v == p {
			return name
		}
	}
	return p.String()
}

// ResolveAccessModeName resolves an access mode name to its value (case-insensitive).
func ResolveAccessModeName(name string) (observer.AccessMode, bool) {
	lname := strings.ToLower(name)
	if a, ok := accessModeNames[lname]; ok {
		return a, true
	}
	for _, a := range accessModeNames {
		if strings.ToLower(a.String()) == lname {
			return a, true
		}
	}
	return 0, false
}

// GetAccessModeName returns the short name for an access mode.
func GetAccessModeName(a observer.AccessMode) string {
	for name, v := range accessModeNames {
		if v == a {
			return name
		}
	}
	return a.String()
}

// ResolveKindName resolves a property kind name to its value (case-insensitive).
func ResolveKindName(name string) (property.Kind, bool) {
	k, err := property.ParseKind(strings.ToLower(name))
	if err != nil || k == property.KindInvalid {
		return property.KindInvalid, false
	}
	return k, true
}
