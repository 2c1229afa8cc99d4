package observer

import (
	"strings"

	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// Reserved property names written by the observer core and its filters.
const (
	PropSubjectID     = "qti.observer.subject_id"
	PropOwnership     = "qti.observer.ownership"
	PropCategory      = "qti.observer.category"
	PropSpecificOwner = "qti.observer.specific_owner"
	PropLimit         = "qti.observer.limit"
	PropInstanceName  = "qti.naming.instance_name"
	PropActivity      = "qti.activity.active"
)

// ReservedPrefix prefixes every framework property name.
const ReservedPrefix = "qti."

// CategorySeparator joins the levels of a category path.
const CategorySeparator = "::"

// IsReservedName returns true for names in the framework namespace.
func IsReservedName(name string) bool {
	return strings.HasPrefix(name, ReservedPrefix)
}

// Flags of the reserved properties.
var (
	instanceNameFlags = property.Flags{Reserved: true, Exportable: true}
	activityFlags     = property.Flags{Reserved: true, Exportable: true, Notify: true}
)

// FrameworkProperty defines the named reserved property when missing and
// sets its value for a context. Filters use it to write their bookkeeping.
func FrameworkProperty(s subject.Subject, name string, contextID int, v property.Value) error {
	store := s.SubjectBase().Properties()
	store.Ensure(name, false, reservedFlags(name))
	return store.SetValue(name, contextID, v, property.AccessFramework)
}

func reservedFlags(name string) property.Flags {
	switch name {
	case PropInstanceName:
		return instanceNameFlags
	case PropActivity:
		return activityFlags
	default:
		return property.FrameworkFlags
	}
}

func setShared(store *property.Store, name string, v property.Value) {
	store.Ensure(name, true, property.FrameworkFlags)
	_ = store.SetValue(name, 0, v, property.AccessFramework)
}

// SpecificOwner returns the context ID of the subject's specific owner.
func SpecificOwner(s subject.Subject) (int, bool) {
	v, ok := s.SubjectBase().Properties().Value(PropSpecificOwner, 0)
	if !ok {
		return 0, false
	}
	return v.AsReference()
}

// CategoryPath splits a category into its levels.
func CategoryPath(category string) []string {
	if category == "" {
		return nil
	}
	return strings.Split(category, CategorySeparator)
}

// JoinCategory joins category levels into a path.
func JoinCategory(levels ...string) string {
	return strings.Join(levels, CategorySeparator)
}
