package filters

import (
	"fmt"
	"sort"

	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// SubjectTypeFilterName is the filter name of SubjectTypeFilter.
const SubjectTypeFilterName = "Subject Type Filter"

// SubjectType describes an attachable type.
type SubjectType struct {
	// TypeName is matched against subject.TypeName.
	TypeName string

	// DisplayName is shown by views.
	DisplayName string
}

// SubjectTypeFilter restricts attachable subjects by type name. Its fixed
// filter name limits it to one per observer.
type SubjectTypeFilter struct {
	observer.FilterBase

	groupName string
	types     map[string]SubjectType
	inverse   bool
}

// NewSubjectTypeFilter creates an empty filter. groupName labels the known
// types in views.
func NewSubjectTypeFilter(groupName string) *SubjectTypeFilter {
	return &SubjectTypeFilter{
		groupName: groupName,
		types:     make(map[string]SubjectType),
	}
}

// FilterName returns SubjectTypeFilterName.
func (f *SubjectTypeFilter) FilterName() string { return SubjectTypeFilterName }

// Capabilities returns the hooks the filter uses.
func (f *SubjectTypeFilter) Capabilities() observer.FilterCapability {
	return observer.CapValidateAttach
}

// GroupName returns the label of the known types.
func (f *SubjectTypeFilter) GroupName() string { return f.groupName }

// AddSubjectType adds a known type.
func (f *SubjectTypeFilter) AddSubjectType(t SubjectType) {
	if t.DisplayName == "" {
		t.DisplayName = t.TypeName
	}
	f.types[t.TypeName] = t
}

// SetInverse turns the known types into a deny list.
func (f *SubjectTypeFilter) SetInverse(on bool) { f.inverse = on }

// Inverse returns true when the known types are denied.
func (f *SubjectTypeFilter) Inverse() bool { return f.inverse }

// IsKnownType returns true if typeName was added.
func (f *SubjectTypeFilter) IsKnownType(typeName string) bool {
	_, ok := f.types[typeName]
	return ok
}

// KnownTypes returns the known types sorted by type name.
func (f *SubjectTypeFilter) KnownTypes() []SubjectType {
	out := make([]SubjectType, 0, len(f.types))
	for _, t := range f.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeName < out[j].TypeName })
	return out
}

// ValidateAttach rejects subjects of types that are not allowed.
func (f *SubjectTypeFilter) ValidateAttach(ctx *observer.AttachContext) observer.Verdict {
	typeName := subject.TypeName(ctx.Subject)
	if f.IsKnownType(typeName) != f.inverse {
		return observer.Approve()
	}
	return observer.Rejected(fmt.Sprintf("subject type %s is not allowed in %s", typeName, ctx.Observer.ObjectName()))
}

// Compile-time interface satisfaction check.
var _ observer.Filter = (*SubjectTypeFilter)(nil)
