package inspect

import (
	"errors"
	"fmt"
	"sort"

	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// Inspector errors.
var (
	ErrSubjectNotFound  = errors.New("subject not found")
	ErrNotObserver      = errors.New("subject has no child observer")
	ErrPropertyNotFound = errors.New("property not found")
	ErrNoProperty       = errors.New("path has no property")
)

// Inspector provides inspection and mutation capabilities for an observer tree.
type Inspector struct {
	root *observer.Observer
}

// NewInspector creates a new Inspector rooted at the given observer.
func NewInspector(root *observer.Observer) *Inspector {
	return &Inspector{root: root}
}

// Root returns the root observer.
func (i *Inspector) Root() *observer.Observer {
	return i.root
}

// ObserverInfo represents an observer for display.
type ObserverInfo struct {
	ID             int
	Name           string
	Limit          int
	Access         observer.AccessMode
	CategoryAccess map[string]observer.AccessMode
	Filters        []string
	Subjects       []SubjectInfo
}

// SubjectInfo represents a subject as seen from one observer context.
type SubjectInfo struct {
	ID         int
	Name       string
	ObjectName string
	Type       string
	Ownership  observer.Policy
	Category   string
	Contexts   []int
	Properties []PropertyInfo
	Child      *ObserverInfo
}

// PropertyInfo represents one property value in a context.
type PropertyInfo struct {
	Name     string
	Kind     property.Kind
	Value    property.Value
	HasValue bool
	Shared   bool
	Reserved bool
}

// InspectTree returns the complete tree below the root observer.
func (i *Inspector) InspectTree() *ObserverInfo {
	return i.inspectObserverInternal(i.root, make(map[*observer.Observer]bool))
}

// InspectObserver returns the tree below the observer a path addresses.
// The path must be the root or end at a subject with a child observer.
func (i *Inspector) InspectObserver(path *Path) (*ObserverInfo, error) {
	if path.IsRoot() {
		return i.InspectTree(), nil
	}
	s, _, err := i.Resolve(path)
	if err != nil {
		return nil, err
	}
	child := observer.Of(s)
	if child == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotObserver, path)
	}
	return i.inspectObserverInternal(child, make(map[*observer.Observer]bool)), nil
}

// InspectSubject returns information about the subject a path addresses, in
// the context of the observer holding it.
func (i *Inspector) InspectSubject(path *Path) (*SubjectInfo, error) {
	s, o, err := i.Resolve(path)
	if err != nil {
		return nil, err
	}
	info := i.inspectSubjectInternal(o, s, make(map[*observer.Observer]bool))
	return &info, nil
}

func (i *Inspector) inspectObserverInternal(o *observer.Observer, seen map[*observer.Observer]bool) *ObserverInfo {
	seen[o] = true
	info := &ObserverInfo{
		ID:             o.ID(),
		Name:           o.ObjectName(),
		Limit:          o.SubjectLimit(),
		Access:         o.AccessMode(),
		CategoryAccess: o.CategoryAccessModes(),
	}
	for _, f := range o.Filters() {
		info.Filters = append(info.Filters, f.FilterName())
	}
	for _, s := range o.SubjectList() {
		info.Subjects = append(info.Subjects, i.inspectSubjectInternal(o, s, seen))
	}
	return info
}

// inspectSubjectInternal extracts subject info without error handling.
func (i *Inspector) inspectSubjectInternal(o *observer.Observer, s subject.Subject, seen map[*observer.Observer]bool) SubjectInfo {
	id, _ := o.SubjectID(s)
	policy, _ := o.OwnershipOf(s)
	category, _ := o.CategoryOf(s)
	info := SubjectInfo{
		ID:         id,
		Name:       o.DisplayName(s),
		ObjectName: subject.Name(s),
		Type:       subject.TypeName(s),
		Ownership:  policy,
		Category:   category,
		Contexts:   o.Manager().ContextsOf(s),
	}

	store := s.SubjectBase().Properties()
	for _, name := range store.Names() {
		e, ok := store.Get(name)
		if !ok {
			continue
		}
		v, has := e.Value(o.ID())
		info.Properties = append(info.Properties, PropertyInfo{
			Name:     name,
			Kind:     v.Kind(),
			Value:    v,
			HasValue: has,
			Shared:   e.Shared(),
			Reserved: e.Flags().Reserved,
		})
	}

	// A child observer shown earlier is listed without its subjects.
	if child := observer.Of(s); child != nil {
		if seen[child] {
			info.Child = &ObserverInfo{ID: child.ID(), Name: child.ObjectName()}
		} else {
			info.Child = i.inspectObserverInternal(child, seen)
		}
	}
	return info
}

// Resolve walks a path from the root and returns the addressed subject and
// the observer holding it.
func (i *Inspector) Resolve(path *Path) (subject.Subject, *observer.Observer, error) {
	if path == nil || path.IsRoot() {
		return nil, nil, fmt.Errorf("%w: path does not address a subject", ErrInvalidPath)
	}

	o := i.root
	var s subject.Subject
	for n, seg := range path.Segments {
		if n > 0 {
			child := observer.Of(s)
			if child == nil {
				return nil, nil, fmt.Errorf("%w: %s", ErrNotObserver, o.DisplayName(s))
			}
			o = child
		}
		if seg.ByID {
			s = o.SubjectByID(seg.ID)
		} else {
			s = o.SubjectByName(seg.Name)
		}
		if s == nil {
			return nil, nil, fmt.Errorf("%w: %s in %s", ErrSubjectNotFound, seg, o.ObjectName())
		}
	}
	return s, o, nil
}

// ReadProperty reads a property value using a path. Per-context values are
// read in the context of the observer holding the subject.
func (i *Inspector) ReadProperty(path *Path) (property.Value, error) {
	if path.Property == "" {
		return property.Value{}, ErrNoProperty
	}
	s, o, err := i.Resolve(path)
	if err != nil {
		return property.Value{}, err
	}
	store := s.SubjectBase().Properties()
	if !store.Has(path.Property) {
		return property.Value{}, fmt.Errorf("%w: %s", ErrPropertyNotFound, path.Property)
	}
	v, ok := store.Value(path.Property, o.ID())
	if !ok {
		return property.Value{}, fmt.Errorf("%w: %s has no value in context %d", ErrPropertyNotFound, path.Property, o.ID())
	}
	return v, nil
}

// WriteProperty writes a property value using a path. The write goes through
// the holding observer, so reserved names and access modes are enforced.
func (i *Inspector) WriteProperty(path *Path, value property.Value) error {
	if path.Property == "" {
		return ErrNoProperty
	}
	s, o, err := i.Resolve(path)
	if err != nil {
		return err
	}
	return o.SetPropertyValue(s, path.Property, value)
}

// Stats summarizes an observer tree.
type Stats struct {
	// Observers is the number of observers in the tree, the root included.
	Observers int

	// Subjects is the number of distinct subjects.
	Subjects int

	// Edges is the number of attach edges.
	Edges int

	// Shared is the number of subjects attached to more than one context.
	Shared int

	// MaxDepth is the deepest observer nesting level (root = 0).
	MaxDepth int

	// ByPolicy counts edges per ownership policy name.
	ByPolicy map[string]int
}

// Stats walks the tree and counts observers, subjects and edges.
func (i *Inspector) Stats() Stats {
	st := Stats{ByPolicy: make(map[string]int)}
	subjects := make(map[*subject.Base]bool)
	seen := make(map[*observer.Observer]bool)

	var walk func(o *observer.Observer, depth int)
	walk = func(o *observer.Observer, depth int) {
		if seen[o] {
			return
		}
		seen[o] = true
		st.Observers++
		if depth > st.MaxDepth {
			st.MaxDepth = depth
		}
		for _, s := range o.SubjectList() {
			st.Edges++
			if p, ok := o.OwnershipOf(s); ok {
				st.ByPolicy[p.String()]++
			}
			b := s.SubjectBase()
			if !subjects[b] {
				subjects[b] = true
				st.Subjects++
				if len(o.Manager().ContextsOf(s)) > 1 {
					st.Shared++
				}
			}
			if child := observer.Of(s); child != nil {
				walk(child, depth+1)
			}
		}
	}
	walk(i.root, 0)
	return st
}

// PolicyNames returns the policy names of s, sorted, for display.
func (s Stats) PolicyNames() []string {
	names := make([]string, 0, len(s.ByPolicy))
	for name := range s.ByPolicy {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
