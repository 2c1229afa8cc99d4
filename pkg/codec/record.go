package codec

import (
	"fmt"

	"github.com/qtilities/qtilities-go/pkg/factory"
	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/version"
)

// Document is the decoded form shared by the binary and tree encodings.
type Document struct {
	Version version.FormatVersion
	Root    ObserverRecord
}

// ObserverRecord describes one exported observer.
type ObserverRecord struct {
	// ID is the exported context ID.
	ID   int
	Name string

	// Since 1.2. Nil when the stream does not carry them.
	Limit          *int
	Access         *observer.AccessMode
	CategoryAccess map[string]observer.AccessMode

	Subjects []SubjectRecord
}

// SubjectRecord describes one edge of an exported observer. The first edge
// of a subject carries the full record; later edges only reference it by
// Serial and add their own ownership and category.
type SubjectRecord struct {
	Serial int
	Ref    int

	Info      factory.InstanceInfo
	Contexts  []int
	Ownership observer.Policy

	// Category is empty before 1.1.
	Category string

	Properties []PropertyRecord

	// Payload is nil before 1.2.
	Payload []byte

	// Child is set when the subject is, or provides, an observer.
	Child *ObserverRecord
}

// IsRef returns true for back-reference records.
func (r *SubjectRecord) IsRef() bool { return r.Ref > 0 }

// PropertyRecord is one exportable property. Shared properties hold a single
// value under context 0.
type PropertyRecord struct {
	Name   string
	Kind   property.Kind
	Shared bool

	// Flags is nil before 1.1.
	Flags *property.Flags

	Values []ContextValue
}

// ContextValue is the value a property holds for one context.
type ContextValue struct {
	Context int
	Value   property.Value
}

// Subjects returns the number of full subject records.
func (d *Document) Subjects() int {
	return d.Root.countSubjects()
}

func (r *ObserverRecord) countSubjects() int {
	n := 0
	for i := range r.Subjects {
		s := &r.Subjects[i]
		if !s.IsRef() {
			n++
		}
		if s.Child != nil {
			n += s.Child.countSubjects()
		}
	}
	return n
}

// Convert sets the format version of the document and clears the fields
// that version does not carry. Converting to a newer version adds nothing.
func (d *Document) Convert(ver string) error {
	v, err := version.Parse(ver)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedVersion, err)
	}
	m, err := version.LoadManifest(v.String())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedVersion, err)
	}
	d.Version = v
	d.restrict(m)
	return nil
}

// restrict clears every field m does not carry.
func (d *Document) restrict(m *version.Manifest) {
	d.Root.restrict(m)
}

func (r *ObserverRecord) restrict(m *version.Manifest) {
	if !m.Has(version.RecordObserver, "limit") {
		r.Limit = nil
	}
	if !m.Has(version.RecordObserver, "access") {
		r.Access = nil
	}
	if !m.Has(version.RecordObserver, "category_access") {
		r.CategoryAccess = nil
	}
	for i := range r.Subjects {
		r.Subjects[i].restrict(m)
	}
}

func (r *SubjectRecord) restrict(m *version.Manifest) {
	if !m.Has(version.RecordSubject, "category") {
		r.Category = ""
	}
	if !m.Has(version.RecordSubject, "payload") {
		r.Payload = nil
	}
	if !m.Has(version.RecordProperty, "flags") {
		for i := range r.Properties {
			r.Properties[i].Flags = nil
		}
	}
	if r.Child != nil {
		r.Child.restrict(m)
	}
}

// Flag bits of the binary form.
const (
	flagExportable uint8 = 1 << iota
	flagReserved
	flagRemovable
	flagNotify
)

func packFlags(f property.Flags) uint8 {
	var b uint8
	if f.Exportable {
		b |= flagExportable
	}
	if f.Reserved {
		b |= flagReserved
	}
	if f.Removable {
		b |= flagRemovable
	}
	if f.Notify {
		b |= flagNotify
	}
	return b
}

func unpackFlags(b uint8) property.Flags {
	return property.Flags{
		Exportable: b&flagExportable != 0,
		Reserved:   b&flagReserved != 0,
		Removable:  b&flagRemovable != 0,
		Notify:     b&flagNotify != 0,
	}
}

var flagNames = []struct {
	name string
	bit  uint8
}{
	{"exportable", flagExportable},
	{"reserved", flagReserved},
	{"removable", flagRemovable},
	{"notify", flagNotify},
}

func flagsToNames(f property.Flags) []string {
	b := packFlags(f)
	var out []string
	for _, fn := range flagNames {
		if b&fn.bit != 0 {
			out = append(out, fn.name)
		}
	}
	return out
}

func flagsFromNames(names []string) (property.Flags, bool) {
	var b uint8
	for _, n := range names {
		found := false
		for _, fn := range flagNames {
			if fn.name == n {
				b |= fn.bit
				found = true
			}
		}
		if !found {
			return property.Flags{}, false
		}
	}
	return unpackFlags(b), true
}
