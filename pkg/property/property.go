package property

import "sort"

// Flags describe how a property may be used.
type Flags struct {
	// Exportable properties are written by the codec.
	Exportable bool

	// Reserved properties belong to the framework and reject client writes.
	Reserved bool

	// Removable properties may be removed by clients.
	Removable bool

	// Notify properties trigger change notifications.
	Notify bool
}

// Common flag combinations.
var (
	// DefaultFlags is used for client-defined properties.
	DefaultFlags = Flags{Exportable: true, Removable: true, Notify: true}

	// FrameworkFlags is used for reserved bookkeeping properties.
	FrameworkFlags = Flags{Reserved: true}

	// ExportedFrameworkFlags is used for reserved properties that survive export.
	ExportedFrameworkFlags = Flags{Reserved: true, Exportable: true}
)

// Entry is the common view of Property and SharedProperty.
type Entry interface {
	// Name returns the property name.
	Name() string

	// Flags returns the property flags.
	Flags() Flags

	// Shared returns true for context-independent properties.
	Shared() bool

	// LastChangedContext returns the context of the last change (0 if unknown).
	LastChangedContext() int

	// Value returns the value for a context. Shared properties ignore contextID.
	Value(contextID int) (Value, bool)

	// Contexts returns the contexts holding a value, sorted. Nil for shared properties.
	Contexts() []int

	set(contextID int, v Value) bool
	removeContext(contextID int) bool
	empty() bool
}

// Property holds one value per observer context.
type Property struct {
	name        string
	flags       Flags
	values      map[int]Value
	lastChanged int
}

// NewProperty creates an empty per-context property.
func NewProperty(name string, flags Flags) *Property {
	return &Property{
		name:   name,
		flags:  flags,
		values: make(map[int]Value),
	}
}

// Name returns the property name.
func (p *Property) Name() string { return p.name }

// Flags returns the property flags.
func (p *Property) Flags() Flags { return p.flags }

// Shared returns false.
func (p *Property) Shared() bool { return false }

// LastChangedContext returns the context of the last change.
func (p *Property) LastChangedContext() int { return p.lastChanged }

// Value returns the value stored for contextID.
func (p *Property) Value(contextID int) (Value, bool) {
	v, ok := p.values[contextID]
	return v, ok
}

// Contexts returns the sorted contexts that hold a value.
func (p *Property) Contexts() []int {
	ids := make([]int, 0, len(p.values))
	for id := range p.values {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len returns the number of contexts holding a value.
func (p *Property) Len() int { return len(p.values) }

func (p *Property) set(contextID int, v Value) bool {
	p.lastChanged = contextID
	if old, ok := p.values[contextID]; ok && old.Equal(v) {
		return false
	}
	p.values[contextID] = v
	return true
}

func (p *Property) removeContext(contextID int) bool {
	if _, ok := p.values[contextID]; !ok {
		return false
	}
	delete(p.values, contextID)
	p.lastChanged = contextID
	return true
}

func (p *Property) empty() bool { return len(p.values) == 0 }

// SharedProperty holds a single value for all contexts.
type SharedProperty struct {
	name        string
	flags       Flags
	value       Value
	lastChanged int
}

// NewSharedProperty creates a shared property with an initial value.
func NewSharedProperty(name string, flags Flags, v Value) *SharedProperty {
	return &SharedProperty{name: name, flags: flags, value: v}
}

// Name returns the property name.
func (p *SharedProperty) Name() string { return p.name }

// Flags returns the property flags.
func (p *SharedProperty) Flags() Flags { return p.flags }

// Shared returns true.
func (p *SharedProperty) Shared() bool { return true }

// LastChangedContext returns the context of the last change.
func (p *SharedProperty) LastChangedContext() int { return p.lastChanged }

// Value returns the shared value. contextID is ignored.
func (p *SharedProperty) Value(int) (Value, bool) {
	return p.value, p.value.IsValid()
}

// Contexts returns nil.
func (p *SharedProperty) Contexts() []int { return nil }

func (p *SharedProperty) set(contextID int, v Value) bool {
	p.lastChanged = contextID
	if p.value.Equal(v) {
		return false
	}
	p.value = v
	return true
}

func (p *SharedProperty) removeContext(int) bool { return false }

func (p *SharedProperty) empty() bool { return !p.value.IsValid() }

// Compile-time interface satisfaction checks.
var (
	_ Entry = (*Property)(nil)
	_ Entry = (*SharedProperty)(nil)
)
