package property

import "errors"

// Store errors.
var (
	ErrNotFound     = errors.New("property not found")
	ErrExists       = errors.New("property already exists")
	ErrReserved     = errors.New("property is reserved")
	ErrNotRemovable = errors.New("property is not removable")
)

// Access identifies the caller of a mutating store operation.
type Access uint8

const (
	// AccessClient is used by application code.
	AccessClient Access = iota

	// AccessFramework is used by the observer core and codecs.
	AccessFramework
)

// ChangeListener is notified when a Notify property changes.
type ChangeListener interface {
	// OnPropertyChanged is called after the value for contextID changed.
	OnPropertyChanged(name string, contextID int)
}

// Store holds the properties of one subject in definition order.
type Store struct {
	entries   map[string]Entry
	order     []string
	listeners []ChangeListener
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Define adds a property. Reserved properties can only be defined by the framework.
func (s *Store) Define(e Entry, access Access) error {
	if e.Flags().Reserved && access != AccessFramework {
		return ErrReserved
	}
	if _, exists := s.entries[e.Name()]; exists {
		return ErrExists
	}
	s.entries[e.Name()] = e
	s.order = append(s.order, e.Name())
	return nil
}

// Ensure returns the named property, defining it with the given kind and
// flags when missing. Used by the framework.
func (s *Store) Ensure(name string, shared bool, flags Flags) Entry {
	if e, ok := s.entries[name]; ok {
		return e
	}
	var e Entry
	if shared {
		e = NewSharedProperty(name, flags, Value{})
	} else {
		e = NewProperty(name, flags)
	}
	s.entries[name] = e
	s.order = append(s.order, name)
	return e
}

// Has returns true if the named property exists.
func (s *Store) Has(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Get returns a property by name.
func (s *Store) Get(name string) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Names returns property names in definition order.
func (s *Store) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of properties.
func (s *Store) Len() int { return len(s.order) }

// Value returns the value of a property for a context.
func (s *Store) Value(name string, contextID int) (Value, bool) {
	e, ok := s.entries[name]
	if !ok {
		return Value{}, false
	}
	return e.Value(contextID)
}

// SetValue sets the value of an existing property for a context.
func (s *Store) SetValue(name string, contextID int, v Value, access Access) error {
	if !v.IsValid() {
		return ErrInvalidValue
	}
	e, ok := s.entries[name]
	if !ok {
		return ErrNotFound
	}
	if e.Flags().Reserved && access != AccessFramework {
		return ErrReserved
	}
	if e.set(contextID, v) && e.Flags().Notify {
		s.notify(name, contextID)
	}
	return nil
}

// Remove deletes a property.
func (s *Store) Remove(name string, access Access) error {
	e, ok := s.entries[name]
	if !ok {
		return ErrNotFound
	}
	if access != AccessFramework {
		if e.Flags().Reserved {
			return ErrReserved
		}
		if !e.Flags().Removable {
			return ErrNotRemovable
		}
	}
	s.drop(name)
	if e.Flags().Notify {
		s.notify(name, e.LastChangedContext())
	}
	return nil
}

// RemoveContext removes the value of a per-context property for one context.
// The property itself is dropped once no context holds a value. Shared
// properties are left untouched.
func (s *Store) RemoveContext(name string, contextID int, access Access) error {
	e, ok := s.entries[name]
	if !ok {
		return ErrNotFound
	}
	if e.Flags().Reserved && access != AccessFramework {
		return ErrReserved
	}
	if !e.removeContext(contextID) {
		return nil
	}
	if e.empty() {
		s.drop(name)
	}
	if e.Flags().Notify {
		s.notify(name, contextID)
	}
	return nil
}

// RemoveAllContext drops every per-context value held for contextID.
func (s *Store) RemoveAllContext(contextID int) {
	for _, name := range s.Names() {
		_ = s.RemoveContext(name, contextID, AccessFramework)
	}
}

// Contexts returns every context that holds a per-context value.
func (s *Store) Contexts() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, name := range s.order {
		for _, id := range s.entries[name].Contexts() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Subscribe adds a change listener.
func (s *Store) Subscribe(l ChangeListener) {
	s.listeners = append(s.listeners, l)
}

// Unsubscribe removes a change listener.
func (s *Store) Unsubscribe(l ChangeListener) {
	for i, existing := range s.listeners {
		if existing == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *Store) drop(name string) {
	delete(s.entries, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Store) notify(name string, contextID int) {
	subs := make([]ChangeListener, len(s.listeners))
	copy(subs, s.listeners)
	for _, l := range subs {
		l.OnPropertyChanged(name, contextID)
	}
}
