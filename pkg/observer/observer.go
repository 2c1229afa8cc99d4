package observer

import (
	"fmt"

	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// InstanceObserver is the factory instance tag of observers.
const InstanceObserver = "Observer"

// edge is one attachment of a subject to an observer.
type edge struct {
	subject   subject.Subject
	id        int
	policy    Policy
	category  string
	forwarder *forwarder
}

// forwarder relays property changes of one subject to its observer.
type forwarder struct {
	o *Observer
	s subject.Subject
}

func (f *forwarder) OnPropertyChanged(name string, contextID int) {
	f.o.propertyChanged(f.s, name, contextID)
}

type listenerEntry struct {
	id int
	l  Listener
}

// Observer is a named context that attaches subjects. Observers are created
// by a Manager and are subjects themselves.
type Observer struct {
	subject.Base

	manager *Manager
	id      int

	edges         []*edge
	index         map[*subject.Base]*edge
	nextSubjectID int

	limit          int
	access         AccessMode
	categoryAccess map[string]AccessMode

	filters []Filter
	used    bool

	cycleDepth     int
	pendingAdded   []subject.Subject
	pendingRemoved []subject.Subject
	pendingChanged []PropertyChange

	listeners      []listenerEntry
	nextListenerID int
	destroying     bool
}

// NewObserver creates an observer with a fresh context ID.
func (m *Manager) NewObserver(name string) *Observer {
	o := &Observer{
		manager:        m,
		index:          make(map[*subject.Base]*edge),
		nextSubjectID:  1,
		limit:          -1,
		categoryAccess: make(map[string]AccessMode),
	}
	o.SetObjectName(name)
	o.SetFactoryInfo(subject.FactoryCore, InstanceObserver)
	o.AddCapabilities(subject.CapObserver)
	setShared(o.Properties(), PropLimit, property.Int(-1))

	m.register(o)
	// Registered first so the observer releases its subjects before anything
	// else reacts to its destruction.
	o.AddDestroyHook(o, o.teardown)

	m.logger.Debug("observer created", "observer", name, "id", o.id)
	return o
}

// ID returns the context ID. IDs are never reused within a manager.
func (o *Observer) ID() int { return o.id }

// Manager returns the manager that created the observer.
func (o *Observer) Manager() *Manager { return o.manager }

// ChildObserver returns o, so observers nest like any other provider.
func (o *Observer) ChildObserver() *Observer { return o }

// Destroy destroys the observer and resolves the ownership of its subjects.
func (o *Observer) Destroy() {
	o.manager.enter()
	defer o.manager.leave()
	o.Base.Destroy()
}

func (o *Observer) edge(s subject.Subject) (*edge, bool) {
	e, ok := o.index[s.SubjectBase()]
	return e, ok
}

// SubjectList returns the attached subjects in attach order.
func (o *Observer) SubjectList() []subject.Subject {
	out := make([]subject.Subject, len(o.edges))
	for i, e := range o.edges {
		out[i] = e.subject
	}
	return out
}

// SubjectCount returns the number of attached subjects.
func (o *Observer) SubjectCount() int { return len(o.edges) }

// SubjectAt returns the subject at index i, or nil when out of range.
func (o *Observer) SubjectAt(i int) subject.Subject {
	if i < 0 || i >= len(o.edges) {
		return nil
	}
	return o.edges[i].subject
}

// Contains returns true if s is attached.
func (o *Observer) Contains(s subject.Subject) bool {
	if s == nil {
		return false
	}
	_, ok := o.edge(s)
	return ok
}

// SubjectID returns the ID s was given when attached.
func (o *Observer) SubjectID(s subject.Subject) (int, bool) {
	e, ok := o.edge(s)
	if !ok {
		return 0, false
	}
	return e.id, true
}

// SubjectByID returns the subject attached under id.
func (o *Observer) SubjectByID(id int) subject.Subject {
	for _, e := range o.edges {
		if e.id == id {
			return e.subject
		}
	}
	return nil
}

// OwnershipOf returns the policy of the edge to s.
func (o *Observer) OwnershipOf(s subject.Subject) (Policy, bool) {
	e, ok := o.edge(s)
	if !ok {
		return 0, false
	}
	return e.policy, true
}

// CategoryOf returns the category s was attached under.
func (o *Observer) CategoryOf(s subject.Subject) (string, bool) {
	e, ok := o.edge(s)
	if !ok {
		return "", false
	}
	return e.category, true
}

// Categories returns the distinct categories in first-use order.
func (o *Observer) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range o.edges {
		if e.category != "" && !seen[e.category] {
			seen[e.category] = true
			out = append(out, e.category)
		}
	}
	return out
}

// SubjectsByCategory returns the subjects attached under category.
func (o *Observer) SubjectsByCategory(category string) []subject.Subject {
	var out []subject.Subject
	for _, e := range o.edges {
		if e.category == category {
			out = append(out, e.subject)
		}
	}
	return out
}

// DisplayName returns the name s carries in this context: its instance
// name when one was assigned, its object name otherwise.
func (o *Observer) DisplayName(s subject.Subject) string {
	if v, ok := s.SubjectBase().Properties().Value(PropInstanceName, o.id); ok {
		if name, ok := v.AsString(); ok && name != "" {
			return name
		}
	}
	return subject.Name(s)
}

// SubjectByName returns the first subject whose display name is name.
func (o *Observer) SubjectByName(name string) subject.Subject {
	for _, e := range o.edges {
		if o.DisplayName(e.subject) == name {
			return e.subject
		}
	}
	return nil
}

// SubjectLimit returns the subject limit (-1 = unlimited).
func (o *Observer) SubjectLimit() int { return o.limit }

// SetSubjectLimit sets the subject limit. Negative values mean unlimited.
func (o *Observer) SetSubjectLimit(n int) error {
	if n < 0 {
		n = -1
	}
	if n >= 0 && n < len(o.edges) {
		return fmt.Errorf("%w: %d < %d", ErrLimitBelowCount, n, len(o.edges))
	}
	o.limit = n
	setShared(o.Properties(), PropLimit, property.Int(int64(n)))
	return nil
}

// AccessMode returns the observer-wide access mode.
func (o *Observer) AccessMode() AccessMode { return o.access }

// SetAccessMode sets the observer-wide access mode.
func (o *Observer) SetAccessMode(a AccessMode) { o.access = a }

// CategoryAccessMode returns the access mode of a category.
func (o *Observer) CategoryAccessMode(category string) AccessMode {
	return o.categoryAccess[category]
}

// SetCategoryAccessMode sets the access mode of a category. The stricter of
// the category and the observer mode applies.
func (o *Observer) SetCategoryAccessMode(category string, a AccessMode) {
	if a == FullAccess {
		delete(o.categoryAccess, category)
		return
	}
	o.categoryAccess[category] = a
}

// CategoryAccessModes returns the categories with a restricted access mode.
func (o *Observer) CategoryAccessModes() map[string]AccessMode {
	out := make(map[string]AccessMode, len(o.categoryAccess))
	for k, v := range o.categoryAccess {
		out[k] = v
	}
	return out
}

func (o *Observer) effectiveAccess(category string) AccessMode {
	a := o.access
	if c, ok := o.categoryAccess[category]; ok && c > a {
		a = c
	}
	return a
}

// InstallFilter appends f to the filter chain. Filters can only be installed
// before the first attach.
func (o *Observer) InstallFilter(f Filter) error {
	if f == nil {
		return ErrNilFilter
	}
	if o.used {
		return ErrFilterAfterUse
	}
	for _, existing := range o.filters {
		if existing.FilterName() == f.FilterName() {
			return fmt.Errorf("%w: %s", ErrDuplicateFilter, f.FilterName())
		}
	}
	if err := f.Install(o); err != nil {
		return fmt.Errorf("install %s: %w", f.FilterName(), err)
	}
	o.filters = append(o.filters, f)
	return nil
}

// Filters returns the filter chain in installation order.
func (o *Observer) Filters() []Filter {
	out := make([]Filter, len(o.filters))
	copy(out, o.filters)
	return out
}

// FilterByName returns the installed filter with the given name.
func (o *Observer) FilterByName(name string) (Filter, bool) {
	for _, f := range o.filters {
		if f.FilterName() == name {
			return f, true
		}
	}
	return nil, false
}

// PropertyValue returns the value of a property of s in this context.
func (o *Observer) PropertyValue(s subject.Subject, name string) (property.Value, bool) {
	return s.SubjectBase().Properties().Value(name, o.id)
}

// SetPropertyValue sets a client property of an attached subject in this
// context, defining it with default flags when missing.
func (o *Observer) SetPropertyValue(s subject.Subject, name string, v property.Value) error {
	if !o.Contains(s) {
		return ErrNotAttached
	}
	store := s.SubjectBase().Properties()
	if !store.Has(name) {
		if IsReservedName(name) {
			return property.ErrReserved
		}
		if err := store.Define(property.NewProperty(name, property.DefaultFlags), property.AccessClient); err != nil {
			return err
		}
	}
	return store.SetValue(name, o.id, v, property.AccessClient)
}

// Subscribe adds a listener and returns a function that removes it.
func (o *Observer) Subscribe(l Listener) (unsubscribe func()) {
	o.nextListenerID++
	id := o.nextListenerID
	o.listeners = append(o.listeners, listenerEntry{id: id, l: l})
	return func() {
		for i, entry := range o.listeners {
			if entry.id == id {
				o.listeners = append(o.listeners[:i], o.listeners[i+1:]...)
				return
			}
		}
	}
}

func (o *Observer) emit(e Event) {
	e.Observer = o
	subs := make([]listenerEntry, len(o.listeners))
	copy(subs, o.listeners)
	for _, entry := range subs {
		entry.l.OnObserverEvent(e)
	}
}

// RefreshViewsLayout notifies listeners that views should redo their layout.
// It changes no state.
func (o *Observer) RefreshViewsLayout() {
	o.emit(Event{Kind: EventLayoutRefresh})
}

// StartProcessingCycle suspends per-subject notifications. Cycles nest.
func (o *Observer) StartProcessingCycle() {
	o.cycleDepth++
}

// EndProcessingCycle ends a cycle. When the outermost cycle ends and
// broadcast is set, the suppressed changes are sent as one
// EventSubjectsChanged.
func (o *Observer) EndProcessingCycle(broadcast bool) {
	if o.cycleDepth == 0 {
		return
	}
	o.cycleDepth--
	if o.cycleDepth > 0 {
		return
	}

	added, removed, changed := o.pendingAdded, o.pendingRemoved, o.pendingChanged
	o.pendingAdded, o.pendingRemoved, o.pendingChanged = nil, nil, nil
	if !broadcast || len(added)+len(removed)+len(changed) == 0 {
		return
	}
	o.emit(Event{Kind: EventSubjectsChanged, Added: added, Removed: removed, Changed: changed})
}

// IsProcessingCycleActive returns true inside a processing cycle.
func (o *Observer) IsProcessingCycleActive() bool { return o.cycleDepth > 0 }

func (o *Observer) publishAdded(s subject.Subject) {
	if o.cycleDepth > 0 {
		o.pendingAdded = append(o.pendingAdded, s)
		return
	}
	o.emit(Event{Kind: EventSubjectAdded, Subject: s})
}

func (o *Observer) publishRemoved(s subject.Subject) {
	if o.destroying {
		return
	}
	if o.cycleDepth > 0 {
		o.pendingRemoved = append(o.pendingRemoved, s)
		return
	}
	o.emit(Event{Kind: EventSubjectRemoved, Subject: s})
}

func (o *Observer) propertyChanged(s subject.Subject, name string, contextID int) {
	if e, ok := s.SubjectBase().Properties().Get(name); ok {
		if !e.Shared() && contextID != o.id {
			return
		}
	} else if contextID != o.id && contextID != 0 {
		return
	}

	if o.cycleDepth > 0 {
		o.pendingChanged = append(o.pendingChanged, PropertyChange{Subject: s, Property: name})
		return
	}
	o.emit(Event{Kind: EventPropertyChanged, Subject: s, Property: name})
}
