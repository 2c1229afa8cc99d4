package observer

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/qtilities/qtilities-go/pkg/log"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// record tracks every edge of one subject.
type record struct {
	subject   subject.Subject
	observers []*Observer
	autoEdges int
}

// Manager creates observers and coordinates ownership across them.
// It is not safe for concurrent use.
type Manager struct {
	config Config
	logger *slog.Logger
	trace  log.Logger

	nextID    int
	observers map[int]*Observer
	records   map[*subject.Base]*record

	// pending holds subjects queued for destruction.
	pending  []subject.Subject
	depth    int
	draining bool

	onSubjectDeleted func(s subject.Subject)
}

// NewManager creates a manager. Unset config fields take their defaults.
func NewManager(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		config:    cfg,
		logger:    cfg.Logger,
		trace:     cfg.TraceLogger,
		nextID:    1,
		observers: make(map[int]*Observer),
		records:   make(map[*subject.Base]*record),
	}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.config }

// SessionID returns the ID tagging this manager's trace events.
func (m *Manager) SessionID() string { return m.config.SessionID }

// Logger returns the operational logger.
func (m *Manager) Logger() *slog.Logger { return m.logger }

// OnSubjectDeleted sets a callback invoked after the resolver destroyed a subject.
func (m *Manager) OnSubjectDeleted(fn func(s subject.Subject)) {
	m.onSubjectDeleted = fn
}

// Observer returns the live observer with the given context ID.
func (m *Manager) Observer(id int) (*Observer, bool) {
	o, ok := m.observers[id]
	return o, ok
}

// Observers returns all live observers ordered by context ID.
func (m *Manager) Observers() []*Observer {
	out := make([]*Observer, 0, len(m.observers))
	for _, o := range m.observers {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ObserversOf returns the observers holding s, in attach order.
func (m *Manager) ObserversOf(s subject.Subject) []*Observer {
	rec, ok := m.records[s.SubjectBase()]
	if !ok {
		return nil
	}
	out := make([]*Observer, len(rec.observers))
	copy(out, rec.observers)
	return out
}

// ContextsOf returns the context IDs of the observers holding s.
func (m *Manager) ContextsOf(s subject.Subject) []int {
	rec, ok := m.records[s.SubjectBase()]
	if !ok {
		return nil
	}
	ids := make([]int, len(rec.observers))
	for i, o := range rec.observers {
		ids[i] = o.id
	}
	return ids
}

// AutoEdges returns the number of AutoOwnership edges held to s.
func (m *Manager) AutoEdges(s subject.Subject) int {
	if rec, ok := m.records[s.SubjectBase()]; ok {
		return rec.autoEdges
	}
	return 0
}

// Pending returns the number of subjects queued for destruction.
func (m *Manager) Pending() int { return len(m.pending) }

// Flush destroys every queued subject, including those queued while flushing.
func (m *Manager) Flush() {
	if m.draining {
		return
	}
	m.draining = true
	defer func() { m.draining = false }()

	for len(m.pending) > 0 {
		s := m.pending[0]
		m.pending = m.pending[1:]
		b := s.SubjectBase()
		if b.IsDestroyed() {
			continue
		}
		m.logger.Debug("destroying subject", "subject", b.ObjectName())
		b.Destroy()
		if m.onSubjectDeleted != nil {
			m.onSubjectDeleted(s)
		}
	}
}

// enter and leave bracket public mutating calls. The outermost leave is the
// safe point at which queued deletions run.
func (m *Manager) enter() { m.depth++ }

func (m *Manager) leave() {
	m.depth--
	if m.depth == 0 {
		m.Flush()
	}
}

func (m *Manager) scheduleDelete(s subject.Subject) {
	b := s.SubjectBase()
	if b.IsDestroyed() {
		return
	}
	for _, p := range m.pending {
		if p.SubjectBase() == b {
			return
		}
	}
	m.pending = append(m.pending, s)
}

// track records a new edge and hooks the subject's destruction.
func (m *Manager) track(s subject.Subject, o *Observer, policy Policy) {
	b := s.SubjectBase()
	rec, ok := m.records[b]
	if !ok {
		rec = &record{subject: s}
		m.records[b] = rec
		b.AddDestroyHook(m, func() { m.subjectDestroyed(s) })
	}
	rec.observers = append(rec.observers, o)
	if policy == AutoOwnership {
		rec.autoEdges++
	}
}

// untrack removes an edge. It returns true when it was the subject's last.
func (m *Manager) untrack(s subject.Subject, o *Observer, policy Policy) bool {
	b := s.SubjectBase()
	rec, ok := m.records[b]
	if !ok {
		return true
	}
	for i, existing := range rec.observers {
		if existing == o {
			rec.observers = append(rec.observers[:i], rec.observers[i+1:]...)
			break
		}
	}
	if policy == AutoOwnership {
		rec.autoEdges--
	}
	if len(rec.observers) > 0 {
		return false
	}
	delete(m.records, b)
	b.RemoveDestroyHook(m)
	return true
}

// subjectDestroyed detaches a destroyed subject from every observer.
func (m *Manager) subjectDestroyed(s subject.Subject) {
	rec, ok := m.records[s.SubjectBase()]
	if !ok {
		return
	}
	m.enter()
	defer m.leave()

	holders := make([]*Observer, len(rec.observers))
	copy(holders, rec.observers)
	for _, o := range holders {
		e, ok := o.edge(s)
		if !ok {
			continue
		}
		o.removeEdge(e, TriggerSubjectDestroyed)
		m.resolve(o, e, TriggerSubjectDestroyed)
	}
}

func (m *Manager) register(o *Observer) {
	o.id = m.nextID
	m.nextID++
	m.observers[o.id] = o
	m.traceEvent(log.Event{
		Category:     log.CategoryLifecycle,
		ObserverID:   o.id,
		ObserverName: o.ObjectName(),
	})
}

func (m *Manager) unregister(o *Observer) {
	delete(m.observers, o.id)
	m.traceEvent(log.Event{
		Category:     log.CategoryLifecycle,
		ObserverID:   o.id,
		ObserverName: o.ObjectName(),
		Ownership:    &log.OwnershipEvent{Decision: Deleted.String(), Trigger: "destroy"},
	})
}

func (m *Manager) traceEvent(e log.Event) {
	e.Timestamp = time.Now()
	e.SessionID = m.config.SessionID
	m.trace.Log(e)
}

// CheckIntegrity verifies the bookkeeping of every live observer: each edge
// is tracked by the manager, carries its back-reference properties, and the
// attach graph is free of cycles.
func (m *Manager) CheckIntegrity() error {
	for _, o := range m.Observers() {
		for _, e := range o.edges {
			rec, ok := m.records[e.subject.SubjectBase()]
			if !ok || !containsObserver(rec.observers, o) {
				return fmt.Errorf("%w: %s holds untracked subject %q", ErrIntegrity, o.ObjectName(), subject.Name(e.subject))
			}
			store := e.subject.SubjectBase().Properties()
			if _, ok := store.Value(PropSubjectID, o.id); !ok {
				return fmt.Errorf("%w: subject %q lacks its ID in context %d", ErrIntegrity, subject.Name(e.subject), o.id)
			}
		}
		if cyclic, _ := reachable(o, o, m.config.MaxWalkDepth); cyclic {
			return fmt.Errorf("%w: cycle through %s", ErrIntegrity, o.ObjectName())
		}
	}
	for b, rec := range m.records {
		auto := 0
		for _, o := range rec.observers {
			e, ok := o.edge(rec.subject)
			if !ok {
				return fmt.Errorf("%w: stale record for %q", ErrIntegrity, b.ObjectName())
			}
			if e.policy == AutoOwnership {
				auto++
			}
		}
		if auto != rec.autoEdges {
			return fmt.Errorf("%w: auto edge count of %q is %d, want %d", ErrIntegrity, b.ObjectName(), rec.autoEdges, auto)
		}
	}
	return nil
}

func containsObserver(list []*Observer, o *Observer) bool {
	for _, x := range list {
		if x == o {
			return true
		}
	}
	return false
}
