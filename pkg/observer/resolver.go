package observer

import (
	"github.com/qtilities/qtilities-go/pkg/log"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// resolve decides the fate of a subject after the edge e from o was removed.
// Deleted subjects are queued, never destroyed inline.
func (m *Manager) resolve(o *Observer, e *edge, trigger Trigger) Decision {
	s := e.subject
	b := s.SubjectBase()

	var d Decision
	switch {
	case trigger == TriggerSubjectDestroyed:
		d = Deleted
		if e.policy == OwnedBySubjectOwnership && !o.IsDestroyed() {
			m.logger.Debug("owning subject destroyed, destroying observer",
				"observer", o.ObjectName(), "subject", b.ObjectName())
			m.scheduleDelete(o)
		}

	case e.policy == ManualOwnership:
		d = Retained

	case e.policy == AutoOwnership:
		d = Retained
		if m.AutoEdges(s) == 0 && b.NativeParent() == nil {
			d = Deleted
		}

	case e.policy == SpecificObserverOwnership:
		d = Orphaned
		if trigger == TriggerObserverDestroyed {
			m.forceDetach(s, o)
			d = Deleted
		}

	case e.policy == ObserverScopeOwnership:
		d = Orphaned
		if m.edgesWithPolicy(s, ObserverScopeOwnership) == 0 {
			d = Deleted
		}

	case e.policy == OwnedBySubjectOwnership:
		d = Retained
	}

	remaining := len(m.ContextsOf(s))
	if d == Deleted && trigger != TriggerSubjectDestroyed {
		if remaining > 0 {
			m.logger.Debug("deleting subject still held by other contexts",
				"subject", b.ObjectName(), "policy", e.policy.String(), "contexts", remaining)
		}
		m.scheduleDelete(s)
	}

	m.traceEvent(log.Event{
		Category:     log.CategoryOwnership,
		ObserverID:   o.id,
		ObserverName: o.ObjectName(),
		SubjectName:  b.ObjectName(),
		Ownership: &log.OwnershipEvent{
			Policy:         e.policy.String(),
			Decision:       d.String(),
			Trigger:        trigger.String(),
			RemainingEdges: remaining,
		},
	})
	return d
}

// forceDetach removes every edge to s except the one from owner. The
// policies of the removed edges are not evaluated.
func (m *Manager) forceDetach(s subject.Subject, owner *Observer) {
	for _, o := range m.ObserversOf(s) {
		if o == owner {
			continue
		}
		if e, ok := o.edge(s); ok {
			o.removeEdge(e, TriggerForced)
		}
	}
}

// edgesWithPolicy counts the remaining edges to s with the given policy.
func (m *Manager) edgesWithPolicy(s subject.Subject, policy Policy) int {
	n := 0
	for _, o := range m.ObserversOf(s) {
		if e, ok := o.edge(s); ok && e.policy == policy {
			n++
		}
	}
	return n
}
