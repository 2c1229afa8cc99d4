package observer

import (
	"errors"
	"fmt"

	"github.com/qtilities/qtilities-go/pkg/log"
	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// DetachSubject detaches s. Filters may veto the detach; otherwise the
// subject's properties for this context are cleared and the edge is handed to
// the ownership resolver.
func (o *Observer) DetachSubject(s subject.Subject) error {
	o.manager.enter()
	defer o.manager.leave()

	e, err := o.validateDetach(s)
	if err != nil {
		o.rejectDetach(s, err)
		return err
	}
	o.removeEdge(e, TriggerDetach)
	o.manager.resolve(o, e, TriggerDetach)
	return nil
}

// CanDetach reports why DetachSubject(s) would fail, without changing
// anything. Filters' ValidateDetach hooks run as they would for a detach.
func (o *Observer) CanDetach(s subject.Subject) error {
	_, err := o.validateDetach(s)
	return err
}

// TryDetach is DetachSubject reduced to a success flag.
func (o *Observer) TryDetach(s subject.Subject) bool {
	return o.DetachSubject(s) == nil
}

// DetachAll detaches every subject inside one processing cycle. Subjects a
// filter refuses to release stay attached; their errors are joined.
func (o *Observer) DetachAll() error {
	o.manager.enter()
	defer o.manager.leave()

	o.StartProcessingCycle()
	defer o.EndProcessingCycle(true)

	var errs []error
	for _, s := range o.SubjectList() {
		if err := o.DetachSubject(s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", subject.Name(s), err))
		}
	}
	return errors.Join(errs...)
}

func (o *Observer) validateDetach(s subject.Subject) (*edge, error) {
	if s == nil {
		return nil, ErrNilSubject
	}
	e, ok := o.edge(s)
	if !ok {
		return nil, ErrNotAttached
	}
	if !o.effectiveAccess(e.category).permits(false) {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, o.effectiveAccess(e.category))
	}
	ctx := o.detachContext(e, TriggerDetach)
	for _, f := range o.filters {
		if !f.Capabilities().Has(CapValidateDetach) {
			continue
		}
		if v := f.ValidateDetach(ctx); v.Reject {
			return nil, &FilterError{Filter: f.FilterName(), Hook: "ValidateDetach", Reason: v.Reason}
		}
	}
	return e, nil
}

func (o *Observer) detachContext(e *edge, trigger Trigger) *DetachContext {
	return &DetachContext{
		Observer: o,
		Subject:  e.subject,
		Policy:   e.policy,
		Category: e.category,
		Trigger:  trigger,
	}
}

func (o *Observer) rejectDetach(s subject.Subject, err error) {
	var name string
	if s != nil {
		name = subject.Name(s)
	}
	o.manager.logger.Info("detach rejected",
		"observer", o.ObjectName(), "subject", name, "error", err)

	ev := Event{Kind: EventDetachRejected, Subject: s, Reason: err.Error(), Err: err}
	te := log.Event{
		Category:     log.CategoryDetach,
		Outcome:      log.OutcomeRejected,
		ObserverID:   o.id,
		ObserverName: o.ObjectName(),
		SubjectName:  name,
	}
	var fe *FilterError
	if errors.As(err, &fe) {
		ev.Filter, ev.Reason = fe.Filter, fe.Reason
		te.Category = log.CategoryFilter
		te.Filter = &log.FilterEvent{Filter: fe.Filter, Hook: fe.Hook, Reason: fe.Reason}
	} else {
		te.Attach = &log.AttachEvent{Reason: err.Error()}
	}
	o.manager.traceEvent(te)
	o.emit(ev)
}

// removeEdge drops an edge and the subject's bookkeeping for this context.
// It never consults filters and never deletes the subject.
func (o *Observer) removeEdge(e *edge, trigger Trigger) {
	m := o.manager
	s := e.subject
	b := s.SubjectBase()

	for i, existing := range o.edges {
		if existing == e {
			o.edges = append(o.edges[:i], o.edges[i+1:]...)
			break
		}
	}
	delete(o.index, b)

	store := b.Properties()
	store.Unsubscribe(e.forwarder)
	store.RemoveAllContext(o.id)
	if owner, ok := SpecificOwner(s); ok && owner == o.id {
		_ = store.Remove(PropSpecificOwner, property.AccessFramework)
	}
	if last := m.untrack(s, o, e.policy); last {
		for _, name := range store.Names() {
			if IsReservedName(name) {
				if entry, ok := store.Get(name); ok && entry.Shared() {
					_ = store.Remove(name, property.AccessFramework)
				}
			}
		}
	}

	ctx := o.detachContext(e, trigger)
	for _, f := range o.filters {
		if f.Capabilities().Has(CapNotifyDetached) {
			f.Detached(ctx)
		}
	}
	o.publishRemoved(s)

	m.logger.Debug("subject detached",
		"observer", o.ObjectName(), "subject", subject.Name(s), "trigger", trigger.String())
	m.traceEvent(log.Event{
		Category:     log.CategoryDetach,
		Outcome:      log.OutcomeSuccess,
		ObserverID:   o.id,
		ObserverName: o.ObjectName(),
		SubjectName:  subject.Name(s),
		Attach:       &log.AttachEvent{Policy: e.policy.String(), Category: e.category},
	})
}

// teardown runs as the observer's first destroy hook.
func (o *Observer) teardown() {
	m := o.manager
	m.enter()
	defer m.leave()

	o.destroying = true
	for len(o.edges) > 0 {
		e := o.edges[0]
		o.removeEdge(e, TriggerObserverDestroyed)
		m.resolve(o, e, TriggerObserverDestroyed)
	}
	o.pendingAdded, o.pendingRemoved, o.pendingChanged = nil, nil, nil
	o.cycleDepth = 0

	o.emit(Event{Kind: EventDestroyed})
	o.listeners = nil
	m.unregister(o)
	m.logger.Debug("observer destroyed", "observer", o.ObjectName(), "id", o.id)
}
