package observer

import (
	"errors"
	"fmt"

	"github.com/qtilities/qtilities-go/pkg/log"
	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

type attachOptions struct {
	category  string
	target    int
	framework bool
}

// AttachOption configures a single attach.
type AttachOption func(*attachOptions)

// WithCategory files the subject under a category path.
func WithCategory(category string) AttachOption {
	return func(o *attachOptions) { o.category = category }
}

// WithTargetObserverID makes the new edge adopt the per-context values the
// subject carries for context id. Importers stage values under the exported
// context ID and let the attach move them to the new observer.
func WithTargetObserverID(id int) AttachOption {
	return func(o *attachOptions) { o.target = id }
}

// WithFrameworkAccess marks the attach as framework-driven, which passes
// ReadOnlyAccess.
func WithFrameworkAccess() AttachOption {
	return func(o *attachOptions) { o.framework = true }
}

// AttachSubject attaches s with the given ownership policy. Every check runs
// before anything changes; on error the observer and the subject are left
// untouched.
func (o *Observer) AttachSubject(s subject.Subject, policy Policy, opts ...AttachOption) error {
	o.manager.enter()
	defer o.manager.leave()

	var ao attachOptions
	for _, opt := range opts {
		opt(&ao)
	}
	ctx := &AttachContext{
		Observer:  o,
		Subject:   s,
		Policy:    policy,
		Category:  ao.category,
		Framework: ao.framework,
	}
	if err := o.validateAttach(ctx); err != nil {
		o.rejectAttach(ctx, err)
		return err
	}
	o.commitAttach(ctx, ao.target)
	return nil
}

// TryAttach is AttachSubject reduced to a success flag.
func (o *Observer) TryAttach(s subject.Subject, policy Policy, opts ...AttachOption) bool {
	return o.AttachSubject(s, policy, opts...) == nil
}

// AttachSubjects attaches several subjects inside one processing cycle. The
// returned slice holds the error of each attach, nil on success.
func (o *Observer) AttachSubjects(list []subject.Subject, policy Policy, opts ...AttachOption) []error {
	o.manager.enter()
	defer o.manager.leave()

	o.StartProcessingCycle()
	defer o.EndProcessingCycle(true)

	errs := make([]error, len(list))
	for i, s := range list {
		errs[i] = o.AttachSubject(s, policy, opts...)
	}
	return errs
}

func (o *Observer) validateAttach(ctx *AttachContext) error {
	s := ctx.Subject
	if s == nil {
		return ErrNilSubject
	}
	if o.IsDestroyed() || o.destroying {
		return fmt.Errorf("%w: observer %q", ErrDestroyed, o.ObjectName())
	}
	if s.SubjectBase().IsDestroyed() {
		return fmt.Errorf("%w: subject %q", ErrDestroyed, subject.Name(s))
	}
	if !ctx.Policy.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidPolicy, ctx.Policy)
	}
	if !o.effectiveAccess(ctx.Category).permits(ctx.Framework) {
		return fmt.Errorf("%w: %s", ErrAccessDenied, o.effectiveAccess(ctx.Category))
	}
	if o.limit >= 0 && len(o.edges) >= o.limit {
		return fmt.Errorf("%w: %d", ErrLimitReached, o.limit)
	}
	if o.Contains(s) {
		return ErrAlreadyAttached
	}
	if err := o.checkCycle(s); err != nil {
		return err
	}
	if ctx.Policy == SpecificObserverOwnership {
		if owner, ok := SpecificOwner(s); ok && owner != o.id {
			return fmt.Errorf("%w: context %d", ErrSpecificOwnerExists, owner)
		}
	}
	for _, f := range o.filters {
		if !f.Capabilities().Has(CapValidateAttach) {
			continue
		}
		staged := ctx.rename
		if v := f.ValidateAttach(ctx); v.Reject {
			return &FilterError{Filter: f.FilterName(), Hook: "ValidateAttach", Reason: v.Reason}
		}
		if ctx.rename != staged {
			ctx.renamedBy = f.FilterName()
		}
	}
	return nil
}

func (o *Observer) commitAttach(ctx *AttachContext, target int) {
	m := o.manager
	s := ctx.Subject
	b := s.SubjectBase()
	store := b.Properties()
	shared := len(m.ContextsOf(s)) > 0

	o.used = true
	e := &edge{subject: s, id: o.nextSubjectID, policy: ctx.Policy, category: ctx.Category}
	o.nextSubjectID++
	o.edges = append(o.edges, e)
	o.index[b] = e

	if target != 0 && target != o.id {
		adoptContext(store, target, o.id)
	}
	_ = FrameworkProperty(s, PropSubjectID, o.id, property.Int(int64(e.id)))
	_ = FrameworkProperty(s, PropOwnership, o.id, property.String(ctx.Policy.String()))
	if ctx.Category != "" {
		_ = FrameworkProperty(s, PropCategory, o.id, property.String(ctx.Category))
	}
	if ctx.Policy == SpecificObserverOwnership {
		setShared(store, PropSpecificOwner, property.Reference(o.id))
	}
	renamed, hasRename := ctx.Renamed()
	if hasRename {
		if shared {
			_ = FrameworkProperty(s, PropInstanceName, o.id, property.String(renamed))
		} else {
			b.SetObjectName(renamed)
		}
	}

	m.track(s, o, ctx.Policy)
	e.forwarder = &forwarder{o: o, s: s}
	store.Subscribe(e.forwarder)

	for _, f := range o.filters {
		if f.Capabilities().Has(CapNotifyAttached) {
			f.Attached(ctx)
		}
	}
	o.publishAdded(s)

	m.logger.Debug("subject attached",
		"observer", o.ObjectName(), "subject", subject.Name(s), "policy", ctx.Policy.String())
	m.traceEvent(log.Event{
		Category:     log.CategoryAttach,
		Outcome:      log.OutcomeSuccess,
		ObserverID:   o.id,
		ObserverName: o.ObjectName(),
		SubjectName:  subject.Name(s),
		Attach:       &log.AttachEvent{
			Policy:    ctx.Policy.String(),
			Category:  ctx.Category,
			Renamed:   renamed,
			RenamedBy: ctx.RenamedBy(),
		},
	})
}

func (o *Observer) rejectAttach(ctx *AttachContext, err error) {
	var name string
	if ctx.Subject != nil {
		name = subject.Name(ctx.Subject)
	}
	o.manager.logger.Info("attach rejected",
		"observer", o.ObjectName(), "subject", name, "error", err)

	ev := Event{Kind: EventAttachRejected, Subject: ctx.Subject, Reason: err.Error(), Err: err}
	te := log.Event{
		Category:     log.CategoryAttach,
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
		te.Attach = &log.AttachEvent{Policy: ctx.Policy.String(), Category: ctx.Category, Reason: err.Error()}
	}
	o.manager.traceEvent(te)
	o.emit(ev)
}

// adoptContext moves every per-context value held for from to to.
func adoptContext(store *property.Store, from, to int) {
	for _, name := range store.Names() {
		e, ok := store.Get(name)
		if !ok || e.Shared() {
			continue
		}
		v, ok := e.Value(from)
		if !ok {
			continue
		}
		_ = store.SetValue(name, to, v, property.AccessFramework)
		_ = store.RemoveContext(name, from, property.AccessFramework)
	}
}
