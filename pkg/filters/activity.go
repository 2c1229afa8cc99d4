package filters

import (
	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// ActivityPolicyName is the filter name of ActivityPolicy.
const ActivityPolicyName = "Activity Policy"

// ActivityMode controls how many subjects may be active.
type ActivityMode uint8

const (
	// SingleActivity allows at most one active subject.
	SingleActivity ActivityMode = iota

	// MultipleActivity allows any number of active subjects.
	MultipleActivity
)

// MinimumActivity controls whether the active set may be empty.
type MinimumActivity uint8

const (
	// AllowNoneActive permits an empty active set.
	AllowNoneActive MinimumActivity = iota

	// ProhibitNoneActive keeps at least one subject active while any is attached.
	ProhibitNoneActive
)

// NewSubjectActivity sets the activity of newly attached subjects.
type NewSubjectActivity uint8

const (
	// SetNewInactive attaches new subjects inactive.
	SetNewInactive NewSubjectActivity = iota

	// SetNewActive attaches new subjects active.
	SetNewActive
)

// ParentTracking controls whether the observer's own activity follows its
// subjects.
type ParentTracking uint8

const (
	// ParentIgnoreActivity leaves the observer's activity alone.
	ParentIgnoreActivity ParentTracking = iota

	// ParentFollowActivity makes the observer active in its parents while any
	// of its subjects is active.
	ParentFollowActivity
)

// ActivityPolicy tracks the active subset of an observer's subjects. The
// activity of a subject is stored as its qti.activity.active property in the
// observer's context.
type ActivityPolicy struct {
	observer.FilterBase

	mode        ActivityMode
	minimum     MinimumActivity
	newActivity NewSubjectActivity
	parent      ParentTracking

	active    map[*subject.Base]bool
	onChanged func(active []subject.Subject)
}

// NewActivityPolicy creates a policy with single activity, an optional
// active subject and new subjects attached inactive.
func NewActivityPolicy() *ActivityPolicy {
	return &ActivityPolicy{active: make(map[*subject.Base]bool)}
}

// FilterName returns ActivityPolicyName.
func (p *ActivityPolicy) FilterName() string { return ActivityPolicyName }

// Capabilities returns the hooks the policy uses.
func (p *ActivityPolicy) Capabilities() observer.FilterCapability {
	return observer.CapNotifyAttached | observer.CapValidateDetach | observer.CapNotifyDetached
}

// SetActivityMode sets the activity mode.
func (p *ActivityPolicy) SetActivityMode(m ActivityMode) { p.mode = m }

// SetMinimumActivity sets the minimum activity policy.
func (p *ActivityPolicy) SetMinimumActivity(m MinimumActivity) { p.minimum = m }

// SetNewSubjectActivity sets the activity of new subjects.
func (p *ActivityPolicy) SetNewSubjectActivity(n NewSubjectActivity) { p.newActivity = n }

// SetParentTracking sets the parent tracking policy.
func (p *ActivityPolicy) SetParentTracking(t ParentTracking) { p.parent = t }

// OnActivityChanged sets a callback invoked with the new active set.
func (p *ActivityPolicy) OnActivityChanged(fn func(active []subject.Subject)) {
	p.onChanged = fn
}

// IsActive returns true if s is active in the policy's observer.
func (p *ActivityPolicy) IsActive(s subject.Subject) bool {
	o := p.Observer()
	if o == nil {
		return false
	}
	v, ok := o.PropertyValue(s, observer.PropActivity)
	if !ok {
		return false
	}
	active, _ := v.AsBool()
	return active
}

// ActiveSubjects returns the active subjects in attach order.
func (p *ActivityPolicy) ActiveSubjects() []subject.Subject {
	o := p.Observer()
	if o == nil {
		return nil
	}
	var out []subject.Subject
	for _, s := range o.SubjectList() {
		if p.IsActive(s) {
			out = append(out, s)
		}
	}
	return out
}

// SetActiveSubjects replaces the active set.
func (p *ActivityPolicy) SetActiveSubjects(list []subject.Subject) error {
	o := p.Observer()
	if o == nil {
		return observer.ErrNotAttached
	}
	seen := make(map[*subject.Base]bool)
	var next []subject.Subject
	for _, s := range list {
		if !o.Contains(s) {
			return observer.ErrNotAttached
		}
		if !seen[s.SubjectBase()] {
			seen[s.SubjectBase()] = true
			next = append(next, s)
		}
	}
	if p.mode == SingleActivity && len(next) > 1 {
		return ErrTooManyActive
	}
	if p.minimum == ProhibitNoneActive && len(next) == 0 && o.SubjectCount() > 0 {
		return ErrNoneActive
	}
	p.apply(next)
	return nil
}

// SetActive activates or deactivates one subject. Activating a subject under
// SingleActivity deactivates the others.
func (p *ActivityPolicy) SetActive(s subject.Subject, active bool) error {
	o := p.Observer()
	if o == nil || !o.Contains(s) {
		return observer.ErrNotAttached
	}
	if active && p.mode == SingleActivity {
		return p.SetActiveSubjects([]subject.Subject{s})
	}
	var next []subject.Subject
	for _, cur := range p.ActiveSubjects() {
		if cur.SubjectBase() != s.SubjectBase() {
			next = append(next, cur)
		}
	}
	if active {
		next = append(next, s)
	}
	return p.SetActiveSubjects(next)
}

// Attached applies the new-subject activity. A subject that arrives with an
// activity value for this context, e.g. from an import, keeps it.
func (p *ActivityPolicy) Attached(ctx *observer.AttachContext) {
	s := ctx.Subject
	active := p.newActivity == SetNewActive
	if v, ok := ctx.Observer.PropertyValue(s, observer.PropActivity); ok {
		active, _ = v.AsBool()
	}

	var next []subject.Subject
	switch {
	case active && p.mode == SingleActivity:
		next = []subject.Subject{s}
	default:
		for _, cur := range p.ActiveSubjects() {
			if cur.SubjectBase() != s.SubjectBase() {
				next = append(next, cur)
			}
		}
		if active {
			next = append(next, s)
		}
	}
	if len(next) == 0 && p.minimum == ProhibitNoneActive {
		next = []subject.Subject{s}
	}
	p.apply(next)
}

// ValidateDetach keeps the last active subject attached while others remain.
func (p *ActivityPolicy) ValidateDetach(ctx *observer.DetachContext) observer.Verdict {
	if p.minimum != ProhibitNoneActive || !p.IsActive(ctx.Subject) {
		return observer.Approve()
	}
	if len(p.ActiveSubjects()) == 1 && ctx.Observer.SubjectCount() > 1 {
		return observer.Rejected("the last active subject cannot be detached")
	}
	return observer.Approve()
}

// Detached updates the active set after a subject left.
func (p *ActivityPolicy) Detached(ctx *observer.DetachContext) {
	b := ctx.Subject.SubjectBase()
	if ctx.Trigger == observer.TriggerObserverDestroyed {
		delete(p.active, b)
		return
	}
	o := ctx.Observer
	if p.minimum == ProhibitNoneActive && len(p.ActiveSubjects()) == 0 && o.SubjectCount() > 0 {
		p.apply([]subject.Subject{o.SubjectAt(0)})
		return
	}
	if p.active[b] {
		delete(p.active, b)
		p.changed()
	}
}

// apply writes the activity flags of every subject and reports changes.
func (p *ActivityPolicy) apply(next []subject.Subject) {
	o := p.Observer()
	want := make(map[*subject.Base]bool, len(next))
	for _, s := range next {
		want[s.SubjectBase()] = true
	}

	o.StartProcessingCycle()
	for _, s := range o.SubjectList() {
		b := s.SubjectBase()
		v, ok := o.PropertyValue(s, observer.PropActivity)
		cur, _ := v.AsBool()
		if !ok || cur != want[b] {
			_ = observer.FrameworkProperty(s, observer.PropActivity, o.ID(), property.Bool(want[b]))
		}
	}
	o.EndProcessingCycle(true)

	if sameSet(p.active, want) {
		return
	}
	p.active = want
	p.changed()
}

func (p *ActivityPolicy) changed() {
	active := p.ActiveSubjects()
	if p.onChanged != nil {
		p.onChanged(active)
	}
	if p.parent == ParentFollowActivity {
		p.followParents(len(active) > 0)
	}
}

// followParents sets the observer's own activity in every observer holding it.
func (p *ActivityPolicy) followParents(active bool) {
	o := p.Observer()
	for _, parent := range o.Manager().ObserversOf(o) {
		if f, ok := parent.FilterByName(ActivityPolicyName); ok {
			if ap, ok := f.(*ActivityPolicy); ok {
				_ = ap.SetActive(o, active)
				continue
			}
		}
		_ = observer.FrameworkProperty(o, observer.PropActivity, parent.ID(), property.Bool(active))
	}
}

func sameSet(a, b map[*subject.Base]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// Compile-time interface satisfaction check.
var _ observer.Filter = (*ActivityPolicy)(nil)
