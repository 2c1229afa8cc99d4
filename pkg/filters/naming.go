package filters

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// NamingPolicyName is the filter name of NamingPolicy.
const NamingPolicyName = "Naming Policy"

// DefaultNamePattern accepts non-empty names without path separators.
var DefaultNamePattern = regexp.MustCompile(`^[^/\\]+$`)

// UniquenessPolicy controls whether display names must be unique.
type UniquenessPolicy uint8

const (
	// ProhibitDuplicateNames keeps names unique within the observer.
	ProhibitDuplicateNames UniquenessPolicy = iota

	// AllowDuplicateNames only validates names.
	AllowDuplicateNames
)

// ConflictPolicy decides what happens to a subject whose name is taken.
type ConflictPolicy uint8

const (
	// RejectConflicting rejects the attach.
	RejectConflicting ConflictPolicy = iota

	// AutoRename attaches the subject as "name (2)", "name (3)", ...
	AutoRename

	// ReplaceConflicting detaches the subject holding the name after the new
	// subject was attached. The attach is rejected when that subject could
	// not be detached.
	ReplaceConflicting
)

// String returns the policy name.
func (c ConflictPolicy) String() string {
	switch c {
	case RejectConflicting:
		return "RejectConflicting"
	case AutoRename:
		return "AutoRename"
	case ReplaceConflicting:
		return "ReplaceConflicting"
	default:
		return "Unknown"
	}
}

// NamingPolicy validates names and enforces uniqueness among the subjects
// of one observer.
type NamingPolicy struct {
	observer.FilterBase

	uniqueness    UniquenessPolicy
	conflict      ConflictPolicy
	validator     *regexp.Regexp
	caseSensitive bool

	// replacements maps an incoming subject to the subject it replaces.
	replacements map[*subject.Base]subject.Subject
}

// NewNamingPolicy creates a policy that rejects duplicate or invalid names.
func NewNamingPolicy() *NamingPolicy {
	return &NamingPolicy{
		validator:     DefaultNamePattern,
		caseSensitive: true,
		replacements:  make(map[*subject.Base]subject.Subject),
	}
}

// FilterName returns NamingPolicyName.
func (p *NamingPolicy) FilterName() string { return NamingPolicyName }

// Capabilities returns the hooks the policy uses.
func (p *NamingPolicy) Capabilities() observer.FilterCapability {
	return observer.CapValidateAttach | observer.CapNotifyAttached
}

// SetUniquenessPolicy sets the uniqueness policy.
func (p *NamingPolicy) SetUniquenessPolicy(u UniquenessPolicy) { p.uniqueness = u }

// UniquenessPolicy returns the uniqueness policy.
func (p *NamingPolicy) UniquenessPolicy() UniquenessPolicy { return p.uniqueness }

// SetConflictPolicy sets how name conflicts are resolved.
func (p *NamingPolicy) SetConflictPolicy(c ConflictPolicy) { p.conflict = c }

// ConflictPolicy returns the conflict policy.
func (p *NamingPolicy) ConflictPolicy() ConflictPolicy { return p.conflict }

// SetValidator replaces the name validator. Nil accepts any non-empty name.
func (p *NamingPolicy) SetValidator(re *regexp.Regexp) { p.validator = re }

// SetCaseSensitive controls whether "A" and "a" conflict.
func (p *NamingPolicy) SetCaseSensitive(on bool) { p.caseSensitive = on }

// ValidateName checks a name against the validator.
func (p *NamingPolicy) ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if p.validator != nil && !p.validator.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ValidateAttach rejects invalid names and resolves conflicts.
func (p *NamingPolicy) ValidateAttach(ctx *observer.AttachContext) observer.Verdict {
	delete(p.replacements, ctx.Subject.SubjectBase())

	name := ctx.Name()
	if err := p.ValidateName(name); err != nil {
		return observer.Rejected(err.Error())
	}
	if p.uniqueness == AllowDuplicateNames {
		return observer.Approve()
	}
	existing := p.holder(ctx.Observer, name, ctx.Subject)
	if existing == nil {
		return observer.Approve()
	}

	switch p.conflict {
	case AutoRename:
		ctx.Rename(p.UniqueName(ctx.Observer, name))
	case ReplaceConflicting:
		if err := ctx.Observer.CanDetach(existing); err != nil {
			return observer.Rejected(fmt.Sprintf("%s: %q cannot be replaced: %v", ErrNameConflict, name, err))
		}
		p.replacements[ctx.Subject.SubjectBase()] = existing
	default:
		return observer.Rejected(fmt.Sprintf("%s: %q", ErrNameConflict, name))
	}
	return observer.Approve()
}

// Attached detaches the subject a ReplaceConflicting attach displaced.
func (p *NamingPolicy) Attached(ctx *observer.AttachContext) {
	b := ctx.Subject.SubjectBase()
	old, ok := p.replacements[b]
	if !ok {
		return
	}
	delete(p.replacements, b)
	if err := ctx.Observer.DetachSubject(old); err != nil {
		ctx.Observer.Manager().Logger().Warn("replaced subject could not be detached",
			"observer", ctx.Observer.ObjectName(), "subject", subject.Name(old), "error", err)
	}
}

// UniqueName returns name, or the first free "name (n)" in o.
func (p *NamingPolicy) UniqueName(o *observer.Observer, name string) string {
	if p.holder(o, name, nil) == nil {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if p.holder(o, candidate, nil) == nil {
			return candidate
		}
	}
}

// RenameSubject renames an attached subject in the observer the policy is
// installed on. The object name changes when the subject has no other
// context; otherwise only this context's instance name does.
func (p *NamingPolicy) RenameSubject(s subject.Subject, name string) error {
	o := p.Observer()
	if o == nil || !o.Contains(s) {
		return observer.ErrNotAttached
	}
	if err := p.ValidateName(name); err != nil {
		return err
	}
	if p.uniqueness == ProhibitDuplicateNames && p.holder(o, name, s) != nil {
		return fmt.Errorf("%w: %q", ErrNameConflict, name)
	}

	if len(o.Manager().ContextsOf(s)) > 1 {
		return observer.FrameworkProperty(s, observer.PropInstanceName, o.ID(), property.String(name))
	}
	store := s.SubjectBase().Properties()
	if store.Has(observer.PropInstanceName) {
		_ = store.RemoveContext(observer.PropInstanceName, o.ID(), property.AccessFramework)
	}
	s.SubjectBase().SetObjectName(name)
	return nil
}

// holder returns the subject other than exclude displaying name in o.
func (p *NamingPolicy) holder(o *observer.Observer, name string, exclude subject.Subject) subject.Subject {
	for _, s := range o.SubjectList() {
		if exclude != nil && s.SubjectBase() == exclude.SubjectBase() {
			continue
		}
		if p.sameName(o.DisplayName(s), name) {
			return s
		}
	}
	return nil
}

func (p *NamingPolicy) sameName(a, b string) bool {
	if p.caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

// Compile-time interface satisfaction check.
var _ observer.Filter = (*NamingPolicy)(nil)
