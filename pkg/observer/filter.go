package observer

import (
	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// FilterCapability is the set of hooks a filter wants to be called for.
type FilterCapability uint8

const (
	// CapValidateAttach calls ValidateAttach before an attach is committed.
	CapValidateAttach FilterCapability = 1 << iota

	// CapValidateDetach calls ValidateDetach before a detach.
	CapValidateDetach

	// CapNotifyAttached calls Attached after an attach was committed.
	CapNotifyAttached

	// CapNotifyDetached calls Detached after a detach.
	CapNotifyDetached
)

// Has returns true if all bits of other are set.
func (c FilterCapability) Has(other FilterCapability) bool { return c&other == other }

// Verdict is a filter's answer to a validation hook.
type Verdict struct {
	Reject bool
	Reason string
}

// Approve returns an approving verdict.
func Approve() Verdict { return Verdict{} }

// Rejected returns a rejecting verdict with a reason.
func Rejected(reason string) Verdict { return Verdict{Reject: true, Reason: reason} }

// Filter validates or observes attach and detach operations of one observer.
// Filters must not assume concrete subject types.
type Filter interface {
	// FilterName identifies the filter. Names are unique per observer.
	FilterName() string

	// Capabilities selects the hooks the observer calls.
	Capabilities() FilterCapability

	// Install is called once when the filter is installed on o.
	Install(o *Observer) error

	// ValidateAttach approves or rejects an attach, optionally staging a rename.
	ValidateAttach(ctx *AttachContext) Verdict

	// ValidateDetach approves or rejects a detach.
	ValidateDetach(ctx *DetachContext) Verdict

	// Attached is called after an attach was committed.
	Attached(ctx *AttachContext)

	// Detached is called after a detach.
	Detached(ctx *DetachContext)
}

// FilterBase provides no-op hooks. Embed it and override what you need.
type FilterBase struct {
	observer *Observer
}

// Install remembers the observer.
func (f *FilterBase) Install(o *Observer) error {
	f.observer = o
	return nil
}

// Observer returns the observer the filter is installed on.
func (f *FilterBase) Observer() *Observer { return f.observer }

// ValidateAttach approves.
func (f *FilterBase) ValidateAttach(*AttachContext) Verdict { return Approve() }

// ValidateDetach approves.
func (f *FilterBase) ValidateDetach(*DetachContext) Verdict { return Approve() }

// Attached does nothing.
func (f *FilterBase) Attached(*AttachContext) {}

// Detached does nothing.
func (f *FilterBase) Detached(*DetachContext) {}

// AttachContext describes one attach while it is validated and committed.
type AttachContext struct {
	Observer *Observer
	Subject  subject.Subject
	Policy   Policy
	Category string

	// Framework is true for framework-driven attaches such as imports.
	Framework bool

	rename    string
	renamedBy string
}

// Rename stages a new name for the subject. It is applied on commit: as the
// object name when the subject has no other context, as this context's
// instance name otherwise.
func (c *AttachContext) Rename(name string) {
	c.rename = name
}

// Name returns the name the subject will carry in this context.
func (c *AttachContext) Name() string {
	if c.rename != "" {
		return c.rename
	}
	return subject.Name(c.Subject)
}

// RenamedBy returns the name of the filter that staged the rename.
func (c *AttachContext) RenamedBy() string { return c.renamedBy }

// Renamed returns the staged name, if any.
func (c *AttachContext) Renamed() (string, bool) {
	return c.rename, c.rename != ""
}

// DetachContext describes one detach.
type DetachContext struct {
	Observer *Observer
	Subject  subject.Subject
	Policy   Policy
	Category string

	// Trigger tells why the edge is being removed.
	Trigger Trigger
}

// Forced returns true when the detach cannot be vetoed.
func (c *DetachContext) Forced() bool {
	return c.Trigger != TriggerDetach
}

// Properties returns the subject's property store.
func (c *DetachContext) Properties() *property.Store {
	return c.Subject.SubjectBase().Properties()
}
