package observer

import "github.com/qtilities/qtilities-go/pkg/subject"

// EventKind identifies an observer event.
type EventKind uint8

const (
	// EventSubjectAdded is sent after a subject was attached.
	EventSubjectAdded EventKind = iota

	// EventSubjectRemoved is sent after a subject was detached.
	EventSubjectRemoved

	// EventSubjectsChanged is the aggregate sent at the end of a processing cycle.
	EventSubjectsChanged

	// EventAttachRejected carries the reason an attach failed.
	EventAttachRejected

	// EventDetachRejected carries the reason a detach failed.
	EventDetachRejected

	// EventPropertyChanged is sent when a notifying property of an attached
	// subject changed for this observer's context or a shared property.
	EventPropertyChanged

	// EventLayoutRefresh asks views to redo their layout.
	EventLayoutRefresh

	// EventDestroyed is sent once when the observer is destroyed.
	EventDestroyed
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventSubjectAdded:
		return "SubjectAdded"
	case EventSubjectRemoved:
		return "SubjectRemoved"
	case EventSubjectsChanged:
		return "SubjectsChanged"
	case EventAttachRejected:
		return "AttachRejected"
	case EventDetachRejected:
		return "DetachRejected"
	case EventPropertyChanged:
		return "PropertyChanged"
	case EventLayoutRefresh:
		return "LayoutRefresh"
	case EventDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// PropertyChange names a changed property of a subject.
type PropertyChange struct {
	Subject  subject.Subject
	Property string
}

// Event describes a change of an observer.
type Event struct {
	Kind     EventKind
	Observer *Observer

	// Subject is set for single-subject events.
	Subject subject.Subject

	// Added and Removed are set for EventSubjectsChanged.
	Added   []subject.Subject
	Removed []subject.Subject

	// Changed lists property changes coalesced by a processing cycle.
	Changed []PropertyChange

	// Property is set for EventPropertyChanged.
	Property string

	// Filter names the rejecting filter, empty for structural rejections.
	Filter string

	// Reason is a human-readable rejection reason.
	Reason string

	// Err is the error returned to the caller of a rejected operation.
	Err error
}

// Listener receives observer events.
type Listener interface {
	OnObserverEvent(e Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(e Event)

// OnObserverEvent calls f(e).
func (f ListenerFunc) OnObserverEvent(e Event) { f(e) }
