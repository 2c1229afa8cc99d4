// Package observer implements multi-context ownership of subjects.
//
// An [Observer] is a named context that attaches subjects. The same subject
// may be attached to many observers at once; each attachment (edge) records
// its own ownership [Policy] and carries per-context properties on the
// subject. Observers are themselves subjects, so they nest into an attach
// graph that is kept free of cycles.
//
// # Manager
//
// All observers are created through a [Manager]. The manager allocates
// context IDs, tracks every edge of every subject, and owns the
// pending-deletion queue. It replaces a process-wide object manager: pass it
// to whatever needs to create observers.
//
//	m := observer.NewManager(observer.DefaultConfig())
//	docs := m.NewObserver("Documents")
//	if err := docs.AttachSubject(subject.NewNode("a.txt"), observer.ObserverScopeOwnership); err != nil {
//	    // rejected, nothing changed
//	}
//
// # Attach and Detach
//
// AttachSubject runs every check before changing anything: access mode,
// subject limit, duplicates, cycles, the single-specific-owner rule and the
// installed filters. Only when all pass is the edge committed. DetachSubject
// asks the filters for approval, removes the edge, clears the context's
// properties from the subject and hands the edge to the ownership resolver.
//
// # Ownership Resolution
//
// The resolver decides whether a subject is Retained, Orphaned or Deleted
// when an edge goes away. Deletion is never immediate: subjects are queued
// and destroyed when the outermost attach, detach or destroy call returns,
// or when Manager.Flush is called.
//
// # Filters
//
// A [Filter] validates or observes attach and detach operations. Filters run
// in installation order and the first rejection wins. Concrete filters live
// in the filters package.
//
// # Events
//
// Listeners receive [Event] values synchronously. Inside a processing cycle
// per-subject events are held back and delivered as one EventSubjectsChanged
// when the outermost cycle ends.
package observer
