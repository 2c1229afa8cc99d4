// Package subject defines the objects that observers attach.
//
// Any struct embedding [Base] is a [Subject] when used by pointer:
//
//	type Document struct {
//	    subject.Base
//	    Path string
//	}
//
//	doc := &Document{}
//	doc.SetObjectName("notes.txt")
//
// Identity is pointer identity. A subject does not know which observers hold
// it; the observer core records those relationships as reserved properties in
// the subject's property store.
//
// # Capabilities
//
// Instead of probing for interfaces, a subject advertises what it supports
// through a [Capability] set: export, factory re-creation, custom payloads,
// and exposing a child observer.
//
// # Destruction
//
// Destroy marks a subject destroyed and runs its destroy hooks once, in
// registration order. The observer core uses hooks to detach destroyed
// subjects; a native parent destroys its children the same way.
package subject
