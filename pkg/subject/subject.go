package subject

import (
	"reflect"

	"github.com/qtilities/qtilities-go/pkg/property"
)

// Factory tags of the types provided by the core.
const (
	FactoryCore  = "core"
	InstanceNode = "Node"
)

// Capability is a set of optional operations a subject supports.
type Capability uint16

const (
	// CapExport includes the subject in exports.
	CapExport Capability = 1 << iota

	// CapFactory means the subject can be re-created through a factory registry.
	CapFactory

	// CapPayload means the subject carries a custom export payload (PayloadCodec).
	CapPayload

	// CapObserver means the subject is, or exposes, an observer.
	CapObserver
)

// Has returns true if all bits of other are set.
func (c Capability) Has(other Capability) bool { return c&other == other }

// String returns the capability flags as a string.
func (c Capability) String() string {
	var s string
	if c.Has(CapExport) {
		s += "E"
	}
	if c.Has(CapFactory) {
		s += "F"
	}
	if c.Has(CapPayload) {
		s += "P"
	}
	if c.Has(CapObserver) {
		s += "O"
	}
	if s == "" {
		return "-"
	}
	return s
}

// Subject is any object that can be attached to observers.
type Subject interface {
	// SubjectBase returns the embedded bookkeeping base.
	SubjectBase() *Base
}

// PayloadCodec is implemented by subjects advertising CapPayload.
type PayloadCodec interface {
	// ExportPayload returns subject-specific data to store with the export.
	ExportPayload() ([]byte, error)

	// ImportPayload restores data produced by ExportPayload.
	ImportPayload(data []byte) error
}

// FactoryInfo identifies how to re-create a subject.
type FactoryInfo struct {
	FactoryTag  string
	InstanceTag string
}

// IsValid returns true when both tags are set.
func (f FactoryInfo) IsValid() bool {
	return f.FactoryTag != "" && f.InstanceTag != ""
}

type destroyHook struct {
	key any
	fn  func()
}

// Base provides naming, properties, capabilities and lifecycle for subjects.
// The zero value is ready to use.
type Base struct {
	name         string
	typeName     string
	props        *property.Store
	caps         Capability
	capsSet      bool
	factory      FactoryInfo
	nativeParent Subject
	destroyed    bool
	hooks        []destroyHook
}

// SubjectBase returns b.
func (b *Base) SubjectBase() *Base { return b }

// ObjectName returns the object name.
func (b *Base) ObjectName() string { return b.name }

// SetObjectName sets the object name.
func (b *Base) SetObjectName(name string) { b.name = name }

// Properties returns the property store.
func (b *Base) Properties() *property.Store {
	if b.props == nil {
		b.props = property.NewStore()
	}
	return b.props
}

// SetTypeName overrides the type name reported by TypeName.
func (b *Base) SetTypeName(name string) { b.typeName = name }

// Capabilities returns the advertised capability set. Subjects export by
// default; CapFactory follows the factory info.
func (b *Base) Capabilities() Capability {
	c := CapExport
	if b.capsSet {
		c = b.caps
	}
	if b.factory.IsValid() {
		c |= CapFactory
	}
	return c
}

// SetCapabilities replaces the advertised capability set.
func (b *Base) SetCapabilities(c Capability) {
	b.caps = c
	b.capsSet = true
}

// AddCapabilities adds to the advertised capability set.
func (b *Base) AddCapabilities(c Capability) {
	b.SetCapabilities(b.Capabilities() | c)
}

// FactoryInfo returns the factory tags.
func (b *Base) FactoryInfo() FactoryInfo { return b.factory }

// SetFactoryInfo sets the factory tags used to re-create the subject.
func (b *Base) SetFactoryInfo(factoryTag, instanceTag string) {
	b.factory = FactoryInfo{FactoryTag: factoryTag, InstanceTag: instanceTag}
}

// NativeParent returns the native parent, if any.
func (b *Base) NativeParent() Subject { return b.nativeParent }

// SetNativeParent makes parent responsible for destroying b. Passing nil
// clears the relation.
func (b *Base) SetNativeParent(parent Subject) {
	if b.nativeParent != nil {
		b.nativeParent.SubjectBase().RemoveDestroyHook(b)
	}
	b.nativeParent = parent
	if parent != nil {
		parent.SubjectBase().AddDestroyHook(b, b.Destroy)
	}
}

// IsDestroyed returns true once Destroy was called.
func (b *Base) IsDestroyed() bool { return b.destroyed }

// Destroy marks the subject destroyed and runs the destroy hooks once.
func (b *Base) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	if b.nativeParent != nil {
		b.nativeParent.SubjectBase().RemoveDestroyHook(b)
	}
	hooks := make([]destroyHook, len(b.hooks))
	copy(hooks, b.hooks)
	b.hooks = nil
	for _, h := range hooks {
		h.fn()
	}
}

// AddDestroyHook registers fn to run on Destroy. A hook with the same key
// is replaced in place.
func (b *Base) AddDestroyHook(key any, fn func()) {
	for i := range b.hooks {
		if b.hooks[i].key == key {
			b.hooks[i].fn = fn
			return
		}
	}
	b.hooks = append(b.hooks, destroyHook{key: key, fn: fn})
}

// RemoveDestroyHook removes the hook registered under key.
func (b *Base) RemoveDestroyHook(key any) {
	for i := range b.hooks {
		if b.hooks[i].key == key {
			b.hooks = append(b.hooks[:i], b.hooks[i+1:]...)
			return
		}
	}
}

// Name returns the object name of s.
func Name(s Subject) string { return s.SubjectBase().ObjectName() }

// TypeName returns the explicit type name of s or its Go type.
func TypeName(s Subject) string {
	if n := s.SubjectBase().typeName; n != "" {
		return n
	}
	return reflect.TypeOf(s).String()
}

// Capabilities returns the capability set of s, including CapPayload when
// advertised and backed by PayloadCodec.
func Capabilities(s Subject) Capability {
	c := s.SubjectBase().Capabilities()
	if _, ok := s.(PayloadCodec); !ok {
		c &^= CapPayload
	}
	return c
}

// Node is a plain named subject.
type Node struct {
	Base
}

// NewNode creates a node registered under the core factory tags.
func NewNode(name string) *Node {
	n := &Node{}
	n.SetObjectName(name)
	n.SetFactoryInfo(FactoryCore, InstanceNode)
	return n
}
