// Package factory reconstructs subjects from factory and instance tags so
// importers can re-create concrete types without compile-time coupling.
//
// A process-wide default registry exists for convenience. It must be set up
// with Init and released with Teardown; everything else accepts an explicit
// *Registry.
package factory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/qtilities/qtilities-go/pkg/subject"
)

// Registry errors.
var (
	ErrDuplicate      = errors.New("factory already registered")
	ErrUnknownFactory = errors.New("unknown factory")
	ErrCreateFailed   = errors.New("factory returned no instance")
)

// InstanceInfo is written before each re-creatable object in an export.
type InstanceInfo struct {
	FactoryTag   string
	InstanceTag  string
	InstanceName string
}

// IsValid returns true when the tags are set.
func (i InstanceInfo) IsValid() bool {
	return i.FactoryTag != "" && i.InstanceTag != ""
}

// String returns "factory/instance:name".
func (i InstanceInfo) String() string {
	return fmt.Sprintf("%s/%s:%s", i.FactoryTag, i.InstanceTag, i.InstanceName)
}

// InfoOf returns the instance info of a subject.
func InfoOf(s subject.Subject) InstanceInfo {
	b := s.SubjectBase()
	fi := b.FactoryInfo()
	return InstanceInfo{
		FactoryTag:   fi.FactoryTag,
		InstanceTag:  fi.InstanceTag,
		InstanceName: b.ObjectName(),
	}
}

// Args are passed to constructors.
type Args struct {
	// InstanceName is the name the new instance should carry.
	InstanceName string

	// Context is an importer-provided environment, e.g. the observer manager.
	Context any
}

// Constructor creates a new subject. Returning nil signals failure.
type Constructor func(args Args) subject.Subject

type key struct {
	factory  string
	instance string
}

// Registry maps (factory tag, instance tag) pairs to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[key]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[key]Constructor)}
}

// Register adds a constructor.
func (r *Registry) Register(factoryTag, instanceTag string, fn Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{factoryTag, instanceTag}
	if _, exists := r.constructors[k]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicate, factoryTag, instanceTag)
	}
	r.constructors[k] = fn
	return nil
}

// Unregister removes a constructor.
func (r *Registry) Unregister(factoryTag, instanceTag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.constructors, key{factoryTag, instanceTag})
}

// Has returns true if a constructor is registered for the tags.
func (r *Registry) Has(factoryTag, instanceTag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[key{factoryTag, instanceTag}]
	return ok
}

// Create returns a new instance or nil when the tags are unknown.
func (r *Registry) Create(factoryTag, instanceTag string) subject.Subject {
	s, err := r.CreateInstance(InstanceInfo{FactoryTag: factoryTag, InstanceTag: instanceTag}, nil)
	if err != nil {
		return nil
	}
	return s
}

// CreateInstance creates a subject for info, names it and stamps its factory
// tags so it can be exported again.
func (r *Registry) CreateInstance(info InstanceInfo, context any) (subject.Subject, error) {
	r.mu.RLock()
	fn, ok := r.constructors[key{info.FactoryTag, info.InstanceTag}]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownFactory, info.FactoryTag, info.InstanceTag)
	}

	s := fn(Args{InstanceName: info.InstanceName, Context: context})
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrCreateFailed, info)
	}
	b := s.SubjectBase()
	if info.InstanceName != "" {
		b.SetObjectName(info.InstanceName)
	}
	if !b.FactoryInfo().IsValid() {
		b.SetFactoryInfo(info.FactoryTag, info.InstanceTag)
	}
	return s, nil
}

// FactoryTags returns the registered factory tags, sorted.
func (r *Registry) FactoryTags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var tags []string
	for k := range r.constructors {
		if !seen[k.factory] {
			seen[k.factory] = true
			tags = append(tags, k.factory)
		}
	}
	sort.Strings(tags)
	return tags
}

// InstanceTags returns the instance tags registered under factoryTag, sorted.
func (r *Registry) InstanceTags(factoryTag string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tags []string
	for k := range r.constructors {
		if k.factory == factoryTag {
			tags = append(tags, k.instance)
		}
	}
	sort.Strings(tags)
	return tags
}

// RegisterCore registers the subject types of the subject package.
func RegisterCore(r *Registry) error {
	return r.Register(subject.FactoryCore, subject.InstanceNode, func(args Args) subject.Subject {
		return subject.NewNode(args.InstanceName)
	})
}

var (
	defaultMu  sync.Mutex
	defaultReg *Registry
)

// Init creates the default registry with the core types and runs the given
// registration functions. Calling Init again returns the existing registry.
func Init(register ...func(*Registry) error) (*Registry, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultReg != nil {
		return defaultReg, nil
	}

	r := NewRegistry()
	if err := RegisterCore(r); err != nil {
		return nil, err
	}
	for _, fn := range register {
		if err := fn(r); err != nil {
			return nil, err
		}
	}
	defaultReg = r
	return r, nil
}

// Default returns the default registry, or nil before Init.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultReg
}

// Teardown releases the default registry.
func Teardown() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultReg = nil
}
