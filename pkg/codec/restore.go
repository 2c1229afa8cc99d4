package codec

import (
	"fmt"
	"sort"

	"github.com/qtilities/qtilities-go/pkg/factory"
	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// maxNesting bounds observer nesting in decoded documents.
const maxNesting = 256

// validate checks a decoded document for structural errors. It runs before
// anything is created.
func validate(doc *Document) error {
	return validateObserver(&doc.Root, make(map[int]bool), make(map[int]bool), 0)
}

func validateObserver(r *ObserverRecord, serials, observers map[int]bool, depth int) error {
	if depth > maxNesting {
		return ErrTooDeep
	}
	if r.ID <= 0 || observers[r.ID] {
		return fmt.Errorf("%w: observer %q has context ID %d", ErrInvalidRecord, r.Name, r.ID)
	}
	observers[r.ID] = true

	for i := range r.Subjects {
		s := &r.Subjects[i]
		if !s.Ownership.IsValid() {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, observer.ErrInvalidPolicy)
		}
		if s.IsRef() {
			if !serials[s.Ref] {
				return fmt.Errorf("%w: %d", ErrBadReference, s.Ref)
			}
			if s.Child != nil || len(s.Properties) > 0 {
				return fmt.Errorf("%w: reference %d carries a full record", ErrInvalidRecord, s.Ref)
			}
			continue
		}
		if s.Serial <= 0 || serials[s.Serial] {
			return fmt.Errorf("%w: subject %q has serial %d", ErrInvalidRecord, s.Info.InstanceName, s.Serial)
		}
		serials[s.Serial] = true
		for _, p := range s.Properties {
			if err := validateProperty(p); err != nil {
				return fmt.Errorf("subject %q: %w", s.Info.InstanceName, err)
			}
		}
		if s.Child != nil {
			if err := validateObserver(s.Child, serials, observers, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateProperty(p PropertyRecord) error {
	if p.Name == "" {
		return fmt.Errorf("%w: unnamed property", ErrInvalidRecord)
	}
	if p.Kind == property.KindInvalid || p.Kind > property.KindReference {
		return fmt.Errorf("%w: property %q has kind %d", ErrInvalidRecord, p.Name, p.Kind)
	}
	if p.Shared && (len(p.Values) != 1 || p.Values[0].Context != 0) {
		return fmt.Errorf("%w: shared property %q needs one value", ErrInvalidRecord, p.Name)
	}
	for _, cv := range p.Values {
		if cv.Value.Kind() != p.Kind {
			return fmt.Errorf("%w: property %q holds a %s value", ErrInvalidRecord, p.Name, cv.Value.Kind())
		}
		if !p.Shared && cv.Context <= 0 {
			return fmt.Errorf("%w: property %q has context %d", ErrInvalidRecord, p.Name, cv.Context)
		}
	}
	return nil
}

// importer re-creates a validated document under a target observer.
type importer struct {
	manager  *observer.Manager
	registry *factory.Registry

	// created maps record serials to re-created subjects.
	created map[int]subject.Subject

	// contexts maps exported context IDs to the new observers' IDs.
	contexts map[int]int

	// staged lists the staging contexts used per subject.
	staged map[*subject.Base][]int

	problems []error
}

func newImporter(m *observer.Manager, r *factory.Registry) *importer {
	return &importer{
		manager:  m,
		registry: r,
		created:  make(map[int]subject.Subject),
		contexts: make(map[int]int),
		staged:   make(map[*subject.Base][]int),
	}
}

// run imports doc into target and returns the number of restored subjects.
func (im *importer) run(doc *Document, target *observer.Observer) int {
	im.contexts[doc.Root.ID] = target.ID()
	im.create(&doc.Root)
	im.stage(&doc.Root)
	im.attach(&doc.Root, target)
	return im.cleanup()
}

func (im *importer) problem(format string, args ...any) {
	im.problems = append(im.problems, fmt.Errorf(format, args...))
}

func (im *importer) create(r *ObserverRecord) {
	for i := range r.Subjects {
		s := &r.Subjects[i]
		if s.IsRef() {
			continue
		}
		obj, err := im.registry.CreateInstance(s.Info, im.manager)
		if err != nil {
			im.problem("creating %q: %w", s.Info.InstanceName, err)
			continue
		}
		im.created[s.Serial] = obj
		if s.Child == nil {
			continue
		}
		child := observer.Of(obj)
		if child == nil {
			im.problem("%w: %s", ErrNotObserver, s.Info)
			continue
		}
		im.contexts[s.Child.ID] = child.ID()
		im.create(s.Child)
	}
}

// stage writes the properties of every created subject. Per-context values
// go under the negated exported context ID, where the attach with
// WithTargetObserverID picks them up.
func (im *importer) stage(r *ObserverRecord) {
	for i := range r.Subjects {
		s := &r.Subjects[i]
		if s.IsRef() {
			continue
		}
		obj, ok := im.created[s.Serial]
		if !ok {
			continue
		}
		for _, p := range s.Properties {
			im.stageProperty(obj, p)
		}
		if s.Payload != nil {
			im.restorePayload(obj, s.Payload)
		}
		if s.Child != nil {
			im.stage(s.Child)
		}
	}
}

func (im *importer) stageProperty(obj subject.Subject, p PropertyRecord) {
	store := obj.SubjectBase().Properties()
	reserved := observer.IsReservedName(p.Name)
	flags := property.DefaultFlags
	if p.Flags != nil {
		flags = *p.Flags
	}

	if p.Shared {
		// The core rewrites its shared bookkeeping on attach.
		if reserved {
			return
		}
		store.Ensure(p.Name, true, flags)
		if err := store.SetValue(p.Name, 0, im.remap(p.Values[0].Value), property.AccessFramework); err != nil {
			im.problem("property %q of %q: %w", p.Name, subject.Name(obj), err)
		}
		return
	}

	for _, cv := range p.Values {
		if _, ok := im.contexts[cv.Context]; !ok {
			continue
		}
		staging := -cv.Context
		v := im.remap(cv.Value)
		var err error
		if reserved {
			err = observer.FrameworkProperty(obj, p.Name, staging, v)
		} else {
			store.Ensure(p.Name, false, flags)
			err = store.SetValue(p.Name, staging, v, property.AccessFramework)
		}
		if err != nil {
			im.problem("property %q of %q: %w", p.Name, subject.Name(obj), err)
			continue
		}
		im.markStaged(obj, staging)
	}
}

func (im *importer) markStaged(obj subject.Subject, staging int) {
	b := obj.SubjectBase()
	for _, id := range im.staged[b] {
		if id == staging {
			return
		}
	}
	im.staged[b] = append(im.staged[b], staging)
}

// remap rewrites references to exported contexts.
func (im *importer) remap(v property.Value) property.Value {
	if ref, ok := v.AsReference(); ok {
		if id, ok := im.contexts[ref]; ok {
			return property.Reference(id)
		}
	}
	return v
}

func (im *importer) restorePayload(obj subject.Subject, data []byte) {
	pc, ok := obj.(subject.PayloadCodec)
	if !ok {
		im.problem("%q cannot take a payload", subject.Name(obj))
		return
	}
	if err := pc.ImportPayload(data); err != nil {
		im.problem("payload of %q: %w", subject.Name(obj), err)
	}
}

func (im *importer) attach(r *ObserverRecord, o *observer.Observer) {
	for i := range r.Subjects {
		s := &r.Subjects[i]
		serial := s.Serial
		if s.IsRef() {
			serial = s.Ref
		}
		obj, ok := im.created[serial]
		if !ok {
			if s.IsRef() {
				im.problem("subject record %d was not restored", serial)
			}
			continue
		}

		opts := []observer.AttachOption{
			observer.WithTargetObserverID(-r.ID),
			observer.WithFrameworkAccess(),
		}
		if s.Category != "" {
			opts = append(opts, observer.WithCategory(s.Category))
		}
		if err := o.AttachSubject(obj, s.Ownership, opts...); err != nil {
			im.problem("attaching %q to %q: %w", subject.Name(obj), o.ObjectName(), err)
		}

		if s.Child != nil {
			if child := observer.Of(obj); child != nil {
				im.attach(s.Child, child)
			}
		}
	}
	im.configure(r, o)
}

// configure applies the observer settings once its subjects are attached.
func (im *importer) configure(r *ObserverRecord, o *observer.Observer) {
	if r.Limit != nil {
		if err := o.SetSubjectLimit(*r.Limit); err != nil {
			im.problem("limit of %q: %w", o.ObjectName(), err)
		}
	}
	for category, mode := range r.CategoryAccess {
		o.SetCategoryAccessMode(category, mode)
	}
	if r.Access != nil {
		o.SetAccessMode(*r.Access)
	}
}

// cleanup drops leftover staged values and destroys created subjects that
// no observer took. Destroying a created observer can release what it held,
// so the sweep repeats until nothing changes. It returns the number of
// restored subjects.
func (im *importer) cleanup() int {
	serials := make([]int, 0, len(im.created))
	for serial := range im.created {
		serials = append(serials, serial)
	}
	sort.Ints(serials)

	for _, serial := range serials {
		obj := im.created[serial]
		store := obj.SubjectBase().Properties()
		for _, staging := range im.staged[obj.SubjectBase()] {
			store.RemoveAllContext(staging)
		}
	}

	for swept := true; swept; {
		swept = false
		for _, serial := range serials {
			obj := im.created[serial]
			if obj.SubjectBase().IsDestroyed() || len(im.manager.ContextsOf(obj)) > 0 {
				continue
			}
			if d, ok := obj.(interface{ Destroy() }); ok {
				d.Destroy()
			} else {
				obj.SubjectBase().Destroy()
			}
			swept = true
		}
	}
	im.manager.Flush()

	restored := 0
	for _, serial := range serials {
		if !im.created[serial].SubjectBase().IsDestroyed() {
			restored++
		}
	}
	return restored
}
