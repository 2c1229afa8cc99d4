package codec

import (
	"fmt"

	"github.com/qtilities/qtilities-go/pkg/factory"
	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/subject"
	"github.com/qtilities/qtilities-go/pkg/version"
)

// exporter walks an observer subtree into a Document.
type exporter struct {
	manager *observer.Manager

	// contexts holds the context IDs of the exported subtree.
	contexts map[int]bool

	serials map[*subject.Base]int
	next    int

	problems []error
}

// buildDocument exports root and every observer reachable through its
// exportable subjects. The returned errors name the subjects left out.
func buildDocument(root *observer.Observer, v version.FormatVersion) (*Document, []error) {
	e := &exporter{
		manager:  root.Manager(),
		contexts: make(map[int]bool),
		serials:  make(map[*subject.Base]int),
	}
	e.collect(root)
	return &Document{Version: v, Root: e.observer(root)}, e.problems
}

func (e *exporter) collect(o *observer.Observer) {
	if e.contexts[o.ID()] {
		return
	}
	e.contexts[o.ID()] = true
	for _, s := range o.SubjectList() {
		if !subject.Capabilities(s).Has(subject.CapExport) {
			continue
		}
		if child := observer.Of(s); child != nil {
			e.collect(child)
		}
	}
}

func (e *exporter) observer(o *observer.Observer) ObserverRecord {
	limit := o.SubjectLimit()
	access := o.AccessMode()
	rec := ObserverRecord{
		ID:     o.ID(),
		Name:   o.ObjectName(),
		Limit:  &limit,
		Access: &access,
	}
	if modes := o.CategoryAccessModes(); len(modes) > 0 {
		rec.CategoryAccess = modes
	}

	for _, s := range o.SubjectList() {
		caps := subject.Capabilities(s)
		if !caps.Has(subject.CapExport) {
			continue
		}
		policy, _ := o.OwnershipOf(s)
		category, _ := o.CategoryOf(s)

		if serial, ok := e.serials[s.SubjectBase()]; ok {
			rec.Subjects = append(rec.Subjects, SubjectRecord{Ref: serial, Ownership: policy, Category: category})
			continue
		}
		if !caps.Has(subject.CapFactory) {
			e.problems = append(e.problems, fmt.Errorf("%w: %q has no factory info", ErrNotExportable, subject.Name(s)))
			continue
		}

		e.next++
		e.serials[s.SubjectBase()] = e.next
		sr := SubjectRecord{
			Serial:     e.next,
			Info:       factory.InfoOf(s),
			Contexts:   e.contextsOf(s),
			Ownership:  policy,
			Category:   category,
			Properties: e.properties(s),
		}
		if caps.Has(subject.CapPayload) {
			sr.Payload = e.payload(s)
		}
		if child := observer.Of(s); child != nil {
			c := e.observer(child)
			sr.Child = &c
		}
		rec.Subjects = append(rec.Subjects, sr)
	}
	return rec
}

func (e *exporter) contextsOf(s subject.Subject) []int {
	var out []int
	for _, id := range e.manager.ContextsOf(s) {
		if e.contexts[id] {
			out = append(out, id)
		}
	}
	return out
}

// properties returns the exportable properties of s. Per-context values of
// contexts outside the subtree are dropped.
func (e *exporter) properties(s subject.Subject) []PropertyRecord {
	store := s.SubjectBase().Properties()
	var out []PropertyRecord
	for _, name := range store.Names() {
		entry, ok := store.Get(name)
		if !ok || !entry.Flags().Exportable {
			continue
		}
		flags := entry.Flags()
		pr := PropertyRecord{Name: name, Shared: entry.Shared(), Flags: &flags}

		if entry.Shared() {
			v, ok := entry.Value(0)
			if !ok {
				continue
			}
			pr.Kind = v.Kind()
			pr.Values = []ContextValue{{Context: 0, Value: v}}
			out = append(out, pr)
			continue
		}

		for _, ctx := range entry.Contexts() {
			if !e.contexts[ctx] {
				continue
			}
			v, _ := entry.Value(ctx)
			if len(pr.Values) == 0 {
				pr.Kind = v.Kind()
			} else if v.Kind() != pr.Kind {
				e.problems = append(e.problems, fmt.Errorf("%w: property %q of %q mixes %s and %s values",
					ErrInvalidRecord, name, subject.Name(s), pr.Kind, v.Kind()))
				continue
			}
			pr.Values = append(pr.Values, ContextValue{Context: ctx, Value: v})
		}
		if len(pr.Values) > 0 {
			out = append(out, pr)
		}
	}
	return out
}

func (e *exporter) payload(s subject.Subject) []byte {
	pc := s.(subject.PayloadCodec)
	data, err := pc.ExportPayload()
	if err != nil {
		e.problems = append(e.problems, fmt.Errorf("payload of %q: %w", subject.Name(s), err))
		return nil
	}
	if data == nil {
		data = []byte{}
	}
	return data
}
