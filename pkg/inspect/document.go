package inspect

import (
	"github.com/qtilities/qtilities-go/pkg/codec"
	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/property"
)

// InspectDocument returns the tree a decoded export describes, without
// importing it. No factory registry is needed, so exports of unknown types
// can be shown too. Subject types are shown as factory tags.
func InspectDocument(doc *codec.Document) *ObserverInfo {
	d := &documentInspector{full: make(map[int]*codec.SubjectRecord)}
	return d.observer(&doc.Root)
}

type documentInspector struct {
	full map[int]*codec.SubjectRecord
}

func (d *documentInspector) observer(r *codec.ObserverRecord) *ObserverInfo {
	info := &ObserverInfo{
		ID:             r.ID,
		Name:           r.Name,
		Limit:          -1,
		CategoryAccess: r.CategoryAccess,
	}
	if r.Limit != nil {
		info.Limit = *r.Limit
	}
	if r.Access != nil {
		info.Access = *r.Access
	}

	for i := range r.Subjects {
		rec := &r.Subjects[i]
		full := rec
		if rec.IsRef() {
			full = d.full[rec.Ref]
			if full == nil {
				continue
			}
		} else {
			d.full[rec.Serial] = rec
		}

		s := SubjectInfo{
			ID:         i + 1,
			Name:       full.Info.InstanceName,
			ObjectName: full.Info.InstanceName,
			Type:       full.Info.FactoryTag + "/" + full.Info.InstanceTag,
			Ownership:  rec.Ownership,
			Category:   rec.Category,
			Contexts:   full.Contexts,
			Properties: documentProperties(full.Properties, r.ID),
		}
		switch {
		case rec.IsRef() && full.Child != nil:
			s.Child = &ObserverInfo{ID: full.Child.ID, Name: full.Child.Name}
		case rec.Child != nil:
			s.Child = d.observer(rec.Child)
		}
		info.Subjects = append(info.Subjects, s)
	}
	return info
}

// documentProperties picks the values a subject holds in context ctx.
func documentProperties(records []codec.PropertyRecord, ctx int) []PropertyInfo {
	var out []PropertyInfo
	for _, p := range records {
		pi := PropertyInfo{Name: p.Name, Kind: p.Kind, Shared: p.Shared}
		if p.Flags != nil {
			pi.Reserved = p.Flags.Reserved
		}
		if observer.IsReservedName(p.Name) {
			pi.Reserved = true
		}
		for _, cv := range p.Values {
			if p.Shared || cv.Context == ctx {
				pi.Value, pi.HasValue = cv.Value, true
				break
			}
		}
		if !pi.HasValue {
			pi.Value = property.Value{}
		}
		out = append(out, pi)
	}
	return out
}

// DocumentStats summarizes a decoded export. Back-references count as edges
// but not as subjects.
func DocumentStats(doc *codec.Document) Stats {
	st := Stats{ByPolicy: make(map[string]int)}

	var walk func(r *codec.ObserverRecord, depth int)
	walk = func(r *codec.ObserverRecord, depth int) {
		st.Observers++
		if depth > st.MaxDepth {
			st.MaxDepth = depth
		}
		for i := range r.Subjects {
			rec := &r.Subjects[i]
			st.Edges++
			st.ByPolicy[rec.Ownership.String()]++
			if rec.IsRef() {
				continue
			}
			st.Subjects++
			if len(rec.Contexts) > 1 {
				st.Shared++
			}
			if rec.Child != nil {
				walk(rec.Child, depth+1)
			}
		}
	}
	walk(&doc.Root, 0)
	return st
}
