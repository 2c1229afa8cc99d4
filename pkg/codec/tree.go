package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/qtilities/qtilities-go/pkg/factory"
	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/version"
)

// TreeFormatName identifies tree documents.
const TreeFormatName = "qtilities-tree"

type treeDocument struct {
	Format   string        `yaml:"format"`
	Version  string        `yaml:"version"`
	Observer *treeObserver `yaml:"observer"`
}

type treeObserver struct {
	ID             int               `yaml:"id"`
	Name           string            `yaml:"name"`
	Limit          *int              `yaml:"limit,omitempty"`
	Access         string            `yaml:"access,omitempty"`
	CategoryAccess map[string]string `yaml:"category_access,omitempty"`
	Subjects       []treeSubject     `yaml:"subjects,omitempty"`
}

type treeSubject struct {
	Serial     int            `yaml:"serial,omitempty"`
	Ref        int            `yaml:"ref,omitempty"`
	Factory    string         `yaml:"factory,omitempty"`
	Instance   string         `yaml:"instance,omitempty"`
	Name       string         `yaml:"name,omitempty"`
	Contexts   []int          `yaml:"contexts,omitempty,flow"`
	Ownership  string         `yaml:"ownership"`
	Category   string         `yaml:"category,omitempty"`
	Properties []treeProperty `yaml:"properties,omitempty"`
	Payload    *string        `yaml:"payload,omitempty"`
	Observer   *treeObserver  `yaml:"observer,omitempty"`
}

type treeProperty struct {
	Name   string      `yaml:"name"`
	Kind   string      `yaml:"kind"`
	Shared bool        `yaml:"shared,omitempty"`
	Flags  []string    `yaml:"flags,omitempty,flow"`
	Values []treeValue `yaml:"values"`
}

type treeValue struct {
	Context int    `yaml:"context,omitempty"`
	Value   string `yaml:"value"`
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func encodeTree(w io.Writer, doc *Document) error {
	td := treeDocument{
		Format:   TreeFormatName,
		Version:  doc.Version.String(),
		Observer: toTreeObserver(&doc.Root),
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(td); err != nil {
		return err
	}
	return enc.Close()
}

func toTreeObserver(r *ObserverRecord) *treeObserver {
	t := &treeObserver{ID: r.ID, Name: r.Name, Limit: r.Limit}
	if r.Access != nil {
		t.Access = r.Access.String()
	}
	if len(r.CategoryAccess) > 0 {
		t.CategoryAccess = make(map[string]string, len(r.CategoryAccess))
		for category, mode := range r.CategoryAccess {
			t.CategoryAccess[category] = mode.String()
		}
	}
	for i := range r.Subjects {
		t.Subjects = append(t.Subjects, toTreeSubject(&r.Subjects[i]))
	}
	return t
}

func toTreeSubject(s *SubjectRecord) treeSubject {
	t := treeSubject{
		Serial:    s.Serial,
		Ref:       s.Ref,
		Factory:   s.Info.FactoryTag,
		Instance:  s.Info.InstanceTag,
		Name:      s.Info.InstanceName,
		Contexts:  s.Contexts,
		Ownership: s.Ownership.String(),
		Category:  s.Category,
	}
	if s.Payload != nil {
		p := base64.StdEncoding.EncodeToString(s.Payload)
		t.Payload = &p
	}
	for _, p := range s.Properties {
		tp := treeProperty{Name: p.Name, Kind: p.Kind.String(), Shared: p.Shared}
		if p.Flags != nil {
			tp.Flags = flagsToNames(*p.Flags)
		}
		for _, cv := range p.Values {
			tp.Values = append(tp.Values, treeValue{Context: cv.Context, Value: cv.Value.Text()})
		}
		t.Properties = append(t.Properties, tp)
	}
	if s.Child != nil {
		t.Observer = toTreeObserver(s.Child)
	}
	return t
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func decodeTree(r io.Reader) (*Document, error) {
	var td treeDocument
	if err := yaml.NewDecoder(r).Decode(&td); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrMissingMarker)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if td.Format != TreeFormatName {
		return nil, fmt.Errorf("%w: format %q", ErrMissingMarker, td.Format)
	}
	if td.Observer == nil {
		return nil, fmt.Errorf("%w: no observer node", ErrMissingMarker)
	}
	streamVersion, err := version.Parse(td.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	readVersion, err := version.Negotiate(streamVersion)
	if err != nil {
		return nil, err
	}
	m, err := version.LoadManifest(readVersion.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedVersion, err)
	}

	doc := &Document{Version: streamVersion}
	if err := fromTreeObserver(td.Observer, &doc.Root, 0); err != nil {
		return nil, err
	}
	doc.restrict(m)
	return doc, nil
}

func fromTreeObserver(t *treeObserver, rec *ObserverRecord, depth int) error {
	if depth > maxNesting {
		return ErrTooDeep
	}
	rec.ID = t.ID
	rec.Name = t.Name
	rec.Limit = t.Limit
	if t.Access != "" {
		mode, err := observer.ParseAccessMode(t.Access)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		rec.Access = &mode
	}
	if len(t.CategoryAccess) > 0 {
		rec.CategoryAccess = make(map[string]observer.AccessMode, len(t.CategoryAccess))
		for category, name := range t.CategoryAccess {
			mode, err := observer.ParseAccessMode(name)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
			}
			rec.CategoryAccess[category] = mode
		}
	}

	for _, ts := range t.Subjects {
		s, err := fromTreeSubject(ts, depth)
		if err != nil {
			return err
		}
		rec.Subjects = append(rec.Subjects, s)
	}
	return nil
}

func fromTreeSubject(t treeSubject, depth int) (SubjectRecord, error) {
	policy, err := observer.ParsePolicy(t.Ownership)
	if err != nil {
		return SubjectRecord{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	s := SubjectRecord{
		Serial:    t.Serial,
		Ref:       t.Ref,
		Info:      factory.InstanceInfo{FactoryTag: t.Factory, InstanceTag: t.Instance, InstanceName: t.Name},
		Contexts:  t.Contexts,
		Ownership: policy,
		Category:  t.Category,
	}
	if t.Payload != nil {
		data, err := base64.StdEncoding.DecodeString(*t.Payload)
		if err != nil {
			return SubjectRecord{}, fmt.Errorf("%w: payload of %q: %v", ErrInvalidRecord, t.Name, err)
		}
		s.Payload = data
	}
	for _, tp := range t.Properties {
		p, err := fromTreeProperty(tp)
		if err != nil {
			return SubjectRecord{}, err
		}
		s.Properties = append(s.Properties, p)
	}
	if t.Observer != nil {
		s.Child = &ObserverRecord{}
		if err := fromTreeObserver(t.Observer, s.Child, depth+1); err != nil {
			return SubjectRecord{}, err
		}
	}
	return s, nil
}

func fromTreeProperty(t treeProperty) (PropertyRecord, error) {
	kind, err := property.ParseKind(t.Kind)
	if err != nil {
		return PropertyRecord{}, fmt.Errorf("%w: property %q: %v", ErrInvalidRecord, t.Name, err)
	}
	p := PropertyRecord{Name: t.Name, Kind: kind, Shared: t.Shared}
	if t.Flags != nil {
		f, ok := flagsFromNames(t.Flags)
		if !ok {
			return PropertyRecord{}, fmt.Errorf("%w: property %q flags %v", ErrInvalidRecord, t.Name, t.Flags)
		}
		p.Flags = &f
	}
	for _, tv := range t.Values {
		v, err := property.ParseText(kind, tv.Value)
		if err != nil {
			return PropertyRecord{}, fmt.Errorf("%w: property %q: %v", ErrInvalidRecord, t.Name, err)
		}
		p.Values = append(p.Values, ContextValue{Context: tv.Context, Value: v})
	}
	return p, nil
}
