package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/qtilities/qtilities-go/pkg/factory"
	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/version"
)

// Markers of the binary form.
const (
	MarkerStart         uint32 = 0xBABEFACE
	MarkerEnd           uint32 = 0xFACEBABE
	MarkerObserverStart uint32 = 0xFACEB00C
	MarkerObserverEnd   uint32 = 0xB00CFACE
	MarkerSubjectStart  uint32 = 0xDEADBEEF
	MarkerSubjectEnd    uint32 = 0xBEEFDEAD
	MarkerPropertyStart uint32 = 0xCAFEBABE
	MarkerPropertyEnd   uint32 = 0xBABECAFE
)

// BinaryFormatName is written into the stream header.
const BinaryFormatName = "qtilities"

// encMode is the CBOR encoder mode for export streams.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for export streams.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Unknown keys of newer minors are skipped.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		MaxNestedLevels:   32,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

type streamHeader struct {
	Format  string `cbor:"1,keyasint"`
	Version string `cbor:"2,keyasint"`
}

type observerHeader struct {
	ID             int               `cbor:"1,keyasint"`
	Name           string            `cbor:"2,keyasint"`
	Subjects       int               `cbor:"3,keyasint"`
	Limit          *int              `cbor:"4,keyasint,omitempty"`
	Access         string            `cbor:"5,keyasint,omitempty"`
	CategoryAccess map[string]string `cbor:"6,keyasint,omitempty"`
}

type subjectHeader struct {
	Serial       int    `cbor:"1,keyasint,omitempty"`
	Ref          int    `cbor:"2,keyasint,omitempty"`
	FactoryTag   string `cbor:"3,keyasint,omitempty"`
	InstanceTag  string `cbor:"4,keyasint,omitempty"`
	InstanceName string `cbor:"5,keyasint,omitempty"`
	Contexts     []int  `cbor:"6,keyasint,omitempty"`
	Ownership    string `cbor:"7,keyasint"`
	Category     string `cbor:"8,keyasint,omitempty"`
	Properties   int    `cbor:"9,keyasint,omitempty"`
	Payload      []byte `cbor:"10,keyasint,omitempty"`
	HasObserver  bool   `cbor:"11,keyasint,omitempty"`
}

type propertyBody struct {
	Name   string         `cbor:"1,keyasint"`
	Kind   uint8          `cbor:"2,keyasint"`
	Shared bool           `cbor:"3,keyasint,omitempty"`
	Flags  *uint8         `cbor:"4,keyasint,omitempty"`
	Values []contextValue `cbor:"5,keyasint"`
}

type contextValue struct {
	Context int `cbor:"1,keyasint"`
	Value   any `cbor:"2,keyasint"`
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// binaryWriter keeps the first write error so records can be written
// without checking every item.
type binaryWriter struct {
	enc *cbor.Encoder
	err error
}

func (w *binaryWriter) write(v any) {
	if w.err != nil {
		return
	}
	w.err = w.enc.Encode(v)
}

func encodeBinary(out io.Writer, doc *Document) error {
	w := &binaryWriter{enc: encMode.NewEncoder(out)}
	w.write(MarkerStart)
	w.write(streamHeader{Format: BinaryFormatName, Version: doc.Version.String()})
	w.writeObserver(&doc.Root)
	w.write(MarkerEnd)
	return w.err
}

func (w *binaryWriter) writeObserver(r *ObserverRecord) {
	h := observerHeader{
		ID:       r.ID,
		Name:     r.Name,
		Subjects: len(r.Subjects),
		Limit:    r.Limit,
	}
	if r.Access != nil {
		h.Access = r.Access.String()
	}
	if len(r.CategoryAccess) > 0 {
		h.CategoryAccess = make(map[string]string, len(r.CategoryAccess))
		for category, mode := range r.CategoryAccess {
			h.CategoryAccess[category] = mode.String()
		}
	}

	w.write(MarkerObserverStart)
	w.write(h)
	for i := range r.Subjects {
		w.writeSubject(&r.Subjects[i])
	}
	w.write(MarkerObserverEnd)
}

func (w *binaryWriter) writeSubject(s *SubjectRecord) {
	h := subjectHeader{
		Serial:       s.Serial,
		Ref:          s.Ref,
		FactoryTag:   s.Info.FactoryTag,
		InstanceTag:  s.Info.InstanceTag,
		InstanceName: s.Info.InstanceName,
		Contexts:     s.Contexts,
		Ownership:    s.Ownership.String(),
		Category:     s.Category,
		Properties:   len(s.Properties),
		Payload:      s.Payload,
		HasObserver:  s.Child != nil,
	}

	w.write(MarkerSubjectStart)
	w.write(h)
	for _, p := range s.Properties {
		w.write(MarkerPropertyStart)
		w.write(toPropertyBody(p))
		w.write(MarkerPropertyEnd)
	}
	if s.Child != nil {
		w.writeObserver(s.Child)
	}
	w.write(MarkerSubjectEnd)
}

func toPropertyBody(p PropertyRecord) propertyBody {
	body := propertyBody{
		Name:   p.Name,
		Kind:   uint8(p.Kind),
		Shared: p.Shared,
		Values: make([]contextValue, len(p.Values)),
	}
	if p.Flags != nil {
		f := packFlags(*p.Flags)
		body.Flags = &f
	}
	for i, cv := range p.Values {
		body.Values[i] = contextValue{Context: cv.Context, Value: cv.Value.Raw()}
	}
	return body
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

type binaryReader struct {
	dec *cbor.Decoder
}

func (r *binaryReader) expect(marker uint32) error {
	var got uint32
	if err := r.dec.Decode(&got); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %#x: stream ends early", ErrMissingMarker, marker)
		}
		return fmt.Errorf("%w: %#x: %v", ErrMissingMarker, marker, err)
	}
	if got != marker {
		return fmt.Errorf("%w: want %#x, got %#x", ErrMissingMarker, marker, got)
	}
	return nil
}

func (r *binaryReader) read(v any) error {
	if err := r.dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

// decodeBinary reads a whole stream. A stream whose version cannot be read
// returns an error wrapping version.ErrTooNew or version.ErrTooOld.
func decodeBinary(in io.Reader) (*Document, error) {
	r := &binaryReader{dec: decMode.NewDecoder(in)}
	if err := r.expect(MarkerStart); err != nil {
		return nil, err
	}
	var h streamHeader
	if err := r.read(&h); err != nil {
		return nil, err
	}
	if h.Format != BinaryFormatName {
		return nil, fmt.Errorf("%w: format %q", ErrInvalidRecord, h.Format)
	}
	streamVersion, err := version.Parse(h.Version)
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
	if err := r.readObserver(&doc.Root, 0); err != nil {
		return nil, err
	}
	if err := r.expect(MarkerEnd); err != nil {
		return nil, err
	}
	doc.restrict(m)
	return doc, nil
}

func (r *binaryReader) readObserver(rec *ObserverRecord, depth int) error {
	if depth > maxNesting {
		return ErrTooDeep
	}
	if err := r.expect(MarkerObserverStart); err != nil {
		return err
	}
	var h observerHeader
	if err := r.read(&h); err != nil {
		return err
	}
	if h.Subjects < 0 {
		return fmt.Errorf("%w: observer %q has %d subjects", ErrInvalidRecord, h.Name, h.Subjects)
	}

	rec.ID = h.ID
	rec.Name = h.Name
	rec.Limit = h.Limit
	if h.Access != "" {
		mode, err := observer.ParseAccessMode(h.Access)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		rec.Access = &mode
	}
	if len(h.CategoryAccess) > 0 {
		rec.CategoryAccess = make(map[string]observer.AccessMode, len(h.CategoryAccess))
		for category, name := range h.CategoryAccess {
			mode, err := observer.ParseAccessMode(name)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
			}
			rec.CategoryAccess[category] = mode
		}
	}

	for i := 0; i < h.Subjects; i++ {
		var s SubjectRecord
		if err := r.readSubject(&s, depth); err != nil {
			return err
		}
		rec.Subjects = append(rec.Subjects, s)
	}
	return r.expect(MarkerObserverEnd)
}

func (r *binaryReader) readSubject(s *SubjectRecord, depth int) error {
	if err := r.expect(MarkerSubjectStart); err != nil {
		return err
	}
	var h subjectHeader
	if err := r.read(&h); err != nil {
		return err
	}
	policy, err := observer.ParsePolicy(h.Ownership)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if h.Properties < 0 {
		return fmt.Errorf("%w: %d properties", ErrInvalidRecord, h.Properties)
	}

	s.Serial = h.Serial
	s.Ref = h.Ref
	s.Info = factory.InstanceInfo{FactoryTag: h.FactoryTag, InstanceTag: h.InstanceTag, InstanceName: h.InstanceName}
	s.Contexts = h.Contexts
	s.Ownership = policy
	s.Category = h.Category
	s.Payload = h.Payload

	for i := 0; i < h.Properties; i++ {
		p, err := r.readProperty()
		if err != nil {
			return err
		}
		s.Properties = append(s.Properties, p)
	}
	if h.HasObserver {
		s.Child = &ObserverRecord{}
		if err := r.readObserver(s.Child, depth+1); err != nil {
			return err
		}
	}
	return r.expect(MarkerSubjectEnd)
}

func (r *binaryReader) readProperty() (PropertyRecord, error) {
	if err := r.expect(MarkerPropertyStart); err != nil {
		return PropertyRecord{}, err
	}
	var body propertyBody
	if err := r.read(&body); err != nil {
		return PropertyRecord{}, err
	}
	p := PropertyRecord{
		Name:   body.Name,
		Kind:   property.Kind(body.Kind),
		Shared: body.Shared,
	}
	if body.Flags != nil {
		f := unpackFlags(*body.Flags)
		p.Flags = &f
	}
	for _, cv := range body.Values {
		v, err := property.FromRaw(p.Kind, cv.Value)
		if err != nil {
			return PropertyRecord{}, fmt.Errorf("%w: property %q: %v", ErrInvalidRecord, p.Name, err)
		}
		p.Values = append(p.Values, ContextValue{Context: cv.Context, Value: v})
	}
	if err := r.expect(MarkerPropertyEnd); err != nil {
		return PropertyRecord{}, err
	}
	return p, nil
}
