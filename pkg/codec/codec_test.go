package codec

import (
	"bytes"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qtilities/qtilities-go/pkg/factory"
	"github.com/qtilities/qtilities-go/pkg/log"
	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/subject"
	"github.com/qtilities/qtilities-go/pkg/version"
)

// document is a subject with a custom payload.
type document struct {
	subject.Base
	body []byte
}

func (d *document) ExportPayload() ([]byte, error) { return d.body, nil }

func (d *document) ImportPayload(data []byte) error {
	d.body = data
	return nil
}

func newDocument(name, body string) *document {
	d := &document{body: []byte(body)}
	d.SetObjectName(name)
	d.SetFactoryInfo("test", "Document")
	d.AddCapabilities(subject.CapPayload)
	return d
}

// bare has no factory info and cannot be re-created.
type bare struct {
	subject.Base
}

type traceRecorder struct {
	events []log.Event
}

func (r *traceRecorder) Log(e log.Event) { r.events = append(r.events, e) }

func newRegistry(t *testing.T) *factory.Registry {
	t.Helper()
	r := factory.NewRegistry()
	require.NoError(t, factory.RegisterCore(r))
	require.NoError(t, observer.RegisterFactories(r))
	require.NoError(t, r.Register("test", "Document", func(factory.Args) subject.Subject {
		d := &document{}
		d.AddCapabilities(subject.CapPayload)
		return d
	}))
	return r
}

type fixture struct {
	m     *observer.Manager
	root  *observer.Observer
	child *observer.Observer
	a, b  *subject.Node
	c     *subject.Node
	doc   *document
}

// newFixture builds Root{a, b, Child{c, b, notes}} with per-context,
// shared and categorized properties.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := observer.NewManager(observer.DefaultConfig())
	f := &fixture{
		m:     m,
		root:  m.NewObserver("Root"),
		child: m.NewObserver("Child"),
		a:     subject.NewNode("a"),
		b:     subject.NewNode("b"),
		c:     subject.NewNode("c"),
		doc:   newDocument("notes", "hello"),
	}

	require.NoError(t, f.root.AttachSubject(f.a, observer.ManualOwnership, observer.WithCategory("x::y")))
	require.NoError(t, f.root.AttachSubject(f.b, observer.ObserverScopeOwnership))
	require.NoError(t, f.root.AttachSubject(f.child, observer.ManualOwnership))
	require.NoError(t, f.child.AttachSubject(f.c, observer.AutoOwnership))
	require.NoError(t, f.child.AttachSubject(f.b, observer.ManualOwnership, observer.WithCategory("shared")))
	require.NoError(t, f.child.AttachSubject(f.doc, observer.ManualOwnership))

	require.NoError(t, f.root.SetPropertyValue(f.a, "color", property.String("red")))
	require.NoError(t, f.root.SetPropertyValue(f.b, "weight", property.Int(3)))
	require.NoError(t, f.child.SetPropertyValue(f.b, "weight", property.Int(5)))
	require.NoError(t, f.child.SetPropertyValue(f.c, "owner", property.Reference(f.root.ID())))
	require.NoError(t, f.b.Properties().Define(
		property.NewSharedProperty("uuid", property.DefaultFlags, property.String("b-1")), property.AccessClient))

	require.NoError(t, f.child.SetSubjectLimit(10))
	f.child.SetCategoryAccessMode("shared", observer.ReadOnlyAccess)
	return f
}

type codecFuncs struct {
	name string
	save func(io.Writer, *observer.Observer, Options) (Result, error)
	load func(io.Reader, *observer.Observer, Options) (Result, error)
}

var formats = []codecFuncs{
	{"binary", ExportBinary, ImportBinary},
	{"tree", ExportTree, ImportTree},
}

func exportedNames(s subject.Subject) []string {
	store := s.SubjectBase().Properties()
	var out []string
	for _, name := range store.Names() {
		if e, ok := store.Get(name); ok && e.Flags().Exportable {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// assertIsomorphic compares two observer subtrees by names, ownership,
// categories and context-scoped property values.
func assertIsomorphic(t *testing.T, want, got *observer.Observer) {
	t.Helper()
	ws, gs := want.SubjectList(), got.SubjectList()
	require.Equal(t, len(ws), len(gs), "subject count of %s", want.ObjectName())

	for i := range ws {
		w, g := ws[i], gs[i]
		assert.Equal(t, subject.Name(w), subject.Name(g))

		wp, _ := want.OwnershipOf(w)
		gp, _ := got.OwnershipOf(g)
		assert.Equal(t, wp, gp, "ownership of %s", subject.Name(w))

		wc, _ := want.CategoryOf(w)
		gc, _ := got.CategoryOf(g)
		assert.Equal(t, wc, gc, "category of %s", subject.Name(w))

		names := exportedNames(w)
		assert.Equal(t, names, exportedNames(g), "properties of %s", subject.Name(w))
		for _, name := range names {
			wv, wok := want.PropertyValue(w, name)
			gv, gok := got.PropertyValue(g, name)
			assert.Equal(t, wok, gok, "%s.%s present", subject.Name(w), name)
			if wok && wv.Kind() != property.KindReference {
				assert.True(t, wv.Equal(gv), "%s.%s = %v, want %v", subject.Name(w), name, gv, wv)
			}
		}

		if wo := observer.Of(w); wo != nil {
			goObs := observer.Of(g)
			require.NotNil(t, goObs, "%s should be an observer", subject.Name(g))
			assert.Equal(t, wo.SubjectLimit(), goObs.SubjectLimit())
			assert.Equal(t, wo.AccessMode(), goObs.AccessMode())
			assert.Equal(t, wo.CategoryAccessModes(), goObs.CategoryAccessModes())
			assertIsomorphic(t, wo, goObs)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, fm := range formats {
		t.Run(fm.name, func(t *testing.T) {
			f := newFixture(t)

			var buf bytes.Buffer
			res, err := fm.save(&buf, f.root, Options{})
			require.NoError(t, err)
			require.Equal(t, Complete, res)

			m2 := observer.NewManager(observer.DefaultConfig())
			target := m2.NewObserver("Imported")
			res, err = fm.load(&buf, target, Options{Registry: newRegistry(t)})
			require.NoError(t, err)
			require.Equal(t, Complete, res)

			assertIsomorphic(t, f.root, target)
			require.NoError(t, m2.CheckIntegrity())

			child := observer.Of(target.SubjectByName("Child"))
			require.NotNil(t, child)

			// b is one subject in both observers.
			assert.Same(t, target.SubjectByName("b"), child.SubjectByName("b"))

			imported, ok := child.SubjectByName("notes").(*document)
			require.True(t, ok)
			assert.Equal(t, []byte("hello"), imported.body)

			// References to exported contexts follow the new IDs.
			v, ok := child.PropertyValue(child.SubjectByName("c"), "owner")
			require.True(t, ok)
			ref, _ := v.AsReference()
			assert.Equal(t, target.ID(), ref)
		})
	}
}

func TestImportLeavesNoStagedContexts(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	_, err := ExportBinary(&buf, f.root, Options{})
	require.NoError(t, err)

	m2 := observer.NewManager(observer.DefaultConfig())
	target := m2.NewObserver("Imported")
	_, err = ImportBinary(&buf, target, Options{Registry: newRegistry(t)})
	require.NoError(t, err)

	for _, o := range m2.Observers() {
		for _, s := range o.SubjectList() {
			for _, ctx := range s.SubjectBase().Properties().Contexts() {
				assert.Positive(t, ctx, "%s holds context %d", subject.Name(s), ctx)
			}
		}
	}
}

func TestExportDropsContextsOutsideSubtree(t *testing.T) {
	f := newFixture(t)
	other := f.m.NewObserver("Other")
	require.NoError(t, other.AttachSubject(f.a, observer.ManualOwnership))
	require.NoError(t, other.SetPropertyValue(f.a, "color", property.String("green")))

	var buf bytes.Buffer
	_, err := ExportBinary(&buf, f.child, Options{})
	require.NoError(t, err)

	doc, res, err := DecodeBinary(&buf)
	require.NoError(t, err)
	require.Equal(t, Complete, res)

	assert.Equal(t, f.child.ID(), doc.Root.ID)
	for _, s := range doc.Root.Subjects {
		if s.Info.InstanceName != "b" {
			continue
		}
		assert.Equal(t, []int{f.child.ID()}, s.Contexts)
		for _, p := range s.Properties {
			for _, cv := range p.Values {
				if !p.Shared {
					assert.Equal(t, f.child.ID(), cv.Context, "property %s", p.Name)
				}
			}
		}
	}
}

func TestExportOlderVersion(t *testing.T) {
	tests := []struct {
		version      string
		wantCategory bool
		wantFlags    bool
		wantLimit    bool
		wantPayload  bool
	}{
		{"1.0", false, false, false, false},
		{"1.1", true, true, false, false},
		{"1.2", true, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			f := newFixture(t)
			var buf bytes.Buffer
			res, err := ExportBinary(&buf, f.root, Options{Version: tt.version})
			require.NoError(t, err)
			require.Equal(t, Complete, res)

			doc, _, err := DecodeBinary(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, tt.version, doc.Version.String())

			a := doc.Root.Subjects[0]
			assert.Equal(t, tt.wantCategory, a.Category != "")
			require.NotEmpty(t, a.Properties)
			assert.Equal(t, tt.wantFlags, a.Properties[0].Flags != nil)
			assert.Equal(t, tt.wantLimit, doc.Root.Limit != nil)

			childRec := doc.Root.Subjects[2].Child
			require.NotNil(t, childRec)
			notes := childRec.Subjects[2]
			assert.Equal(t, tt.wantPayload, notes.Payload != nil)

			m2 := observer.NewManager(observer.DefaultConfig())
			target := m2.NewObserver("Imported")
			res, err = ImportBinary(bytes.NewReader(buf.Bytes()), target, Options{Registry: newRegistry(t)})
			require.NoError(t, err)
			assert.Equal(t, Complete, res)
			assert.Equal(t, 3, target.SubjectCount())

			// Properties from streams without flags get client defaults.
			if !tt.wantFlags {
				e, ok := target.SubjectAt(0).SubjectBase().Properties().Get("color")
				require.True(t, ok)
				assert.Equal(t, property.DefaultFlags, e.Flags())
			}
		})
	}
}

func TestExportUnsupportedVersion(t *testing.T) {
	f := newFixture(t)
	for _, v := range []string{"3.0", "0.1", "bogus"} {
		res, err := ExportBinary(io.Discard, f.root, Options{Version: v})
		assert.Equal(t, Failed, res, v)
		assert.ErrorIs(t, err, ErrUnsupportedVersion, v)
	}
}

// writeStream encodes a document under an arbitrary header version.
func writeStream(t *testing.T, doc *Document, ver string) []byte {
	t.Helper()
	doc.Version = version.MustParse(ver)
	var buf bytes.Buffer
	require.NoError(t, EncodeBinary(&buf, doc))
	return buf.Bytes()
}

func TestImportVersionNegotiation(t *testing.T) {
	tests := []struct {
		version string
		want    Result
		wantErr error
	}{
		{"1.0", Complete, nil},
		{"1.9", Complete, nil},
		{"2.0", VersionTooNew, version.ErrTooNew},
		{"0.9", VersionTooOld, version.ErrTooOld},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			f := newFixture(t)
			doc, _ := buildDocument(f.root, version.CurrentVersion())
			data := writeStream(t, doc, tt.version)

			m2 := observer.NewManager(observer.DefaultConfig())
			target := m2.NewObserver("Imported")
			res, err := ImportBinary(bytes.NewReader(data), target, Options{Registry: newRegistry(t)})
			assert.Equal(t, tt.want, res)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, target.SubjectCount())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestImportCorruptStreamLeavesTargetUntouched(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	_, err := ExportBinary(&buf, f.root, Options{})
	require.NoError(t, err)
	data := buf.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"Truncated", data[:len(data)-6]},
		{"MissingStart", data[5:]},
		{"NoEndMarker", data[:len(data)-5]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m2 := observer.NewManager(observer.DefaultConfig())
			target := m2.NewObserver("Imported")
			existing := subject.NewNode("existing")
			require.NoError(t, target.AttachSubject(existing, observer.ManualOwnership))

			res, err := ImportBinary(bytes.NewReader(tt.data), target, Options{Registry: newRegistry(t)})
			assert.Equal(t, Failed, res)
			assert.Error(t, err)
			assert.Equal(t, []subject.Subject{existing}, target.SubjectList())
			assert.Len(t, m2.Observers(), 1)
		})
	}
}

func TestImportIntegerOverflowFails(t *testing.T) {
	f := newFixture(t)
	doc, _ := buildDocument(f.root, version.CurrentVersion())
	doc.Root.Subjects[1].Properties = append(doc.Root.Subjects[1].Properties, PropertyRecord{
		Name:   "count",
		Kind:   property.KindInt,
		Values: []ContextValue{{Context: doc.Root.ID, Value: property.Int(0x12345678)}},
	})
	data := writeStream(t, doc, version.Current)

	// Swap the uint32 item for a uint64 above MaxInt64.
	small := []byte{0x1a, 0x12, 0x34, 0x56, 0x78}
	huge := []byte{0x1b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	require.Equal(t, 1, bytes.Count(data, small))
	data = bytes.Replace(data, small, huge, 1)

	m2 := observer.NewManager(observer.DefaultConfig())
	target := m2.NewObserver("Imported")
	res, err := ImportBinary(bytes.NewReader(data), target, Options{Registry: newRegistry(t)})
	assert.Equal(t, Failed, res)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Zero(t, target.SubjectCount())
}

func TestImportInvalidDocumentFailsBeforeMutation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(doc *Document)
		wantErr error
	}{
		{"DanglingReference", func(doc *Document) {
			doc.Root.Subjects = append(doc.Root.Subjects, SubjectRecord{Ref: 99})
		}, ErrBadReference},
		{"DuplicateSerial", func(doc *Document) {
			doc.Root.Subjects[1].Serial = doc.Root.Subjects[0].Serial
		}, ErrInvalidRecord},
		{"DuplicateObserverID", func(doc *Document) {
			doc.Root.Subjects[2].Child.ID = doc.Root.ID
		}, ErrInvalidRecord},
		{"SharedWithoutValue", func(doc *Document) {
			doc.Root.Subjects[1].Properties = append(doc.Root.Subjects[1].Properties,
				PropertyRecord{Name: "broken", Kind: property.KindString, Shared: true})
		}, ErrInvalidRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			doc, _ := buildDocument(f.root, version.CurrentVersion())
			tt.mutate(doc)
			data := writeStream(t, doc, version.Current)

			m2 := observer.NewManager(observer.DefaultConfig())
			target := m2.NewObserver("Imported")
			res, err := ImportBinary(bytes.NewReader(data), target, Options{Registry: newRegistry(t)})
			assert.Equal(t, Failed, res)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, target.SubjectCount())
			assert.Len(t, m2.Observers(), 1)
		})
	}
}

func TestImportUnknownFactoryIsIncomplete(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	_, err := ExportBinary(&buf, f.root, Options{})
	require.NoError(t, err)

	r := factory.NewRegistry()
	require.NoError(t, factory.RegisterCore(r))
	require.NoError(t, observer.RegisterFactories(r))

	m2 := observer.NewManager(observer.DefaultConfig())
	target := m2.NewObserver("Imported")
	res, err := ImportBinary(&buf, target, Options{Registry: r})
	assert.Equal(t, Incomplete, res)
	assert.ErrorIs(t, err, factory.ErrUnknownFactory)

	child := observer.Of(target.SubjectByName("Child"))
	require.NotNil(t, child)
	assert.Equal(t, 2, child.SubjectCount())
	assert.Nil(t, child.SubjectByName("notes"))
}

func TestImportRejectedAttachIsIncomplete(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	_, err := ExportTree(&buf, f.root, Options{})
	require.NoError(t, err)

	m2 := observer.NewManager(observer.DefaultConfig())
	target := m2.NewObserver("Imported")
	require.NoError(t, target.SetSubjectLimit(1))

	res, err := ImportTree(&buf, target, Options{Registry: newRegistry(t)})
	assert.Equal(t, Incomplete, res)
	assert.ErrorIs(t, err, observer.ErrLimitReached)
	require.Equal(t, 1, target.SubjectCount())
	assert.Equal(t, "a", subject.Name(target.SubjectAt(0)))

	// The rejected Child observer was destroyed along with its content.
	assert.Len(t, m2.Observers(), 1)
	require.NoError(t, m2.CheckIntegrity())
}

func TestImportWithoutRegistry(t *testing.T) {
	factory.Teardown()
	f := newFixture(t)
	var buf bytes.Buffer
	_, err := ExportBinary(&buf, f.root, Options{})
	require.NoError(t, err)

	target := observer.NewManager(observer.DefaultConfig()).NewObserver("Imported")
	res, err := ImportBinary(&buf, target, Options{})
	assert.Equal(t, Failed, res)
	assert.ErrorIs(t, err, ErrNoRegistry)
}

func TestImportUsesDefaultRegistry(t *testing.T) {
	_, err := factory.Init(observer.RegisterFactories)
	require.NoError(t, err)
	defer factory.Teardown()

	m := observer.NewManager(observer.DefaultConfig())
	root := m.NewObserver("Root")
	require.NoError(t, root.AttachSubject(subject.NewNode("n"), observer.ManualOwnership))

	var buf bytes.Buffer
	_, err = ExportBinary(&buf, root, Options{})
	require.NoError(t, err)

	target := observer.NewManager(observer.DefaultConfig()).NewObserver("Imported")
	res, err := ImportBinary(&buf, target, Options{})
	require.NoError(t, err)
	assert.Equal(t, Complete, res)
	assert.NotNil(t, target.SubjectByName("n"))
}

func TestExportSkipsSubjectsWithoutFactory(t *testing.T) {
	m := observer.NewManager(observer.DefaultConfig())
	root := m.NewObserver("Root")
	hidden := subject.NewNode("hidden")
	hidden.SetCapabilities(0)
	require.NoError(t, root.AttachSubject(subject.NewNode("kept"), observer.ManualOwnership))
	require.NoError(t, root.AttachSubject(hidden, observer.ManualOwnership))
	require.NoError(t, root.AttachSubject(&bare{}, observer.ManualOwnership))

	var buf bytes.Buffer
	res, err := ExportBinary(&buf, root, Options{})
	assert.Equal(t, Incomplete, res)
	assert.ErrorIs(t, err, ErrNotExportable)

	doc, _, err := DecodeBinary(&buf)
	require.NoError(t, err)
	require.Len(t, doc.Root.Subjects, 1)
	assert.Equal(t, "kept", doc.Root.Subjects[0].Info.InstanceName)
}

func TestImportHandWrittenTree(t *testing.T) {
	const src = `
format: qtilities-tree
version: "1.0"
observer:
  id: 7
  name: Saved
  subjects:
    - serial: 1
      factory: core
      instance: Node
      name: alpha
      contexts: [7, 8]
      ownership: ManualOwnership
      category: dropped::in::1.0
      properties:
        - name: color
          kind: string
          values:
            - context: 7
              value: blue
            - context: 8
              value: teal
            - context: 42
              value: lost
    - serial: 2
      factory: core
      instance: Observer
      name: Inner
      ownership: ObserverScopeOwnership
      observer:
        id: 8
        name: Inner
        subjects:
          - ref: 1
            ownership: AutoOwnership
`
	m := observer.NewManager(observer.DefaultConfig())
	target := m.NewObserver("Target")
	res, err := ImportTree(strings.NewReader(src), target, Options{Registry: newRegistry(t)})
	require.NoError(t, err)
	require.Equal(t, Complete, res)

	alpha := target.SubjectByName("alpha")
	require.NotNil(t, alpha)
	category, _ := target.CategoryOf(alpha)
	assert.Empty(t, category)

	inner := observer.Of(target.SubjectByName("Inner"))
	require.NotNil(t, inner)
	assert.Same(t, alpha, inner.SubjectByName("alpha"))
	assert.Equal(t, 1, m.AutoEdges(alpha))

	v, _ := target.PropertyValue(alpha, "color")
	assert.Equal(t, "blue", v.Text())
	v, _ = inner.PropertyValue(alpha, "color")
	assert.Equal(t, "teal", v.Text())
	e, ok := alpha.SubjectBase().Properties().Get("color")
	require.True(t, ok)
	assert.ElementsMatch(t, []int{target.ID(), inner.ID()}, e.Contexts())
}

func TestTreeRejectsForeignDocuments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Result
	}{
		{"Empty", "", Failed},
		{"WrongFormat", "format: other\nversion: \"1.0\"\nobserver: {id: 1, name: x}\n", Failed},
		{"NoObserver", "format: qtilities-tree\nversion: \"1.0\"\n", Failed},
		{"BadPolicy", "format: qtilities-tree\nversion: \"1.0\"\nobserver:\n  id: 1\n  name: x\n  subjects:\n    - {serial: 1, factory: core, instance: Node, name: n, ownership: Sometimes}\n", Failed},
		{"TooNew", "format: qtilities-tree\nversion: \"4.0\"\nobserver: {id: 1, name: x}\n", VersionTooNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := observer.NewManager(observer.DefaultConfig()).NewObserver("Target")
			res, err := ImportTree(strings.NewReader(tt.src), target, Options{Registry: newRegistry(t)})
			assert.Equal(t, tt.want, res)
			assert.Error(t, err)
			assert.Zero(t, target.SubjectCount())
		})
	}
}

func TestExportTreeIsReadable(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	_, err := ExportTree(&buf, f.root, Options{})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "format: qtilities-tree")
	assert.Contains(t, out, "ownership: ObserverScopeOwnership")
	assert.Contains(t, out, "ref: 2")
}

func TestConvertBinaryToTree(t *testing.T) {
	f := newFixture(t)
	var bin bytes.Buffer
	_, err := ExportBinary(&bin, f.root, Options{})
	require.NoError(t, err)

	doc, _, err := DecodeBinary(&bin)
	require.NoError(t, err)
	var tree bytes.Buffer
	require.NoError(t, EncodeTree(&tree, doc))

	again, _, err := DecodeTree(&tree)
	require.NoError(t, err)
	assert.Equal(t, doc.Subjects(), again.Subjects())
	assert.Equal(t, 5, again.Subjects())
}

func TestDocumentConvert(t *testing.T) {
	f := newFixture(t)
	var bin bytes.Buffer
	_, err := ExportBinary(&bin, f.root, Options{})
	require.NoError(t, err)

	doc, _, err := DecodeBinary(&bin)
	require.NoError(t, err)
	require.NotEmpty(t, doc.Root.Subjects[0].Category)

	require.NoError(t, doc.Convert("1.0"))
	assert.Equal(t, "1.0", doc.Version.String())
	assert.Empty(t, doc.Root.Subjects[0].Category)
	assert.Nil(t, doc.Root.Subjects[2].Child.Limit)

	var out bytes.Buffer
	require.NoError(t, EncodeBinary(&out, doc))
	again, _, err := DecodeBinary(&out)
	require.NoError(t, err)
	assert.Equal(t, "1.0", again.Version.String())

	assert.ErrorIs(t, doc.Convert("0.9"), ErrUnsupportedVersion)
	assert.ErrorIs(t, doc.Convert("x"), ErrUnsupportedVersion)
}

func TestCodecTrace(t *testing.T) {
	rec := &traceRecorder{}
	cfg := observer.DefaultConfig()
	cfg.TraceLogger = rec
	m := observer.NewManager(cfg)
	root := m.NewObserver("Root")
	require.NoError(t, root.AttachSubject(subject.NewNode("n"), observer.ManualOwnership))

	var buf bytes.Buffer
	_, err := ExportBinary(&buf, root, Options{})
	require.NoError(t, err)

	var codec []log.Event
	for _, e := range rec.events {
		if e.Category == log.CategoryCodec {
			codec = append(codec, e)
		}
	}
	require.Len(t, codec, 1)
	assert.Equal(t, m.SessionID(), codec[0].SessionID)
	assert.Equal(t, log.OutcomeSuccess, codec[0].Outcome)
	assert.Equal(t, log.CodecExport, codec[0].Codec.Direction)
	assert.Equal(t, "binary", codec[0].Codec.Format)
	assert.Equal(t, version.Current, codec[0].Codec.Version)
	assert.Equal(t, "Complete", codec[0].Codec.Result)
	assert.Equal(t, 1, codec[0].Codec.Subjects)
}

func TestResult(t *testing.T) {
	assert.Equal(t, "VersionTooNew", VersionTooNew.String())
	assert.Equal(t, "Result(9)", Result(9).String())
	assert.True(t, Incomplete.OK())
	assert.False(t, Failed.OK())
}

func TestNilObserver(t *testing.T) {
	res, err := ExportBinary(io.Discard, nil, Options{})
	assert.Equal(t, Failed, res)
	assert.True(t, errors.Is(err, ErrNilObserver))
}
