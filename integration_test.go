package qtilities_test

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/qtilities/qtilities-go/pkg/codec"
	"github.com/qtilities/qtilities-go/pkg/factory"
	"github.com/qtilities/qtilities-go/pkg/filters"
	"github.com/qtilities/qtilities-go/pkg/inspect"
	"github.com/qtilities/qtilities-go/pkg/log"
	"github.com/qtilities/qtilities-go/pkg/metrics"
	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/persistence"
	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// TestE2E_SharedSubjectLifecycle follows one subject through two contexts
// and checks the trace file and metrics agree with what happened.
func TestE2E_SharedSubjectLifecycle(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "e2e"+log.FileExtension)
	fileLogger, err := log.NewFileLogger(tracePath)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	collector := metrics.NewCollector(prometheus.NewRegistry())

	cfg := observer.DefaultConfig()
	cfg.TraceLogger = log.NewMultiLogger(fileLogger, collector)
	m := observer.NewManager(cfg)

	root := m.NewObserver("root")
	left := m.NewObserver("left")
	right := m.NewObserver("right")

	naming := filters.NewNamingPolicy()
	naming.SetConflictPolicy(filters.AutoRename)
	if err := left.InstallFilter(naming); err != nil {
		t.Fatalf("InstallFilter failed: %v", err)
	}
	for _, o := range []*observer.Observer{left, right} {
		if err := root.AttachSubject(o, observer.ManualOwnership); err != nil {
			t.Fatalf("attach %s: %v", o.ObjectName(), err)
		}
	}

	report := subject.NewNode("report")
	if err := left.AttachSubject(report, observer.ObserverScopeOwnership); err != nil {
		t.Fatalf("attach to left: %v", err)
	}
	if err := right.AttachSubject(report, observer.ObserverScopeOwnership); err != nil {
		t.Fatalf("attach to right: %v", err)
	}

	dup := subject.NewNode("report")
	if err := left.AttachSubject(dup, observer.ManualOwnership); err != nil {
		t.Fatalf("attach duplicate: %v", err)
	}
	if left.SubjectByName("report (2)") != dup {
		t.Errorf("duplicate display name = %q, want %q", left.DisplayName(dup), "report (2)")
	}

	if err := left.DetachSubject(report); err != nil {
		t.Fatalf("detach from left: %v", err)
	}
	if report.IsDestroyed() {
		t.Fatal("scope-owned subject deleted while another context holds it")
	}
	if ctx := m.ContextsOf(report); len(ctx) != 1 || ctx[0] != right.ID() {
		t.Errorf("ContextsOf(report) = %v, want [%d]", ctx, right.ID())
	}

	right.Destroy()
	if !report.IsDestroyed() {
		t.Error("scope-owned subject should be deleted with its last context")
	}
	if dup.IsDestroyed() {
		t.Error("manually owned subject in another context was deleted")
	}
	if err := m.CheckIntegrity(); err != nil {
		t.Errorf("CheckIntegrity: %v", err)
	}

	if got := testutil.ToFloat64(collector.OwnershipDecisions.WithLabelValues("ObserverScopeOwnership", "Orphaned")); got != 1 {
		t.Errorf("scope orphaned decisions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.OwnershipDecisions.WithLabelValues("ObserverScopeOwnership", "Deleted")); got != 1 {
		t.Errorf("scope deleted decisions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.LiveObservers); got != 2 {
		t.Errorf("live observers = %v, want 2", got)
	}

	if err := fileLogger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	reader, err := log.NewReader(tracePath)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var renamed, deleted bool
	for {
		e, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if e.SessionID != m.SessionID() {
			t.Errorf("event session = %q, want %q", e.SessionID, m.SessionID())
		}
		if e.Attach != nil && e.Attach.Renamed == "report (2)" {
			renamed = true
		}
		if e.Ownership != nil && e.SubjectName == "report" && e.Ownership.Decision == "Deleted" {
			deleted = true
		}
	}
	if !renamed {
		t.Error("trace has no rename for the duplicate")
	}
	if !deleted {
		t.Error("trace has no deletion of report")
	}
}

// TestE2E_SnapshotRoundTrip saves a tree with a shared subject in both
// formats and restores it into a fresh manager.
func TestE2E_SnapshotRoundTrip(t *testing.T) {
	m := observer.NewManager(observer.DefaultConfig())
	root := m.NewObserver("root")
	docs := m.NewObserver("docs")
	notes := subject.NewNode("notes")

	steps := []error{
		root.AttachSubject(docs, observer.ManualOwnership),
		docs.AttachSubject(notes, observer.ManualOwnership, observer.WithCategory("text")),
		root.AttachSubject(notes, observer.ObserverScopeOwnership),
		docs.SetPropertyValue(notes, "color", property.String("blue")),
		root.SetPropertyValue(notes, "color", property.String("red")),
		docs.SetSubjectLimit(5),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("setup step %d: %v", i, err)
		}
	}
	want := inspect.NewInspector(root).Stats()
	if want.Shared != 1 {
		t.Fatalf("source Shared = %d, want 1", want.Shared)
	}

	registry := factory.NewRegistry()
	if err := factory.RegisterCore(registry); err != nil {
		t.Fatal(err)
	}
	if err := observer.RegisterFactories(registry); err != nil {
		t.Fatal(err)
	}
	opts := codec.Options{Registry: registry}
	store := persistence.NewSnapshotStore(t.TempDir())

	for _, format := range []persistence.Format{persistence.FormatBinary, persistence.FormatTree} {
		t.Run(string(format), func(t *testing.T) {
			name := "tree-" + string(format)
			if _, err := store.Save(name, root, format, opts); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			doc, err := store.Document(name)
			if err != nil {
				t.Fatalf("Document failed: %v", err)
			}
			if got := inspect.DocumentStats(doc); got.Observers != want.Observers || got.Subjects != want.Subjects {
				t.Errorf("DocumentStats = %+v, want %+v", got, want)
			}

			m2 := observer.NewManager(observer.DefaultConfig())
			root2 := m2.NewObserver("restored")
			res, err := store.Load(name, root2, opts)
			if res != codec.Complete || err != nil {
				t.Fatalf("Load = %s, %v", res, err)
			}

			in := inspect.NewInspector(root2)
			got := in.Stats()
			if got.Observers != want.Observers || got.Subjects != want.Subjects ||
				got.Edges != want.Edges || got.Shared != want.Shared {
				t.Errorf("restored stats = %+v, want %+v", got, want)
			}

			for path, color := range map[string]string{"docs/notes@color": "blue", "notes@color": "red"} {
				p, err := inspect.ParsePath(path)
				if err != nil {
					t.Fatal(err)
				}
				v, err := in.ReadProperty(p)
				if err != nil {
					t.Fatalf("ReadProperty(%s): %v", path, err)
				}
				if s, _ := v.AsString(); s != color {
					t.Errorf("%s = %q, want %q", path, s, color)
				}
			}

			docs2 := observer.Of(root2.SubjectByName("docs"))
			if docs2 == nil {
				t.Fatal("restored docs is not an observer")
			}
			if docs2.SubjectLimit() != 5 {
				t.Errorf("restored limit = %d, want 5", docs2.SubjectLimit())
			}
			notes2 := docs2.SubjectByName("notes")
			if c, _ := docs2.CategoryOf(notes2); c != "text" {
				t.Errorf("restored category = %q, want text", c)
			}
			if err := m2.CheckIntegrity(); err != nil {
				t.Errorf("CheckIntegrity: %v", err)
			}
		})
	}
}
