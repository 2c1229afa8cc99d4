package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qtilities/qtilities-go/pkg/log"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

type traceRecorder struct {
	events []log.Event
}

func (r *traceRecorder) Log(e log.Event) { r.events = append(r.events, e) }

func (r *traceRecorder) decisions(subjectName string) []string {
	var out []string
	for _, e := range r.events {
		if e.Category == log.CategoryOwnership && e.Ownership != nil && e.SubjectName == subjectName {
			out = append(out, e.Ownership.Decision)
		}
	}
	return out
}

func TestManualOwnershipNeverDeletes(t *testing.T) {
	m := newManager()
	a := m.NewObserver("A")
	b := m.NewObserver("B")
	x := subject.NewNode("x")

	require.NoError(t, a.AttachSubject(x, ManualOwnership))
	require.NoError(t, b.AttachSubject(x, ManualOwnership))

	a.Destroy()
	assert.False(t, x.IsDestroyed())
	b.Destroy()
	assert.False(t, x.IsDestroyed())
	assert.Nil(t, m.ContextsOf(x))
}

func TestScopeOwnership(t *testing.T) {
	m := newManager()
	a := m.NewObserver("A")
	b := m.NewObserver("B")
	x := subject.NewNode("x")

	require.NoError(t, a.AttachSubject(x, ObserverScopeOwnership))
	require.NoError(t, b.AttachSubject(x, ObserverScopeOwnership))

	a.Destroy()
	assert.False(t, x.IsDestroyed())
	assert.Equal(t, []int{b.ID()}, m.ContextsOf(x))

	b.Destroy()
	assert.True(t, x.IsDestroyed())
}

func TestScopeOwnershipExplicitDetach(t *testing.T) {
	m := newManager()
	a := m.NewObserver("A")
	b := m.NewObserver("B")
	x := subject.NewNode("x")

	require.NoError(t, a.AttachSubject(x, ObserverScopeOwnership))
	require.NoError(t, b.AttachSubject(x, ManualOwnership))

	// The last scope edge goes away, so the subject goes too, and with it
	// every other edge.
	require.NoError(t, a.DetachSubject(x))
	assert.True(t, x.IsDestroyed())
	assert.False(t, b.Contains(x))
	assert.NoError(t, m.CheckIntegrity())
}

func TestSpecificObserverOwnership(t *testing.T) {
	m := newManager()
	a := m.NewObserver("A")
	b := m.NewObserver("B")
	x := subject.NewNode("x")

	require.NoError(t, a.AttachSubject(x, SpecificObserverOwnership))
	require.NoError(t, b.AttachSubject(x, ObserverScopeOwnership))

	a.Destroy()
	assert.True(t, x.IsDestroyed())
	assert.False(t, b.Contains(x))
	assert.Equal(t, 0, b.SubjectCount())
	assert.NoError(t, m.CheckIntegrity())
}

func TestAutoOwnership(t *testing.T) {
	t.Run("LastAutoEdge", func(t *testing.T) {
		m := newManager()
		a := m.NewObserver("A")
		b := m.NewObserver("B")
		x := subject.NewNode("x")

		require.NoError(t, a.AttachSubject(x, AutoOwnership))
		require.NoError(t, b.AttachSubject(x, AutoOwnership))
		assert.Equal(t, 2, m.AutoEdges(x))

		a.Destroy()
		assert.False(t, x.IsDestroyed())
		assert.Equal(t, 1, m.AutoEdges(x))

		require.NoError(t, b.DetachSubject(x))
		assert.True(t, x.IsDestroyed())
	})

	t.Run("OtherEdgesDoNotCount", func(t *testing.T) {
		m := newManager()
		a := m.NewObserver("A")
		c := m.NewObserver("C")
		x := subject.NewNode("x")

		require.NoError(t, a.AttachSubject(x, AutoOwnership))
		require.NoError(t, c.AttachSubject(x, ManualOwnership))

		require.NoError(t, a.DetachSubject(x))
		assert.True(t, x.IsDestroyed())
		assert.False(t, c.Contains(x))
	})

	t.Run("NativeParentOwns", func(t *testing.T) {
		m := newManager()
		a := m.NewObserver("A")
		parent := subject.NewNode("parent")
		x := subject.NewNode("x")
		x.SetNativeParent(parent)

		require.NoError(t, a.AttachSubject(x, AutoOwnership))
		require.NoError(t, a.DetachSubject(x))
		assert.False(t, x.IsDestroyed())

		require.NoError(t, a.AttachSubject(x, AutoOwnership))
		parent.Destroy()
		assert.True(t, x.IsDestroyed())
		assert.False(t, a.Contains(x))
	})
}

func TestOwnedBySubjectOwnership(t *testing.T) {
	m := newManager()
	o := m.NewObserver("contained")
	owner := subject.NewNode("owner")

	require.NoError(t, o.AttachSubject(owner, OwnedBySubjectOwnership))

	t.Run("DetachClearsReferencesOnly", func(t *testing.T) {
		require.NoError(t, o.DetachSubject(owner))
		assert.False(t, owner.IsDestroyed())
		assert.False(t, o.IsDestroyed())
		assert.False(t, owner.Properties().Has(PropSubjectID))
	})

	t.Run("SubjectDestructionDestroysObserver", func(t *testing.T) {
		require.NoError(t, o.AttachSubject(owner, OwnedBySubjectOwnership))
		owner.Destroy()
		assert.True(t, o.IsDestroyed())
		_, ok := m.Observer(o.ID())
		assert.False(t, ok)
	})
}

func TestSubjectDestructionDetachesEverywhere(t *testing.T) {
	m := newManager()
	a := m.NewObserver("A")
	b := m.NewObserver("B")
	x := subject.NewNode("x")
	rec := &recorder{}
	b.Subscribe(rec)

	require.NoError(t, a.AttachSubject(x, ManualOwnership))
	require.NoError(t, b.AttachSubject(x, ObserverScopeOwnership))

	x.Destroy()
	assert.Equal(t, 0, a.SubjectCount())
	assert.Equal(t, 0, b.SubjectCount())
	assert.Nil(t, m.ContextsOf(x))
	assert.Contains(t, rec.kinds(), EventSubjectRemoved)
	assert.NoError(t, m.CheckIntegrity())
}

func TestDeletionIsDeferred(t *testing.T) {
	m := newManager()
	a := m.NewObserver("A")
	x := subject.NewNode("x")
	require.NoError(t, a.AttachSubject(x, ObserverScopeOwnership))

	var destroyedInCallback bool
	a.Subscribe(ListenerFunc(func(e Event) {
		if e.Kind == EventSubjectRemoved {
			destroyedInCallback = x.IsDestroyed()
		}
	}))

	var deleted []subject.Subject
	m.OnSubjectDeleted(func(s subject.Subject) { deleted = append(deleted, s) })

	require.NoError(t, a.DetachSubject(x))
	assert.False(t, destroyedInCallback)
	assert.True(t, x.IsDestroyed())
	assert.Equal(t, []subject.Subject{x}, deleted)
	assert.Equal(t, 0, m.Pending())
}

func TestFlushAtSafePoint(t *testing.T) {
	m := newManager()
	a := m.NewObserver("A")
	x := subject.NewNode("x")
	require.NoError(t, a.AttachSubject(x, AutoOwnership))

	m.enter()
	require.NoError(t, a.DetachSubject(x))
	assert.Equal(t, 1, m.Pending())
	assert.False(t, x.IsDestroyed())

	m.Flush()
	assert.True(t, x.IsDestroyed())
	m.leave()
	assert.Equal(t, 0, m.Pending())
}

func TestNestedObserverDestruction(t *testing.T) {
	m := newManager()
	root := m.NewObserver("root")
	child := m.NewObserver("child")
	x := subject.NewNode("x")

	require.NoError(t, root.AttachSubject(child, ObserverScopeOwnership))
	require.NoError(t, child.AttachSubject(x, ObserverScopeOwnership))

	root.Destroy()

	assert.True(t, child.IsDestroyed())
	assert.True(t, x.IsDestroyed())
	assert.Empty(t, m.Observers())
}

func TestResolverTrace(t *testing.T) {
	trace := &traceRecorder{}
	cfg := DefaultConfig()
	cfg.TraceLogger = trace
	cfg.SessionID = "session-1"
	m := NewManager(cfg)

	a := m.NewObserver("A")
	b := m.NewObserver("B")
	x := subject.NewNode("x")
	require.NoError(t, a.AttachSubject(x, ObserverScopeOwnership))
	require.NoError(t, b.AttachSubject(x, ObserverScopeOwnership))

	a.Destroy()
	b.Destroy()

	assert.Equal(t, []string{"Orphaned", "Deleted"}, trace.decisions("x"))
	for _, e := range trace.events {
		assert.Equal(t, "session-1", e.SessionID)
	}
}

func TestCheckIntegrityAfterMixedOperations(t *testing.T) {
	m := newManager()
	observers := []*Observer{m.NewObserver("A"), m.NewObserver("B"), m.NewObserver("C")}
	policies := []Policy{ManualOwnership, AutoOwnership, ObserverScopeOwnership}

	var nodes []*subject.Node
	for i := 0; i < 6; i++ {
		nodes = append(nodes, subject.NewNode("n"))
	}
	for i, n := range nodes {
		for j, o := range observers {
			if (i+j)%2 == 0 {
				require.NoError(t, o.AttachSubject(n, policies[(i+j)%len(policies)]))
			}
		}
	}
	require.NoError(t, observers[0].AttachSubject(observers[1], ManualOwnership))
	require.NoError(t, m.CheckIntegrity())

	require.NoError(t, observers[0].DetachAll())
	observers[2].Destroy()
	assert.NoError(t, m.CheckIntegrity())
}
