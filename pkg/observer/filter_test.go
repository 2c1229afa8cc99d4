package observer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/qtilities/qtilities-go/pkg/log"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

type mockFilter struct {
	FilterBase
	mock.Mock

	name string
	caps FilterCapability
}

func newMockFilter(name string, caps FilterCapability) *mockFilter {
	return &mockFilter{name: name, caps: caps}
}

func (f *mockFilter) FilterName() string { return f.name }

func (f *mockFilter) Capabilities() FilterCapability { return f.caps }

func (f *mockFilter) ValidateAttach(ctx *AttachContext) Verdict {
	args := f.Called(ctx)
	return args.Get(0).(Verdict)
}

func (f *mockFilter) ValidateDetach(ctx *DetachContext) Verdict {
	args := f.Called(ctx)
	return args.Get(0).(Verdict)
}

func (f *mockFilter) Attached(ctx *AttachContext) { f.Called(ctx) }

func (f *mockFilter) Detached(ctx *DetachContext) { f.Called(ctx) }

const allHooks = CapValidateAttach | CapValidateDetach | CapNotifyAttached | CapNotifyDetached

func TestFilterChainShortCircuits(t *testing.T) {
	m := newManager()
	o := m.NewObserver("A")
	rec := &recorder{}
	o.Subscribe(rec)

	first := newMockFilter("first", CapValidateAttach|CapNotifyAttached)
	second := newMockFilter("second", CapValidateAttach)
	third := newMockFilter("third", CapValidateAttach)
	first.On("ValidateAttach", mock.Anything).Return(Approve()).Once()
	second.On("ValidateAttach", mock.Anything).Return(Rejected("nope")).Once()

	for _, f := range []*mockFilter{first, second, third} {
		require.NoError(t, o.InstallFilter(f))
	}

	err := o.AttachSubject(subject.NewNode("x"), ManualOwnership)
	require.ErrorIs(t, err, ErrFilterRejected)

	var fe *FilterError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "second", fe.Filter)
	assert.Equal(t, "nope", fe.Reason)
	assert.Equal(t, 0, o.SubjectCount())

	first.AssertExpectations(t)
	second.AssertExpectations(t)
	third.AssertNotCalled(t, "ValidateAttach", mock.Anything)
	first.AssertNotCalled(t, "Attached", mock.Anything)

	require.Len(t, rec.events, 1)
	assert.Equal(t, EventAttachRejected, rec.events[0].Kind)
	assert.Equal(t, "second", rec.events[0].Filter)
	assert.Equal(t, "nope", rec.events[0].Reason)
}

func TestFilterHooksFollowCapabilities(t *testing.T) {
	m := newManager()
	o := m.NewObserver("A")
	silent := newMockFilter("silent", 0)
	require.NoError(t, o.InstallFilter(silent))

	n := subject.NewNode("x")
	require.NoError(t, o.AttachSubject(n, ManualOwnership))
	require.NoError(t, o.DetachSubject(n))

	silent.AssertNotCalled(t, "ValidateAttach", mock.Anything)
	silent.AssertNotCalled(t, "Attached", mock.Anything)
	silent.AssertNotCalled(t, "ValidateDetach", mock.Anything)
	silent.AssertNotCalled(t, "Detached", mock.Anything)
}

func TestFilterNotifications(t *testing.T) {
	m := newManager()
	o := m.NewObserver("A")
	f := newMockFilter("watch", allHooks)
	require.NoError(t, o.InstallFilter(f))
	n := subject.NewNode("x")

	f.On("ValidateAttach", mock.Anything).Return(Approve()).Once()
	f.On("Attached", mock.MatchedBy(func(ctx *AttachContext) bool {
		return ctx.Subject == subject.Subject(n) && ctx.Policy == AutoOwnership && ctx.Category == "c"
	})).Once()
	require.NoError(t, o.AttachSubject(n, AutoOwnership, WithCategory("c")))

	f.On("ValidateDetach", mock.Anything).Return(Approve()).Once()
	f.On("Detached", mock.MatchedBy(func(ctx *DetachContext) bool {
		return ctx.Trigger == TriggerDetach && !ctx.Forced()
	})).Once()
	require.NoError(t, o.DetachSubject(n))

	f.AssertExpectations(t)
}

func TestFilterRename(t *testing.T) {
	m := newManager()
	a := m.NewObserver("A")
	b := m.NewObserver("B")

	renamer := func(to string) *mockFilter {
		f := newMockFilter("rename", CapValidateAttach)
		f.On("ValidateAttach", mock.Anything).Run(func(args mock.Arguments) {
			args.Get(0).(*AttachContext).Rename(to)
		}).Return(Approve())
		return f
	}
	require.NoError(t, a.InstallFilter(renamer("renamed")))
	require.NoError(t, b.InstallFilter(renamer("other")))

	n := subject.NewNode("orig")
	require.NoError(t, a.AttachSubject(n, ManualOwnership))
	assert.Equal(t, "renamed", n.ObjectName())
	assert.Equal(t, "renamed", a.DisplayName(n))

	// With another context present the rename stays local to B.
	require.NoError(t, b.AttachSubject(n, ManualOwnership))
	assert.Equal(t, "renamed", n.ObjectName())
	assert.Equal(t, "other", b.DisplayName(n))
	assert.Same(t, n, b.SubjectByName("other"))
}

func TestFilterRenameIsTraced(t *testing.T) {
	trace := &traceRecorder{}
	cfg := DefaultConfig()
	cfg.TraceLogger = trace
	o := NewManager(cfg).NewObserver("A")

	plain := newMockFilter("plain", CapValidateAttach)
	plain.On("ValidateAttach", mock.Anything).Return(Approve())
	renamer := newMockFilter("renamer", CapValidateAttach)
	renamer.On("ValidateAttach", mock.Anything).Run(func(args mock.Arguments) {
		args.Get(0).(*AttachContext).Rename("renamed")
	}).Return(Approve())
	require.NoError(t, o.InstallFilter(plain))
	require.NoError(t, o.InstallFilter(renamer))

	require.NoError(t, o.AttachSubject(subject.NewNode("orig"), ManualOwnership))

	var attach *log.AttachEvent
	for _, e := range trace.events {
		if e.Category == log.CategoryAttach && e.Outcome == log.OutcomeSuccess {
			attach = e.Attach
		}
	}
	require.NotNil(t, attach)
	assert.Equal(t, "renamed", attach.Renamed)
	assert.Equal(t, "renamer", attach.RenamedBy)
}

func TestCanDetach(t *testing.T) {
	m := newManager()
	o := m.NewObserver("A")
	f := newMockFilter("keep", CapValidateDetach)
	f.On("ValidateDetach", mock.Anything).Return(Rejected("must stay"))
	require.NoError(t, o.InstallFilter(f))

	n := subject.NewNode("x")
	require.NoError(t, o.AttachSubject(n, ManualOwnership))
	rec := &recorder{}
	o.Subscribe(rec)

	assert.ErrorIs(t, o.CanDetach(n), ErrFilterRejected)
	assert.ErrorIs(t, o.CanDetach(subject.NewNode("loose")), ErrNotAttached)
	assert.True(t, o.Contains(n))
	assert.Empty(t, rec.events)

	o.SetAccessMode(LockedAccess)
	assert.ErrorIs(t, o.CanDetach(n), ErrAccessDenied)
}

func TestFilterDetachVeto(t *testing.T) {
	m := newManager()
	o := m.NewObserver("A")
	f := newMockFilter("keep", CapValidateDetach)
	f.On("ValidateDetach", mock.Anything).Return(Rejected("must stay"))
	require.NoError(t, o.InstallFilter(f))

	n := subject.NewNode("x")
	require.NoError(t, o.AttachSubject(n, ManualOwnership))
	rec := &recorder{}
	o.Subscribe(rec)

	err := o.DetachSubject(n)
	assert.ErrorIs(t, err, ErrFilterRejected)
	assert.True(t, o.Contains(n))
	require.Len(t, rec.events, 1)
	assert.Equal(t, EventDetachRejected, rec.events[0].Kind)
	assert.Equal(t, "must stay", rec.events[0].Reason)

	// Destruction cannot be vetoed.
	o.Destroy()
	assert.False(t, n.IsDestroyed())
	assert.Nil(t, m.ContextsOf(n))
}

func TestForcedDetachNotifiesFilters(t *testing.T) {
	m := newManager()
	o := m.NewObserver("A")
	f := newMockFilter("watch", CapNotifyDetached)
	require.NoError(t, o.InstallFilter(f))
	n := subject.NewNode("x")
	require.NoError(t, o.AttachSubject(n, ManualOwnership))

	f.On("Detached", mock.MatchedBy(func(ctx *DetachContext) bool {
		return ctx.Trigger == TriggerObserverDestroyed && ctx.Forced()
	})).Once()
	o.Destroy()
	f.AssertExpectations(t)
}

func TestInstallFilterRules(t *testing.T) {
	m := newManager()
	o := m.NewObserver("A")

	assert.ErrorIs(t, o.InstallFilter(nil), ErrNilFilter)

	f := newMockFilter("one", 0)
	require.NoError(t, o.InstallFilter(f))
	assert.Same(t, o, f.Observer())
	assert.ErrorIs(t, o.InstallFilter(newMockFilter("one", 0)), ErrDuplicateFilter)

	got, ok := o.FilterByName("one")
	assert.True(t, ok)
	assert.Same(t, f, got)
	assert.Len(t, o.Filters(), 1)

	require.NoError(t, o.AttachSubject(subject.NewNode("x"), ManualOwnership))
	assert.ErrorIs(t, o.InstallFilter(newMockFilter("two", 0)), ErrFilterAfterUse)
}
