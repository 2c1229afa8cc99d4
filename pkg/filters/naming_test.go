package filters

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

func namedObserver(t *testing.T, configure func(p *NamingPolicy)) (*observer.Manager, *observer.Observer, *NamingPolicy) {
	t.Helper()
	m := observer.NewManager(observer.DefaultConfig())
	o := m.NewObserver("Names")
	p := NewNamingPolicy()
	if configure != nil {
		configure(p)
	}
	require.NoError(t, o.InstallFilter(p))
	return m, o, p
}

func TestNamingRejectsDuplicates(t *testing.T) {
	_, o, _ := namedObserver(t, nil)

	require.NoError(t, o.AttachSubject(subject.NewNode("a"), observer.ManualOwnership))
	err := o.AttachSubject(subject.NewNode("a"), observer.ManualOwnership)

	assert.ErrorIs(t, err, observer.ErrFilterRejected)
	assert.Equal(t, 1, o.SubjectCount())
}

func TestNamingInvalidNames(t *testing.T) {
	tests := []struct {
		name      string
		validator *regexp.Regexp
		subject   string
		wantErr   bool
	}{
		{"Empty", nil, "", true},
		{"Slash", DefaultNamePattern, "a/b", true},
		{"Backslash", DefaultNamePattern, `a\b`, true},
		{"Plain", DefaultNamePattern, "notes.txt", false},
		{"CustomRejects", regexp.MustCompile(`^[a-z]+$`), "Upper", true},
		{"CustomAccepts", regexp.MustCompile(`^[a-z]+$`), "lower", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, o, p := namedObserver(t, func(p *NamingPolicy) { p.SetValidator(tt.validator) })
			err := o.AttachSubject(subject.NewNode(tt.subject), observer.ManualOwnership)
			if tt.wantErr {
				assert.ErrorIs(t, err, observer.ErrFilterRejected)
				assert.ErrorIs(t, p.ValidateName(tt.subject), ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNamingAutoRename(t *testing.T) {
	_, o, _ := namedObserver(t, func(p *NamingPolicy) { p.SetConflictPolicy(AutoRename) })

	nodes := []*subject.Node{subject.NewNode("doc"), subject.NewNode("doc"), subject.NewNode("doc")}
	for _, n := range nodes {
		require.NoError(t, o.AttachSubject(n, observer.ManualOwnership))
	}

	assert.Equal(t, "doc", nodes[0].ObjectName())
	assert.Equal(t, "doc (2)", nodes[1].ObjectName())
	assert.Equal(t, "doc (3)", nodes[2].ObjectName())
}

func TestNamingAutoRenameKeepsObjectNameWhenShared(t *testing.T) {
	m, o, _ := namedObserver(t, func(p *NamingPolicy) { p.SetConflictPolicy(AutoRename) })
	elsewhere := m.NewObserver("Elsewhere")

	require.NoError(t, o.AttachSubject(subject.NewNode("doc"), observer.ManualOwnership))
	shared := subject.NewNode("doc")
	require.NoError(t, elsewhere.AttachSubject(shared, observer.ManualOwnership))
	require.NoError(t, o.AttachSubject(shared, observer.ManualOwnership))

	assert.Equal(t, "doc", shared.ObjectName())
	assert.Equal(t, "doc (2)", o.DisplayName(shared))
	assert.Equal(t, "doc", elsewhere.DisplayName(shared))
}

func TestNamingAllowDuplicates(t *testing.T) {
	_, o, _ := namedObserver(t, func(p *NamingPolicy) { p.SetUniquenessPolicy(AllowDuplicateNames) })

	require.NoError(t, o.AttachSubject(subject.NewNode("a"), observer.ManualOwnership))
	require.NoError(t, o.AttachSubject(subject.NewNode("a"), observer.ManualOwnership))
	assert.Equal(t, 2, o.SubjectCount())
}

func TestNamingCaseInsensitive(t *testing.T) {
	_, o, _ := namedObserver(t, func(p *NamingPolicy) { p.SetCaseSensitive(false) })

	require.NoError(t, o.AttachSubject(subject.NewNode("Doc"), observer.ManualOwnership))
	assert.ErrorIs(t, o.AttachSubject(subject.NewNode("doc"), observer.ManualOwnership), observer.ErrFilterRejected)
}

func TestNamingReplaceConflicting(t *testing.T) {
	_, o, _ := namedObserver(t, func(p *NamingPolicy) { p.SetConflictPolicy(ReplaceConflicting) })

	old := subject.NewNode("a")
	replacement := subject.NewNode("a")
	require.NoError(t, o.AttachSubject(old, observer.ManualOwnership))
	require.NoError(t, o.AttachSubject(replacement, observer.ManualOwnership))

	assert.False(t, o.Contains(old))
	assert.True(t, o.Contains(replacement))
	assert.False(t, old.IsDestroyed())
}

func TestNamingReplaceRejectedWhenHolderIsKept(t *testing.T) {
	_, o, _ := namedObserver(t, func(p *NamingPolicy) { p.SetConflictPolicy(ReplaceConflicting) })
	activity := NewActivityPolicy()
	activity.SetMinimumActivity(ProhibitNoneActive)
	require.NoError(t, o.InstallFilter(activity))

	x := subject.NewNode("x")
	y := subject.NewNode("y")
	require.NoError(t, o.AttachSubject(x, observer.ManualOwnership))
	require.NoError(t, o.AttachSubject(y, observer.ManualOwnership))
	require.Equal(t, []subject.Subject{x}, activity.ActiveSubjects())

	second := subject.NewNode("x")
	err := o.AttachSubject(second, observer.ManualOwnership)
	assert.ErrorIs(t, err, observer.ErrFilterRejected)
	assert.ErrorContains(t, err, "last active subject")

	assert.Equal(t, []subject.Subject{x, y}, o.SubjectList())
	assert.False(t, o.Contains(second))

	// Once x is no longer the last active subject it can be replaced.
	require.NoError(t, activity.SetActiveSubjects([]subject.Subject{y}))
	require.NoError(t, o.AttachSubject(second, observer.ManualOwnership))
	assert.False(t, o.Contains(x))
	assert.True(t, o.Contains(second))
}

func TestRenameSubject(t *testing.T) {
	m, o, p := namedObserver(t, nil)
	a := subject.NewNode("a")
	b := subject.NewNode("b")
	require.NoError(t, o.AttachSubject(a, observer.ManualOwnership))
	require.NoError(t, o.AttachSubject(b, observer.ManualOwnership))

	assert.ErrorIs(t, p.RenameSubject(a, "b"), ErrNameConflict)
	assert.ErrorIs(t, p.RenameSubject(a, "x/y"), ErrInvalidName)
	assert.ErrorIs(t, p.RenameSubject(subject.NewNode("loose"), "z"), observer.ErrNotAttached)

	require.NoError(t, p.RenameSubject(a, "c"))
	assert.Equal(t, "c", a.ObjectName())

	other := m.NewObserver("Other")
	require.NoError(t, other.AttachSubject(b, observer.ManualOwnership))
	require.NoError(t, p.RenameSubject(b, "d"))
	assert.Equal(t, "b", b.ObjectName())
	assert.Equal(t, "d", o.DisplayName(b))
	assert.Same(t, b, o.SubjectByName("d"))
}
