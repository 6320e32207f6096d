package strata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeTagPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		global    map[string]string
		isolation map[string]string
		current   map[string]string
		want      map[string]string
	}{
		{
			name:      "current wins",
			global:    map[string]string{"k": "g"},
			isolation: map[string]string{"k": "i"},
			current:   map[string]string{"k": "c"},
			want:      map[string]string{"k": "c"},
		},
		{
			name:      "isolation over global",
			global:    map[string]string{"k": "g"},
			isolation: map[string]string{"k": "i"},
			want:      map[string]string{"k": "i"},
		},
		{
			name:   "global only",
			global: map[string]string{"k": "g"},
			want:   map[string]string{"k": "g"},
		},
		{
			name:      "disjoint keys accumulate",
			global:    map[string]string{"a": "g"},
			isolation: map[string]string{"b": "i"},
			current:   map[string]string{"c": "c"},
			want:      map[string]string{"a": "g", "b": "i", "c": "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, i, c := NewScope(ScopeGlobal), NewScope(ScopeIsolation), NewScope(ScopeCurrent)
			g.SetTags(tt.global)
			i.SetTags(tt.isolation)
			c.SetTags(tt.current)

			assert.Equal(t, tt.want, Merge(g, i, c).Tags())
		})
	}
}

func TestMergeScalarsNotErasedByUnset(t *testing.T) {
	g, i, c := NewScope(ScopeGlobal), NewScope(ScopeIsolation), NewScope(ScopeCurrent)
	g.SetLevel(LevelWarning)
	g.SetFingerprint([]string{"g"})
	i.SetUser(User{ID: "42"})
	c.SetFingerprint([]string{})

	merged := Merge(g, i, c)
	assert.Equal(t, LevelWarning, merged.snapshot().level)
	assert.Equal(t, []string{"g"}, merged.snapshot().fingerprint)
	assert.Equal(t, "42", merged.User().ID)
	assert.Equal(t, ScopeMerged, merged.Type())
}

func TestMergeAppendsSequences(t *testing.T) {
	client := activeClient(DefaultOptions())
	g, i := NewScope(ScopeGlobal), NewScope(ScopeIsolation)
	g.SetClient(client)
	i.SetClient(client)
	g.AddBreadcrumb(&Breadcrumb{Message: "g"}, nil)
	i.AddBreadcrumb(&Breadcrumb{Message: "i"}, nil)
	g.AddAttachment(&Attachment{Filename: "g.txt"})
	i.AddAttachment(&Attachment{Filename: "i.txt"})

	merged := Merge(g, i, nil)
	crumbs := merged.Breadcrumbs()
	require.Len(t, crumbs, 2)
	assert.Equal(t, "g", crumbs[0].Message)
	assert.Equal(t, "i", crumbs[1].Message)
	assert.Len(t, merged.snapshot().attachments, 2)
}

func TestMergeFlagsLastWriteWins(t *testing.T) {
	i, c := NewScope(ScopeIsolation), NewScope(ScopeCurrent)
	i.AddFeatureFlag("a", true)
	i.AddFeatureFlag("b", true)
	c.AddFeatureFlag("a", false)

	flags := Merge(nil, i, c).Flags()
	require.Len(t, flags, 2)
	assert.Equal(t, "b", flags[0].Name)
	assert.Equal(t, "a", flags[1].Name)
	assert.False(t, flags[1].Result)
}

func TestMergePropagationContextPrecedence(t *testing.T) {
	g, i, c := NewScope(ScopeGlobal), NewScope(ScopeIsolation), NewScope(ScopeCurrent)

	assert.Same(t, i.PropagationContext(), Merge(g, i, c).PropagationContext())

	c.SetNewPropagationContext()
	assert.Same(t, c.PropagationContext(), Merge(g, i, c).PropagationContext())
}

func TestMergeOverrides(t *testing.T) {
	g, i, c := NewScope(ScopeGlobal), NewScope(ScopeIsolation), NewScope(ScopeCurrent)
	c.SetTag("k", "current")

	extra := NewScope(ScopeDetached)
	extra.SetTag("k", "override")
	extra.AddEventProcessor(func(e *Event, _ *Hint) *Event { return e })

	merged := Merge(g, i, c,
		extra,
		ScopeFields{Level: LevelFatal, Tags: map[string]string{"f": "1"}, User: &User{ID: "7"}},
		OverrideFunc(func(m *Scope) { m.SetExtra("fn", true) }),
	)

	assert.Equal(t, map[string]string{"k": "override", "f": "1"}, merged.Tags())
	assert.Equal(t, LevelFatal, merged.snapshot().level)
	assert.Equal(t, "7", merged.User().ID)
	assert.Equal(t, true, merged.Extras()["fn"])
	assert.Len(t, merged.snapshot().ownEvent, 1)
}

func TestStoreMergeSkipsOwnScopes(t *testing.T) {
	st, _ := newTestStore(t, DefaultOptions())
	ctx, guard := st.ForkIsolation(context.Background())
	defer guard.Close()

	current := st.Current(ctx)
	current.AddBreadcrumb(&Breadcrumb{Message: "once"}, nil)

	merged := st.Merge(ctx, current, st.Isolation(ctx))
	assert.Len(t, merged.Breadcrumbs(), 1)
}
