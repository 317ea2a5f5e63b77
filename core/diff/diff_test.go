package diff

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/routesync/core/route"
)

func sampleOptions() route.Options {
	tint := route.Color{Light: "#000", Dark: "#fff"}
	return route.Options{
		"title":               "Inbox",
		"tintColor":           "systemBlue",
		"barTintColor":        tint,
		"titleTextAttributes": map[string]any{"fontSize": 17, "color": "#333"},
		"navBarItemsOrder":    []any{"search", "compose"},
		"navBarButtonRightItemsConfig": []route.NavBarItem{
			{Kind: route.NavBarItemText, Key: "edit", Title: "Edit", Enabled: true},
			{Kind: route.NavBarItemImage, Key: "add", Image: route.ImageRef{Kind: route.ImageSystem, Name: "plus"}, Tint: &tint},
		},
		"searchBarConfig": map[string]any{"placeholder": "Search", "scope": []any{"all", "unread"}},
		"backgroundImage": route.ImageRef{Kind: route.ImageGradient, Colors: []route.Color{{Value: "red"}, {Value: "blue"}}, Width: 10},
	}
}

func TestCompareIsReflexive(t *testing.T) {
	e := New(nil)
	opts := sampleOptions()

	eq, err := e.Compare(opts, opts)
	require.NoError(t, err)
	require.True(t, eq)

	eq, err = e.Compare(sampleOptions(), sampleOptions())
	require.NoError(t, err)
	require.True(t, eq)
}

func TestCompareDetectsChanges(t *testing.T) {
	e := New(nil)
	cases := map[string]func(o route.Options){
		"shallow title": func(o route.Options) { o["title"] = "Archive" },
		"plain color":   func(o route.Options) { o["tintColor"] = "systemRed" },
		"dynamic color": func(o route.Options) { o["barTintColor"] = route.Color{Light: "#000", Dark: "#111"} },
		"deep search":   func(o route.Options) { o["searchBarConfig"] = map[string]any{"placeholder": "Find"} },
		"item title": func(o route.Options) {
			o["navBarButtonRightItemsConfig"] = []route.NavBarItem{{Kind: route.NavBarItemText, Key: "edit", Title: "Done", Enabled: true}}
		},
		"gradient stop": func(o route.Options) {
			o["backgroundImage"] = route.ImageRef{Kind: route.ImageGradient, Colors: []route.Color{{Value: "red"}}, Width: 10}
		},
		"added property":  func(o route.Options) { o["prompt"] = "Pick one" },
		"removed to nil":  func(o route.Options) { o["title"] = nil },
		"order reshuffle": func(o route.Options) { o["navBarItemsOrder"] = []any{"compose", "search"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			base := sampleOptions()
			next := base.Clone()
			mutate(next)
			eq, err := e.Compare(base, next)
			require.NoError(t, err)
			require.False(t, eq)
		})
	}
}

func TestCompareEquivalentValues(t *testing.T) {
	e := New(nil)
	base := sampleOptions()
	next := base.Clone()
	next["tintColor"] = route.Color{Value: "systemBlue"}
	next["searchBarConfig"] = map[string]any{"placeholder": "Search", "scope": []any{"all", "unread"}}
	next["navBarItemsOrder"] = []any{"search", "compose"}

	eq, err := e.Compare(base, next)
	require.NoError(t, err)
	require.True(t, eq)
}

func TestNilHandling(t *testing.T) {
	e := New(nil)

	eq, _ := e.Compare(route.Options{"title": nil}, route.Options{})
	require.True(t, eq, "both nil is equal")

	eq, _ = e.Compare(route.Options{"title": "a", "prompt": nil}, route.Options{"title": "a", "prompt": "b"})
	require.False(t, eq, "one nil short-circuits")

	eq, _ = e.Compare(nil, nil)
	require.True(t, eq)
	eq, _ = e.Compare(nil, route.Options{"title": "a"})
	require.False(t, eq)
}

func TestKeysOnlyOnNewSideAreChecked(t *testing.T) {
	e := New(nil)
	eq, err := e.Compare(route.Options{"title": "a"}, route.Options{"title": "a", "statusBarStyle": "light"})
	require.NoError(t, err)
	require.False(t, eq)
}

func TestUnconfiguredPropertyStrictVersusLax(t *testing.T) {
	old := route.Options{"mystery": 1}
	next := route.Options{"mystery": 2}

	eq, err := New(nil).Compare(old, next)
	require.NoError(t, err)
	require.True(t, eq, "lax mode skips unknown properties")

	_, err = New(nil, WithStrict(true)).Compare(old, next)
	require.ErrorIs(t, err, route.ErrLibraryError)
	require.Contains(t, err.Error(), "mystery")
}

func TestSymmetry(t *testing.T) {
	shared := map[string]any{"k": 1}
	pairs := []struct {
		cmp  Comparator
		a, b any
	}{
		{Shallow, 1, 1},
		{Shallow, 1, 2},
		{Shallow, "x", 1},
		{Shallow, shared, shared},
		{Shallow, shared, map[string]any{"k": 1}},
		{ShallowObject, map[string]any{"a": 1}, map[string]any{"a": 1}},
		{ShallowObject, map[string]any{"a": 1}, map[string]any{"a": 1, "b": 2}},
		{ShallowObject, map[string]any{"a": []int{1}}, map[string]any{"a": []int{1}}},
		{ShallowArray, []any{1, "a"}, []any{1, "a"}},
		{ShallowArray, []any{1}, []any{1, 2}},
		{ShallowArray, []int{1, 2}, []any{1, 2}},
		{Deep, map[string]any{"a": []any{1, map[string]any{"b": 2}}}, map[string]any{"a": []any{1, map[string]any{"b": 2}}}},
		{Deep, map[string]any{"a": []any{1}}, map[string]any{"a": []any{2}}},
	}
	for _, p := range pairs {
		require.Equal(t, p.cmp.Equal(p.a, p.b), p.cmp.Equal(p.b, p.a), "%s(%v, %v)", p.cmp.Strategy(), p.a, p.b)
		require.True(t, p.cmp.Equal(p.a, p.a), "%s reflexive on %v", p.cmp.Strategy(), p.a)
	}
}

func TestChangedListsKeys(t *testing.T) {
	e := New(nil)
	changed, err := e.Changed(route.Options{"title": "a", "prompt": "p"}, route.Options{"title": "b", "prompt": "p", "tintColor": "red"})
	require.NoError(t, err)
	require.Equal(t, []string{"tintColor", "title"}, changed)
}

func TestNavBarItemVariants(t *testing.T) {
	sys := route.NavBarItem{Kind: route.NavBarItemSystem, Key: "done", SystemItem: "done"}
	custom := route.NavBarItem{Kind: route.NavBarItemCustom, Key: "done", CustomKey: "DoneButton"}

	require.True(t, NavBarItemEqual(sys, sys))
	require.False(t, NavBarItemEqual(sys, custom))
	require.False(t, NavBarItemEqual(sys, "done"))
	require.True(t, ImageEqual(route.ImageRef{Kind: route.ImageURL, URI: "a"}, &route.ImageRef{Kind: route.ImageURL, URI: "a"}))
}
