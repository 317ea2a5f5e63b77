package templates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/routesync/core/diff"
	"github.com/jask/routesync/core/route"
)

func TestDefaultManifest(t *testing.T) {
	m, err := Load("")
	require.NoError(t, err)
	require.Equal(t, []string{"home", "inbox", "message", "settings"}, m.Keys())
	require.Equal(t, []route.Item{{Key: "home"}}, m.InitialItems())

	content := func(context.Context, route.Record) (any, error) { return nil, nil }
	tmpls := m.Templates(content)
	require.Equal(t, 4, tmpls.Len())

	home, err := tmpls.Lookup("home")
	require.NoError(t, err)
	require.NotNil(t, home.Content)
	require.Equal(t, "Home", home.DefaultOptions["title"])
	require.Equal(t, route.Color{Value: "systemBlue"}, home.DefaultOptions["tintColor"])
	items := home.DefaultOptions["navBarButtonRightItemsConfig"].([]route.NavBarItem)
	require.Len(t, items, 1)
	require.Equal(t, route.NavBarItemSystem, items[0].Kind)
	require.True(t, items[0].Enabled)

	settings, err := tmpls.Lookup("settings")
	require.NoError(t, err)
	require.True(t, settings.NativeOwned)
	require.Nil(t, settings.Content)
}

func TestManifestOptionsCompareUnderDefaultProperties(t *testing.T) {
	a, err := Load("")
	require.NoError(t, err)
	b, err := Load("")
	require.NoError(t, err)
	engine := diff.New(nil, diff.WithStrict(true))

	for _, key := range a.Keys() {
		eq, err := engine.Compare(a.Route[key].options(), b.Route[key].options())
		require.NoError(t, err, key)
		require.True(t, eq, key)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
version = 1
initial = ["a", "b"]

[route.a]
title = "A"

[route.b]
[route.b.options]
prompt = "pick one"
`), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	require.Len(t, m.InitialItems(), 2)
	require.Equal(t, "pick one", m.Route["b"].options()["prompt"])
}

func TestValidation(t *testing.T) {
	cases := map[string]string{
		"version":     "version = 2\ninitial = [\"a\"]\n[route.a]\n",
		"no routes":   "version = 1\ninitial = [\"a\"]\n",
		"no initial":  "version = 1\n[route.a]\n",
		"undeclared":  "version = 1\ninitial = [\"b\"]\n[route.a]\n",
		"bad kind":    "version = 1\ninitial = [\"a\"]\n[[route.a.left_items]]\nkind = \"laser\"\n",
		"unknown key": "version = 1\ninitial = [\"a\"]\ncolour = 1\n[route.a]\n",
	}
	for name, data := range cases {
		_, err := Decode(data)
		require.Error(t, err, name)
	}
}

func TestWriteDefaultKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.toml")
	require.NoError(t, WriteDefault(path))
	m, err := Load(path)
	require.NoError(t, err)
	require.Len(t, m.Route, 4)

	require.NoError(t, os.WriteFile(path, []byte("custom"), 0o644))
	require.NoError(t, WriteDefault(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "custom", string(data))
}
