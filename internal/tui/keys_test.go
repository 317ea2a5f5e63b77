package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func TestKeyRegistryScopeMatch(t *testing.T) {
	reg := NewKeyRegistry([]KeyBinding{
		{Keys: []string{"ctrl+k"}, Action: "palette", Scopes: []string{"a"}},
		{Keys: []string{"q"}, Action: "quit", Scopes: []string{"*"}},
	})
	require.Equal(t, "palette", reg.Action(tea.KeyMsg{Type: tea.KeyCtrlK}, "a"))
	require.Empty(t, reg.Action(tea.KeyMsg{Type: tea.KeyCtrlK}, "b"))
	require.Equal(t, "quit", reg.Action(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}, "b"))
}

func TestDefaultBindingsAreCaseSensitive(t *testing.T) {
	reg := NewKeyRegistry(DefaultKeyBindings())
	require.Equal(t, "push", reg.Action(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}}, scopeInspector))
	require.Equal(t, "remove-previous", reg.Action(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'P'}}, scopeInspector))
	require.Empty(t, reg.Action(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}}, scopeConfirm))
	require.Len(t, reg.BindingsForScope(scopeConfirm), 2)
}
