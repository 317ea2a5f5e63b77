package tui

import (
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	scopeInspector = "inspector"
	scopeConfirm   = "confirm"
)

type KeyBinding struct {
	Keys        []string
	Action      string
	Description string
	Scopes      []string
}

type KeyRegistry struct {
	bindings []KeyBinding
}

func NewKeyRegistry(bindings []KeyBinding) *KeyRegistry {
	return &KeyRegistry{bindings: slices.Clone(bindings)}
}

func (r *KeyRegistry) BindingsForScope(scope string) []KeyBinding {
	out := make([]KeyBinding, 0, len(r.bindings))
	for _, b := range r.bindings {
		if scopeMatch(scope, b.Scopes) {
			out = append(out, b)
		}
	}
	return out
}

// Action returns the action bound to msg in scope, or "".
func (r *KeyRegistry) Action(msg tea.KeyMsg, scope string) string {
	pressed := normalizeKey(msg.String())
	for _, b := range r.bindings {
		if !scopeMatch(scope, b.Scopes) {
			continue
		}
		for _, k := range b.Keys {
			if normalizeKey(k) == pressed {
				return b.Action
			}
		}
	}
	return ""
}

func normalizeKey(k string) string {
	return strings.TrimSpace(k)
}

func scopeMatch(scope string, scopes []string) bool {
	if len(scopes) == 0 {
		return true
	}
	for _, s := range scopes {
		if s == "*" || s == scope {
			return true
		}
	}
	return false
}

func DefaultKeyBindings() []KeyBinding {
	in := []string{scopeInspector}
	return []KeyBinding{
		{Keys: []string{"q", "ctrl+c"}, Action: "quit", Description: "quit", Scopes: in},
		{Keys: []string{"j", "down"}, Action: "cursor-down", Description: "down", Scopes: in},
		{Keys: []string{"k", "up"}, Action: "cursor-up", Description: "up", Scopes: in},
		{Keys: []string{"tab"}, Action: "next-template", Description: "template", Scopes: in},
		{Keys: []string{"p"}, Action: "push", Description: "push", Scopes: in},
		{Keys: []string{"o"}, Action: "pop", Description: "pop", Scopes: in},
		{Keys: []string{"r"}, Action: "pop-to-root", Description: "root", Scopes: in},
		{Keys: []string{"x"}, Action: "remove", Description: "remove", Scopes: in},
		{Keys: []string{"P"}, Action: "remove-previous", Description: "remove prev", Scopes: in},
		{Keys: []string{"c"}, Action: "replace-current", Description: "replace top", Scopes: in},
		{Keys: []string{"i"}, Action: "insert", Description: "insert", Scopes: in},
		{Keys: []string{"v"}, Action: "reverse", Description: "reverse", Scopes: in},
		{Keys: []string{"s"}, Action: "swipe", Description: "swipe back", Scopes: in},
		{Keys: []string{"t"}, Action: "touch-options", Description: "options", Scopes: in},
		{Keys: []string{"b"}, Action: "toggle-bar", Description: "nav bar", Scopes: in},
		{Keys: []string{"f"}, Action: "fail-next", Description: "fail next", Scopes: in},
		{Keys: []string{"h"}, Action: "hang-next", Description: "hang next", Scopes: in},
		{Keys: []string{"d"}, Action: "drop-ack", Description: "drop ack", Scopes: in},
		{Keys: []string{"X"}, Action: "reset-journal", Description: "reset journal", Scopes: in},
		{Keys: []string{"y"}, Action: "confirm", Description: "yes", Scopes: []string{scopeConfirm}},
		{Keys: []string{"n", "esc"}, Action: "cancel", Description: "no", Scopes: []string{scopeConfirm}},
	}
}
