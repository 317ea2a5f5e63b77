// Package templates loads route templates from a TOML manifest.
package templates

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jask/routesync/core/route"
)

// DefaultManifestTOML is used when no manifest path is configured.
const DefaultManifestTOML = `version = 1
initial = ["home"]

[route.home]
title = "Home"
tint_color = "systemBlue"

[[route.home.right_items]]
kind = "system"
key = "compose"
system = "compose"

[route.inbox]
title = "Inbox"
large_title = true

[[route.inbox.right_items]]
kind = "text"
key = "edit"
title = "Edit"

[route.message]
title = "Message"

[[route.message.left_items]]
kind = "text"
key = "close"
title = "Close"

[route.settings]
title = "Settings"
native = true
`

// ItemConfig describes one nav bar button.
type ItemConfig struct {
	Kind     string `toml:"kind"`
	Key      string `toml:"key"`
	Title    string `toml:"title"`
	System   string `toml:"system"`
	Image    string `toml:"image"`
	Custom   string `toml:"custom"`
	Tint     string `toml:"tint"`
	Disabled bool   `toml:"disabled"`
}

// RouteConfig describes one template.
type RouteConfig struct {
	Title      string         `toml:"title"`
	TintColor  string         `toml:"tint_color"`
	LargeTitle bool           `toml:"large_title"`
	Native     bool           `toml:"native"`
	LeftItems  []ItemConfig   `toml:"left_items"`
	RightItems []ItemConfig   `toml:"right_items"`
	Options    map[string]any `toml:"options"`
}

// Manifest is the decoded file.
type Manifest struct {
	Version int                    `toml:"version"`
	Initial []string               `toml:"initial"`
	Route   map[string]RouteConfig `toml:"route"`
}

// Load reads the manifest at path, or the built-in one when path is empty.
func Load(path string) (Manifest, error) {
	if strings.TrimSpace(path) == "" {
		return Decode(DefaultManifestTOML)
	}
	var m Manifest
	md, err := toml.DecodeFile(path, &m)
	if err != nil {
		return Manifest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Manifest{}, fmt.Errorf("parse %s: unknown field %s", path, undecoded[0])
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("validate %s: %w", path, err)
	}
	return m, nil
}

// Decode parses and validates manifest text.
func Decode(data string) (Manifest, error) {
	var m Manifest
	md, err := toml.Decode(data, &m)
	if err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Manifest{}, fmt.Errorf("parse manifest: unknown field %s", undecoded[0])
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks version, initial routes and item kinds.
func (m Manifest) Validate() error {
	if m.Version != 1 {
		return fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	if len(m.Route) == 0 {
		return fmt.Errorf("manifest declares no routes")
	}
	if len(m.Initial) == 0 {
		return fmt.Errorf("manifest declares no initial routes")
	}
	for _, key := range m.Initial {
		if _, ok := m.Route[key]; !ok {
			return fmt.Errorf("initial route %q is not declared", key)
		}
	}
	for key, rc := range m.Route {
		for _, it := range append(append([]ItemConfig(nil), rc.LeftItems...), rc.RightItems...) {
			if _, err := itemKind(it.Kind); err != nil {
				return fmt.Errorf("route %q item %q: %w", key, it.Key, err)
			}
		}
	}
	return nil
}

// Keys returns the declared route keys in sorted order.
func (m Manifest) Keys() []string {
	keys := make([]string, 0, len(m.Route))
	for k := range m.Route {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Templates builds the registry. content is used for every route that is not
// native-owned.
func (m Manifest) Templates(content route.ContentFunc) route.Templates {
	tmpls := make([]route.Template, 0, len(m.Route))
	for _, key := range m.Keys() {
		rc := m.Route[key]
		t := route.Template{Key: key, DefaultOptions: rc.options(), NativeOwned: rc.Native}
		if !rc.Native {
			t.Content = content
		}
		tmpls = append(tmpls, t)
	}
	return route.NewTemplates(tmpls...)
}

// InitialItems returns the items Navigator.Start should be called with.
func (m Manifest) InitialItems() []route.Item {
	items := make([]route.Item, len(m.Initial))
	for i, key := range m.Initial {
		items[i] = route.Item{Key: key}
	}
	return items
}

func (rc RouteConfig) options() route.Options {
	opts := route.Options{}
	for k, v := range rc.Options {
		opts[k] = v
	}
	if rc.Title != "" {
		opts["title"] = rc.Title
	}
	if rc.TintColor != "" {
		opts["tintColor"] = route.Color{Value: rc.TintColor}
	}
	if rc.LargeTitle {
		opts["largeTitleDisplayMode"] = "always"
	}
	if len(rc.LeftItems) > 0 {
		opts["navBarButtonLeftItemsConfig"] = navBarItems(rc.LeftItems)
	}
	if len(rc.RightItems) > 0 {
		opts["navBarButtonRightItemsConfig"] = navBarItems(rc.RightItems)
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func itemKind(raw string) (route.NavBarItemKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "text":
		return route.NavBarItemText, nil
	case "system":
		return route.NavBarItemSystem, nil
	case "image":
		return route.NavBarItemImage, nil
	case "custom":
		return route.NavBarItemCustom, nil
	}
	return 0, fmt.Errorf("unknown item kind %q", raw)
}

func navBarItems(cfgs []ItemConfig) []route.NavBarItem {
	out := make([]route.NavBarItem, 0, len(cfgs))
	for _, c := range cfgs {
		kind, _ := itemKind(c.Kind)
		it := route.NavBarItem{Kind: kind, Key: c.Key, Enabled: !c.Disabled}
		switch kind {
		case route.NavBarItemText:
			it.Title = c.Title
		case route.NavBarItemSystem:
			it.SystemItem = c.System
		case route.NavBarItemImage:
			it.Image = route.ImageRef{Kind: route.ImageSystem, Name: c.Image}
		case route.NavBarItemCustom:
			it.CustomKey = c.Custom
		}
		if c.Tint != "" {
			it.Tint = &route.Color{Value: c.Tint}
		}
		out = append(out, it)
	}
	return out
}

// WriteDefault writes the built-in manifest to path unless a file exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(DefaultManifestTOML), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
