package route

import (
	"context"
	"sort"

	"github.com/agnivade/levenshtein"
)

// ContentFunc builds the content handed to the renderer for a record. The
// context carries the record (see FromContext).
type ContentFunc func(ctx context.Context, rec Record) (any, error)

// Template is the immutable blueprint a route key refers to.
type Template struct {
	Key            string
	DefaultOptions Options
	Content        ContentFunc
	// NativeOwned routes are implemented by the peer itself: nothing is
	// mounted for them and no registration ack is awaited.
	NativeOwned bool
}

// Templates is the registry of declared templates keyed by route key.
type Templates struct {
	byKey map[string]Template
}

// NewTemplates indexes tmpls by key. Later duplicates replace earlier ones.
func NewTemplates(tmpls ...Template) Templates {
	t := Templates{byKey: make(map[string]Template, len(tmpls))}
	for _, tmpl := range tmpls {
		if tmpl.Key == "" {
			continue
		}
		t.byKey[tmpl.Key] = tmpl
	}
	return t
}

// Keys returns the registered keys in sorted order.
func (t Templates) Keys() []string {
	keys := make([]string, 0, len(t.byKey))
	for k := range t.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered templates.
func (t Templates) Len() int { return len(t.byKey) }

// Lookup returns the template for key or an InvalidRouteKey error that names
// the closest registered key when one is near enough to be a typo.
func (t Templates) Lookup(key string) (Template, error) {
	if tmpl, ok := t.byKey[key]; ok {
		return tmpl, nil
	}
	if s := t.suggest(key); s != "" {
		return Template{}, NewError(CodeInvalidRouteKey, "lookup", nil, "no template for %q (did you mean %q?)", key, s)
	}
	return Template{}, NewError(CodeInvalidRouteKey, "lookup", nil, "no template for %q", key)
}

// Resolve turns an item into the fields of a new record.
func (t Templates) Resolve(item Item) (Record, error) {
	tmpl, err := t.Lookup(item.Key)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Key:         item.Key,
		Props:       item.Props,
		Options:     Merge(tmpl.DefaultOptions, item.Options),
		NativeOwned: tmpl.NativeOwned,
	}, nil
}

func (t Templates) suggest(key string) string {
	if key == "" {
		return ""
	}
	best, bestDist := "", -1
	for _, k := range t.Keys() {
		d := levenshtein.ComputeDistance(key, k)
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	// more than a third of the key rewritten is not a typo
	if bestDist < 0 || bestDist*3 > max(len(key), 3) {
		return ""
	}
	return best
}
