package route

import "maps"

// Options is the merged configuration of a route (title, bar items, colors...).
// Values are plain Go values or one of the typed variants in this package.
type Options map[string]any

// Clone returns a shallow copy of o.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	return maps.Clone(o)
}

// Merge overlays override on top of base and returns a new map. Neither input
// is modified.
func Merge(base, override Options) Options {
	if base == nil && override == nil {
		return nil
	}
	out := make(Options, len(base)+len(override))
	maps.Copy(out, base)
	maps.Copy(out, override)
	return out
}

// Item is what callers hand to push, insert, replace and set-routes.
type Item struct {
	Key     string
	Props   any
	Options Options
}

// Record is one entry of the ordered stack.
type Record struct {
	ID          ID
	Key         string
	Index       int
	Props       any
	Options     Options
	NativeOwned bool
}

// Item returns the caller-facing view of r.
func (r Record) Item() Item {
	return Item{Key: r.Key, Props: r.Props, Options: r.Options.Clone()}
}

// Match is a partial record used for lookups and removal criteria. Zero fields
// are ignored; Index uses a pointer because 0 is a valid position.
type Match struct {
	ID    ID
	Key   string
	Index *int
}

// At is a convenience for building a Match on an index.
func At(index int) *int { return &index }

// Empty reports whether m constrains nothing.
func (m Match) Empty() bool {
	return m.ID == "" && m.Key == "" && m.Index == nil
}

// Matches reports whether r satisfies every field set on m.
func (m Match) Matches(r Record) bool {
	if m.ID != "" && m.ID != r.ID {
		return false
	}
	if m.Key != "" && m.Key != r.Key {
		return false
	}
	if m.Index != nil && *m.Index != r.Index {
		return false
	}
	return true
}

// IDs returns the identifiers of records in order.
func IDs(records []Record) []ID {
	out := make([]ID, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
