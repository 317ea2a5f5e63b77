// Package diff decides whether a route's options changed enough to be worth a
// write across the boundary.
//
// A false "equal" leaves stale configuration on the peer; a false "not equal"
// only costs a redundant write. Unconfigured properties are therefore an error
// in strict mode and skipped otherwise.
package diff

import (
	"log/slog"
	"reflect"
	"sort"

	"github.com/google/go-cmp/cmp"

	"github.com/jask/routesync/core/route"
)

// Strategy selects how one property is compared.
type Strategy int

const (
	StrategyShallow Strategy = iota + 1
	StrategyShallowObject
	StrategyShallowArray
	StrategyDeep
	StrategyCustom
)

func (s Strategy) String() string {
	switch s {
	case StrategyShallow:
		return "shallow"
	case StrategyShallowObject:
		return "shallowObject"
	case StrategyShallowArray:
		return "shallowArray"
	case StrategyDeep:
		return "deep"
	case StrategyCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Comparator compares the two values of one property.
type Comparator struct {
	strategy Strategy
	custom   func(a, b any) bool
}

var (
	Shallow       = Comparator{strategy: StrategyShallow}
	ShallowObject = Comparator{strategy: StrategyShallowObject}
	ShallowArray  = Comparator{strategy: StrategyShallowArray}
	Deep          = Comparator{strategy: StrategyDeep}
)

// Custom wraps fn, which is only called with two non-nil values.
func Custom(fn func(a, b any) bool) Comparator {
	return Comparator{strategy: StrategyCustom, custom: fn}
}

// Strategy returns the comparator's strategy.
func (c Comparator) Strategy() Strategy { return c.strategy }

// Equal applies the comparator to a and b.
func (c Comparator) Equal(a, b any) bool {
	switch c.strategy {
	case StrategyShallow:
		return shallowEqual(a, b)
	case StrategyShallowObject:
		return shallowObjectEqual(a, b)
	case StrategyShallowArray:
		return shallowArrayEqual(a, b)
	case StrategyDeep:
		return deepEqual(a, b)
	case StrategyCustom:
		if c.custom == nil {
			return false
		}
		return c.custom(a, b)
	default:
		return false
	}
}

// PropertyMap assigns a comparator to each option key.
type PropertyMap map[string]Comparator

// Engine compares option sets under a PropertyMap.
type Engine struct {
	props  PropertyMap
	strict bool
	log    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrict makes unconfigured properties a configuration error.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithLogger sets the logger used to report skipped properties.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// New returns an engine for props. A nil map means DefaultProperties.
func New(props PropertyMap, opts ...Option) *Engine {
	if props == nil {
		props = DefaultProperties()
	}
	e := &Engine{props: props, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strict reports whether the engine runs in strict mode.
func (e *Engine) Strict() bool { return e.strict }

// Compare reports whether old and next are equivalent. The error is only ever
// non-nil in strict mode, for a property present on both sides that has no
// comparator.
func (e *Engine) Compare(old, next route.Options) (bool, error) {
	if len(old) == 0 && len(next) == 0 {
		return true, nil
	}
	if old == nil || next == nil {
		return false, nil
	}

	for _, key := range unionKeys(old, next) {
		a, b := old[key], next[key]
		aNil, bNil := isNil(a), isNil(b)
		if aNil && bNil {
			continue
		}
		if aNil != bNil {
			return false, nil
		}

		cmpr, ok := e.props[key]
		if !ok {
			if e.strict {
				return false, route.NewError(route.CodeLibraryError, "compare options", nil, "no comparator configured for property %q", key)
			}
			e.log.Debug("diff: skipping unconfigured property", "property", key)
			continue
		}
		if !cmpr.Equal(a, b) {
			return false, nil
		}
	}
	return true, nil
}

// Changed returns the keys whose values differ. Unconfigured keys are treated
// as in Compare.
func (e *Engine) Changed(old, next route.Options) ([]string, error) {
	var changed []string
	for _, key := range unionKeys(old, next) {
		a, b := old[key], next[key]
		aNil, bNil := isNil(a), isNil(b)
		switch {
		case aNil && bNil:
			continue
		case aNil != bNil:
			changed = append(changed, key)
			continue
		}
		cmpr, ok := e.props[key]
		if !ok {
			if e.strict {
				return nil, route.NewError(route.CodeLibraryError, "compare options", nil, "no comparator configured for property %q", key)
			}
			continue
		}
		if !cmpr.Equal(a, b) {
			changed = append(changed, key)
		}
	}
	return changed, nil
}

func unionKeys(a, b route.Options) []string {
	keys := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, m := range []route.Options{a, b} {
		for k := range m {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func shallowEqual(a, b any) (eq bool) {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		// a comparable struct can still hold an uncomparable value in an
		// interface field
		defer func() {
			if recover() != nil {
				eq = false
			}
		}()
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	}
	return false
}

func shallowObjectEqual(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != reflect.Map || vb.Kind() != reflect.Map {
		return shallowEqual(a, b)
	}
	if va.Type() != vb.Type() || va.Len() != vb.Len() {
		return false
	}
	iter := va.MapRange()
	for iter.Next() {
		w := vb.MapIndex(iter.Key())
		if !w.IsValid() {
			return false
		}
		if !shallowEqual(iter.Value().Interface(), w.Interface()) {
			return false
		}
	}
	return true
}

func shallowArrayEqual(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	isList := func(v reflect.Value) bool { return v.Kind() == reflect.Slice || v.Kind() == reflect.Array }
	if !isList(va) || !isList(vb) {
		return shallowEqual(a, b)
	}
	if va.Len() != vb.Len() {
		return false
	}
	for i := range va.Len() {
		if !shallowEqual(va.Index(i).Interface(), vb.Index(i).Interface()) {
			return false
		}
	}
	return true
}

var exportAll = cmp.Exporter(func(reflect.Type) bool { return true })

func deepEqual(a, b any) bool {
	return cmp.Equal(a, b, exportAll)
}
