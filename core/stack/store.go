// Package stack holds the authoritative application-side copy of the route
// stack.
package stack

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jask/routesync/core/route"
)

const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultMaxDrainPasses = 8
)

// Config tunes removal batching.
type Config struct {
	// Debounce is how long a drain waits to admit further removals issued
	// in the same burst.
	Debounce time.Duration
	// MaxDrainPasses bounds one drain loop; leftovers schedule a new drain.
	MaxDrainPasses int
	Logger         *slog.Logger
}

// Hooks observe record lifetime. They run outside the store lock.
type Hooks struct {
	Added   func(route.Record)
	Removed func([]route.Record)
	Drained func(criteria, removed int)
}

// Store is the ordered list of route records. Writers are the dispatcher
// (through Tx) and the bridge (through Remove).
type Store struct {
	cfg   Config
	hooks Hooks
	log   *slog.Logger

	mu       sync.Mutex
	records  []route.Record
	pending  []route.Match
	waiters  []chan struct{}
	draining bool
	gate     func() bool
	closed   bool

	kick chan struct{}
	stop chan struct{}
}

// New returns an empty store.
func New(cfg Config, hooks Hooks) *Store {
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	if cfg.MaxDrainPasses <= 0 {
		cfg.MaxDrainPasses = DefaultMaxDrainPasses
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		cfg:   cfg,
		hooks: hooks,
		log:   log,
		kick:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}
}

// SetGate installs the predicate that must hold before a drain applies
// removals (the dispatcher being idle). It is evaluated under the store lock.
func (s *Store) SetGate(fn func() bool) {
	s.mu.Lock()
	s.gate = fn
	s.mu.Unlock()
}

// Kick wakes a drain that is waiting on the gate.
func (s *Store) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Append adds rec at the end with a fresh id and returns the stored record.
func (s *Store) Append(rec route.Record) route.Record {
	s.mu.Lock()
	rec = s.appendLocked(rec)
	s.mu.Unlock()
	s.added(rec)
	return rec
}

func (s *Store) appendLocked(rec route.Record) route.Record {
	if rec.ID == "" {
		rec.ID = route.NewID()
	}
	rec.Index = len(s.records)
	s.records = append(s.records, rec)
	return rec
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Top returns the focused (last) record.
func (s *Store) Top() (route.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return route.Record{}, false
	}
	return cloneRecord(s.records[len(s.records)-1]), true
}

// Get returns the record at index.
func (s *Store) Get(index int) (route.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.records) {
		return route.Record{}, false
	}
	return cloneRecord(s.records[index]), true
}

// FindMatching returns the first record matching every field set on m.
func (s *Store) FindMatching(m route.Match) (route.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if m.Matches(r) {
			return cloneRecord(r), true
		}
	}
	return route.Record{}, false
}

// Snapshot returns a copy of the ordered records.
func (s *Store) Snapshot() []route.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.records)
}

// UpdateOptions replaces the options of the record with id.
func (s *Store) UpdateOptions(id route.ID, opts route.Options) (route.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Options = opts.Clone()
			return cloneRecord(s.records[i]), true
		}
	}
	return route.Record{}, false
}

// Pending returns the number of queued removal criteria.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops any drain in progress and releases waiters.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	waiters := s.waiters
	s.waiters, s.pending = nil, nil
	close(s.stop)
	s.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

func (s *Store) renumberLocked() {
	for i := range s.records {
		s.records[i].Index = i
	}
}

func (s *Store) added(recs ...route.Record) {
	if s.hooks.Added == nil {
		return
	}
	for _, r := range recs {
		s.hooks.Added(r)
	}
}

func (s *Store) removed(recs []route.Record) {
	if len(recs) == 0 || s.hooks.Removed == nil {
		return
	}
	s.hooks.Removed(recs)
}

func cloneRecord(r route.Record) route.Record {
	r.Options = r.Options.Clone()
	return r
}

func cloneRecords(in []route.Record) []route.Record {
	out := make([]route.Record, len(in))
	for i, r := range in {
		out[i] = cloneRecord(r)
	}
	return out
}
