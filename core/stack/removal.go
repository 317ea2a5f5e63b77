package stack

import (
	"time"

	"github.com/jask/routesync/core/route"
)

// Remove queues a removal. Criteria carrying an ID match on it alone;
// otherwise the key and index pair must both match. The returned channel is
// closed once the batch holding the criteria has been applied.
func (s *Store) Remove(m route.Match) <-chan struct{} {
	done := make(chan struct{})
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(done)
		return done
	}
	s.pending = append(s.pending, m)
	s.waiters = append(s.waiters, done)
	if !s.draining {
		s.draining = true
		go s.drain()
	}
	s.mu.Unlock()
	return done
}

// Flush applies queued removals immediately, ignoring the debounce window and
// the gate. The dispatcher calls it at command boundaries.
func (s *Store) Flush() int {
	s.mu.Lock()
	removed, waiters, n := s.applyPendingLocked()
	s.mu.Unlock()
	s.settle(removed, waiters, n)
	return len(removed)
}

func (s *Store) drain() {
	for pass := 0; pass < s.cfg.MaxDrainPasses; pass++ {
		if !s.wait(s.cfg.Debounce) {
			return
		}
		if !s.lockWhenOpen() {
			return
		}
		removed, waiters, n := s.applyPendingLocked()
		s.mu.Unlock()
		s.settle(removed, waiters, n)

		s.mu.Lock()
		if s.closed || len(s.pending) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.pending) == 0 {
		s.draining = false
		return
	}
	s.log.Debug("stack: drain pass limit reached, rescheduling", "pending", len(s.pending))
	go s.drain()
}

func (s *Store) wait(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-s.stop:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.stop:
		return false
	}
}

// lockWhenOpen returns holding the lock once the gate allows a drain, or
// false without the lock if the store closed.
func (s *Store) lockWhenOpen() bool {
	for {
		s.mu.Lock()
		if s.closed {
			s.draining = false
			s.mu.Unlock()
			return false
		}
		if s.gate == nil || s.gate() {
			return true
		}
		s.mu.Unlock()
		select {
		case <-s.kick:
		case <-s.stop:
			return false
		}
	}
}

func (s *Store) applyPendingLocked() ([]route.Record, []chan struct{}, int) {
	batch, waiters := s.pending, s.waiters
	s.pending, s.waiters = nil, nil
	if len(batch) == 0 {
		return nil, waiters, 0
	}

	kept := s.records[:0:0]
	var removed []route.Record
	for _, r := range s.records {
		if matchesAny(batch, r) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	s.renumberLocked()
	return removed, waiters, len(batch)
}

func (s *Store) settle(removed []route.Record, waiters []chan struct{}, criteria int) {
	if criteria > 0 {
		s.log.Debug("stack: drained removals", "criteria", criteria, "removed", len(removed))
		if s.hooks.Drained != nil {
			s.hooks.Drained(criteria, len(removed))
		}
	}
	s.removed(removed)
	for _, w := range waiters {
		close(w)
	}
}

func matchesAny(batch []route.Match, r route.Record) bool {
	for _, m := range batch {
		if m.ID != "" {
			if m.ID == r.ID {
				return true
			}
			continue
		}
		if m.Key == "" || m.Index == nil {
			continue
		}
		if m.Matches(r) {
			return true
		}
	}
	return false
}
