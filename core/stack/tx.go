package stack

import (
	"github.com/jask/routesync/core/route"
)

// Tx groups the optimistic mutations of one command. Records created inside
// the transaction are announced immediately; removals are only announced on
// Commit, so Rollback can bring the pre-command stack back intact.
type Tx struct {
	s        *Store
	snapshot []route.Record
	removed  []route.Record
	done     bool
}

// Begin snapshots the store. Only one transaction should be open at a time;
// the dispatcher guarantees that.
func (s *Store) Begin() *Tx {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Tx{s: s, snapshot: cloneRecords(s.records)}
}

// Snapshot returns the records as they were when the transaction began.
func (tx *Tx) Snapshot() []route.Record {
	return cloneRecords(tx.snapshot)
}

// Append adds rec at the end.
func (tx *Tx) Append(rec route.Record) route.Record {
	return tx.s.Append(rec)
}

// Insert places rec at index, which may equal the current length.
func (tx *Tx) Insert(index int, rec route.Record) (route.Record, error) {
	s := tx.s
	s.mu.Lock()
	if index < 0 || index > len(s.records) {
		n := len(s.records)
		s.mu.Unlock()
		return route.Record{}, route.NewError(route.CodeRouteOutOfBounds, "insert", nil, "index %d not in [0, %d]", index, n)
	}
	if rec.ID == "" {
		rec.ID = route.NewID()
	}
	s.records = append(s.records, route.Record{})
	copy(s.records[index+1:], s.records[index:])
	s.records[index] = rec
	s.renumberLocked()
	rec = cloneRecord(s.records[index])
	s.mu.Unlock()

	s.added(rec)
	return rec, nil
}

// Replace swaps the record at index for rec, which gets a fresh id and keeps
// the index.
func (tx *Tx) Replace(index int, rec route.Record) (route.Record, error) {
	s := tx.s
	s.mu.Lock()
	if index < 0 || index >= len(s.records) {
		n := len(s.records)
		s.mu.Unlock()
		return route.Record{}, route.NewError(route.CodeRouteOutOfBounds, "replace", nil, "index %d not in [0, %d)", index, n)
	}
	old := s.records[index]
	if rec.ID == "" || rec.ID == old.ID {
		rec.ID = route.NewID()
	}
	rec.Index = index
	s.records[index] = rec
	rec = cloneRecord(rec)
	s.mu.Unlock()

	tx.removed = append(tx.removed, old)
	s.added(rec)
	return rec, nil
}

// Truncate keeps the first n records.
func (tx *Tx) Truncate(n int) []route.Record {
	s := tx.s
	s.mu.Lock()
	if n < 0 {
		n = 0
	}
	if n >= len(s.records) {
		s.mu.Unlock()
		return nil
	}
	dropped := cloneRecords(s.records[n:])
	s.records = s.records[:n:n]
	s.mu.Unlock()

	tx.removed = append(tx.removed, dropped...)
	return dropped
}

// Reorder replaces the whole stack with order. Entries whose ID is set must
// name live records and may appear once; entries without an ID become new
// records. The new records are returned in stack order.
func (tx *Tx) Reorder(order []route.Record) ([]route.Record, error) {
	if len(order) == 0 {
		return nil, route.NewError(route.CodeInvalidArguments, "set routes", nil, "resulting stack is empty")
	}
	s := tx.s
	s.mu.Lock()
	live := make(map[route.ID]route.Record, len(s.records))
	for _, r := range s.records {
		live[r.ID] = r
	}
	seen := make(map[route.ID]bool, len(order))
	next := make([]route.Record, 0, len(order))
	var created []route.Record
	for _, r := range order {
		if r.ID == "" {
			r.ID = route.NewID()
			created = append(created, r)
		} else {
			cur, ok := live[r.ID]
			if !ok {
				s.mu.Unlock()
				return nil, route.NewError(route.CodeInvalidArguments, "set routes", nil, "route %s is not in the stack", r.ID.Short())
			}
			if seen[r.ID] {
				s.mu.Unlock()
				return nil, route.NewError(route.CodeInvalidArguments, "set routes", nil, "route %s appears twice", r.ID.Short())
			}
			r = cur
		}
		seen[r.ID] = true
		next = append(next, r)
	}

	var dropped []route.Record
	for _, r := range s.records {
		if !seen[r.ID] {
			dropped = append(dropped, r)
		}
	}
	s.records = next
	s.renumberLocked()
	for i, c := range created {
		for _, r := range s.records {
			if r.ID == c.ID {
				created[i] = cloneRecord(r)
			}
		}
	}
	s.mu.Unlock()

	tx.removed = append(tx.removed, dropped...)
	s.added(created...)
	return created, nil
}

// Commit announces the removals made by the transaction.
func (tx *Tx) Commit() {
	if tx.done {
		return
	}
	tx.done = true
	tx.s.removed(tx.removed)
}

// Rollback restores the pre-transaction stack. Records created by the
// transaction are announced as removed.
func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	s := tx.s
	s.mu.Lock()
	before := make(map[route.ID]bool, len(tx.snapshot))
	for _, r := range tx.snapshot {
		before[r.ID] = true
	}
	var created []route.Record
	for _, r := range s.records {
		if !before[r.ID] {
			created = append(created, r)
		}
	}
	// records replaced or truncated away also count when they were new
	for _, r := range tx.removed {
		if !before[r.ID] {
			created = append(created, r)
		}
	}
	s.records = cloneRecords(tx.snapshot)
	s.mu.Unlock()

	s.removed(created)
}
