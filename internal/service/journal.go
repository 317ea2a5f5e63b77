package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.uber.org/atomic"

	"github.com/jask/routesync/core/dispatch"
	"github.com/jask/routesync/core/route"
	"github.com/jask/routesync/internal/database"
	"github.com/jask/routesync/internal/database/repository"
)

// Journaler writes finished dispatcher commands to the journal. It observes
// the dispatcher without blocking it: entries go through a buffer drained by
// Run, and entries that do not fit are counted and discarded.
type Journaler struct {
	Repo      *repository.JournalRepo
	SessionID string
	Log       *slog.Logger

	once    sync.Once
	mu      sync.Mutex
	closed  bool
	entries chan repository.CommandEntry
	done    chan struct{}

	written  atomic.Int64
	overflow atomic.Int64
}

var _ dispatch.Observer = (*Journaler)(nil)

// NewJournaler returns a journaler with room for buffer pending entries.
func NewJournaler(repo *repository.JournalRepo, sessionID string, log *slog.Logger, buffer int) *Journaler {
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = slog.Default()
	}
	return &Journaler{
		Repo:      repo,
		SessionID: sessionID,
		Log:       log,
		entries:   make(chan repository.CommandEntry, buffer),
		done:      make(chan struct{}),
	}
}

// Run writes entries until ctx ends or Close is called, then flushes what is
// still buffered.
func (j *Journaler) Run(ctx context.Context) error {
	defer close(j.done)
	for {
		select {
		case e, ok := <-j.entries:
			if !ok {
				return nil
			}
			j.write(context.WithoutCancel(ctx), e)
		case <-ctx.Done():
			j.Close()
			for e := range j.entries {
				j.write(context.WithoutCancel(ctx), e)
			}
			return nil
		}
	}
}

// Close stops accepting entries. Run returns once the buffer is written.
func (j *Journaler) Close() {
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.entries)
		j.mu.Unlock()
	})
}

// Wait blocks until Run has returned.
func (j *Journaler) Wait() { <-j.done }

// Written returns the number of entries stored.
func (j *Journaler) Written() int64 { return j.written.Load() }

// Overflow returns the number of entries discarded because the buffer was full.
func (j *Journaler) Overflow() int64 { return j.overflow.Load() }

func (j *Journaler) Finished(r dispatch.Result) {
	e := repository.CommandEntry{
		SessionID:  j.SessionID,
		Generation: r.Generation,
		Op:         string(r.Op),
		Outcome:    repository.OutcomeOK,
		StartedAt:  r.Started,
		Duration:   r.Duration,
		Stack:      stackEntries(r.Stack),
	}
	if r.Err != nil {
		e.Outcome = repository.OutcomeFailed
		code, msg := r.Code.String(), r.Err.Error()
		e.ErrorCode, e.Error = &code, &msg
	}
	j.enqueue(e)
}

func (j *Journaler) Dropped(op dispatch.Op, reason string) {
	j.enqueue(repository.CommandEntry{
		SessionID: j.SessionID,
		Op:        string(op),
		Outcome:   repository.OutcomeDropped,
		Error:     &reason,
		StartedAt: database.Now(),
	})
}

func (j *Journaler) Stale(op dispatch.Op, gen uint64) {
	j.enqueue(repository.CommandEntry{
		SessionID:  j.SessionID,
		Generation: gen,
		Op:         string(op),
		Outcome:    repository.OutcomeStale,
		StartedAt:  database.Now(),
	})
}

func (j *Journaler) enqueue(e repository.CommandEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.entries <- e:
	default:
		j.overflow.Inc()
		j.Log.Warn("journal: buffer full, entry discarded", "op", e.Op, "generation", e.Generation)
	}
}

func (j *Journaler) write(ctx context.Context, e repository.CommandEntry) {
	if _, err := j.Repo.Append(ctx, e); err != nil {
		j.Log.Error("journal: append failed", "op", e.Op, "err", err)
		return
	}
	j.written.Inc()
}

func stackEntries(recs []route.Record) []repository.StackEntry {
	out := make([]repository.StackEntry, len(recs))
	for i, r := range recs {
		out[i] = repository.StackEntry{ID: string(r.ID), Key: r.Key}
	}
	return out
}

// RestoreItems turns the last journaled stack into items for Navigator.Start.
// Keys no longer registered are skipped; nothing usable yields
// repository.ErrNotFound.
func RestoreItems(ctx context.Context, repo *repository.JournalRepo, templates route.Templates, log *slog.Logger) ([]route.Item, error) {
	stack, err := repo.LastStack(ctx)
	if err != nil {
		return nil, err
	}
	var items []route.Item
	for _, e := range stack {
		if _, err := templates.Lookup(e.Key); err != nil {
			log.Warn("journal: skipping unknown route on restore", "key", e.Key)
			continue
		}
		items = append(items, route.Item{Key: e.Key})
	}
	if len(items) == 0 {
		return nil, errors.Join(repository.ErrNotFound, errors.New("no restorable routes"))
	}
	return items, nil
}
