package repository

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("repository: not found")

// Outcome values stored in commands.outcome.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
	OutcomeStale   = "stale"
)

// StackEntry is one route of a journaled stack.
type StackEntry struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// CommandEntry represents a commands row.
type CommandEntry struct {
	ID         int64
	SessionID  string
	Generation uint64
	Op         string
	Outcome    string
	ErrorCode  *string
	Error      *string
	StartedAt  time.Time
	Duration   time.Duration
	Stack      []StackEntry
}
