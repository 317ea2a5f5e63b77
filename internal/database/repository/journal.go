package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// JournalRepo handles the command journal.
type JournalRepo struct {
	db *sql.DB
}

func NewJournalRepo(db *sql.DB) *JournalRepo { return &JournalRepo{db: db} }

// Append inserts e and returns its row id.
func (r *JournalRepo) Append(ctx context.Context, e CommandEntry) (int64, error) {
	stack, err := json.Marshal(orEmpty(e.Stack))
	if err != nil {
		return 0, fmt.Errorf("encode stack: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO commands(session_id, generation, op, outcome, error_code, error, started_at, duration_us, stack)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		e.SessionID, int64(e.Generation), e.Op, e.Outcome, e.ErrorCode, e.Error,
		e.StartedAt.UTC(), e.Duration.Microseconds(), string(stack))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Recent returns the newest limit entries, newest first.
func (r *JournalRepo) Recent(ctx context.Context, limit int) ([]CommandEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, session_id, generation, op, outcome, error_code, error, started_at, duration_us, stack
	FROM commands ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CommandEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastStack returns the stack left by the newest successful command.
func (r *JournalRepo) LastStack(ctx context.Context) ([]StackEntry, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT stack FROM commands WHERE outcome = ? ORDER BY id DESC LIMIT 1`, OutcomeOK)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var stack []StackEntry
	if err := json.Unmarshal([]byte(raw), &stack); err != nil {
		return nil, fmt.Errorf("decode stack: %w", err)
	}
	if len(stack) == 0 {
		return nil, ErrNotFound
	}
	return stack, nil
}

// CountByOutcome returns row counts keyed by outcome.
func (r *JournalRepo) CountByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM commands GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[outcome] = n
	}
	return out, rows.Err()
}

// Prune keeps the newest keep rows and deletes the rest.
func (r *JournalRepo) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
	DELETE FROM commands WHERE id NOT IN (SELECT id FROM commands ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (CommandEntry, error) {
	var (
		e        CommandEntry
		gen      int64
		duration int64
		raw      string
	)
	if err := s.Scan(&e.ID, &e.SessionID, &gen, &e.Op, &e.Outcome, &e.ErrorCode, &e.Error, &e.StartedAt, &duration, &raw); err != nil {
		return CommandEntry{}, err
	}
	e.Generation = uint64(gen)
	e.Duration = time.Duration(duration) * time.Microsecond
	if err := json.Unmarshal([]byte(raw), &e.Stack); err != nil {
		return CommandEntry{}, fmt.Errorf("decode stack for command %d: %w", e.ID, err)
	}
	return e, nil
}

func orEmpty(s []StackEntry) []StackEntry {
	if s == nil {
		return []StackEntry{}
	}
	return s
}
