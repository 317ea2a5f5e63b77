package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/routesync/internal/database"
	"github.com/jask/routesync/internal/database/repository"
)

func openJournal(t *testing.T) *repository.JournalRepo {
	t.Helper()
	db, err := database.Prepare(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewJournalRepo(db)
}

func strPtr(s string) *string { return &s }

func TestAppendAndRecent(t *testing.T) {
	ctx := context.Background()
	repo := openJournal(t)
	started := database.Now()

	_, err := repo.Append(ctx, repository.CommandEntry{
		SessionID: "s1", Generation: 1, Op: "push", Outcome: repository.OutcomeOK,
		StartedAt: started, Duration: 1500 * time.Microsecond,
		Stack: []repository.StackEntry{{ID: "a", Key: "home"}},
	})
	require.NoError(t, err)
	_, err = repo.Append(ctx, repository.CommandEntry{
		SessionID: "s1", Generation: 2, Op: "pop", Outcome: repository.OutcomeFailed,
		ErrorCode: strPtr("pop failed"), Error: strPtr("boom"), StartedAt: started,
	})
	require.NoError(t, err)

	got, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "pop", got[0].Op)
	require.Equal(t, "pop failed", *got[0].ErrorCode)
	require.Empty(t, got[0].Stack)

	push := got[1]
	require.EqualValues(t, 1, push.Generation)
	require.Nil(t, push.ErrorCode)
	require.Equal(t, 1500*time.Microsecond, push.Duration)
	require.WithinDuration(t, started, push.StartedAt, time.Second)
	require.Equal(t, []repository.StackEntry{{ID: "a", Key: "home"}}, push.Stack)
}

func TestLastStackSkipsFailures(t *testing.T) {
	ctx := context.Background()
	repo := openJournal(t)

	_, err := repo.LastStack(ctx)
	require.ErrorIs(t, err, repository.ErrNotFound)

	ok := []repository.StackEntry{{ID: "a", Key: "home"}, {ID: "b", Key: "list"}}
	_, err = repo.Append(ctx, repository.CommandEntry{SessionID: "s", Op: "push", Outcome: repository.OutcomeOK, StartedAt: database.Now(), Stack: ok})
	require.NoError(t, err)
	_, err = repo.Append(ctx, repository.CommandEntry{SessionID: "s", Op: "push", Outcome: repository.OutcomeFailed, StartedAt: database.Now(),
		Stack: []repository.StackEntry{{ID: "z", Key: "oops"}}})
	require.NoError(t, err)

	got, err := repo.LastStack(ctx)
	require.NoError(t, err)
	require.Equal(t, ok, got)
}

func TestPruneAndCounts(t *testing.T) {
	ctx := context.Background()
	repo := openJournal(t)
	for i := 0; i < 5; i++ {
		outcome := repository.OutcomeOK
		if i%2 == 1 {
			outcome = repository.OutcomeDropped
		}
		_, err := repo.Append(ctx, repository.CommandEntry{SessionID: "s", Generation: uint64(i), Op: "push", Outcome: outcome, StartedAt: database.Now()})
		require.NoError(t, err)
	}
	counts, err := repo.CountByOutcome(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"ok": 3, "dropped": 2}, counts)

	n, err := repo.Prune(ctx, 2)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	got, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.EqualValues(t, 4, got[0].Generation)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	require.NoError(t, database.RunMigrations(path))
	require.NoError(t, database.RunMigrations(path))
}
