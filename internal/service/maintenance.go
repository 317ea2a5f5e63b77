package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/routesync/internal/database"
	"github.com/jask/routesync/internal/database/repository"
)

// MaintenanceService houses destructive/ops actions surfaced through the inspector.
type MaintenanceService struct {
	DB      *sql.DB
	Journal *repository.JournalRepo
}

// Reset wipes the journal. It keeps the schema intact so the app can continue running.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM commands"); err != nil {
			return fmt.Errorf("reset table commands: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return nil
}

// Trim keeps the newest keep journal entries.
func (s *MaintenanceService) Trim(ctx context.Context, keep int) (int64, error) {
	if s.Journal == nil {
		return 0, fmt.Errorf("maintenance: journal not configured")
	}
	if keep < 0 {
		return 0, fmt.Errorf("maintenance: keep must not be negative")
	}
	return s.Journal.Prune(ctx, keep)
}
