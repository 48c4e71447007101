package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
)

type stateRepository struct {
	*DB
	logger *logger.Logger
}

func NewStateRepository(db *DB, logger *logger.Logger) StateRepository {
	return &stateRepository{DB: db, logger: logger}
}

func (r *stateRepository) Save(ctx context.Context, state models.SyncState) error {
	_, err := r.DB.ExecContext(ctx, upsertSyncState,
		state.LastSyncAt,
		state.Pending,
		state.InProgress,
		state.NextSyncAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}

// Get returns the persisted sync state. A store with no state row yet
// returns the zero state, not an error: a fresh installation has nothing to
// restore.
func (r *stateRepository) Get(ctx context.Context) (models.SyncState, error) {
	var state models.SyncState
	var lastSyncAt, nextSyncAt sql.NullTime

	err := r.DB.QueryRowContext(ctx, getSyncState).Scan(
		&lastSyncAt,
		&state.Pending,
		&state.InProgress,
		&nextSyncAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SyncState{}, nil
		}
		return models.SyncState{}, fmt.Errorf("failed to get sync state: %w", err)
	}

	if lastSyncAt.Valid {
		state.LastSyncAt = lastSyncAt.Time
	}
	if nextSyncAt.Valid {
		state.NextSyncAt = nextSyncAt.Time
	}

	return state, nil
}
