package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
)

type logRepository struct {
	*DB
	logger   *logger.Logger
	retained int
}

// NewLogRepository constructs the bounded sync log. retained is the maximum
// entry count kept; older entries fall out FIFO on every Append.
func NewLogRepository(db *DB, retained int, logger *logger.Logger) LogRepository {
	if retained <= 0 {
		retained = 1000
	}
	return &logRepository{DB: db, logger: logger, retained: retained}
}

func (r *logRepository) Append(ctx context.Context, entry models.SyncLogEntry) error {
	log := logger.FromContext(ctx)

	_, err := r.DB.ExecContext(ctx, appendSyncLog,
		entry.OperationID,
		entry.Kind,
		entry.EntityType,
		entry.Outcome,
		entry.At,
		int64(entry.Duration),
		entry.Error,
	)
	if err != nil {
		log.Err(err).
			Str("func", "logRepository.Append").
			Str("operation_id", entry.OperationID).
			Msg("failed to append sync log entry")
		return fmt.Errorf("failed to append sync log entry: %w", err)
	}

	if _, err = r.DB.ExecContext(ctx, pruneSyncLog, r.retained); err != nil {
		return fmt.Errorf("failed to prune sync log: %w", err)
	}

	return nil
}

func (r *logRepository) List(ctx context.Context) ([]models.SyncLogEntry, error) {
	rows, err := r.DB.QueryContext(ctx, listSyncLog)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer rows.Close()

	var entries []models.SyncLogEntry
	for rows.Next() {
		var entry models.SyncLogEntry
		var at time.Time
		var durationNS int64

		scanErr := rows.Scan(
			&entry.OperationID,
			&entry.Kind,
			&entry.EntityType,
			&entry.Outcome,
			&at,
			&durationNS,
			&entry.Error,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan sync log row: %w", scanErr)
		}

		entry.At = at
		entry.Duration = time.Duration(durationNS)
		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate sync log: %w", rowsErr)
	}

	return entries, nil
}
