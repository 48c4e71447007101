package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
)

type conflictRepository struct {
	*DB
	logger *logger.Logger
}

func NewConflictRepository(db *DB, logger *logger.Logger) ConflictRepository {
	return &conflictRepository{DB: db, logger: logger}
}

func (r *conflictRepository) SaveConflict(ctx context.Context, rec models.ConflictRecord) error {
	local, err := marshalJSON(rec.Local)
	if err != nil {
		return err
	}
	remote, err := marshalJSON(rec.Remote)
	if err != nil {
		return err
	}
	options, err := marshalJSON(rec.Options)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, saveConflict,
		rec.ID,
		rec.EntityID,
		rec.EntityType,
		local,
		remote,
		options,
		rec.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save conflict (entity=%s): %w", rec.EntityID, err)
	}

	return nil
}

func (r *conflictRepository) ListUnresolved(ctx context.Context) ([]models.ConflictRecord, error) {
	rows, err := r.DB.QueryContext(ctx, listUnresolvedConflicts)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved conflicts: %w", err)
	}
	defer rows.Close()

	var recs []models.ConflictRecord
	for rows.Next() {
		rec, scanErr := scanConflict(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		recs = append(recs, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate conflicts: %w", rowsErr)
	}

	return recs, nil
}

func (r *conflictRepository) GetConflict(ctx context.Context, id string) (models.ConflictRecord, error) {
	row := r.DB.QueryRowContext(ctx, getConflict, id)

	rec, err := scanConflict(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ConflictRecord{}, fmt.Errorf("%w: conflict %s", ErrNotFound, id)
		}
		return models.ConflictRecord{}, err
	}

	return rec, nil
}

func (r *conflictRepository) MarkResolved(ctx context.Context, id string, resolution models.Resolution) error {
	res, err := r.DB.ExecContext(ctx, markConflictResolved, resolution, id)
	if err != nil {
		return fmt.Errorf("failed to mark conflict resolved (id=%s): %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("%w: conflict %s", ErrNotFound, id)
	}

	return nil
}

func (r *conflictRepository) SaveBackup(ctx context.Context, backup models.ConflictBackup) error {
	local, err := marshalJSON(backup.Local)
	if err != nil {
		return err
	}
	remote, err := marshalJSON(backup.Remote)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, upsertConflictBackup,
		backup.EntityID,
		backup.EntityType,
		local,
		remote,
		backup.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save conflict backup (entity=%s): %w", backup.EntityID, err)
	}

	return nil
}

func (r *conflictRepository) GetBackup(ctx context.Context, entityID string) (models.ConflictBackup, error) {
	var backup models.ConflictBackup
	var local, remote string

	err := r.DB.QueryRowContext(ctx, getConflictBackup, entityID).Scan(
		&backup.EntityID,
		&backup.EntityType,
		&local,
		&remote,
		&backup.SavedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ConflictBackup{}, fmt.Errorf("%w: backup for entity %s", ErrNotFound, entityID)
		}
		return models.ConflictBackup{}, fmt.Errorf("failed to get conflict backup: %w", err)
	}

	if err = unmarshalJSON(local, &backup.Local); err != nil {
		return models.ConflictBackup{}, err
	}
	if err = unmarshalJSON(remote, &backup.Remote); err != nil {
		return models.ConflictBackup{}, err
	}

	return backup, nil
}

func scanConflict(row scanner) (models.ConflictRecord, error) {
	var rec models.ConflictRecord
	var local, remote, options string

	err := row.Scan(
		&rec.ID,
		&rec.EntityID,
		&rec.EntityType,
		&local,
		&remote,
		&options,
		&rec.DetectedAt,
		&rec.Resolved,
		&rec.Resolution,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ConflictRecord{}, err
		}
		return models.ConflictRecord{}, fmt.Errorf("failed to scan conflict row: %w", err)
	}

	if err = unmarshalJSON(local, &rec.Local); err != nil {
		return models.ConflictRecord{}, err
	}
	if err = unmarshalJSON(remote, &rec.Remote); err != nil {
		return models.ConflictRecord{}, err
	}
	if err = unmarshalJSON(options, &rec.Options); err != nil {
		return models.ConflictRecord{}, err
	}

	return rec, nil
}
