package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
)

type queueRepository struct {
	*DB
	logger *logger.Logger
}

func NewQueueRepository(db *DB, logger *logger.Logger) QueueRepository {
	return &queueRepository{DB: db, logger: logger}
}

func (r *queueRepository) Enqueue(ctx context.Context, op models.Operation) error {
	log := logger.FromContext(ctx)

	payload, err := marshalJSON(op.Payload)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, enqueueOperation,
		op.ID,
		op.Kind,
		op.EntityType,
		payload,
		op.CreatedAt,
		op.Priority,
		op.Retries,
		op.Cacheable,
		op.Encrypted,
	)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.Enqueue").
			Str("operation_id", op.ID).
			Msg("failed to insert operation")
		return fmt.Errorf("failed to enqueue operation (id=%s): %w", op.ID, err)
	}

	return nil
}

func (r *queueRepository) ListPending(ctx context.Context) ([]models.Operation, error) {
	log := logger.FromContext(ctx)

	rows, err := r.DB.QueryContext(ctx, listPendingOperations)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.ListPending").
			Msg("failed to query pending operations")
		return nil, fmt.Errorf("failed to query pending operations: %w", err)
	}
	defer rows.Close()

	var ops []models.Operation
	for rows.Next() {
		op, scanErr := scanOperation(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "queueRepository.ListPending").
				Msg("failed to scan operation row")
			return nil, scanErr
		}
		ops = append(ops, op)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate pending operations: %w", rowsErr)
	}

	return ops, nil
}

func (r *queueRepository) Get(ctx context.Context, id string) (models.Operation, error) {
	row := r.DB.QueryRowContext(ctx, getOperation, id)

	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Operation{}, fmt.Errorf("%w: operation %s", ErrNotFound, id)
		}
		return models.Operation{}, err
	}

	return op, nil
}

func (r *queueRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, deleteOperation, id); err != nil {
		return fmt.Errorf("failed to delete operation (id=%s): %w", id, err)
	}
	return nil
}

func (r *queueRepository) IncrementRetries(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, incrementOperationRetries, id); err != nil {
		return fmt.Errorf("failed to increment retries (id=%s): %w", id, err)
	}
	return nil
}

func (r *queueRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, countOperations).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return n, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(row scanner) (models.Operation, error) {
	var op models.Operation
	var payload string

	err := row.Scan(
		&op.ID,
		&op.Kind,
		&op.EntityType,
		&payload,
		&op.CreatedAt,
		&op.Priority,
		&op.Retries,
		&op.Cacheable,
		&op.Encrypted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Operation{}, err
		}
		return models.Operation{}, fmt.Errorf("failed to scan operation row: %w", err)
	}

	if err = unmarshalJSON(payload, &op.Payload); err != nil {
		return models.Operation{}, err
	}

	return op, nil
}
