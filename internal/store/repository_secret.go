package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roamlog/roamlog/internal/logger"
)

type secretRepository struct {
	*DB
	logger *logger.Logger
}

func NewSecretRepository(db *DB, logger *logger.Logger) SecretRepository {
	return &secretRepository{DB: db, logger: logger}
}

// Put stores value under name unless a secret with that name already
// exists. The installation key must be generated exactly once; silently
// keeping the first value makes concurrent first-run races harmless.
func (r *secretRepository) Put(ctx context.Context, name string, value []byte) error {
	_, err := r.DB.ExecContext(ctx, upsertSecret, name, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store secret %s: %w", name, err)
	}
	return nil
}

func (r *secretRepository) Get(ctx context.Context, name string) ([]byte, error) {
	var value []byte
	err := r.DB.QueryRowContext(ctx, getSecret, name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: secret %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	return value, nil
}
