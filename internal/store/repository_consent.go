package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
)

type consentRepository struct {
	*DB
	logger *logger.Logger
}

func NewConsentRepository(db *DB, logger *logger.Logger) ConsentRepository {
	return &consentRepository{DB: db, logger: logger}
}

func (r *consentRepository) Set(ctx context.Context, category models.DataCategory, granted bool) error {
	_, err := r.DB.ExecContext(ctx, upsertConsent, category, granted, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record consent (category=%s): %w", category, err)
	}
	return nil
}

// Get returns the recorded consent flag for category. A category with no
// recorded flag reads as false: consent is default-deny.
func (r *consentRepository) Get(ctx context.Context, category models.DataCategory) (bool, error) {
	var granted bool
	err := r.DB.QueryRowContext(ctx, getConsent, category).Scan(&granted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get consent (category=%s): %w", category, err)
	}
	return granted, nil
}
