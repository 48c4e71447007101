package privacy

import (
	"context"
	"fmt"
	"time"

	"github.com/roamlog/roamlog/internal/config"
	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/internal/store"
	"github.com/roamlog/roamlog/models"
)

// Retention sweeps stored records against per-category retention windows.
// Settings records have no window and are never purged.
type Retention struct {
	cache  store.CacheRepository
	logger *logger.Logger

	windows map[models.DataCategory]time.Duration
}

// NewRetention builds the retention sweeper from configured windows.
func NewRetention(cfg config.Privacy, cache store.CacheRepository, log *logger.Logger) *Retention {
	return &Retention{
		cache:  cache,
		logger: log,
		windows: map[models.DataCategory]time.Duration{
			models.CategoryLocation: cfg.LocationRetention,
			models.CategoryLogs:     cfg.LogRetention,
			models.CategoryUsage:    cfg.LogRetention,
			models.CategoryDevice:   cfg.LogRetention,
		},
	}
}

// Window returns the retention window for category; zero means indefinite.
func (r *Retention) Window(category models.DataCategory) time.Duration {
	return r.windows[category]
}

// Purge removes every record older than its category window. Returns the
// total number of purged records.
func (r *Retention) Purge(ctx context.Context) (int64, error) {
	now := time.Now()

	var total int64
	for category, window := range r.windows {
		if window <= 0 {
			continue
		}

		removed, err := r.cache.PurgeExpired(ctx, category, now.Add(-window))
		if err != nil {
			return total, fmt.Errorf("purge category %s: %w", category, err)
		}
		if removed > 0 {
			r.logger.Info().
				Str("category", string(category)).
				Int64("removed", removed).
				Msg("purged expired records")
		}
		total += removed
	}

	return total, nil
}
