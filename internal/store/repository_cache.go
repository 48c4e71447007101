package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
)

type cacheRepository struct {
	*DB
	logger *logger.Logger
}

func NewCacheRepository(db *DB, logger *logger.Logger) CacheRepository {
	return &cacheRepository{DB: db, logger: logger}
}

func (r *cacheRepository) Put(ctx context.Context, entry models.CacheEntry, category models.DataCategory) error {
	log := logger.FromContext(ctx)

	headers, err := marshalJSON(entry.Headers)
	if err != nil {
		return err
	}

	var expiresAt any
	if !entry.ExpiresAt.IsZero() {
		expiresAt = entry.ExpiresAt
	}

	_, err = r.DB.ExecContext(ctx, upsertCacheEntry,
		entry.Partition,
		entry.Key,
		entry.StatusCode,
		headers,
		entry.Body,
		entry.StoredAt,
		expiresAt,
		entry.Cacheable,
		entry.Encrypted,
		category,
	)
	if err != nil {
		log.Err(err).
			Str("func", "cacheRepository.Put").
			Str("partition", entry.Partition).
			Str("key", entry.Key).
			Msg("failed to upsert cache entry")
		return fmt.Errorf("failed to put cache entry (partition=%s key=%s): %w", entry.Partition, entry.Key, err)
	}

	return nil
}

func (r *cacheRepository) Get(ctx context.Context, partition, key string) (models.CacheEntry, error) {
	var entry models.CacheEntry
	var headers string
	var expiresAt sql.NullTime

	err := r.DB.QueryRowContext(ctx, getCacheEntry, partition, key).Scan(
		&entry.Partition,
		&entry.Key,
		&entry.StatusCode,
		&headers,
		&entry.Body,
		&entry.StoredAt,
		&expiresAt,
		&entry.Cacheable,
		&entry.Encrypted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CacheEntry{}, fmt.Errorf("%w: cache entry %s/%s", ErrNotFound, partition, key)
		}
		return models.CacheEntry{}, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if err = unmarshalJSON(headers, &entry.Headers); err != nil {
		return models.CacheEntry{}, err
	}
	if expiresAt.Valid {
		entry.ExpiresAt = expiresAt.Time
	}

	return entry, nil
}

func (r *cacheRepository) ListPartitions(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, listCachePartitions)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache partitions: %w", err)
	}
	defer rows.Close()

	var partitions []string
	for rows.Next() {
		var p string
		if scanErr := rows.Scan(&p); scanErr != nil {
			return nil, fmt.Errorf("failed to scan partition name: %w", scanErr)
		}
		partitions = append(partitions, p)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate partitions: %w", rowsErr)
	}

	return partitions, nil
}

func (r *cacheRepository) DeletePartition(ctx context.Context, partition string) error {
	if _, err := r.DB.ExecContext(ctx, deleteCachePartition, partition); err != nil {
		return fmt.Errorf("failed to delete cache partition %s: %w", partition, err)
	}
	return nil
}

// PurgeExpired removes entries of one retention category stored before
// cutoff. The statement is built dynamically because retention sweeps
// combine the category filter with either stored_at or the per-entry
// expires_at, whichever is stricter.
func (r *cacheRepository) PurgeExpired(ctx context.Context, category models.DataCategory, cutoff time.Time) (int64, error) {
	log := logger.FromContext(ctx)

	query, args, err := sq.Delete("cache_entries").
		Where(sq.Eq{"category": string(category)}).
		Where(sq.Or{
			sq.Lt{"stored_at": cutoff},
			sq.And{
				sq.NotEq{"expires_at": nil},
				sq.Lt{"expires_at": time.Now()},
			},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build purge query: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "cacheRepository.PurgeExpired").
			Str("category", string(category)).
			Msg("failed to purge expired cache entries")
		return 0, fmt.Errorf("failed to purge expired cache entries: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}

	return removed, nil
}
