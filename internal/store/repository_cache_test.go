package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCacheRepo(t *testing.T, matcher sqlmock.QueryMatcher) (CacheRepository, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(matcher))
	require.NoError(t, err, "failed to create sqlmock")
	t.Cleanup(func() { conn.Close() })

	db := &DB{DB: conn, logger: logger.Nop()}
	return NewCacheRepository(db, logger.Nop()), mock
}

func TestCacheRepository_PutAndGet(t *testing.T) {
	repo, mock := newTestCacheRepo(t, sqlmock.QueryMatcherEqual)
	now := time.Now()

	mock.ExpectExec(upsertCacheEntry).
		WithArgs("runtime-v2", "/api/trips", 200, `{"Content-Type":"application/json"}`,
			[]byte(`[]`), now, nil, true, false, models.CategoryUsage).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Put(context.Background(), models.CacheEntry{
		Partition:  "runtime-v2",
		Key:        "/api/trips",
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(`[]`),
		StoredAt:   now,
		Cacheable:  true,
	}, models.CategoryUsage)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{
		"partition", "key", "status_code", "headers", "body", "stored_at", "expires_at", "cacheable", "encrypted",
	}).AddRow("runtime-v2", "/api/trips", 200, `{"Content-Type":"application/json"}`, []byte(`[]`), now, nil, true, false)

	mock.ExpectQuery(getCacheEntry).
		WithArgs("runtime-v2", "/api/trips").
		WillReturnRows(rows)

	entry, err := repo.Get(context.Background(), "runtime-v2", "/api/trips")
	require.NoError(t, err)
	assert.Equal(t, 200, entry.StatusCode)
	assert.Equal(t, "application/json", entry.Headers["Content-Type"])
	assert.True(t, entry.ExpiresAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepository_Get_Missing(t *testing.T) {
	repo, mock := newTestCacheRepo(t, sqlmock.QueryMatcherEqual)

	mock.ExpectQuery(getCacheEntry).
		WithArgs("runtime-v2", "/missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"partition", "key", "status_code", "headers", "body", "stored_at", "expires_at", "cacheable", "encrypted",
		}))

	_, err := repo.Get(context.Background(), "runtime-v2", "/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheRepository_PartitionLifecycle(t *testing.T) {
	repo, mock := newTestCacheRepo(t, sqlmock.QueryMatcherEqual)

	mock.ExpectQuery(listCachePartitions).
		WillReturnRows(sqlmock.NewRows([]string{"partition"}).
			AddRow("app-shell-v1").
			AddRow("runtime-v2"))
	mock.ExpectExec(deleteCachePartition).
		WithArgs("app-shell-v1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	partitions, err := repo.ListPartitions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"app-shell-v1", "runtime-v2"}, partitions)

	require.NoError(t, repo.DeletePartition(context.Background(), "app-shell-v1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepository_PurgeExpired(t *testing.T) {
	// The purge statement is built by squirrel, so match loosely by regexp.
	repo, mock := newTestCacheRepo(t, sqlmock.QueryMatcherRegexp)

	mock.ExpectExec(`DELETE FROM cache_entries WHERE .*category.*`).
		WillReturnResult(sqlmock.NewResult(0, 4))

	removed, err := repo.PurgeExpired(context.Background(), models.CategoryLocation, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)
}
