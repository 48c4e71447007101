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

func newTestQueueRepo(t *testing.T) (QueueRepository, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err, "failed to create sqlmock")
	t.Cleanup(func() { conn.Close() })

	db := &DB{DB: conn, logger: logger.Nop()}
	return NewQueueRepository(db, logger.Nop()), mock
}

func TestQueueRepository_Enqueue(t *testing.T) {
	repo, mock := newTestQueueRepo(t)
	now := time.Now()

	mock.ExpectExec(enqueueOperation).
		WithArgs("op-1", models.OperationUpdate, "driving-log", `{"id":"1"}`, now, models.PriorityNormal, 0, true, false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Enqueue(context.Background(), models.Operation{
		ID:         "op-1",
		Kind:       models.OperationUpdate,
		EntityType: "driving-log",
		Payload:    map[string]any{"id": "1"},
		CreatedAt:  now,
		Priority:   models.PriorityNormal,
		Cacheable:  true,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueRepository_ListPending_ReplayOrder(t *testing.T) {
	repo, mock := newTestQueueRepo(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "kind", "entity_type", "payload", "created_at", "priority", "retries", "cacheable", "encrypted",
	}).
		AddRow("op-high", "create", "driving-log", `{}`, now, "high", 0, true, false).
		AddRow("op-normal", "update", "driving-log", `{"id":"1"}`, now, "normal", 1, true, false).
		AddRow("op-low", "delete", "driving-log", `{"id":"2"}`, now, "low", 0, true, false)

	mock.ExpectQuery(listPendingOperations).WillReturnRows(rows)

	ops, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, ops, 3)

	assert.Equal(t, "op-high", ops[0].ID)
	assert.Equal(t, "op-normal", ops[1].ID)
	assert.Equal(t, "op-low", ops[2].ID)
	assert.Equal(t, map[string]any{"id": "1"}, ops[1].Payload)
	assert.Equal(t, 1, ops[1].Retries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueRepository_Get_NotFound(t *testing.T) {
	repo, mock := newTestQueueRepo(t)

	mock.ExpectQuery(getOperation).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "kind", "entity_type", "payload", "created_at", "priority", "retries", "cacheable", "encrypted",
		}))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueueRepository_DeleteAndRetries(t *testing.T) {
	repo, mock := newTestQueueRepo(t)

	mock.ExpectExec(deleteOperation).
		WithArgs("op-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(incrementOperationRetries).
		WithArgs("op-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "op-1"))
	require.NoError(t, repo.IncrementRetries(context.Background(), "op-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueRepository_Count(t *testing.T) {
	repo, mock := newTestQueueRepo(t)

	mock.ExpectQuery(countOperations).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
