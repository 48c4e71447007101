// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RoamLog Authors

// Package store implements the engine's persistent queue store: durable
// key-value storage for pending operations, sync state, sync logs, conflict
// backups, cache partitions, consent flags, and local secrets, all backed by
// a single embedded SQLite database.
//
// Write ownership follows the engine's resource model: only the sync engine
// writes the queue and sync state, only the cache router and lifecycle
// manager write cache partitions. The privacy and security filters never
// persist anything themselves.
package store

import (
	"context"
	"time"

	"github.com/roamlog/roamlog/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// QueueRepository is the durable pending-operation queue.
type QueueRepository interface {
	// Enqueue appends op to the queue. The operation is durable before
	// Enqueue returns. Fails only if the store itself is unavailable or the
	// identifier is not unique.
	Enqueue(ctx context.Context, op models.Operation) error

	// ListPending returns all queued operations in replay order: priority
	// rank ascending, then enqueue timestamp ascending.
	ListPending(ctx context.Context) ([]models.Operation, error)

	// Get returns the operation with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (models.Operation, error)

	// Delete removes an operation after a successful replay or resolution.
	Delete(ctx context.Context, id string) error

	// IncrementRetries bumps the replay-attempt counter, the only mutable
	// field of a queued operation.
	IncrementRetries(ctx context.Context, id string) error

	// Count returns the number of queued operations.
	Count(ctx context.Context) (int, error)
}

// StateRepository persists the single process-wide sync state row.
type StateRepository interface {
	Save(ctx context.Context, state models.SyncState) error
	Get(ctx context.Context) (models.SyncState, error)
}

// LogRepository is the bounded, append-only sync log.
type LogRepository interface {
	// Append records entry and prunes the log down to the retained count,
	// oldest entries first.
	Append(ctx context.Context, entry models.SyncLogEntry) error
	List(ctx context.Context) ([]models.SyncLogEntry, error)
}

// ConflictRepository persists conflict records and pre-resolution backups.
type ConflictRepository interface {
	SaveConflict(ctx context.Context, rec models.ConflictRecord) error
	ListUnresolved(ctx context.Context) ([]models.ConflictRecord, error)
	GetConflict(ctx context.Context, id string) (models.ConflictRecord, error)
	MarkResolved(ctx context.Context, id string, resolution models.Resolution) error

	// SaveBackup preserves both sides of a conflict keyed by entity
	// identifier, retrievable even after resolution.
	SaveBackup(ctx context.Context, backup models.ConflictBackup) error
	GetBackup(ctx context.Context, entityID string) (models.ConflictBackup, error)
}

// CacheRepository persists cache entries inside named, versioned partitions.
type CacheRepository interface {
	Put(ctx context.Context, entry models.CacheEntry, category models.DataCategory) error
	Get(ctx context.Context, partition, key string) (models.CacheEntry, error)
	ListPartitions(ctx context.Context) ([]string, error)
	DeletePartition(ctx context.Context, partition string) error

	// PurgeExpired deletes entries of category stored before cutoff.
	// Returns the number of rows removed.
	PurgeExpired(ctx context.Context, category models.DataCategory, cutoff time.Time) (int64, error)
}

// ConsentRepository persists per-category consent flags. Absence of a
// recorded flag reads as false.
type ConsentRepository interface {
	Set(ctx context.Context, category models.DataCategory, granted bool) error
	Get(ctx context.Context, category models.DataCategory) (bool, error)
}

// SecretRepository persists local secrets such as the installation
// encryption key. Put never overwrites an existing secret.
type SecretRepository interface {
	Put(ctx context.Context, name string, value []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
}
