package store

import (
	"context"
	"fmt"

	"github.com/roamlog/roamlog/internal/config"
	"github.com/roamlog/roamlog/internal/logger"
)

// Storages aggregates every repository over the shared SQLite connection.
// It is the single durable-store handle passed to the engine's components.
type Storages struct {
	Queue     QueueRepository
	State     StateRepository
	Log       LogRepository
	Conflicts ConflictRepository
	Cache     CacheRepository
	Consents  ConsentRepository
	Secrets   SecretRepository

	db *DB
}

// NewStorages opens the database, runs migrations, and wires all
// repositories.
func NewStorages(ctx context.Context, storageCfg config.Storage, syncCfg config.Sync, log *logger.Logger) (*Storages, error) {
	db, err := NewConnectSQLite(ctx, storageCfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect local storage: %w", err)
	}

	return &Storages{
		Queue:     NewQueueRepository(db, log),
		State:     NewStateRepository(db, log),
		Log:       NewLogRepository(db, syncCfg.LogRetention, log),
		Conflicts: NewConflictRepository(db, log),
		Cache:     NewCacheRepository(db, log),
		Consents:  NewConsentRepository(db, log),
		Secrets:   NewSecretRepository(db, log),
		db:        db,
	}, nil
}

// Close releases the underlying database connection.
func (s *Storages) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
