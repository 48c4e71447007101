package models

import "time"

// SyncTrigger labels what caused a sync-required signal.
type SyncTrigger string

const (
	TriggerUserOperation      SyncTrigger = "user-operation"
	TriggerConnectionRecovery SyncTrigger = "connection-recovery"
	TriggerAppStart           SyncTrigger = "app-start"
	TriggerPeriodic           SyncTrigger = "periodic"
)

// SyncState is the process-wide record of queue health. It is owned
// exclusively by the sync engine and persisted so it survives restarts.
type SyncState struct {
	LastSyncAt time.Time `json:"last_sync_at" db:"last_sync_at"`
	Pending    int       `json:"pending" db:"pending"`
	InProgress bool      `json:"in_progress" db:"in_progress"`
	NextSyncAt time.Time `json:"next_sync_at" db:"next_sync_at"`
}

// Outcome is the terminal result recorded for one replay of one operation.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
	OutcomeConflict Outcome = "conflict"
)

// SyncLogEntry is an append-only audit record of a replay attempt outcome.
// The log is bounded: oldest entries are pruned first.
type SyncLogEntry struct {
	OperationID string        `json:"operation_id" db:"operation_id"`
	Kind        OperationKind `json:"kind" db:"kind"`
	EntityType  string        `json:"entity_type" db:"entity_type"`
	Outcome     Outcome       `json:"outcome" db:"outcome"`
	At          time.Time     `json:"at" db:"at"`
	Duration    time.Duration `json:"duration" db:"duration"`
	Error       string        `json:"error,omitempty" db:"error"`
}

// SyncStats summarizes sync history. Computed from the sync log, never from
// the live queue.
type SyncStats struct {
	TotalProcessed  int           `json:"total_processed"`
	Succeeded       int           `json:"succeeded"`
	Failed          int           `json:"failed"`
	Conflicted      int           `json:"conflicted"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration"`
}

// BatchReport describes the result of one batch-sync run.
type BatchReport struct {
	Batches        int `json:"batches"`
	TotalProcessed int `json:"total_processed"`
	Succeeded      int `json:"succeeded"`
	Failed         int `json:"failed"`
}
