// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RoamLog Authors

// Package syncengine implements the durable operation queue: enqueueing
// deferred mutations, draining them against the remote endpoint in priority
// order with bounded retries, detecting conflicts, and keeping the sync
// state, log, and statistics.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/roamlog/roamlog/internal/adapter"
	"github.com/roamlog/roamlog/internal/config"
	"github.com/roamlog/roamlog/internal/events"
	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/internal/privacy"
	"github.com/roamlog/roamlog/internal/store"
	"github.com/roamlog/roamlog/models"
)

// Replays per operation per drain: the initial attempt plus two retries.
const maxReplayAttempts = 3

var (
	// ErrConsentDenied rejects an enqueue when the usage-data consent flag
	// has not been granted.
	ErrConsentDenied = errors.New("consent not granted")

	// ErrSensitivePayload rejects an enqueue whose payload may not be
	// persisted at all.
	ErrSensitivePayload = errors.New("payload contains sensitive fields")
)

// Engine owns the pending queue and the sync state. All queue writes go
// through it.
type Engine struct {
	queue     store.QueueRepository
	state     store.StateRepository
	log       store.LogRepository
	conflicts store.ConflictRepository
	remote    adapter.RemoteAdapter
	entity    adapter.RemoteEntity
	privacy   *privacy.Filter
	bus       *events.Bus
	logger    *logger.Logger
	validate  *validator.Validate

	retryBase time.Duration
	batchSize int

	// mu serializes drains; the persisted InProgress flag coalesces
	// overlapping triggers across callers.
	mu sync.Mutex
}

// NewEngine wires the sync engine. entity may be nil; conflict records then
// carry an empty remote side.
func NewEngine(
	storages *store.Storages,
	remote adapter.RemoteAdapter,
	entity adapter.RemoteEntity,
	priv *privacy.Filter,
	bus *events.Bus,
	cfg config.Sync,
	log *logger.Logger,
) *Engine {
	retryBase := cfg.RetryBaseInterval
	if retryBase <= 0 {
		retryBase = 2 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	e := &Engine{
		queue:     storages.Queue,
		state:     storages.State,
		log:       storages.Log,
		conflicts: storages.Conflicts,
		remote:    remote,
		entity:    entity,
		privacy:   priv,
		bus:       bus,
		logger:    log,
		validate:  validator.New(),
		retryBase: retryBase,
		batchSize: batchSize,
	}
	e.releaseStaleClaim()

	return e
}

// releaseStaleClaim clears an in-progress marker left behind by a run that
// stopped between claiming and releasing it. Runs once at construction,
// before any drain of this process can hold the claim; without it a crash
// mid-drain would coalesce every future drain into a no-op.
func (e *Engine) releaseStaleClaim() {
	ctx := context.Background()

	st, err := e.state.Get(ctx)
	if err != nil || !st.InProgress {
		return
	}

	st.InProgress = false
	if err := e.state.Save(ctx, st); err != nil {
		e.logger.Error().Err(err).Msg("failed to release stale sync claim")
		return
	}
	e.logger.Warn().Msg("released sync in-progress claim left by a previous run")
}

// Enqueue validates and durably appends one operation, then signals that a
// sync is required. The operation is on disk before Enqueue returns.
//
// Payloads carrying sensitive fields are rejected outright: they may not be
// persisted anywhere, the queue included. Payloads carrying identifying
// fields are accepted and tagged so cache copies are encrypted at rest.
func (e *Engine) Enqueue(ctx context.Context, req models.EnqueueRequest) (models.Operation, error) {
	if err := e.validate.Struct(req); err != nil {
		return models.Operation{}, fmt.Errorf("%w: %v", adapter.ErrValidation, err)
	}

	granted, err := e.privacy.ConsentGranted(ctx, models.CategoryUsage)
	if err != nil {
		return models.Operation{}, err
	}
	if !granted {
		return models.Operation{}, fmt.Errorf("%w: category %s", ErrConsentDenied, models.CategoryUsage)
	}

	if !e.privacy.ShouldCache(req.Payload) {
		return models.Operation{}, ErrSensitivePayload
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	op := models.Operation{
		ID:         uuid.NewString(),
		Kind:       req.Kind,
		EntityType: req.EntityType,
		Payload:    req.Payload,
		CreatedAt:  time.Now(),
		Priority:   priority,
		Cacheable:  true,
		Encrypted:  e.privacy.NeedsEncryption(req.Payload),
	}

	if err := e.queue.Enqueue(ctx, op); err != nil {
		return models.Operation{}, fmt.Errorf("enqueue %s %s: %w", op.Kind, op.EntityType, err)
	}

	e.refreshPending(ctx)
	e.bus.Publish(models.TopicSyncRequired, models.SyncRequiredEvent{Trigger: models.TriggerUserOperation})

	e.logger.Info().
		Str("operation_id", op.ID).
		Str("kind", string(op.Kind)).
		Str("entity_type", op.EntityType).
		Str("priority", string(op.Priority)).
		Msg("operation enqueued")

	return op, nil
}

// Drain replays the whole pending queue in priority order. A drain already
// in progress absorbs the call; overlapping triggers produce one pass.
func (e *Engine) Drain(ctx context.Context) error {
	_, err := e.drain(ctx, 0)
	return err
}

// DrainBatch replays the pending queue in slices of size operations and
// reports per-batch totals. size <= 0 uses the configured batch size.
func (e *Engine) DrainBatch(ctx context.Context, size int) (models.BatchReport, error) {
	if size <= 0 {
		size = e.batchSize
	}
	return e.drain(ctx, size)
}

// drain is the shared drain pass. batchSize 0 means a single batch.
func (e *Engine) drain(ctx context.Context, batchSize int) (models.BatchReport, error) {
	claimed, err := e.beginDrain(ctx)
	if err != nil {
		return models.BatchReport{}, err
	}
	if !claimed {
		e.logger.Debug().Msg("drain already in progress, coalesced")
		return models.BatchReport{}, nil
	}
	defer e.finishDrain(ctx)

	if err := e.coalescePendingUpdates(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("pending update coalescing failed")
	}

	ops, err := e.queue.ListPending(ctx)
	if err != nil {
		return models.BatchReport{}, fmt.Errorf("list pending operations: %w", err)
	}
	if len(ops) == 0 {
		return models.BatchReport{}, nil
	}

	report := models.BatchReport{}
	if batchSize == 0 {
		batchSize = len(ops)
	}

	for start := 0; start < len(ops); start += batchSize {
		end := start + batchSize
		if end > len(ops) {
			end = len(ops)
		}
		report.Batches++

		for _, op := range ops[start:end] {
			outcome := e.process(ctx, op)
			report.TotalProcessed++
			if outcome == models.OutcomeSuccess {
				report.Succeeded++
			} else {
				report.Failed++
			}
		}
	}

	e.logger.Info().
		Int("batches", report.Batches).
		Int("processed", report.TotalProcessed).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("drain finished")

	return report, nil
}

// process replays one operation to a terminal outcome: deleted on success,
// quarantined on conflict, kept in the queue on failure.
func (e *Engine) process(ctx context.Context, op models.Operation) models.Outcome {
	started := time.Now()
	err := e.replayWithRetry(ctx, op)

	var outcome models.Outcome
	switch {
	case err == nil:
		outcome = models.OutcomeSuccess
		if delErr := e.queue.Delete(ctx, op.ID); delErr != nil {
			e.logger.Error().Str("operation_id", op.ID).Err(delErr).Msg("failed to remove replayed operation")
		}
	case errors.Is(err, adapter.ErrConflict):
		outcome = models.OutcomeConflict
		e.quarantineConflict(ctx, op)
	default:
		// The operation stays queued for the next drain.
		outcome = models.OutcomeFailure
		e.logger.Warn().Str("operation_id", op.ID).Err(err).Msg("operation replay failed, kept in queue")
	}

	entry := models.SyncLogEntry{
		OperationID: op.ID,
		Kind:        op.Kind,
		EntityType:  op.EntityType,
		Outcome:     outcome,
		At:          time.Now(),
		Duration:    time.Since(started),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if logErr := e.log.Append(ctx, entry); logErr != nil {
		e.logger.Error().Str("operation_id", op.ID).Err(logErr).Msg("failed to append sync log entry")
	}

	e.bus.Publish(models.TopicOperationProcessed, models.OperationProcessedEvent{
		OperationID: op.ID,
		Outcome:     outcome,
	})

	return outcome
}

// replayWithRetry pushes op to the remote with linear backoff: attempt n
// waits n times the base interval, at most maxReplayAttempts attempts.
// Non-retryable errors (validation, conflict, auth) stop immediately.
func (e *Engine) replayWithRetry(ctx context.Context, op models.Operation) error {
	attempt := 0
	backoff := retry.WithMaxRetries(maxReplayAttempts-1, retry.BackoffFunc(func() (time.Duration, bool) {
		return time.Duration(attempt) * e.retryBase, false
	}))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		err := e.remote.Replay(ctx, op)
		if err == nil {
			return nil
		}
		if !adapter.Retryable(err) {
			return err
		}

		if incErr := e.queue.IncrementRetries(ctx, op.ID); incErr != nil {
			e.logger.Error().Str("operation_id", op.ID).Err(incErr).Msg("failed to record retry")
		}
		e.bus.Publish(models.TopicRetryAttempt, models.RetryAttemptEvent{
			OperationID: op.ID,
			Attempt:     attempt,
			Error:       err.Error(),
		})

		return retry.RetryableError(err)
	})
}

// beginDrain claims the in-progress flag. Returns false when another drain
// holds it. A broken state store is an error, not a coalesce: the caller
// must see that nothing was drained.
func (e *Engine) beginDrain(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("read sync state: %w", err)
	}
	if st.InProgress {
		return false, nil
	}

	st.InProgress = true
	if err := e.state.Save(ctx, st); err != nil {
		return false, fmt.Errorf("claim sync state: %w", err)
	}
	e.bus.Publish(models.TopicStateChange, st)
	return true, nil
}

func (e *Engine) finishDrain(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state.Get(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to read sync state")
		return
	}

	st.InProgress = false
	st.LastSyncAt = time.Now()
	if pending, cntErr := e.queue.Count(ctx); cntErr == nil {
		st.Pending = pending
	}

	if err := e.state.Save(ctx, st); err != nil {
		e.logger.Error().Err(err).Msg("failed to release sync state")
		return
	}
	e.bus.Publish(models.TopicStateChange, st)
}

// refreshPending updates the persisted pending counter outside a drain.
func (e *Engine) refreshPending(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.state.Get(ctx)
	if err != nil {
		return
	}
	if pending, cntErr := e.queue.Count(ctx); cntErr == nil {
		st.Pending = pending
	}
	if err := e.state.Save(ctx, st); err != nil {
		e.logger.Error().Err(err).Msg("failed to update pending counter")
		return
	}
	e.bus.Publish(models.TopicStateChange, st)
}

// State returns the persisted sync state with a live pending count.
func (e *Engine) State(ctx context.Context) (models.SyncState, error) {
	st, err := e.state.Get(ctx)
	if err != nil {
		return models.SyncState{}, fmt.Errorf("read sync state: %w", err)
	}
	if pending, cntErr := e.queue.Count(ctx); cntErr == nil {
		st.Pending = pending
	}
	return st, nil
}

// Stats summarizes the sync log. Computed from recorded outcomes, never
// from the live queue.
func (e *Engine) Stats(ctx context.Context) (models.SyncStats, error) {
	entries, err := e.log.List(ctx)
	if err != nil {
		return models.SyncStats{}, fmt.Errorf("list sync log: %w", err)
	}

	stats := models.SyncStats{TotalProcessed: len(entries)}
	var total time.Duration
	for _, entry := range entries {
		total += entry.Duration
		switch entry.Outcome {
		case models.OutcomeSuccess:
			stats.Succeeded++
		case models.OutcomeConflict:
			stats.Conflicted++
		default:
			stats.Failed++
		}
	}

	if stats.TotalProcessed > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.TotalProcessed)
		stats.AverageDuration = total / time.Duration(stats.TotalProcessed)
	}

	return stats, nil
}
