package syncengine

import (
	"context"
	"fmt"
	"time"

	"dario.cat/mergo"
	"github.com/google/uuid"

	"github.com/roamlog/roamlog/models"
)

// coalescePendingUpdates groups queued updates per entity before a drain.
// Updates touching disjoint field sets collapse into a single operation
// carrying the union of their fields; updates touching the same field are
// pulled out of the queue as a conflict, with both sides backed up before
// anything is discarded.
func (e *Engine) coalescePendingUpdates(ctx context.Context) error {
	ops, err := e.queue.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending operations: %w", err)
	}

	groups := make(map[string][]models.Operation)
	for _, op := range ops {
		if op.Kind != models.OperationUpdate || op.EntityID() == "" {
			continue
		}
		key := op.EntityType + "/" + op.EntityID()
		groups[key] = append(groups[key], op)
	}

	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		if err := e.coalesceGroup(ctx, group); err != nil {
			return err
		}
	}

	return nil
}

// coalesceGroup folds one entity's updates together, oldest first.
func (e *Engine) coalesceGroup(ctx context.Context, group []models.Operation) error {
	base := group[0]
	merged := false

	for _, next := range group[1:] {
		if field, clash := overlappingField(base.Payload, next.Payload); clash {
			e.logger.Info().
				Str("entity_id", base.EntityID()).
				Str("entity_type", base.EntityType).
				Str("field", field).
				Msg("conflicting pending updates detected")
			return e.recordConflict(ctx, base, next)
		}

		// Disjoint field sets: union into the older operation.
		if err := mergo.Merge(&base.Payload, next.Payload); err != nil {
			return fmt.Errorf("merge pending updates for %s: %w", base.EntityID(), err)
		}
		if err := e.queue.Delete(ctx, next.ID); err != nil {
			return fmt.Errorf("remove merged operation %s: %w", next.ID, err)
		}
		merged = true
	}

	if !merged {
		return nil
	}

	// Rewrite the surviving operation with the merged payload, keeping its
	// identity and queue position.
	if err := e.queue.Delete(ctx, base.ID); err != nil {
		return fmt.Errorf("rewrite merged operation %s: %w", base.ID, err)
	}
	if err := e.queue.Enqueue(ctx, base); err != nil {
		return fmt.Errorf("rewrite merged operation %s: %w", base.ID, err)
	}

	return nil
}

// overlappingField returns a field (other than the identifier) present in
// both payloads. Auto-merge requires strictly disjoint field sets; even two
// identical values for the same field escalate, since neither side can be
// proven to supersede the other.
func overlappingField(a, b map[string]any) (string, bool) {
	for key := range a {
		if key == "id" {
			continue
		}
		if _, ok := b[key]; ok {
			return key, true
		}
	}
	return "", false
}

// recordConflict quarantines two incompatible local updates: both sides are
// backed up first, then a conflict record is surfaced and the operations
// leave the queue until resolution.
func (e *Engine) recordConflict(ctx context.Context, older, newer models.Operation) error {
	now := time.Now()

	backup := models.ConflictBackup{
		EntityID:   older.EntityID(),
		EntityType: older.EntityType,
		Local:      older.Payload,
		Remote:     newer.Payload,
		SavedAt:    now,
	}
	if err := e.conflicts.SaveBackup(ctx, backup); err != nil {
		return fmt.Errorf("back up conflict sides for %s: %w", older.EntityID(), err)
	}

	rec := models.ConflictRecord{
		ID:         uuid.NewString(),
		EntityID:   older.EntityID(),
		EntityType: older.EntityType,
		Local:      older.Payload,
		Remote:     newer.Payload,
		Options:    models.DefaultConflictOptions(),
		DetectedAt: now,
	}
	if err := e.conflicts.SaveConflict(ctx, rec); err != nil {
		return fmt.Errorf("save conflict record for %s: %w", older.EntityID(), err)
	}

	for _, op := range []models.Operation{older, newer} {
		if err := e.queue.Delete(ctx, op.ID); err != nil {
			return fmt.Errorf("quarantine operation %s: %w", op.ID, err)
		}
	}

	return nil
}

// quarantineConflict handles a replay rejected by the server with a
// conflict: the server copy is fetched for the remote side when possible,
// both sides are backed up, and the operation leaves the queue.
func (e *Engine) quarantineConflict(ctx context.Context, op models.Operation) {
	remote := map[string]any{}
	if e.entity != nil && op.EntityID() != "" {
		fetched, err := e.entity.GetEntity(ctx, op.EntityType, op.EntityID())
		if err != nil {
			e.logger.Warn().
				Str("entity_id", op.EntityID()).
				Err(err).
				Msg("could not fetch remote side of conflict")
		} else {
			remote = fetched
		}
	}

	now := time.Now()
	backup := models.ConflictBackup{
		EntityID:   op.EntityID(),
		EntityType: op.EntityType,
		Local:      op.Payload,
		Remote:     remote,
		SavedAt:    now,
	}
	if err := e.conflicts.SaveBackup(ctx, backup); err != nil {
		e.logger.Error().Str("entity_id", op.EntityID()).Err(err).Msg("failed to back up conflict sides")
		return
	}

	rec := models.ConflictRecord{
		ID:         uuid.NewString(),
		EntityID:   op.EntityID(),
		EntityType: op.EntityType,
		Local:      op.Payload,
		Remote:     remote,
		Options:    models.DefaultConflictOptions(),
		DetectedAt: now,
	}
	if err := e.conflicts.SaveConflict(ctx, rec); err != nil {
		e.logger.Error().Str("entity_id", op.EntityID()).Err(err).Msg("failed to save conflict record")
		return
	}

	if err := e.queue.Delete(ctx, op.ID); err != nil {
		e.logger.Error().Str("operation_id", op.ID).Err(err).Msg("failed to quarantine conflicted operation")
	}
}

// Conflicts lists the conflicts awaiting a caller decision.
func (e *Engine) Conflicts(ctx context.Context) ([]models.ConflictRecord, error) {
	records, err := e.conflicts.ListUnresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unresolved conflicts: %w", err)
	}
	return records, nil
}

// Resolve applies a caller decision to a surfaced conflict. keep-remote
// accepts the server copy and requeues nothing; keep-local and merge
// requeue a high-priority update carrying the chosen payload. On merge the
// local side wins wherever both sides changed the same field.
func (e *Engine) Resolve(ctx context.Context, conflictID string, resolution models.Resolution) error {
	rec, err := e.conflicts.GetConflict(ctx, conflictID)
	if err != nil {
		return fmt.Errorf("load conflict %s: %w", conflictID, err)
	}
	if rec.Resolved {
		return fmt.Errorf("conflict %s already resolved as %s", conflictID, rec.Resolution)
	}

	var payload map[string]any
	switch resolution {
	case models.ResolutionKeepLocal:
		payload = rec.Local
	case models.ResolutionKeepRemote:
		payload = nil
	case models.ResolutionMerge:
		payload = make(map[string]any, len(rec.Remote))
		for k, v := range rec.Remote {
			payload[k] = v
		}
		if err := mergo.Merge(&payload, rec.Local, mergo.WithOverride); err != nil {
			return fmt.Errorf("merge conflict %s: %w", conflictID, err)
		}
	default:
		return fmt.Errorf("unknown resolution %q", resolution)
	}

	if payload != nil {
		op := models.Operation{
			ID:         uuid.NewString(),
			Kind:       models.OperationUpdate,
			EntityType: rec.EntityType,
			Payload:    payload,
			CreatedAt:  time.Now(),
			Priority:   models.PriorityHigh,
			Cacheable:  true,
			Encrypted:  e.privacy.NeedsEncryption(payload),
		}
		if op.EntityID() == "" {
			op.Payload["id"] = rec.EntityID
		}
		if err := e.queue.Enqueue(ctx, op); err != nil {
			return fmt.Errorf("requeue resolved conflict %s: %w", conflictID, err)
		}
	}

	if err := e.conflicts.MarkResolved(ctx, conflictID, resolution); err != nil {
		return fmt.Errorf("mark conflict %s resolved: %w", conflictID, err)
	}

	e.logger.Info().
		Str("conflict_id", conflictID).
		Str("entity_id", rec.EntityID).
		Str("resolution", string(resolution)).
		Msg("conflict resolved")

	if payload != nil {
		e.bus.Publish(models.TopicSyncRequired, models.SyncRequiredEvent{Trigger: models.TriggerUserOperation})
	}

	return nil
}
