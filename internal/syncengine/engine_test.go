package syncengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/roamlog/roamlog/internal/adapter"
	"github.com/roamlog/roamlog/internal/config"
	"github.com/roamlog/roamlog/internal/crypto"
	"github.com/roamlog/roamlog/internal/events"
	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/internal/mock"
	"github.com/roamlog/roamlog/internal/privacy"
	"github.com/roamlog/roamlog/internal/store"
	"github.com/roamlog/roamlog/models"
)

type engineFixture struct {
	engine   *Engine
	remote   *mock.MockRemoteAdapter
	entity   *mock.MockRemoteEntity
	storages *store.Storages
	bus      *events.Bus
	priv     *privacy.Filter
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	ctx := context.Background()

	storages, err := store.NewStorages(ctx, config.Storage{DSN: ":memory:"}, config.Sync{LogRetention: 100}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = storages.Close() })

	// Enqueueing requires usage consent; grant it up front.
	require.NoError(t, storages.Consents.Set(ctx, models.CategoryUsage, true))

	ctrl := gomock.NewController(t)
	remote := mock.NewMockRemoteAdapter(ctrl)
	entity := mock.NewMockRemoteEntity(ctrl)

	priv := privacy.NewFilter(
		config.Privacy{Level: models.PrivacyFull},
		crypto.NewKeyChain(), nil, storages.Consents, logger.Nop(),
	)

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	engine := NewEngine(storages, remote, entity, priv, bus, config.Sync{
		RetryBaseInterval: time.Millisecond,
		BatchSize:         50,
		LogRetention:      100,
	}, logger.Nop())

	return &engineFixture{engine: engine, remote: remote, entity: entity, storages: storages, bus: bus, priv: priv}
}

func (f *engineFixture) enqueue(t *testing.T, kind models.OperationKind, priority models.Priority, payload map[string]any) models.Operation {
	t.Helper()
	op, err := f.engine.Enqueue(context.Background(), models.EnqueueRequest{
		Kind:       kind,
		EntityType: "driving-log",
		Payload:    payload,
		Priority:   priority,
	})
	require.NoError(t, err)
	return op
}

func TestEnqueue_Validation(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Enqueue(context.Background(), models.EnqueueRequest{
		Kind:       "upsert",
		EntityType: "driving-log",
		Payload:    map[string]any{"id": "1"},
	})
	assert.ErrorIs(t, err, adapter.ErrValidation)

	_, err = f.engine.Enqueue(context.Background(), models.EnqueueRequest{
		Kind:    models.OperationCreate,
		Payload: map[string]any{"id": "1"},
	})
	assert.ErrorIs(t, err, adapter.ErrValidation, "entity type is required")
}

func TestEnqueue_ConsentDefaultDeny(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.storages.Consents.Set(context.Background(), models.CategoryUsage, false))

	_, err := f.engine.Enqueue(context.Background(), models.EnqueueRequest{
		Kind:       models.OperationCreate,
		EntityType: "driving-log",
		Payload:    map[string]any{"distance_km": 1.0},
	})
	assert.ErrorIs(t, err, ErrConsentDenied)
}

func TestEnqueue_SensitivePayloadRejected(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Enqueue(context.Background(), models.EnqueueRequest{
		Kind:       models.OperationCreate,
		EntityType: "driving-log",
		Payload:    map[string]any{"id": "1", "api_key": "k"},
	})
	assert.ErrorIs(t, err, ErrSensitivePayload)

	count, countErr := f.storages.Queue.Count(context.Background())
	require.NoError(t, countErr)
	assert.Zero(t, count, "rejected payloads must never touch the queue")
}

func TestEnqueue_DurableAndSignalled(t *testing.T) {
	f := newEngineFixture(t)
	required := f.bus.Subscribe(models.TopicSyncRequired)

	op := f.enqueue(t, models.OperationCreate, "", map[string]any{"distance_km": 12.5})
	assert.Equal(t, models.PriorityNormal, op.Priority, "priority defaults to normal")

	stored, err := f.storages.Queue.Get(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, op.ID, stored.ID)

	select {
	case ev := <-required:
		payload, ok := ev.Payload.(models.SyncRequiredEvent)
		require.True(t, ok)
		assert.Equal(t, models.TriggerUserOperation, payload.Trigger)
	case <-time.After(time.Second):
		t.Fatal("no sync-required event published")
	}
}

func TestDrain_PriorityOrder(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.enqueue(t, models.OperationCreate, models.PriorityLow, map[string]any{"marker": "third"})
	f.enqueue(t, models.OperationCreate, models.PriorityHigh, map[string]any{"marker": "first"})
	f.enqueue(t, models.OperationCreate, models.PriorityNormal, map[string]any{"marker": "second"})

	var order []models.Priority
	f.remote.EXPECT().
		Replay(gomock.Any(), gomock.Any()).
		Times(3).
		DoAndReturn(func(_ context.Context, op models.Operation) error {
			order = append(order, op.Priority)
			return nil
		})

	require.NoError(t, f.engine.Drain(ctx))
	assert.Equal(t, []models.Priority{models.PriorityHigh, models.PriorityNormal, models.PriorityLow}, order)

	count, err := f.storages.Queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "replayed operations leave the queue")
}

func TestDrain_RetryBoundedAtThreeAttempts(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	retries := f.bus.Subscribe(models.TopicRetryAttempt)

	op := f.enqueue(t, models.OperationCreate, models.PriorityNormal, map[string]any{"distance_km": 1.0})

	f.remote.EXPECT().
		Replay(gomock.Any(), gomock.Any()).
		Times(3).
		Return(adapter.ErrTransient)

	require.NoError(t, f.engine.Drain(ctx))

	kept, err := f.storages.Queue.Get(ctx, op.ID)
	require.NoError(t, err, "a failed operation stays queued for the next drain")
	assert.Equal(t, 3, kept.Retries)

	for want := 1; want <= 3; want++ {
		select {
		case ev := <-retries:
			attempt, ok := ev.Payload.(models.RetryAttemptEvent)
			require.True(t, ok)
			assert.Equal(t, want, attempt.Attempt)
		case <-time.After(time.Second):
			t.Fatalf("missing retry-attempt event %d", want)
		}
	}

	entries, err := f.storages.Log.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.OutcomeFailure, entries[0].Outcome)
}

func TestDrain_NonRetryableErrorFailsImmediately(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.enqueue(t, models.OperationCreate, models.PriorityNormal, map[string]any{"distance_km": 1.0})

	f.remote.EXPECT().
		Replay(gomock.Any(), gomock.Any()).
		Times(1).
		Return(adapter.ErrUnauthorized)

	require.NoError(t, f.engine.Drain(ctx))

	count, err := f.storages.Queue.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "non-retryable failures stay queued without burning retries")
}

func TestDrain_CoalescedWhileInProgress(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.enqueue(t, models.OperationCreate, models.PriorityNormal, map[string]any{"distance_km": 1.0})

	st, err := f.storages.State.Get(ctx)
	require.NoError(t, err)
	st.InProgress = true
	require.NoError(t, f.storages.State.Save(ctx, st))

	// No Replay expectation: an in-progress drain absorbs the trigger.
	require.NoError(t, f.engine.Drain(ctx))
}

func TestDrain_RecoversClaimLeftByPreviousRun(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	op := f.enqueue(t, models.OperationCreate, models.PriorityNormal, map[string]any{"distance_km": 3.2})

	// A run that dies between claiming and releasing leaves InProgress=true
	// on disk with nobody to release it.
	st, err := f.storages.State.Get(ctx)
	require.NoError(t, err)
	st.InProgress = true
	require.NoError(t, f.storages.State.Save(ctx, st))

	restarted := NewEngine(f.storages, f.remote, f.entity, f.priv, f.bus, config.Sync{
		RetryBaseInterval: time.Millisecond,
	}, logger.Nop())

	f.remote.EXPECT().
		Replay(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got models.Operation) error {
			assert.Equal(t, op.ID, got.ID)
			return nil
		})

	require.NoError(t, restarted.Drain(ctx))

	count, err := f.storages.Queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "queued operations must replay after a restart")
}

type brokenStateRepo struct{ err error }

func (b brokenStateRepo) Get(context.Context) (models.SyncState, error) {
	return models.SyncState{}, b.err
}
func (b brokenStateRepo) Save(context.Context, models.SyncState) error { return b.err }

func TestDrain_StateStoreFailureSurfaces(t *testing.T) {
	f := newEngineFixture(t)
	stErr := errors.New("disk I/O error")
	f.storages.State = brokenStateRepo{err: stErr}

	engine := NewEngine(f.storages, f.remote, f.entity, f.priv, f.bus, config.Sync{}, logger.Nop())

	err := engine.Drain(context.Background())
	assert.ErrorIs(t, err, stErr, "a broken state store is not a successful drain")
}

func TestDrainBatch_Report(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		f.enqueue(t, models.OperationCreate, models.PriorityNormal, map[string]any{"seq": float64(i)})
	}

	f.remote.EXPECT().Replay(gomock.Any(), gomock.Any()).Times(10).Return(nil)

	report, err := f.engine.DrainBatch(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Batches)
	assert.Equal(t, 10, report.TotalProcessed)
	assert.Equal(t, 10, report.Succeeded)
	assert.Zero(t, report.Failed)
}

func TestDrain_UpdatesSyncState(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.enqueue(t, models.OperationCreate, models.PriorityNormal, map[string]any{"distance_km": 1.0})
	f.remote.EXPECT().Replay(gomock.Any(), gomock.Any()).Return(nil)

	before := time.Now()
	require.NoError(t, f.engine.Drain(ctx))

	st, err := f.engine.State(ctx)
	require.NoError(t, err)
	assert.False(t, st.InProgress)
	assert.Zero(t, st.Pending)
	assert.False(t, st.LastSyncAt.Before(before.Truncate(time.Second)))
}

func TestStats_FromSyncLog(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	now := time.Now()
	for _, entry := range []models.SyncLogEntry{
		{OperationID: "a", Kind: models.OperationCreate, EntityType: "driving-log", Outcome: models.OutcomeSuccess, At: now, Duration: 100 * time.Millisecond},
		{OperationID: "b", Kind: models.OperationUpdate, EntityType: "driving-log", Outcome: models.OutcomeSuccess, At: now, Duration: 300 * time.Millisecond},
		{OperationID: "c", Kind: models.OperationUpdate, EntityType: "driving-log", Outcome: models.OutcomeFailure, At: now, Duration: 200 * time.Millisecond, Error: "transient"},
		{OperationID: "d", Kind: models.OperationUpdate, EntityType: "driving-log", Outcome: models.OutcomeConflict, At: now, Duration: 200 * time.Millisecond},
	} {
		require.NoError(t, f.storages.Log.Append(ctx, entry))
	}

	stats, err := f.engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalProcessed)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Conflicted)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	assert.Equal(t, 200*time.Millisecond, stats.AverageDuration)
}

// The offline driving-log update scenario end to end: the mutation is
// deferred into the queue, the connection comes back, one drain replays it,
// and the history records a success.
func TestOfflineUpdateRoundTrip(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.EnqueueDeferred(ctx, models.Request{
		Method: "PUT",
		URL:    "/api/driving-log/trip-17",
		Body:   []byte(`{"end_location":"Harbor St 4","distance_km":23.4}`),
	}))

	st, err := f.engine.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pending)

	f.remote.EXPECT().
		Replay(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, op models.Operation) error {
			assert.Equal(t, models.OperationUpdate, op.Kind)
			assert.Equal(t, "driving-log", op.EntityType)
			assert.Equal(t, "trip-17", op.EntityID())
			assert.Equal(t, "Harbor St 4", op.Payload["end_location"])
			return nil
		})

	require.NoError(t, f.engine.Drain(ctx))

	st, err = f.engine.State(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Pending)

	stats, err := f.engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Succeeded)
}
