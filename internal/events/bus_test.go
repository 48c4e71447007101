package events

import (
	"testing"
	"time"

	"github.com/roamlog/roamlog/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan models.Event) models.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return models.Event{}
	}
}

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	a := bus.Subscribe(models.TopicSyncRequired)
	b := bus.Subscribe(models.TopicSyncRequired)

	bus.Publish(models.TopicSyncRequired, models.SyncRequiredEvent{Trigger: models.TriggerUserOperation})

	for _, ch := range []<-chan models.Event{a, b} {
		ev := recv(t, ch)
		assert.Equal(t, models.TopicSyncRequired, ev.Topic)
		payload, ok := ev.Payload.(models.SyncRequiredEvent)
		require.True(t, ok)
		assert.Equal(t, models.TriggerUserOperation, payload.Trigger)
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sync := bus.Subscribe(models.TopicSyncRequired)
	net := bus.Subscribe(models.TopicNetworkStateChange)

	bus.Publish(models.TopicNetworkStateChange, models.NetworkStateEvent{Online: true})

	recv(t, net)
	select {
	case ev := <-sync:
		t.Fatalf("sync subscriber received foreign event: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_PublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// Nobody reads this channel; its buffer fills and further events drop.
	_ = bus.Subscribe(models.TopicRetryAttempt)

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBuffer*3; i++ {
			bus.Publish(models.TopicRetryAttempt, models.RetryAttemptEvent{Attempt: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestBus_CloseClosesSubscriberChannels(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(models.TopicStateChange)

	bus.Close()

	_, open := <-ch
	assert.False(t, open, "subscriber channel must be closed after Close")

	// Publishing after Close is a harmless no-op.
	assert.NotPanics(t, func() { bus.Publish(models.TopicStateChange, nil) })
}
