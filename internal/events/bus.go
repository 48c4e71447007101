// Package events implements the engine's typed, in-process event bus.
//
// The bus replaces listener-list callbacks: components publish
// fire-and-forget notifications to a topic and any number of subscribers
// receive them on buffered channels. Publish never blocks — a subscriber
// that falls behind loses events rather than stalling the publisher, which
// matches the fire-and-forget contract of the engine's event surface.
package events

import (
	"sync"
	"time"

	"github.com/roamlog/roamlog/models"
)

const defaultBuffer = 16

// Bus fans events out to topic subscribers. The zero value is not usable;
// construct with NewBus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[models.Topic][]chan models.Event
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[models.Topic][]chan models.Event)}
}

// Subscribe registers a new subscriber for topic and returns its receive
// channel. The channel is buffered; events published while the buffer is
// full are dropped for that subscriber only.
func (b *Bus) Subscribe(topic models.Topic) <-chan models.Event {
	ch := make(chan models.Event, defaultBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// Publish delivers an event to every subscriber of topic without blocking.
func (b *Bus) Publish(topic models.Topic, payload any) {
	ev := models.Event{Topic: topic, At: time.Now(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full: drop. Fire-and-forget by contract.
		}
	}
}

// Close shuts the bus down and closes all subscriber channels. Publish and
// Subscribe become no-ops afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.subs = make(map[models.Topic][]chan models.Event)
}
