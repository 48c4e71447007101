package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/roamlog/roamlog/internal/events"
	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
)

// SignalSource reports the current connectivity signal. Implementations
// range from a TCP dial probe to a platform callback.
type SignalSource interface {
	Online(ctx context.Context) bool
}

// ConnectivityMonitor turns signal transitions into network-state events.
// Coming back online additionally requests a drain, since queued work is
// most likely waiting for exactly that.
type ConnectivityMonitor struct {
	bus    *events.Bus
	logger *logger.Logger

	mu     sync.Mutex
	online bool
	known  bool
}

func NewConnectivityMonitor(bus *events.Bus, log *logger.Logger) *ConnectivityMonitor {
	return &ConnectivityMonitor{bus: bus, logger: log}
}

// Update records the current signal. Only transitions publish events;
// repeated identical signals are absorbed.
func (c *ConnectivityMonitor) Update(online bool) {
	c.mu.Lock()
	changed := !c.known || c.online != online
	c.online = online
	c.known = true
	c.mu.Unlock()

	if !changed {
		return
	}

	c.logger.Info().Bool("online", online).Msg("network state changed")
	c.bus.Publish(models.TopicNetworkStateChange, models.NetworkStateEvent{Online: online})

	if online {
		c.bus.Publish(models.TopicSyncRequired, models.SyncRequiredEvent{Trigger: models.TriggerConnectionRecovery})
	}
}

// Online reports the last recorded signal. Unknown reads as offline.
func (c *ConnectivityMonitor) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.known && c.online
}

// Watch polls source at the given interval until ctx is done.
func (c *ConnectivityMonitor) Watch(ctx context.Context, source SignalSource, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	c.Update(source.Online(ctx))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Update(source.Online(ctx))
		}
	}
}
