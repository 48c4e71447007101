package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/roamlog/roamlog/internal/events"
	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
)

// SyncJob drives the drainer from two sources: sync-required events and a
// periodic ticker. The job is idle until Start is called.
type SyncJob struct {
	drainer Drainer
	bus     *events.Bus
	logger  *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSyncJob(drainer Drainer, bus *events.Bus, log *logger.Logger) *SyncJob {
	return &SyncJob{drainer: drainer, bus: bus, logger: log}
}

// Start stops any previously running job, then launches a background
// goroutine that drains on every sync-required event and every tick. If
// interval is zero or negative it defaults to 5 minutes. The goroutine
// exits when ctx is cancelled or Stop is called.
func (j *SyncJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	required := j.bus.Subscribe(models.TopicSyncRequired)

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case ev, ok := <-required:
				if !ok {
					return
				}
				trigger := models.SyncTrigger("")
				if payload, isSync := ev.Payload.(models.SyncRequiredEvent); isSync {
					trigger = payload.Trigger
				}
				j.drainOnce(jobCtx, trigger)
			case <-t.C:
				j.bus.Publish(models.TopicPeriodicSync, models.SyncRequiredEvent{Trigger: models.TriggerPeriodic})
				j.drainOnce(jobCtx, models.TriggerPeriodic)
			}
		}
	}()
}

func (j *SyncJob) drainOnce(ctx context.Context, trigger models.SyncTrigger) {
	if err := j.drainer.Drain(ctx); err != nil {
		j.logger.Warn().Str("trigger", string(trigger)).Err(err).Msg("drain failed")
		return
	}
	j.logger.Debug().Str("trigger", string(trigger)).Msg("drain finished")
}

// Stop cancels the background goroutine and blocks until it has exited.
// Safe to call when the job is not running.
func (j *SyncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}
