package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roamlog/roamlog/internal/events"
	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
)

// VersionSource reads the remote version marker.
type VersionSource interface {
	FetchRemoteVersion(ctx context.Context) (string, error)
}

// UpdateChecker periodically compares the remote version marker against the
// active version. A mismatch only publishes update-available; applying the
// update stays a caller decision.
type UpdateChecker struct {
	source  VersionSource
	bus     *events.Bus
	logger  *logger.Logger
	current string

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewUpdateChecker(source VersionSource, bus *events.Bus, current string, log *logger.Logger) *UpdateChecker {
	return &UpdateChecker{
		source:  source,
		bus:     bus,
		logger:  log,
		current: current,
	}
}

// Check performs one comparison. Returns the remote marker.
func (u *UpdateChecker) Check(ctx context.Context) (string, error) {
	remote, err := u.source.FetchRemoteVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("update check: %w", err)
	}

	if remote != "" && remote != u.current {
		u.logger.Info().Str("current", u.current).Str("remote", remote).Msg("update available")
		u.bus.Publish(models.TopicUpdateAvailable, models.UpdateAvailableEvent{
			Current: u.current,
			Remote:  remote,
		})
	}

	return remote, nil
}

// Start runs Check on a ticker until ctx is cancelled or Stop is called.
// If interval is zero or negative it defaults to 1 hour.
func (u *UpdateChecker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	u.Stop()

	u.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.wg.Add(1)
	u.mu.Unlock()

	go func() {
		defer u.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				if _, err := u.Check(jobCtx); err != nil {
					u.logger.Debug().Err(err).Msg("update check failed")
				}
			}
		}
	}()
}

// Stop cancels the background goroutine and waits for it to exit.
func (u *UpdateChecker) Stop() {
	u.mu.Lock()
	cancel := u.cancel
	u.cancel = nil
	u.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	u.wg.Wait()
}
