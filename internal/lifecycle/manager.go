// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RoamLog Authors

// Package lifecycle drives the engine through its install and activate
// phases and runs the background jobs around it: connectivity monitoring,
// the periodic sync ticker, and the update check.
package lifecycle

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roamlog/roamlog/internal/events"
	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
)

// Precacher is the slice of the cache router the lifecycle needs.
type Precacher interface {
	Precache(ctx context.Context, urls []string) error
	CleanupStale(ctx context.Context) error
	Version() string
}

// Drainer triggers a queue drain.
type Drainer interface {
	Drain(ctx context.Context) error
}

// Manager owns the install and activate transitions. Install is the only
// step allowed to hard-fail the engine.
type Manager struct {
	router Precacher
	bus    *events.Bus
	logger *logger.Logger

	shell []string

	ready  atomic.Bool
	active atomic.Bool
}

func NewManager(router Precacher, bus *events.Bus, shell []string, log *logger.Logger) *Manager {
	return &Manager{
		router: router,
		bus:    bus,
		logger: log,
		shell:  shell,
	}
}

// Install precaches the app shell and marks the engine ready without
// waiting for anything else. The shell is all-or-nothing: a single failed
// resource aborts the install.
func (m *Manager) Install(ctx context.Context) error {
	if err := m.router.Precache(ctx, m.shell); err != nil {
		return fmt.Errorf("install: %w", err)
	}

	m.ready.Store(true)
	m.logger.Info().Str("version", m.router.Version()).Msg("engine installed")
	return nil
}

// Activate deletes the partitions of previous versions and claims control.
// It also asks for an initial drain so a queue left over from the previous
// run starts moving.
func (m *Manager) Activate(ctx context.Context) error {
	if !m.ready.Load() {
		return fmt.Errorf("activate before install")
	}

	if err := m.router.CleanupStale(ctx); err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	m.active.Store(true)
	m.bus.Publish(models.TopicSyncRequired, models.SyncRequiredEvent{Trigger: models.TriggerAppStart})
	m.logger.Info().Str("version", m.router.Version()).Msg("engine activated")
	return nil
}

// Ready reports whether Install has completed.
func (m *Manager) Ready() bool { return m.ready.Load() }

// Active reports whether Activate has completed.
func (m *Manager) Active() bool { return m.active.Load() }
