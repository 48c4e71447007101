// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RoamLog Authors

package config

import (
	"time"

	"github.com/roamlog/roamlog/models"
)

// Config is the top-level configuration container for the roamlog sync
// engine. It aggregates all sub-configurations and is populated by merging
// values from environment variables, command-line flags, and an optional
// JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type Config struct {
	// App holds application-level settings such as the active cache version
	// and the installation identifier.
	App App `envPrefix:"APP_"`

	// Storage holds the durable queue store settings.
	Storage Storage `envPrefix:"STORAGE_"`

	// Remote holds the remote trips endpoint settings.
	Remote Remote `envPrefix:"REMOTE_"`

	// Cache holds cache router settings: app shell list and fallback page.
	Cache Cache `envPrefix:"CACHE_"`

	// Sync holds queue replay tuning: retry interval, batch size, periodic
	// sync interval, and the sync log retention bound.
	Sync Sync `envPrefix:"SYNC_"`

	// Privacy holds the location privacy level and retention windows.
	Privacy Privacy `envPrefix:"PRIVACY_"`

	// Security holds the origin allow-list.
	Security Security `envPrefix:"SECURITY_"`

	// HTTP holds the local interception surface settings.
	HTTP HTTP `envPrefix:"HTTP_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// Version is the active cache version string. Cache partition names are
	// "{logical-name}-v{Version}"; changing it is the only supported
	// cache-invalidation mechanism.
	// Env: APP_VERSION
	Version string `env:"VERSION"`

	// InstallationID identifies this installation. Used as salt input when
	// deriving the local encryption key. Generated on first run if empty.
	// Env: APP_INSTALLATION_ID
	InstallationID string `env:"INSTALLATION_ID"`
}

// Storage holds the durable store settings.
type Storage struct {
	// DSN is the SQLite database path holding the pending queue, sync
	// state, sync log, conflict backups, and cache partitions
	// (e.g. "roamlog.db" or ":memory:").
	// Env: STORAGE_DSN
	DSN string `env:"DSN"`
}

// Remote holds settings for the remote trips endpoint.
type Remote struct {
	// BaseURL is the remote endpoint base URL (e.g. "https://api.roamlog.app").
	// Env: REMOTE_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// RequestTimeout bounds every replay and fetch request (e.g. "15s").
	// Env: REMOTE_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// VersionPath is the path of the remote version marker used by the
	// lifecycle update check (e.g. "/api/version").
	// Env: REMOTE_VERSION_PATH
	VersionPath string `env:"VERSION_PATH"`
}

// Cache holds cache router settings.
type Cache struct {
	// AppShell lists the must-have resource URLs precached at install time.
	// Failure of any single item aborts the install step.
	// Env: CACHE_APP_SHELL (comma-separated)
	AppShell []string `env:"APP_SHELL"`

	// FallbackBody is the offline fallback document returned when both the
	// cache and the network fail for a navigation request.
	// Env: CACHE_FALLBACK_BODY
	FallbackBody string `env:"FALLBACK_BODY"`
}

// Sync holds queue replay tuning.
type Sync struct {
	// RetryBaseInterval is the base delay between replay attempts; attempt n
	// waits n × RetryBaseInterval.
	// Env: SYNC_RETRY_BASE_INTERVAL
	RetryBaseInterval time.Duration `env:"RETRY_BASE_INTERVAL"`

	// BatchSize is the queue slice size used by batch sync.
	// Env: SYNC_BATCH_SIZE
	BatchSize int `env:"BATCH_SIZE"`

	// PeriodicInterval is the periodic sync timer period; zero disables it.
	// Env: SYNC_PERIODIC_INTERVAL
	PeriodicInterval time.Duration `env:"PERIODIC_INTERVAL"`

	// LogRetention bounds the sync log; oldest entries are pruned first.
	// Env: SYNC_LOG_RETENTION
	LogRetention int `env:"LOG_RETENTION"`
}

// Privacy holds the privacy filter settings.
type Privacy struct {
	// Level is the location precision tier: full, approximate, or minimal.
	// Env: PRIVACY_LEVEL
	Level models.PrivacyLevel `env:"LEVEL"`

	// LocationRetention is the retention window for location history.
	// Env: PRIVACY_LOCATION_RETENTION
	LocationRetention time.Duration `env:"LOCATION_RETENTION"`

	// LogRetention is the retention window for log records.
	// Env: PRIVACY_LOG_RETENTION
	LogRetention time.Duration `env:"LOG_RETENTION"`
}

// Security holds the security filter settings.
type Security struct {
	// AllowedOrigins is the explicit origin allow-list. An empty list denies
	// every origin.
	// Env: SECURITY_ALLOWED_ORIGINS (comma-separated)
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`
}

// HTTP holds the local interception surface settings.
type HTTP struct {
	// Address is the TCP address the local surface listens on,
	// in "host:port" format.
	// Env: HTTP_ADDRESS
	Address string `env:"ADDRESS"`

	// RequestTimeout bounds a single inbound request.
	// Env: HTTP_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// GetConfig loads, merges, and validates the engine configuration from all
// available sources in the following priority order (last source wins for
// non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//
// Missing tunables fall back to the defaults in applyDefaults. Returns a
// fully populated *Config or an error if any source fails to load or the
// final config fails validation.
func GetConfig() (*Config, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
