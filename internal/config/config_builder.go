package config

import (
	"errors"
	"fmt"
	"time"

	"dario.cat/mergo"
	"github.com/roamlog/roamlog/models"
)

type configBuilder struct {
	configs []*Config
	err     error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{
		configs: make([]*Config, 0, 4),
	}
}

func (b *configBuilder) build() (*Config, error) {
	if b.err != nil {
		return nil, fmt.Errorf("error occured during building config: %w", b.err)
	}

	config := new(Config)
	for _, cfg := range b.configs {
		if err := mergo.Merge(config, cfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
	}

	applyDefaults(config)

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func (b *configBuilder) withEnv() *configBuilder {
	if b.err != nil {
		return b
	}

	cfg := new(Config)
	if err := parseEnv(cfg); err != nil {
		b.err = err
		return b
	}

	b.configs = append(b.configs, cfg)
	return b
}

func (b *configBuilder) withFlags() *configBuilder {
	if b.err != nil {
		return b
	}

	b.configs = append(b.configs, parseFlags())
	return b
}

// withJSON resolves the JSON file path from the sources merged so far, then
// parses and appends the file config. A missing path is not an error: the
// JSON file is optional.
func (b *configBuilder) withJSON() *configBuilder {
	if b.err != nil {
		return b
	}

	path := ""
	for _, cfg := range b.configs {
		if cfg.JSONFilePath != "" {
			path = cfg.JSONFilePath
		}
	}
	if path == "" {
		return b
	}

	cfg, err := parseJSON(path)
	if err != nil {
		b.err = err
		return b
	}

	b.configs = append(b.configs, cfg)
	return b
}

// applyDefaults fills in the tunables the engine cannot run without.
func applyDefaults(cfg *Config) {
	if cfg.App.Version == "" {
		cfg.App.Version = "1"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "roamlog.db"
	}
	if cfg.Remote.RequestTimeout <= 0 {
		cfg.Remote.RequestTimeout = 15 * time.Second
	}
	if cfg.Remote.VersionPath == "" {
		cfg.Remote.VersionPath = "/api/version"
	}
	if cfg.Sync.RetryBaseInterval <= 0 {
		cfg.Sync.RetryBaseInterval = 2 * time.Second
	}
	if cfg.Sync.BatchSize <= 0 {
		cfg.Sync.BatchSize = 50
	}
	if cfg.Sync.LogRetention <= 0 {
		cfg.Sync.LogRetention = 1000
	}
	if cfg.Privacy.Level == "" {
		cfg.Privacy.Level = models.PrivacyApproximate
	}
	if cfg.Privacy.LocationRetention <= 0 {
		cfg.Privacy.LocationRetention = 30 * 24 * time.Hour
	}
	if cfg.Privacy.LogRetention <= 0 {
		cfg.Privacy.LogRetention = 365 * 24 * time.Hour
	}
	if cfg.HTTP.Address == "" {
		cfg.HTTP.Address = "localhost:8090"
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.Remote.BaseURL == "" {
		return fmt.Errorf("%w: remote base url is required", ErrInvalidConfig)
	}

	switch cfg.Privacy.Level {
	case models.PrivacyFull, models.PrivacyApproximate, models.PrivacyMinimal:
	default:
		return fmt.Errorf("%w: unknown privacy level %q", ErrInvalidConfig, cfg.Privacy.Level)
	}

	if cfg.Sync.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}

	return nil
}

// ErrInvalidConfig is returned when the merged configuration fails
// validation.
var ErrInvalidConfig = errors.New("invalid config")
