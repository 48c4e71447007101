package config

import (
	"testing"
	"time"

	"github.com/roamlog/roamlog/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_LaterSourcesWin(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs,
		&Config{Remote: Remote{BaseURL: "http://first"}, Sync: Sync{BatchSize: 10}},
		&Config{Remote: Remote{BaseURL: "http://second"}},
	)

	cfg, err := b.build()
	require.NoError(t, err)

	assert.Equal(t, "http://second", cfg.Remote.BaseURL, "non-zero value from a later source must override")
	assert.Equal(t, 10, cfg.Sync.BatchSize, "zero value in a later source must not erase an earlier one")
}

func TestBuilder_AppliesDefaults(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &Config{Remote: Remote{BaseURL: "http://api"}})

	cfg, err := b.build()
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.App.Version)
	assert.Equal(t, "roamlog.db", cfg.Storage.DSN)
	assert.Equal(t, 2*time.Second, cfg.Sync.RetryBaseInterval)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 1000, cfg.Sync.LogRetention)
	assert.Equal(t, models.PrivacyApproximate, cfg.Privacy.Level)
	assert.Equal(t, 30*24*time.Hour, cfg.Privacy.LocationRetention)
}

func TestBuilder_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "missing remote base url", cfg: &Config{}},
		{name: "unknown privacy level", cfg: &Config{
			Remote:  Remote{BaseURL: "http://api"},
			Privacy: Privacy{Level: "paranoid"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newConfigBuilder()
			b.configs = append(b.configs, tt.cfg)

			_, err := b.build()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
