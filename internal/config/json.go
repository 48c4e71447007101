package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/roamlog/roamlog/models"
)

// Duration wraps time.Duration so JSON configs can use strings like "15s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(v))
	default:
		return fmt.Errorf("invalid duration value: %v", raw)
	}

	return nil
}

type jsonConfig struct {
	App struct {
		Version        string `json:"version"`
		InstallationID string `json:"installation_id"`
	} `json:"app,omitempty"`

	Storage struct {
		DSN string `json:"dsn"`
	} `json:"storage,omitempty"`

	Remote struct {
		BaseURL        string   `json:"base_url"`
		RequestTimeout Duration `json:"request_timeout"`
		VersionPath    string   `json:"version_path"`
	} `json:"remote,omitempty"`

	Cache struct {
		AppShell     []string `json:"app_shell"`
		FallbackBody string   `json:"fallback_body"`
	} `json:"cache,omitempty"`

	Sync struct {
		RetryBaseInterval Duration `json:"retry_base_interval"`
		BatchSize         int      `json:"batch_size"`
		PeriodicInterval  Duration `json:"periodic_interval"`
		LogRetention      int      `json:"log_retention"`
	} `json:"sync,omitempty"`

	Privacy struct {
		Level             string   `json:"level"`
		LocationRetention Duration `json:"location_retention"`
		LogRetention      Duration `json:"log_retention"`
	} `json:"privacy,omitempty"`

	Security struct {
		AllowedOrigins []string `json:"allowed_origins"`
	} `json:"security,omitempty"`

	HTTP struct {
		Address        string   `json:"address"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"http,omitempty"`
}

func parseJSON(jsonFilePath string) (*Config, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jc jsonConfig
	if err := json.NewDecoder(jsonFile).Decode(&jc); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &Config{
		App: App{
			Version:        jc.App.Version,
			InstallationID: jc.App.InstallationID,
		},
		Storage: Storage{
			DSN: jc.Storage.DSN,
		},
		Remote: Remote{
			BaseURL:        jc.Remote.BaseURL,
			RequestTimeout: time.Duration(jc.Remote.RequestTimeout),
			VersionPath:    jc.Remote.VersionPath,
		},
		Cache: Cache{
			AppShell:     jc.Cache.AppShell,
			FallbackBody: jc.Cache.FallbackBody,
		},
		Sync: Sync{
			RetryBaseInterval: time.Duration(jc.Sync.RetryBaseInterval),
			BatchSize:         jc.Sync.BatchSize,
			PeriodicInterval:  time.Duration(jc.Sync.PeriodicInterval),
			LogRetention:      jc.Sync.LogRetention,
		},
		Privacy: Privacy{
			Level:             models.PrivacyLevel(jc.Privacy.Level),
			LocationRetention: time.Duration(jc.Privacy.LocationRetention),
			LogRetention:      time.Duration(jc.Privacy.LogRetention),
		},
		Security: Security{
			AllowedOrigins: jc.Security.AllowedOrigins,
		},
		HTTP: HTTP{
			Address:        jc.HTTP.Address,
			RequestTimeout: time.Duration(jc.HTTP.RequestTimeout),
		},
	}

	return cfg, nil
}
