package config

import (
	"flag"
	"strings"
	"time"

	"github.com/roamlog/roamlog/models"
)

// parseFlags parses all configuration flags.
//
// Flags:
//
//	-a local surface address in format [host]:[port]
//	-d sqlite database path
//	-r remote endpoint base URL
//	-version active cache version string
//	-c/-config json file path with configs
//	-app-shell comma-separated precache URL list
//	-retry-base-interval base delay between replay attempts (e.g., "2s")
//	-batch-size batch sync slice size
//	-periodic-interval periodic sync timer period (0 disables)
//	-privacy-level location precision tier: full, approximate, minimal
//	-allowed-origins comma-separated origin allow-list
//	-request-timeout remote request timeout (e.g., "15s")
func parseFlags() *Config {
	var address string
	var dsn string
	var baseURL string
	var version string
	var jsonConfigPath string
	var appShell string
	var retryBase time.Duration
	var batchSize int
	var periodicInterval time.Duration
	var privacyLevel string
	var allowedOrigins string
	var requestTimeout time.Duration

	flag.StringVar(&address, "a", "", "Local surface address host:port")
	flag.StringVar(&dsn, "d", "", "SQLite database path")
	flag.StringVar(&baseURL, "r", "", "Remote endpoint base URL")
	flag.StringVar(&version, "version", "", "Active cache version string")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.StringVar(&appShell, "app-shell", "", "Comma-separated precache URL list")
	flag.DurationVar(&retryBase, "retry-base-interval", 0, "Base delay between replay attempts (e.g., 2s)")
	flag.IntVar(&batchSize, "batch-size", 0, "Batch sync slice size")
	flag.DurationVar(&periodicInterval, "periodic-interval", 0, "Periodic sync timer period (0 disables)")
	flag.StringVar(&privacyLevel, "privacy-level", "", "Location precision tier: full, approximate, minimal")
	flag.StringVar(&allowedOrigins, "allowed-origins", "", "Comma-separated origin allow-list")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Remote request timeout (e.g., 15s)")

	flag.Parse()

	return &Config{
		App: App{
			Version: version,
		},
		Storage: Storage{
			DSN: dsn,
		},
		Remote: Remote{
			BaseURL:        baseURL,
			RequestTimeout: requestTimeout,
		},
		Cache: Cache{
			AppShell: splitList(appShell),
		},
		Sync: Sync{
			RetryBaseInterval: retryBase,
			BatchSize:         batchSize,
			PeriodicInterval:  periodicInterval,
		},
		Privacy: Privacy{
			Level: models.PrivacyLevel(privacyLevel),
		},
		Security: Security{
			AllowedOrigins: splitList(allowedOrigins),
		},
		HTTP: HTTP{
			Address: address,
		},
		JSONFilePath: jsonConfigPath,
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
