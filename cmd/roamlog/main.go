package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/roamlog/roamlog/internal/adapter"
	"github.com/roamlog/roamlog/internal/cache"
	"github.com/roamlog/roamlog/internal/config"
	"github.com/roamlog/roamlog/internal/crypto"
	"github.com/roamlog/roamlog/internal/events"
	"github.com/roamlog/roamlog/internal/httpapi"
	"github.com/roamlog/roamlog/internal/lifecycle"
	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/internal/privacy"
	"github.com/roamlog/roamlog/internal/security"
	"github.com/roamlog/roamlog/internal/store"
	"github.com/roamlog/roamlog/internal/syncengine"
)

const (
	installationIDSecret   = "installation-id"
	installationSaltSecret = "installation-salt"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()
	_ = godotenv.Load()

	log := logger.NewLogger("roamlog")

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storages, err := store.NewStorages(ctx, cfg.Storage, cfg.Sync, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create local storage")
	}
	defer storages.Close()

	keychain := crypto.NewKeyChain()
	installationID, key, err := bootstrapInstallation(ctx, storages.Secrets, keychain, cfg.App.InstallationID)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap installation key")
	}
	cfg.App.InstallationID = installationID

	priv := privacy.NewFilter(cfg.Privacy, keychain, key, storages.Consents, log)
	sec := security.NewFilter(cfg.Security.AllowedOrigins, log)

	remote, err := adapter.NewHTTPRemoteAdapter(cfg.Remote, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create remote adapter")
	}
	entity, _ := remote.(adapter.RemoteEntity)

	bus := events.NewBus()
	defer bus.Close()

	engine := syncengine.NewEngine(storages, remote, entity, priv, bus, cfg.Sync, log)
	router := cache.NewRouter(storages.Cache, remote, engine, sec, priv, cfg.App.Version, cfg.Cache.FallbackBody, log)

	manager := lifecycle.NewManager(router, bus, cfg.Cache.AppShell, log)
	if err = manager.Install(ctx); err != nil {
		log.Fatal().Err(err).Msg("install failed")
	}

	syncJob := lifecycle.NewSyncJob(engine, bus, log)
	syncJob.Start(ctx, cfg.Sync.PeriodicInterval)
	defer syncJob.Stop()

	if err = manager.Activate(ctx); err != nil {
		log.Fatal().Err(err).Msg("activate failed")
	}

	monitor := lifecycle.NewConnectivityMonitor(bus, log)
	go monitor.Watch(ctx, dialProbe{baseURL: cfg.Remote.BaseURL}, 30*time.Second)

	checker := lifecycle.NewUpdateChecker(remote, bus, cfg.App.Version, log)
	checker.Start(ctx, time.Hour)
	defer checker.Stop()

	retention := privacy.NewRetention(cfg.Privacy, storages.Cache, log)
	go runRetentionSweep(ctx, retention, log)

	server := httpapi.NewServer(router, engine, storages.Consents, sec, cfg.HTTP, log)
	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Fatal().Err(serveErr).Msg("local surface failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

// bootstrapInstallation returns the stable installation identifier and the
// encryption key derived from it. The identifier and the salt are persisted
// on first run; the key itself is never stored. Put never overwrites, so
// concurrent first runs converge on the same material.
func bootstrapInstallation(ctx context.Context, secrets store.SecretRepository, keychain crypto.KeyChain, configuredID string) (string, []byte, error) {
	id, err := loadOrInitSecret(ctx, secrets, installationIDSecret, func() ([]byte, error) {
		if configuredID != "" {
			return []byte(configuredID), nil
		}
		return []byte(uuid.NewString()), nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("bootstrap installation id: %w", err)
	}

	salt, err := loadOrInitSecret(ctx, secrets, installationSaltSecret, keychain.GenerateSalt)
	if err != nil {
		return "", nil, fmt.Errorf("bootstrap installation salt: %w", err)
	}

	return string(id), keychain.DeriveKey(string(id), salt), nil
}

func loadOrInitSecret(ctx context.Context, secrets store.SecretRepository, name string, generate func() ([]byte, error)) ([]byte, error) {
	value, err := secrets.Get(ctx, name)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	value, err = generate()
	if err != nil {
		return nil, err
	}
	if err = secrets.Put(ctx, name, value); err != nil {
		return nil, err
	}

	return secrets.Get(ctx, name)
}

// dialProbe reports connectivity by opening a TCP connection to the remote
// endpoint.
type dialProbe struct {
	baseURL string
}

func (p dialProbe) Online(ctx context.Context) bool {
	u, err := url.Parse(p.baseURL)
	if err != nil || u.Host == "" {
		return false
	}

	host := u.Host
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "http" {
			port = "80"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func runRetentionSweep(ctx context.Context, retention *privacy.Retention, log *logger.Logger) {
	t := time.NewTicker(12 * time.Hour)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := retention.Purge(ctx); err != nil {
				log.Warn().Err(err).Msg("retention sweep failed")
			}
		}
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
