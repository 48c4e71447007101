// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RoamLog Authors

// Package httpapi exposes the engine on a local HTTP surface: a proxy
// endpoint that routes resource requests through the cache router, and a
// small API for the queue, sync state, and conflicts. This surface is what
// the application talks to instead of the network directly.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roamlog/roamlog/internal/cache"
	"github.com/roamlog/roamlog/internal/config"
	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/internal/security"
	"github.com/roamlog/roamlog/models"
)

// CacheHandler is the slice of the cache router the surface needs.
type CacheHandler interface {
	Handle(ctx context.Context, req models.Request, strategy cache.Strategy) (models.Response, error)
}

// SyncService is the slice of the sync engine the surface needs.
type SyncService interface {
	Enqueue(ctx context.Context, req models.EnqueueRequest) (models.Operation, error)
	DrainBatch(ctx context.Context, size int) (models.BatchReport, error)
	State(ctx context.Context) (models.SyncState, error)
	Stats(ctx context.Context) (models.SyncStats, error)
	Conflicts(ctx context.Context) ([]models.ConflictRecord, error)
	Resolve(ctx context.Context, conflictID string, resolution models.Resolution) error
}

// ConsentStore reads and writes per-category consent flags.
type ConsentStore interface {
	Set(ctx context.Context, category models.DataCategory, granted bool) error
	Get(ctx context.Context, category models.DataCategory) (bool, error)
}

// Server is the local interception surface.
type Server struct {
	router   CacheHandler
	engine   SyncService
	consents ConsentStore
	security *security.Filter
	logger   *logger.Logger

	httpServer *http.Server
}

// NewServer wires the surface. Call ListenAndServe (or use Handler with a
// test server) to serve it.
func NewServer(router CacheHandler, engine SyncService, consents ConsentStore, sec *security.Filter, cfg config.HTTP, log *logger.Logger) *Server {
	s := &Server{
		router:   router,
		engine:   engine,
		consents: consents,
		security: sec,
		logger:   log,
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	return s
}

// Handler builds the chi route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Use(s.securityHeaders)

	r.HandleFunc("/proxy/*", s.handleProxy)

	r.Route("/api", func(r chi.Router) {
		r.Post("/queue", s.handleEnqueue)
		r.Get("/sync/state", s.handleSyncState)
		r.Post("/sync/drain", s.handleDrain)
		r.Get("/sync/stats", s.handleSyncStats)
		r.Get("/conflicts", s.handleConflicts)
		r.Post("/conflicts/{id}/resolve", s.handleResolve)
		r.Get("/consents/{category}", s.handleGetConsent)
		r.Put("/consents/{category}", s.handleSetConsent)
	})

	return r
}

// ListenAndServe blocks serving the surface until the listener fails or
// Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("local surface listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(started)).
			Msg("request served")
	})
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range s.security.Headers() {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}
