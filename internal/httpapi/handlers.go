package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/roamlog/roamlog/internal/adapter"
	"github.com/roamlog/roamlog/internal/cache"
	"github.com/roamlog/roamlog/internal/store"
	"github.com/roamlog/roamlog/internal/syncengine"
	"github.com/roamlog/roamlog/models"
)

// Static asset extensions served stale-while-revalidate: content that can
// be a revision behind without breaking the page.
var assetExtensions = map[string]struct{}{
	".css": {}, ".js": {}, ".mjs": {}, ".svg": {}, ".png": {}, ".jpg": {},
	".jpeg": {}, ".webp": {}, ".ico": {}, ".woff": {}, ".woff2": {},
}

// strategyFor classifies a proxied path: API data goes network-first so the
// user sees fresh data whenever possible, assets tolerate staleness, and
// documents are served cache-first with the offline fallback behind them.
func strategyFor(urlPath string) cache.Strategy {
	switch {
	case strings.HasPrefix(urlPath, "/api/"):
		return cache.NetworkFirst
	default:
		if _, ok := assetExtensions[strings.ToLower(path.Ext(urlPath))]; ok {
			return cache.StaleWhileRevalidate
		}
		return cache.CacheFirst
	}
}

// handleProxy routes one intercepted request through the cache router.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimPrefix(r.URL.Path, "/proxy")
	if target == "" {
		target = "/"
	}
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	req := models.Request{
		Method:  r.Method,
		URL:     target,
		Headers: headers,
		Body:    body,
	}

	resp, err := s.router.Handle(r.Context(), req, strategyFor(target))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if resp.FromCache {
		w.Header().Set("X-Served-From", "cache")
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req models.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	op, err := s.engine.Enqueue(r.Context(), req)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"queued":       true,
		"operation_id": op.ID,
	})
}

func (s *Server) handleSyncState(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.State(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	size := 0
	if raw := r.URL.Query().Get("batch"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, errors.New("batch must be a positive integer"))
			return
		}
		size = parsed
	}

	report, err := s.engine.DrainBatch(r.Context(), size)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSyncStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := s.engine.Conflicts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if conflicts == nil {
		conflicts = []models.ConflictRecord{}
	}
	s.writeJSON(w, http.StatusOK, conflicts)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Resolution models.Resolution `json:"resolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	conflictID := chi.URLParam(r, "id")
	if err := s.engine.Resolve(r.Context(), conflictID, body.Resolution); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	category := models.DataCategory(chi.URLParam(r, "category"))
	granted, err := s.consents.Get(r.Context(), category)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"granted":  granted,
	})
}

func (s *Server) handleSetConsent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Granted bool `json:"granted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	category := models.DataCategory(chi.URLParam(r, "category"))
	if err := s.consents.Set(r.Context(), category, body.Granted); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps engine errors to HTTP statuses on the local surface.
func statusFor(err error) int {
	switch {
	case errors.Is(err, adapter.ErrValidation),
		errors.Is(err, syncengine.ErrSensitivePayload):
		return http.StatusBadRequest
	case errors.Is(err, syncengine.ErrConsentDenied):
		return http.StatusForbidden
	case errors.Is(err, adapter.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Debug().Int("status", status).Err(err).Msg("request failed")
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
