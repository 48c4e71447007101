// Package cache implements the engine's cache router: the component that
// decides, per request, whether to serve from a named cache partition, the
// network, or both, and that owns precaching and versioned partition
// cleanup.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/internal/privacy"
	"github.com/roamlog/roamlog/internal/security"
	"github.com/roamlog/roamlog/internal/store"
	"github.com/roamlog/roamlog/models"
)

// Strategy selects how a request is served.
type Strategy string

const (
	// CacheFirst returns a cached match if present, otherwise fetches and
	// caches. Total failure returns the offline fallback document.
	CacheFirst Strategy = "cache-first"

	// NetworkFirst attempts the network, falling back to cache for GETs and
	// to the pending queue for mutations.
	NetworkFirst Strategy = "network-first"

	// StaleWhileRevalidate returns any cached match immediately and
	// refreshes the entry in the background.
	StaleWhileRevalidate Strategy = "stale-while-revalidate"
)

// Logical partition names. The active version string is appended as
// "{name}-v{version}"; bumping the version is the only supported
// cache-invalidation mechanism.
const (
	PartitionAppShell = "app-shell"
	PartitionRuntime  = "runtime"
	PartitionData     = "data"
)

// PartitionName renders the versioned partition name.
func PartitionName(logical, version string) string {
	return fmt.Sprintf("%s-v%s", logical, version)
}

// Fetcher performs the network half of a routed request.
type Fetcher interface {
	Fetch(ctx context.Context, req models.Request) (models.Response, error)
}

// Enqueuer defers a mutating request into the pending queue when the
// network is unavailable. Implemented by the sync engine.
type Enqueuer interface {
	EnqueueDeferred(ctx context.Context, req models.Request) error
}

// Router applies caching strategies to resource requests. Only the router
// (and the lifecycle manager, via CleanupStale) writes cache partitions.
type Router struct {
	repo     store.CacheRepository
	fetcher  Fetcher
	enqueuer Enqueuer
	security *security.Filter
	privacy  *privacy.Filter
	logger   *logger.Logger

	version      string
	fallbackBody []byte
}

// NewRouter wires the cache router. version is the active cache version;
// fallbackBody is the offline fallback document (a minimal default is used
// when empty).
func NewRouter(
	repo store.CacheRepository,
	fetcher Fetcher,
	enqueuer Enqueuer,
	sec *security.Filter,
	priv *privacy.Filter,
	version string,
	fallbackBody string,
	log *logger.Logger,
) *Router {
	if fallbackBody == "" {
		fallbackBody = `<!doctype html><html><body><h1>Offline</h1><p>This page is unavailable without a connection.</p></body></html>`
	}

	return &Router{
		repo:         repo,
		fetcher:      fetcher,
		enqueuer:     enqueuer,
		security:     sec,
		privacy:      priv,
		logger:       log,
		version:      version,
		fallbackBody: []byte(fallbackBody),
	}
}

// Version returns the active cache version string.
func (rt *Router) Version() string {
	return rt.version
}

// Handle serves req with the given strategy. Requests failing the security
// integrity scan are rejected with 400; requests carrying a disallowed
// Origin header are rejected with 403. Neither is ever cached or queued.
func (rt *Router) Handle(ctx context.Context, req models.Request, strategy Strategy) (models.Response, error) {
	if !rt.security.ValidateRequestIntegrity(req) {
		return rt.securedResponse(http.StatusBadRequest, []byte("request rejected")), nil
	}
	if origin := req.Origin(); origin != "" && !rt.security.IsOriginAllowed(origin) {
		return rt.securedResponse(http.StatusForbidden, []byte("origin not allowed")), nil
	}

	switch strategy {
	case CacheFirst:
		return rt.cacheFirst(ctx, req)
	case NetworkFirst:
		return rt.networkFirst(ctx, req)
	case StaleWhileRevalidate:
		return rt.staleWhileRevalidate(ctx, req)
	default:
		return models.Response{}, fmt.Errorf("unknown cache strategy %q", strategy)
	}
}

func (rt *Router) cacheFirst(ctx context.Context, req models.Request) (models.Response, error) {
	if resp, ok := rt.lookup(ctx, req); ok {
		return resp, nil
	}

	resp, err := rt.fetcher.Fetch(ctx, req)
	if err != nil {
		rt.logger.Debug().Str("url", req.URL).Err(err).Msg("cache-first fetch failed, serving fallback")
		return rt.Fallback(), nil
	}

	if resp.OK() && isGet(req) {
		rt.storeResponse(ctx, PartitionRuntime, req, resp)
	}

	return resp, nil
}

func (rt *Router) networkFirst(ctx context.Context, req models.Request) (models.Response, error) {
	resp, err := rt.fetcher.Fetch(ctx, req)
	if err == nil {
		if resp.OK() && isGet(req) {
			rt.storeResponse(ctx, PartitionRuntime, req, resp)
		}
		return resp, nil
	}

	if req.IsMutation() {
		// Deferred acceptance: the mutation is queued, not failed.
		if qErr := rt.enqueuer.EnqueueDeferred(ctx, req); qErr != nil {
			return models.Response{}, fmt.Errorf("defer mutation %s %s: %w", req.Method, req.URL, qErr)
		}
		return models.QueuedResponse(), nil
	}

	if cached, ok := rt.lookup(ctx, req); ok {
		return cached, nil
	}

	return models.Response{}, fmt.Errorf("network-first %s %s: %w", req.Method, req.URL, err)
}

func (rt *Router) staleWhileRevalidate(ctx context.Context, req models.Request) (models.Response, error) {
	cached, ok := rt.lookup(ctx, req)
	if !ok {
		resp, err := rt.fetcher.Fetch(ctx, req)
		if err != nil {
			return models.Response{}, fmt.Errorf("stale-while-revalidate %s: %w", req.URL, err)
		}
		if resp.OK() && isGet(req) {
			rt.storeResponse(ctx, PartitionRuntime, req, resp)
		}
		return resp, nil
	}

	// Revalidate in the background; the caller is not kept waiting. The
	// refreshed response overwrites the entry for future requests.
	go func() {
		bgCtx := context.WithoutCancel(ctx)
		resp, err := rt.fetcher.Fetch(bgCtx, req)
		if err != nil {
			rt.logger.Debug().Str("url", req.URL).Err(err).Msg("background revalidation failed")
			return
		}
		if resp.OK() && isGet(req) {
			rt.storeResponse(bgCtx, PartitionRuntime, req, resp)
		}
	}()

	return cached, nil
}

// Precache loads every URL of the app shell into the versioned app-shell
// partition. The shell list is all-or-nothing: failure of any single item
// is a hard error for the install step.
func (rt *Router) Precache(ctx context.Context, urls []string) error {
	for _, url := range urls {
		req := models.Request{Method: http.MethodGet, URL: url}

		resp, err := rt.fetcher.Fetch(ctx, req)
		if err != nil {
			return fmt.Errorf("precache %s: %w", url, err)
		}
		if !resp.OK() {
			return fmt.Errorf("precache %s: unexpected status %d", url, resp.StatusCode)
		}

		if !rt.storeResponse(ctx, PartitionAppShell, req, resp) {
			return fmt.Errorf("precache %s: response rejected by filters", url)
		}
	}

	rt.logger.Info().Int("resources", len(urls)).Str("version", rt.version).Msg("app shell precached")
	return nil
}

// CleanupStale deletes every partition whose name does not belong to the
// active version set. The currently active partitions are never deleted.
func (rt *Router) CleanupStale(ctx context.Context) error {
	active := map[string]struct{}{
		PartitionName(PartitionAppShell, rt.version): {},
		PartitionName(PartitionRuntime, rt.version):  {},
		PartitionName(PartitionData, rt.version):     {},
	}

	partitions, err := rt.repo.ListPartitions(ctx)
	if err != nil {
		return fmt.Errorf("list cache partitions: %w", err)
	}

	for _, p := range partitions {
		if _, ok := active[p]; ok {
			continue
		}
		if err := rt.repo.DeletePartition(ctx, p); err != nil {
			return fmt.Errorf("delete stale partition %s: %w", p, err)
		}
		rt.logger.Info().Str("partition", p).Msg("deleted stale cache partition")
	}

	return nil
}

// securedResponse builds a plain-text rejection with the security header
// set.
func (rt *Router) securedResponse(status int, body []byte) models.Response {
	headers := rt.security.Headers()
	headers["Content-Type"] = "text/plain; charset=utf-8"

	return models.Response{
		StatusCode: status,
		Headers:    headers,
		Body:       body,
	}
}

// Fallback returns the fixed offline fallback document with the engine's
// security header set.
func (rt *Router) Fallback() models.Response {
	headers := rt.security.Headers()
	headers["Content-Type"] = "text/html; charset=utf-8"

	return models.Response{
		StatusCode: http.StatusServiceUnavailable,
		Headers:    headers,
		Body:       rt.fallbackBody,
	}
}

// isGet reports whether req is a GET. Cache entries are keyed by URL alone,
// so only GET responses may be stored or served from a partition.
func isGet(req models.Request) bool {
	return strings.EqualFold(req.Method, http.MethodGet)
}

// lookup searches the app-shell partition first, then runtime, for a fresh
// entry keyed by the request URL.
func (rt *Router) lookup(ctx context.Context, req models.Request) (models.Response, bool) {
	if !isGet(req) {
		return models.Response{}, false
	}

	for _, logical := range []string{PartitionAppShell, PartitionRuntime} {
		entry, err := rt.repo.Get(ctx, PartitionName(logical, rt.version), req.URL)
		if err != nil {
			continue
		}
		if entry.Expired(time.Now()) {
			continue
		}

		body := entry.Body
		if entry.Encrypted {
			var decrypted []byte
			if err := rt.privacy.DecryptPayload(string(entry.Body), &decrypted); err != nil {
				rt.logger.Error().Str("key", entry.Key).Err(err).Msg("cache entry decryption failed")
				continue
			}
			body = decrypted
		}

		return models.Response{
			StatusCode: entry.StatusCode,
			Headers:    entry.Headers,
			Body:       body,
			FromCache:  true,
		}, true
	}

	return models.Response{}, false
}

// storeResponse writes resp into the versioned partition after the security
// and privacy filters approve it. Returns whether the entry was written.
func (rt *Router) storeResponse(ctx context.Context, logical string, req models.Request, resp models.Response) bool {
	if !rt.security.ValidateResponse(resp) {
		rt.logger.Warn().Str("url", req.URL).Msg("response failed security validation, not cached")
		return false
	}

	payload := decodePayload(resp)
	if payload != nil && !rt.privacy.ShouldCache(payload) {
		rt.logger.Debug().Str("url", req.URL).Msg("payload rejected by privacy filter, not cached")
		return false
	}

	category := categorize(req.URL)

	entry := models.CacheEntry{
		Partition:  PartitionName(logical, rt.version),
		Key:        req.URL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
		StoredAt:   time.Now(),
		Cacheable:  true,
	}

	if category == models.CategoryLocation {
		var fix models.LocationFix
		_ = json.Unmarshal(resp.Body, &fix)
		entry.ExpiresAt = time.Now().Add(privacy.CacheTTL(fix))

		// Coordinates are coarsened to the configured precision before they
		// touch the store; only the in-flight response keeps full precision.
		if body, ok := privacy.CoarsenLocationBody(resp.Body, rt.privacy.Level()); ok {
			resp.Body = body
			entry.Body = body
		}
	}

	if payload != nil && rt.privacy.NeedsEncryption(payload) {
		blob, err := rt.privacy.EncryptPayload(resp.Body)
		if err != nil {
			rt.logger.Error().Str("url", req.URL).Err(err).Msg("payload encryption failed, not cached")
			return false
		}
		entry.Body = []byte(blob)
		entry.Encrypted = true
	}

	if err := rt.repo.Put(ctx, entry, category); err != nil {
		rt.logger.Error().Str("url", req.URL).Err(err).Msg("cache write failed")
		return false
	}

	return true
}

// decodePayload exposes a JSON response body to the privacy filter's field
// inspection. Non-JSON bodies have no field names to inspect.
func decodePayload(resp models.Response) any {
	if !strings.Contains(strings.ToLower(resp.ContentType()), "json") {
		return nil
	}

	var payload any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil
	}
	return payload
}

func categorize(url string) models.DataCategory {
	switch {
	case strings.Contains(url, "location"):
		return models.CategoryLocation
	case strings.Contains(url, "/api/"):
		return models.CategoryUsage
	default:
		return models.CategorySettings
	}
}
