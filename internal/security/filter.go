// Package security rejects requests and responses that look like injection
// attempts before they are cached or replayed, and maintains the origin
// allow-list consulted by the cache router and the sync engine.
package security

import (
	"regexp"
	"strings"
	"sync"

	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
)

// Injection signatures scanned against URLs, headers, and bodies. The set is
// fixed; origins, not signatures, are the configurable part of this filter.
var requestSignatures = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[\s>]`),
	regexp.MustCompile(`(?i)</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\bon(load|error|click|mouseover|focus|submit)\s*=`),
}

// Responses additionally reject embedded frame and plugin tags.
var responseSignatures = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<iframe[\s>]`),
	regexp.MustCompile(`(?i)<object[\s>]`),
	regexp.MustCompile(`(?i)<embed[\s>]`),
}

// Filter validates payload integrity and enforces the origin allow-list.
type Filter struct {
	logger *logger.Logger

	mu      sync.RWMutex
	origins map[string]struct{}
}

// NewFilter constructs a Filter with the given origin allow-list. An empty
// list denies every origin.
func NewFilter(allowedOrigins []string, log *logger.Logger) *Filter {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins[strings.TrimRight(o, "/")] = struct{}{}
		}
	}

	return &Filter{logger: log, origins: origins}
}

// ValidateRequestIntegrity scans the request URL, headers, and body against
// the injection signature set. A nil body is treated as valid: only readable
// content can be judged, and requests fail open on unreadable bodies.
func (f *Filter) ValidateRequestIntegrity(req models.Request) bool {
	if matchesAny(req.URL, requestSignatures) {
		f.logger.Warn().Str("url", req.URL).Msg("request url failed integrity scan")
		return false
	}

	for k, v := range req.Headers {
		if matchesAny(k, requestSignatures) || matchesAny(v, requestSignatures) {
			f.logger.Warn().Str("url", req.URL).Str("header", k).Msg("request header failed integrity scan")
			return false
		}
	}

	if req.Body != nil && matchesAny(string(req.Body), requestSignatures) {
		f.logger.Warn().Str("url", req.URL).Msg("request body failed integrity scan")
		return false
	}

	return true
}

// ValidateResponse scans HTML and JavaScript response bodies against the
// request signature set plus the frame/plugin patterns. Responses with an
// unreadable (nil) body of a scannable content type are invalid: responses
// fail closed.
func (f *Filter) ValidateResponse(resp models.Response) bool {
	ct := strings.ToLower(resp.ContentType())
	scannable := strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "javascript")
	if !scannable {
		return true
	}

	if resp.Body == nil {
		return false
	}

	body := string(resp.Body)
	if matchesAny(body, requestSignatures) || matchesAny(body, responseSignatures) {
		f.logger.Warn().Str("content_type", ct).Msg("response body failed validation scan")
		return false
	}

	return true
}

// IsOriginAllowed reports whether origin is on the allow-list. An empty list
// or an empty origin is denied: default-deny.
func (f *Filter) IsOriginAllowed(origin string) bool {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.origins) == 0 {
		return false
	}
	_, ok := f.origins[origin]
	return ok
}

// AllowOrigin adds origin to the allow-list.
func (f *Filter) AllowOrigin(origin string) {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.origins[origin] = struct{}{}
}

// Headers returns the fixed security header set attached to every response
// the engine originates itself (e.g. offline fallback pages).
func (f *Filter) Headers() map[string]string {
	return map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Content-Security-Policy":   "default-src 'self'; script-src 'self'; object-src 'none'; frame-ancestors 'none'",
	}
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
