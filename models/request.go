package models

import (
	"net/http"
	"strings"
	"time"
)

// Request is the HTTP-like envelope routed through the cache router and the
// lifecycle fetcher. It is deliberately smaller than net/http.Request: the
// body is fully materialized so filters can scan it without consuming a
// stream.
type Request struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// Response is the result of serving a Request from cache or network.
type Response struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`

	// FromCache reports whether the response was served from a cache
	// partition rather than the network.
	FromCache bool `json:"from_cache,omitempty"`
}

// IsMutation reports whether the request uses a non-idempotent method that
// must be queued instead of retried against the cache.
func (r Request) IsMutation() bool {
	switch strings.ToUpper(r.Method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Origin returns the request's Origin header, or an empty string.
func (r Request) Origin() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers["Origin"]
}

// ContentType returns the response content type, or an empty string.
func (r Response) ContentType() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers["Content-Type"]
}

// OK reports whether the status code is in the 2xx range.
func (r Response) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// QueuedResponse is the 202-equivalent acknowledgement returned for a
// mutation that was deferred into the pending queue.
func QueuedResponse() Response {
	return Response{
		StatusCode: http.StatusAccepted,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(`{"queued":true}`),
	}
}

// CacheEntry is a stored (request-key, response) pair inside a named,
// versioned cache partition.
type CacheEntry struct {
	Partition  string            `json:"partition" db:"partition"`
	Key        string            `json:"key" db:"key"`
	StatusCode int               `json:"status_code" db:"status_code"`
	Headers    map[string]string `json:"headers" db:"headers"`
	Body       []byte            `json:"body" db:"body"`
	StoredAt   time.Time         `json:"stored_at" db:"stored_at"`
	ExpiresAt  time.Time         `json:"expires_at" db:"expires_at"`

	// Privacy tags recorded at write time.
	Cacheable bool `json:"cacheable" db:"cacheable"`
	Encrypted bool `json:"encrypted" db:"encrypted"`
}

// Expired reports whether the entry's retention window has elapsed. A zero
// ExpiresAt means no expiry.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}
