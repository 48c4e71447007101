package security

import (
	"testing"

	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
	"github.com/stretchr/testify/assert"
)

func newTestFilter(origins ...string) *Filter {
	return NewFilter(origins, logger.Nop())
}

func TestValidateRequestIntegrity(t *testing.T) {
	f := newTestFilter()

	tests := []struct {
		name string
		req  models.Request
		want bool
	}{
		{
			name: "clean GET",
			req:  models.Request{Method: "GET", URL: "https://api.roamlog.test/api/trips"},
			want: true,
		},
		{
			name: "script tag in url",
			req:  models.Request{Method: "GET", URL: "https://api.roamlog.test/?q=<script>alert(1)</script>"},
			want: false,
		},
		{
			name: "javascript scheme in body",
			req:  models.Request{Method: "POST", URL: "https://api.roamlog.test/api/trips", Body: []byte(`{"link":"javascript:void(0)"}`)},
			want: false,
		},
		{
			name: "inline event handler in header",
			req:  models.Request{Method: "GET", URL: "https://api.roamlog.test/", Headers: map[string]string{"X-Note": `<img onerror=alert(1)>`}},
			want: false,
		},
		{
			name: "nil body fails open",
			req:  models.Request{Method: "POST", URL: "https://api.roamlog.test/api/trips"},
			want: true,
		},
		{
			name: "case-insensitive signature",
			req:  models.Request{Method: "POST", URL: "https://api.roamlog.test/", Body: []byte(`<SCRIPT>alert(1)</SCRIPT>`)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ValidateRequestIntegrity(tt.req))
		})
	}
}

func TestValidateResponse(t *testing.T) {
	f := newTestFilter()

	tests := []struct {
		name string
		resp models.Response
		want bool
	}{
		{
			name: "clean html",
			resp: models.Response{Headers: map[string]string{"Content-Type": "text/html"}, Body: []byte("<html><body>ok</body></html>")},
			want: true,
		},
		{
			name: "iframe in html",
			resp: models.Response{Headers: map[string]string{"Content-Type": "text/html"}, Body: []byte(`<iframe src="https://evil.test"></iframe>`)},
			want: false,
		},
		{
			name: "script in javascript response",
			resp: models.Response{Headers: map[string]string{"Content-Type": "application/javascript"}, Body: []byte(`x = "<script>"`)},
			want: false,
		},
		{
			name: "unreadable html body fails closed",
			resp: models.Response{Headers: map[string]string{"Content-Type": "text/html"}},
			want: false,
		},
		{
			name: "json is not scanned",
			resp: models.Response{Headers: map[string]string{"Content-Type": "application/json"}, Body: []byte(`{"note":"<script>"}`)},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ValidateResponse(tt.resp))
		})
	}
}

func TestIsOriginAllowed_DefaultDeny(t *testing.T) {
	empty := newTestFilter()
	assert.False(t, empty.IsOriginAllowed("https://roamlog.test"), "empty allow-list must deny")

	f := newTestFilter("https://roamlog.test")
	assert.True(t, f.IsOriginAllowed("https://roamlog.test"))
	assert.True(t, f.IsOriginAllowed("https://roamlog.test/"), "trailing slash must not matter")
	assert.False(t, f.IsOriginAllowed("https://evil.test"))
	assert.False(t, f.IsOriginAllowed(""), "absent origin must be denied")
}

func TestAllowOrigin(t *testing.T) {
	f := newTestFilter()
	f.AllowOrigin("https://added.test")
	assert.True(t, f.IsOriginAllowed("https://added.test"))
}

func TestHeaders_FixedSet(t *testing.T) {
	h := newTestFilter().Headers()

	assert.Equal(t, "nosniff", h["X-Content-Type-Options"])
	assert.Equal(t, "DENY", h["X-Frame-Options"])
	assert.Contains(t, h["Strict-Transport-Security"], "max-age=")
	assert.Contains(t, h["Content-Security-Policy"], "default-src 'self'")
}
