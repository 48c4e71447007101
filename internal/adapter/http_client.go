package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/roamlog/roamlog/internal/config"
	"github.com/roamlog/roamlog/internal/logger"
	"github.com/roamlog/roamlog/models"
)

type httpRemoteAdapter struct {
	client *resty.Client
	logger *logger.Logger

	versionPath string

	mu    sync.RWMutex
	token string
}

// NewHTTPRemoteAdapter constructs an HTTP/REST implementation of
// [RemoteAdapter]. It normalises and validates the base URL from
// cfg.BaseURL and configures the underlying client with the resolved base
// URL and request timeout.
//
// Returns an error if cfg.BaseURL is empty or cannot be parsed as a valid
// URL.
func NewHTTPRemoteAdapter(cfg config.Remote, log *logger.Logger) (RemoteAdapter, error) {
	baseURL, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote base url: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &httpRemoteAdapter{
		client:      cli,
		logger:      log,
		versionPath: cfg.VersionPath,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// SetToken implements [RemoteAdapter]. It stores token (whitespace-trimmed)
// for use in the Authorization header of all subsequent requests.
func (h *httpRemoteAdapter) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

// Token implements [RemoteAdapter]. An expired bearer token reads as empty
// so callers re-authenticate instead of replaying with a dead credential.
func (h *httpRemoteAdapter) Token() string {
	h.mu.RLock()
	token := h.token
	h.mu.RUnlock()

	if token != "" && tokenExpired(token) {
		return ""
	}
	return token
}

// tokenExpired checks the JWT exp claim without verifying the signature;
// verification is the server's job, the client only needs to know whether
// re-authentication is due.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Opaque tokens cannot be inspected; let the server decide.
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

// Replay implements [RemoteAdapter]. The endpoint is derived from the
// operation: POST /api/{entityType} for create, PUT /api/{entityType}/{id}
// for update, DELETE /api/{entityType}/{id} for delete.
func (h *httpRemoteAdapter) Replay(ctx context.Context, op models.Operation) error {
	req := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json")

	var resp *resty.Response
	var err error

	switch op.Kind {
	case models.OperationCreate:
		resp, err = req.SetBody(op.Payload).Post("/api/" + op.EntityType)
	case models.OperationUpdate:
		id := op.EntityID()
		if id == "" {
			return fmt.Errorf("%w: update payload missing id", ErrValidation)
		}
		resp, err = req.SetBody(op.Payload).Put("/api/" + op.EntityType + "/" + id)
	case models.OperationDelete:
		id := op.EntityID()
		if id == "" {
			return fmt.Errorf("%w: delete payload missing id", ErrValidation)
		}
		resp, err = req.Delete("/api/" + op.EntityType + "/" + id)
	default:
		return fmt.Errorf("%w: unknown operation kind %q", ErrValidation, op.Kind)
	}

	if err != nil {
		return fmt.Errorf("replay %s %s: %w", op.Kind, op.EntityType, classifyTransportError(err))
	}

	return mapHTTPError(resp)
}

// Fetch implements [RemoteAdapter].
func (h *httpRemoteAdapter) Fetch(ctx context.Context, req models.Request) (models.Response, error) {
	r := h.authedRequest(ctx)
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(strings.ToUpper(req.Method), req.URL)
	if err != nil {
		return models.Response{}, fmt.Errorf("fetch %s %s: %w", req.Method, req.URL, classifyTransportError(err))
	}

	headers := make(map[string]string, len(resp.Header()))
	for k := range resp.Header() {
		headers[k] = resp.Header().Get(k)
	}

	return models.Response{
		StatusCode: resp.StatusCode(),
		Headers:    headers,
		Body:       resp.Body(),
	}, nil
}

// FetchRemoteVersion implements [RemoteAdapter].
func (h *httpRemoteAdapter) FetchRemoteVersion(ctx context.Context) (string, error) {
	resp, err := h.client.R().SetContext(ctx).Get(h.versionPath)
	if err != nil {
		return "", fmt.Errorf("fetch remote version: %w", classifyTransportError(err))
	}
	if err = mapHTTPError(resp); err != nil {
		return "", err
	}

	// The marker is either a bare string or {"version": "..."}.
	body := strings.TrimSpace(string(resp.Body()))
	var marker struct {
		Version string `json:"version"`
	}
	if jsonErr := json.Unmarshal(resp.Body(), &marker); jsonErr == nil && marker.Version != "" {
		return marker.Version, nil
	}

	return strings.Trim(body, `"`), nil
}

// GetEntity implements [RemoteEntity].
func (h *httpRemoteAdapter) GetEntity(ctx context.Context, entityType, id string) (map[string]any, error) {
	resp, err := h.authedRequest(ctx).Get("/api/" + entityType + "/" + id)
	if err != nil {
		return nil, fmt.Errorf("get entity %s/%s: %w", entityType, id, classifyTransportError(err))
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	var entity map[string]any
	if err = json.Unmarshal(resp.Body(), &entity); err != nil {
		return nil, fmt.Errorf("decode entity %s/%s: %w", entityType, id, err)
	}

	return entity, nil
}

func (h *httpRemoteAdapter) authedRequest(ctx context.Context) *resty.Request {
	r := h.client.R().SetContext(ctx)
	if token := h.Token(); token != "" {
		r.SetHeader("Authorization", "Bearer "+token)
	}
	return r
}
