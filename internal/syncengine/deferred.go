package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/roamlog/roamlog/internal/adapter"
	"github.com/roamlog/roamlog/models"
)

// EnqueueDeferred converts a mutating HTTP request that could not reach the
// network into a queued operation. The entity type and identifier come from
// the request path, the payload from the JSON body.
func (e *Engine) EnqueueDeferred(ctx context.Context, req models.Request) error {
	kind, err := kindFromMethod(req.Method)
	if err != nil {
		return err
	}

	entityType, entityID, err := splitEntityPath(req.URL)
	if err != nil {
		return err
	}

	payload := map[string]any{}
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &payload); err != nil {
			return fmt.Errorf("%w: deferred request body is not json: %v", adapter.ErrValidation, err)
		}
	}
	if entityID != "" {
		payload["id"] = entityID
	}

	_, err = e.Enqueue(ctx, models.EnqueueRequest{
		Kind:       kind,
		EntityType: entityType,
		Payload:    payload,
		Priority:   models.PriorityNormal,
	})
	return err
}

func kindFromMethod(method string) (models.OperationKind, error) {
	switch strings.ToUpper(method) {
	case http.MethodPost:
		return models.OperationCreate, nil
	case http.MethodPut, http.MethodPatch:
		return models.OperationUpdate, nil
	case http.MethodDelete:
		return models.OperationDelete, nil
	default:
		return "", fmt.Errorf("%w: method %s cannot be deferred", adapter.ErrValidation, method)
	}
}

// splitEntityPath extracts "{entityType}" and an optional "{id}" from an
// "/api/{entityType}[/{id}]" path. Query strings are ignored.
func splitEntityPath(url string) (string, string, error) {
	path := url
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")

	parts := strings.Split(path, "/")
	if len(parts) >= 2 && parts[0] == "api" {
		parts = parts[1:]
	}

	switch {
	case len(parts) == 1 && parts[0] != "":
		return parts[0], "", nil
	case len(parts) >= 2:
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("%w: cannot derive entity from path %q", adapter.ErrValidation, url)
	}
}
