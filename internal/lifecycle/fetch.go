package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roamlog/roamlog/internal/adapter"
	"github.com/roamlog/roamlog/internal/cache"
	"github.com/roamlog/roamlog/models"
)

// FetchWithTimeout performs req and aborts it at the deadline. An aborted
// fetch surfaces as a timeout so callers can treat it like any other
// retryable network failure.
func FetchWithTimeout(ctx context.Context, fetcher cache.Fetcher, req models.Request, timeout time.Duration) (models.Response, error) {
	if timeout <= 0 {
		return fetcher.Fetch(ctx, req)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := fetcher.Fetch(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Response{}, fmt.Errorf("%w: fetch %s aborted after %s", adapter.ErrTimeout, req.URL, timeout)
		}
		return models.Response{}, err
	}

	return resp, nil
}
