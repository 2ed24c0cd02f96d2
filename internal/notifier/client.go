package notifier

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NewClient returns the HTTP client shared by the sinks. Connection errors,
// 429 and 5xx responses are retried up to retries times.
func NewClient(retries int, timeout time.Duration, logger *slog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Backoff = retryablehttp.DefaultBackoff
	rc.HTTPClient = &http.Client{Timeout: timeout}
	rc.Logger = logger.With("component", "notifier")
	rc.CheckRetry = checkRetry
	return rc.StandardClient()
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	default:
		return false, nil
	}
}
