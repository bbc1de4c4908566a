// Package backoff provides an http.RoundTripper that retries rate-limited and
// server-error responses with exponential backoff and jitter.
package backoff

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// Transport retries requests answered with 429 or 5xx. Transport-level
// errors (DNS, refused connections, cancelled contexts) are returned
// immediately. When the final attempt still gets a retryable status, that
// response is returned to the caller unchanged.
type Transport struct {
	base        http.RoundTripper
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

func NewTransport(base http.RoundTripper, maxAttempts int, baseDelay time.Duration, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{base: base, maxAttempts: maxAttempts, baseDelay: baseDelay, logger: logger}
}

// NewClient returns an *http.Client whose transport retries with backoff.
func NewClient(maxAttempts int, baseDelay time.Duration, logger *slog.Logger) *http.Client {
	return &http.Client{Transport: NewTransport(nil, maxAttempts, baseDelay, logger)}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.GetBody == nil {
		if err := bufferBody(req); err != nil {
			return nil, err
		}
	}

	policy := retry.WithMaxRetries(uint64(t.maxAttempts-1),
		retry.WithJitter(t.baseDelay/2, retry.NewExponential(t.baseDelay)))

	var resp *http.Response
	attempt := 0
	err := retry.Do(req.Context(), policy, func(ctx context.Context) error {
		attempt++
		r := req
		if attempt > 1 {
			var err error
			if r, err = rewind(req); err != nil {
				return err
			}
		}

		res, err := t.base.RoundTrip(r)
		if err != nil {
			return err
		}

		if Retryable(res.StatusCode) && attempt < t.maxAttempts {
			discard(res)
			t.logger.Warn("retrying request",
				"host", req.URL.Host,
				"status", res.StatusCode,
				"attempt", attempt,
				"max_attempts", t.maxAttempts,
			)
			return retry.RetryableError(fmt.Errorf("upstream returned status %d", res.StatusCode))
		}

		resp = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Retryable reports whether status warrants another attempt.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func bufferBody(req *http.Request) error {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("failed to buffer request body: %w", err)
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil
}

func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		r.Body = body
	}
	return r, nil
}

func discard(res *http.Response) {
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}
