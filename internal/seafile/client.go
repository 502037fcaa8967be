package seafile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/tonimelisma/seafile-filelink/internal/origin"
)

// Retry and backoff constants.
const (
	maxRetries     = 3
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// DefaultUserAgent is sent when the caller does not configure one.
const DefaultUserAgent = "seafile-filelink/0.1"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 * 1024

// Client issues requests against one Seafile server. Its only mutable state
// is the API token, set by Authenticate or SetToken. Metadata calls and
// uploads use separate HTTP clients so a short metadata timeout never cuts
// off a large upload.
type Client struct {
	origin       origin.Origin
	httpClient   *http.Client
	transferHTTP *http.Client
	userAgent    string
	logger       *slog.Logger

	mu    sync.RWMutex
	token string

	// sleepFunc is called to wait between retries. Tests override this to
	// avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Seafile API client for the server at o. Nil HTTP
// clients fall back to http.DefaultClient.
func NewClient(o origin.Origin, httpClient, transferHTTP *http.Client, logger *slog.Logger, userAgent string) *Client {
	if o.IsZero() {
		panic("seafile: NewClient called with zero origin")
	}

	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if transferHTTP == nil {
		transferHTTP = httpClient
	}

	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		origin:       o,
		httpClient:   httpClient,
		transferHTTP: transferHTTP,
		userAgent:    userAgent,
		logger:       logger,
		sleepFunc:    timeSleep,
	}
}

// Origin returns the server this client talks to.
func (c *Client) Origin() origin.Origin {
	return c.origin
}

// SetToken installs an API token obtained elsewhere (for example one read
// back from the vault).
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
}

// Token returns the current API token, or "" if none is set.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token
}

// requireToken returns the token or ErrUnauthenticated.
func (c *Client) requireToken(op string) (string, error) {
	tok := c.Token()
	if tok == "" {
		return "", &APIError{Op: op, Err: ErrUnauthenticated}
	}

	return tok, nil
}

// request describes one API call. body is a byte slice rather than a reader
// so the request can be replayed on retry.
type request struct {
	method      string
	path        string // relative to origin, including query
	contentType string
	body        []byte
	header      http.Header
	auth        bool
}

// do executes an API request. GET and DELETE requests are retried with
// exponential backoff on network errors and 408/429/5xx; other methods are
// sent once. Non-2xx responses return *statusError. The caller closes the
// response body on success.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	url := c.origin.String() + r.path
	retry := r.method == http.MethodGet || r.method == http.MethodDelete

	var attempt int
	for {
		resp, err := c.doOnce(ctx, c.httpClient, url, r)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request canceled: %w", ctx.Err())
			}

			if retry && attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", r.method),
					slog.String("path", r.path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", r.method),
				slog.String("path", r.path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if retry && isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", r.method),
				slog.String("path", r.path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("request canceled: %w", err)
			}

			attempt++

			continue
		}

		return nil, &statusError{
			code:   resp.StatusCode,
			reason: normalizeReason(errBody),
			header: resp.Header,
		}
	}
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, hc *http.Client, url string, r request) (*http.Response, error) {
	var body io.Reader = http.NoBody
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if r.auth {
		req.Header.Set("Authorization", "Token "+c.Token())
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	return hc.Do(req)
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
