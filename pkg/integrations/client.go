package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/runghost/runghost/pkg/audit"
	"github.com/runghost/runghost/pkg/httputil"
)

// Client provides shared HTTP functionality for all outbound API clients.
// It enforces a requests-per-second ceiling through a token bucket, retries
// transient failures with jittered backoff, and reports every attempt to the
// audit logger.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	auditor audit.Logger
	service string
	headers map[string]string
}

// NewClient creates a Client for the named service ("registry", "github").
// limiter may be nil to disable rate limiting; auditor may be nil to disable
// auditing. Headers are applied to every request made through this client.
func NewClient(service string, limiter *rate.Limiter, auditor audit.Logger, headers map[string]string) *Client {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &Client{
		http:    NewHTTPClient(),
		limiter: limiter,
		auditor: auditor,
		service: service,
		headers: headers,
	}
}

// Get performs an HTTP GET and JSON-decodes the response into v.
// 429 and 5xx responses are retried with exponential backoff; 404 returns
// [ErrNotFound]; other 4xx responses fail without retrying.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	var body []byte
	err := httputil.RetryWithBackoff(ctx, func() error {
		data, err := c.attempt(ctx, url)
		if err != nil {
			return err
		}
		body = data
		return nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// attempt issues a single request. Exactly one audit entry is recorded per
// attempt, so retried calls show up once per try.
func (c *Client) attempt(ctx context.Context, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	entry := audit.Begin(c.service, http.MethodGet, url)
	data, status, err := c.do(ctx, url)

	entry.Status = status
	if err != nil {
		entry.Error = err.Error()
	}
	c.auditor.Record(ctx, audit.Finish(entry))

	if err != nil {
		return nil, err
	}
	if err := checkStatus(status); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures are retriable transport errors.
		return nil, 0, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	return data, resp.StatusCode, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests || code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
