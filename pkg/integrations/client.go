package integrations

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ulauncher/extapi/pkg/cache"
	apperrors "github.com/ulauncher/extapi/pkg/errors"
	"github.com/ulauncher/extapi/pkg/httputil"
	"github.com/ulauncher/extapi/pkg/observability"
)

// maxBodySize caps how much of an upstream response is read into memory.
const maxBodySize = 4 << 20

// Client provides shared HTTP functionality for upstream API clients.
// It handles caching, retry logic, and common request headers.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	prefix  string
	ttl     time.Duration
	headers map[string]string
	retry   httputil.Policy
	logger  *log.Logger
}

// NewClient creates a Client with the given cache and default headers.
// Cache keys are namespaced with prefix and stored for ttl.
// Headers are applied to all requests made through this client.
// Pass nil for headers if no default headers are needed.
func NewClient(c cache.Cache, prefix string, ttl time.Duration, headers map[string]string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		http:    NewHTTPClient(0),
		cache:   c,
		prefix:  prefix,
		ttl:     ttl,
		headers: headers,
		retry:   httputil.DefaultPolicy,
		logger:  log.Default(),
	}
}

// SetHTTPClient replaces the underlying transport client.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

// SetRetry replaces the retry policy.
func (c *Client) SetRetry(p httputil.Policy) { c.retry = p }

// SetLogger replaces the logger used for rate-limit diagnostics.
func (c *Client) SetLogger(l *log.Logger) {
	if l != nil {
		c.logger = l
	}
}

// Cached retrieves raw bytes from cache or executes fetch and caches the result.
// If refresh is true, the cache read is skipped but the fresh value is still
// written so other readers benefit. keyType labels the cache metrics.
// Cache failures are logged and never fail the call.
func (c *Client) Cached(ctx context.Context, key, keyType string, refresh bool, fetch func() ([]byte, error)) ([]byte, error) {
	key = c.prefix + key
	hooks := observability.Cache()

	if !refresh {
		data, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("cache read failed", "key", key, "error", err)
		}
		if ok {
			hooks.OnCacheHit(ctx, keyType)
			return data, nil
		}
		hooks.OnCacheMiss(ctx, keyType)
	}

	var data []byte
	err := c.retry.Do(ctx, func() error {
		var err error
		data, err = fetch()
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	} else {
		hooks.OnCacheSet(ctx, keyType, len(data))
	}
	return data, nil
}

// GetBytes performs a single HTTP GET and returns the body.
// It does not retry; wrap it in [Client.Cached] or [httputil.Retry].
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	return c.doRequest(ctx, url)
}

func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %w", ErrNetwork, err)}
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))

	if remaining, ok := rateLimitRemaining(resp.Header); ok {
		c.logger.Debug("rate limit", "host", host, "remaining", remaining)
		hooks.OnRateLimit(ctx, host, remaining)
	}

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: read body: %v", ErrNetwork, err)}
	}
	if len(data) > maxBodySize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBodySize)
	}
	return data, nil
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests,
		code == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return &apperrors.RateLimitedError{
			RetryAfter: retryAfter(resp.Header, time.Now()),
			Message:    fmt.Sprintf("status %d", code),
		}
	case code >= 500:
		return &httputil.RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
