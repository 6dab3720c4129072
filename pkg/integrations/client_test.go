package integrations

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ulauncher/extapi/pkg/cache"
	apperrors "github.com/ulauncher/extapi/pkg/errors"
	"github.com/ulauncher/extapi/pkg/httputil"
)

func testClient(t *testing.T, server *httptest.Server, headers map[string]string) (*Client, *cache.FileCache) {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(c, "test:", time.Hour, headers)
	if server != nil {
		client.SetHTTPClient(server.Client())
	}
	client.SetRetry(httputil.Policy{Attempts: 2, Delay: time.Millisecond})
	return client, c
}

func TestNewClient(t *testing.T) {
	headers := map[string]string{"Authorization": "Bearer token"}
	client, c := testClient(t, nil, headers)

	if client.http == nil {
		t.Error("NewClient() http client is nil")
	}
	if client.cache != cache.Cache(c) {
		t.Error("NewClient() cache not set correctly")
	}
	if client.headers["Authorization"] != "Bearer token" {
		t.Error("NewClient() headers not set correctly")
	}
}

func TestNewClientNilCache(t *testing.T) {
	client := NewClient(nil, "", 0, nil)
	if client.cache == nil {
		t.Fatal("NewClient(nil) should fall back to a null cache")
	}
}

func TestClientGetBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Timer"}`))
	}))
	defer server.Close()

	client, _ := testClient(t, server, nil)

	data, err := client.GetBytes(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetBytes() error: %v", err)
	}
	if string(data) != `{"name":"Timer"}` {
		t.Errorf("GetBytes() = %q", data)
	}
}

func TestClientGetBytes404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, _ := testClient(t, server, nil)

	_, err := client.GetBytes(context.Background(), server.URL)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBytes() error = %v, want ErrNotFound", err)
	}
}

func TestClientCached500IsRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := testClient(t, server, nil)

	_, err := client.Cached(context.Background(), "k", "repo", false, func() ([]byte, error) {
		return client.GetBytes(context.Background(), server.URL)
	})
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
	if !httputil.IsRetryable(err) {
		t.Errorf("error should be RetryableError, got %T", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestClientGetBytesTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("a"), maxBodySize+1))
	}))
	defer server.Close()

	client, _ := testClient(t, server, nil)

	_, err := client.GetBytes(context.Background(), server.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("GetBytes() error = %v, want ErrTooLarge", err)
	}
	if httputil.IsRetryable(err) {
		t.Error("oversized responses should not be retried")
	}
}

func TestClientGetBytesAtLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("a"), maxBodySize))
	}))
	defer server.Close()

	client, _ := testClient(t, server, nil)

	data, err := client.GetBytes(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetBytes() error: %v", err)
	}
	if len(data) != maxBodySize {
		t.Errorf("len = %d, want %d", len(data), maxBodySize)
	}
}

func TestClientRateLimited(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, _ := testClient(t, server, nil)

	_, err := client.Cached(context.Background(), "k", "repo", false, func() ([]byte, error) {
		return client.GetBytes(context.Background(), server.URL)
	})
	var rl *apperrors.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want RateLimitedError", err)
	}
	if rl.RetryAfter != 60 {
		t.Errorf("RetryAfter = %d, want 60", rl.RetryAfter)
	}
	if calls != 1 {
		t.Errorf("rate-limited requests should not be retried, calls = %d", calls)
	}
}

func TestClientCached(t *testing.T) {
	client, _ := testClient(t, nil, nil)
	ctx := context.Background()

	fetchCount := 0
	fetch := func() ([]byte, error) {
		fetchCount++
		return []byte("fetched"), nil
	}

	for range 2 {
		data, err := client.Cached(ctx, "key", "repo", false, fetch)
		if err != nil {
			t.Fatalf("Cached() error: %v", err)
		}
		if string(data) != "fetched" {
			t.Errorf("Cached() = %q", data)
		}
	}
	if fetchCount != 1 {
		t.Errorf("fetch count = %d, want 1", fetchCount)
	}
}

func TestClientCachedRefresh(t *testing.T) {
	client, c := testClient(t, nil, nil)
	ctx := context.Background()

	if err := c.Set(ctx, "test:key", []byte("stale"), time.Hour); err != nil {
		t.Fatal(err)
	}

	data, err := client.Cached(ctx, "key", "repo", true, func() ([]byte, error) {
		return []byte("fresh"), nil
	})
	if err != nil {
		t.Fatalf("Cached() error: %v", err)
	}
	if string(data) != "fresh" {
		t.Errorf("Cached(refresh) = %q, want fresh", data)
	}

	stored, _, _ := c.Get(ctx, "test:key")
	if string(stored) != "fresh" {
		t.Errorf("refresh should overwrite cache, got %q", stored)
	}
}

func TestClientCachedFetchError(t *testing.T) {
	client, c := testClient(t, nil, nil)
	ctx := context.Background()

	_, err := client.Cached(ctx, "missing", "file", false, func() ([]byte, error) {
		return nil, ErrNotFound
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Cached() error = %v, want ErrNotFound", err)
	}
	if _, ok, _ := c.Get(ctx, "test:missing"); ok {
		t.Error("failed fetch should not be cached")
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name        string
		code        int
		header      map[string]string
		wantErr     bool
		wantType    error
		isRetryErr  bool
		isRateLimit bool
	}{
		{name: "200 OK", code: 200},
		{name: "404 Not Found", code: 404, wantErr: true, wantType: ErrNotFound},
		{name: "500", code: 500, wantErr: true, isRetryErr: true, wantType: ErrNetwork},
		{name: "502", code: 502, wantErr: true, isRetryErr: true, wantType: ErrNetwork},
		{name: "400", code: 400, wantErr: true, wantType: ErrNetwork},
		{name: "403 without rate limit", code: 403, wantErr: true, wantType: ErrNetwork},
		{name: "403 rate limit", code: 403, header: map[string]string{"X-RateLimit-Remaining": "0"}, wantErr: true, isRateLimit: true},
		{name: "429", code: 429, wantErr: true, isRateLimit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.code, Header: http.Header{}}
			for k, v := range tt.header {
				resp.Header.Set(k, v)
			}
			err := checkStatus(resp)

			if !tt.wantErr {
				if err != nil {
					t.Errorf("checkStatus() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("checkStatus() should return error")
			}
			if tt.wantType != nil && !errors.Is(err, tt.wantType) {
				t.Errorf("checkStatus() error = %v, want %v", err, tt.wantType)
			}
			if httputil.IsRetryable(err) != tt.isRetryErr {
				t.Errorf("retryable = %v, want %v", httputil.IsRetryable(err), tt.isRetryErr)
			}
			var rl *apperrors.RateLimitedError
			if errors.As(err, &rl) != tt.isRateLimit {
				t.Errorf("rate limited = %v, want %v", !tt.isRateLimit, tt.isRateLimit)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	h := http.Header{}
	h.Set("X-RateLimit-Reset", "1700000120")
	if got := retryAfter(h, now); got != 120 {
		t.Errorf("retryAfter(reset) = %d, want 120", got)
	}

	h.Set("Retry-After", "5")
	if got := retryAfter(h, now); got != 5 {
		t.Errorf("retryAfter(Retry-After) = %d, want 5", got)
	}

	if got := retryAfter(http.Header{}, now); got != 0 {
		t.Errorf("retryAfter(empty) = %d, want 0", got)
	}
}
