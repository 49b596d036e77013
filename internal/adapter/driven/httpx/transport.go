// Package httpx builds the HTTP clients shared by the provider adapters.
package httpx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/fitflow/internal/domain/model"
)

// maxBodyBytes bounds how much of a provider response is read into memory.
const maxBodyBytes = 32 << 20

// defaultBackoff applies when a 429 response carries no usable Retry-After.
const defaultBackoff = 60 * time.Second

// RateLimitedTransport throttles requests with a token bucket and holds
// further requests back after the provider answers 429.
type RateLimitedTransport struct {
	Base http.RoundTripper

	limiter *rate.Limiter

	mu      sync.Mutex
	retryAt time.Time
}

// NewRateLimitedTransport wraps base so that at most rps requests per second
// leave the process, with bursts of up to burst requests.
func NewRateLimitedTransport(base http.RoundTripper, rps float64, burst int) *RateLimitedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &RateLimitedTransport{
		Base:    base,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	t.mu.Lock()
	retryAt := t.retryAt
	t.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		backoff := defaultBackoff
		if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			backoff = time.Duration(secs) * time.Second
		}
		t.mu.Lock()
		t.retryAt = time.Now().Add(backoff)
		t.mu.Unlock()
		slog.Warn("provider rate limit hit", "host", req.URL.Host, "backoff", backoff)
	}

	return resp, nil
}

// cacheScopeKey carries the cache partition of a request in its context.
type cacheScopeKey struct{}

// WithCacheScope returns a context whose requests share cached responses only
// with other requests of the same scope. Provider adapters pass the access
// token of the connection, since resource URLs are identical across users.
func WithCacheScope(ctx context.Context, scope string) context.Context {
	if scope == "" {
		return ctx
	}
	sum := sha256.Sum256([]byte(scope))
	return context.WithValue(ctx, cacheScopeKey{}, hex.EncodeToString(sum[:]))
}

// ScopedCacheTransport keeps one httpcache.Transport per cache scope. Requests
// without a scope bypass the cache. Cached entries are always revalidated with
// the provider, so the cache only saves bodies on 304 answers.
type ScopedCacheTransport struct {
	base http.RoundTripper

	mu     sync.Mutex
	caches map[string]*httpcache.Transport
}

// NewScopedCacheTransport wraps base with per-scope response caches.
func NewScopedCacheTransport(base http.RoundTripper) *ScopedCacheTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &ScopedCacheTransport{base: base, caches: make(map[string]*httpcache.Transport)}
}

// RoundTrip implements http.RoundTripper.
func (t *ScopedCacheTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	scope, _ := req.Context().Value(cacheScopeKey{}).(string)
	if scope == "" {
		return t.base.RoundTrip(req)
	}

	if req.Header.Get("Cache-Control") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Cache-Control", "max-age=0")
	}
	return t.cacheFor(scope).RoundTrip(req)
}

func (t *ScopedCacheTransport) cacheFor(scope string) *httpcache.Transport {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.caches[scope]
	if !ok {
		c = httpcache.NewMemoryCacheTransport()
		c.Transport = t.base
		t.caches[scope] = c
	}
	return c
}

// NewTransport returns the transport stack used for provider API calls:
//  1. ScopedCacheTransport (ETag revalidation, one cache per connection)
//  2. RateLimitedTransport (per-client throttling, backs off on 429)
//  3. http.DefaultTransport
func NewTransport(rps float64) http.RoundTripper {
	return NewScopedCacheTransport(NewRateLimitedTransport(http.DefaultTransport, rps, 1))
}

// NewClient returns an http.Client over NewTransport whose requests are
// bounded by timeout.
func NewClient(timeout time.Duration, rps float64) *http.Client {
	return &http.Client{
		Transport: NewTransport(rps),
		Timeout:   timeout,
	}
}

// FromCache reports whether resp was served from the response cache.
func FromCache(resp *http.Response) bool {
	return resp.Header.Get(httpcache.XFromCache) == "1"
}

// ReadBody reads a response body up to the package limit and closes it.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %w", model.ErrTransient, err)
	}
	return body, nil
}

// CheckStatus returns a transient error carrying a ProviderError when resp is
// not a 2xx response. The body is consumed in that case.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := ReadBody(resp)
	return fmt.Errorf("%w: %w", model.ErrTransient, &model.ProviderError{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	})
}

// Get issues a GET request for url with ctx and returns the body of a 2xx
// response. Network failures and non-2xx answers are reported as
// model.ErrTransient.
func Get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrTransient, err)
	}

	if err := CheckStatus(resp); err != nil {
		return nil, err
	}
	return ReadBody(resp)
}
