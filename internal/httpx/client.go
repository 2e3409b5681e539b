// Package httpx is the shared HTTP client used by both ingestion and the
// streaming proxy's upstream connections: a connect-timeout-only client,
// connection-error retry with exponential backoff, and a per-host token
// bucket that smooths reconnect storms against a single upstream.
package httpx

import (
	"context"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// NewClient returns an http.Client whose Transport bounds only the TCP
// connect + TLS handshake phase, leaving the overall request lifetime to
// the caller's context — appropriate for long-lived stream bodies and
// large playlist/EPG downloads alike.
func NewClient(connectTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: 0,
			ForceAttemptHTTP2:     true,
			MaxIdleConnsPerHost:   16,
		},
	}
}

// HostLimiter hands out a token-bucket rate.Limiter per upstream host, so
// reconnect attempts against one flaky source can't starve requests to
// every other source sharing the process.
type HostLimiter struct {
	mu    sync.Mutex
	byHost map[string]*rate.Limiter
	rps   rate.Limit
	burst int
}

// NewHostLimiter creates a limiter keyed by host, allowing rps requests
// per second per host with the given burst. rps<=0 disables limiting
// (Wait always returns immediately).
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{byHost: make(map[string]*rate.Limiter), rps: rate.Limit(rps), burst: burst}
}

func (h *HostLimiter) forHost(host string) *rate.Limiter {
	if h.rps <= 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.byHost[host]
	if !ok {
		l = rate.NewLimiter(h.rps, h.burst)
		h.byHost[host] = l
	}
	return l
}

// Wait blocks until a token is available for rawURL's host, or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	l := h.forHost(u.Host)
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}

// RetryPolicy configures ConnectWithRetry's backoff.
type RetryPolicy struct {
	MaxRetries int
	Base       time.Duration
	MaxDelay   time.Duration
}

// DefaultConnectRetryPolicy backs off from 500ms doubling to a 10s cap,
// for reconnecting a dropped upstream stream.
var DefaultConnectRetryPolicy = RetryPolicy{MaxRetries: 5, Base: 500 * time.Millisecond, MaxDelay: 10 * time.Second}

// ConnectWithRetry calls connect until it succeeds, ctx is done, or
// MaxRetries is exhausted, backing off base*2^attempt (capped at MaxDelay)
// with ±25% jitter between attempts.
func ConnectWithRetry(ctx context.Context, policy RetryPolicy, connect func() error) error {
	maxRetries := policy.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.Base << uint(attempt-1)
			if policy.MaxDelay > 0 && delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
			delay = jitter(delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := connect(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	delta := time.Duration(float64(d) * 0.25)
	offset := time.Duration(rand.Int63n(int64(2*delta+1))) - delta
	return d + offset
}
