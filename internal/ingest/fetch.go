// Package ingest accumulates upstream M3U/Xtream channel lists and
// XMLTV/Xtream EPG documents into local storage, handling arbitrarily large
// responses without loading the whole body into memory when the system is
// under pressure.
package ingest

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// NewHTTPClient builds an http.Client whose Transport enforces only a
// connect timeout, not an overall request deadline: ingestion responses for
// large playlists/EPGs can legitimately take minutes to stream, so the
// caller's context deadline (not a fixed client timeout) governs total
// request lifetime.
func NewHTTPClient(connectTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: 0,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConnsPerHost:   4,
		},
	}
}

// RetryPolicy controls retry behavior for transient upstream failures
// (429/403/5xx), mirroring the provider-facing retry contract used
// elsewhere in the stack for host-rate-limited APIs.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryPolicy retries three times with a 2s exponential base, enough
// to ride out a brief Xtream-panel rate limit without stalling a scheduled
// ingest indefinitely.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, Backoff: 2 * time.Second}

// FetchWithRetry issues req and retries on 429/403/5xx responses with
// exponential backoff plus jitter, honoring Retry-After when present.
// Callers must close the returned response body.
func FetchWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	maxRetries := policy.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastResp *http.Response
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			cloned, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), nil)
			if err != nil {
				return nil, err
			}
			for k, v := range req.Header {
				cloned.Header[k] = v
			}
			req = cloned
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}

		code := resp.StatusCode
		if code < 400 {
			return resp, nil
		}

		retryable := code == http.StatusTooManyRequests || code == http.StatusForbidden || (code >= 500 && code < 600)
		if !retryable || attempt == maxRetries {
			lastResp = resp
			break
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		wait := retryWait(resp.Header.Get("Retry-After"), policy.Backoff*time.Duration(1<<uint(attempt)))
		if err := sleepCtx(ctx, jitter(wait)); err != nil {
			return nil, err
		}
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, fmt.Errorf("ingest: exhausted retries for %s", req.URL.String())
}

func retryWait(retryAfter string, fallback time.Duration) time.Duration {
	retryAfter = strings.TrimSpace(retryAfter)
	if retryAfter == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, retryAfter); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return fallback
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	frac := float64(d) * 0.25
	delta := time.Duration(rand.Int63n(int64(frac*2+1))) - time.Duration(frac)
	result := d + delta
	if result < 0 {
		return 0
	}
	return result
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
