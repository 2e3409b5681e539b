// Package ratelimit bounds how often the streaming proxy may open a new
// request against a single upstream host, so one popular channel (or a
// client hammering the proxy) can't exhaust an origin's own rate limits
// and take every channel on that host down with it.
package ratelimit

import (
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var limitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "m3uproxy",
		Name:      "ratelimit_exceeded_total",
		Help:      "Total requests rejected by the per-host rate limiter",
	},
	[]string{"host"},
)

// HostLimiter hands out a token-bucket limiter per upstream host, lazily
// created on first use and periodically swept so idle hosts don't leak
// limiters forever.
type HostLimiter struct {
	rate  rate.Limit
	burst int

	mu            sync.Mutex
	perHost       map[string]*rate.Limiter
	lastSweep     time.Time
	sweepInterval time.Duration
}

// NewHostLimiter builds a HostLimiter allowing ratePerSecond requests per
// host, bursting up to burst. A ratePerSecond of 0 disables limiting
// entirely: Allow always returns true.
func NewHostLimiter(ratePerSecond float64, burst int) *HostLimiter {
	return &HostLimiter{
		rate:          rate.Limit(ratePerSecond),
		burst:         burst,
		perHost:       make(map[string]*rate.Limiter),
		lastSweep:     time.Now(),
		sweepInterval: 10 * time.Minute,
	}
}

// Allow reports whether a new request to upstreamURL's host may proceed.
func (l *HostLimiter) Allow(upstreamURL string) bool {
	if l.rate <= 0 {
		return true
	}
	host := hostOf(upstreamURL)

	l.mu.Lock()
	limiter, ok := l.perHost[host]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.perHost[host] = limiter
	}
	l.maybeSweepLocked()
	l.mu.Unlock()

	allowed := limiter.Allow()
	if !allowed {
		limitExceeded.WithLabelValues(host).Inc()
	}
	return allowed
}

// maybeSweepLocked clears the per-host map on a fixed interval. Callers
// hold l.mu. A full reset rather than per-entry LRU bookkeeping is
// sufficient here since a host with no recent traffic simply gets a fresh,
// fully-refilled bucket on its next request.
func (l *HostLimiter) maybeSweepLocked() {
	if time.Since(l.lastSweep) < l.sweepInterval {
		return
	}
	l.perHost = make(map[string]*rate.Limiter)
	l.lastSweep = time.Now()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
