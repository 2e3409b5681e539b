package streamproxy

import (
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/m3uproxy/m3uproxy/internal/metrics"
)

// breakerState is one of closed/open/half-open.
type breakerState string

const (
	stateClosed   breakerState = "closed"
	stateOpen     breakerState = "open"
	stateHalfOpen breakerState = "half-open"
)

// ErrCircuitOpen is returned by Breaker.Call when the breaker is open and
// refusing calls.
var ErrCircuitOpen = errors.New("streamproxy: circuit breaker is open")

// breaker is a minimal three-state circuit breaker for one upstream host:
// it opens after threshold consecutive failures, stays open for
// resetTimeout, then allows a single half-open trial.
type breaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	timeout   time.Duration
	state     breakerState
	openedAt  time.Time
}

// HostBreakers keys a breaker per upstream host so one flaky source
// doesn't trip every other source's circuit.
type HostBreakers struct {
	mu        sync.Mutex
	breakers  map[string]*breaker
	threshold int
	timeout   time.Duration
}

// NewHostBreakers creates a set of per-host breakers; threshold<=0 and
// timeout<=0 fall back to the defaults of 5 consecutive failures and a
// 60s reset timeout.
func NewHostBreakers(threshold int, timeout time.Duration) *HostBreakers {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HostBreakers{breakers: make(map[string]*breaker), threshold: threshold, timeout: timeout}
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}

func (h *HostBreakers) forHost(host string) *breaker {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.breakers[host]
	if !ok {
		b = &breaker{threshold: h.threshold, timeout: h.timeout, state: stateClosed}
		h.breakers[host] = b
	}
	return b
}

// Call runs fn if the breaker for upstreamURL's host allows it, recording
// the outcome. Returns ErrCircuitOpen without calling fn if the breaker is
// tripped and still within its reset timeout.
func (h *HostBreakers) Call(upstreamURL string, fn func() error) error {
	host := hostKey(upstreamURL)
	b := h.forHost(host)

	b.mu.Lock()
	switch b.state {
	case stateOpen:
		if time.Since(b.openedAt) >= b.timeout {
			b.state = stateHalfOpen
			metrics.SetCircuitBreakerState(host, string(stateHalfOpen))
		} else {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.state == stateHalfOpen || b.failures >= b.threshold {
			b.state = stateOpen
			b.openedAt = time.Now()
			metrics.SetCircuitBreakerState(host, string(stateOpen))
			metrics.RecordCircuitBreakerTrip(host, "upstream_error")
		}
		return err
	}
	b.failures = 0
	if b.state != stateClosed {
		metrics.SetCircuitBreakerState(host, string(stateClosed))
	}
	b.state = stateClosed
	return nil
}

// State reports the current state of upstreamURL's host breaker, for
// status endpoints.
func (h *HostBreakers) State(upstreamURL string) string {
	b := h.forHost(hostKey(upstreamURL))
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.state)
}
