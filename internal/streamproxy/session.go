// Package streamproxy serves live channels from a published proxy: it
// redirects, relays, or transcodes the upstream stream URL, rewrites HLS
// playlists to absolute URIs, and tracks active sessions per client.
package streamproxy

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session represents one active client pulling a channel through the proxy.
type Session struct {
	ID          string    `json:"id"`
	ClientIP    string    `json:"client_ip"`
	UserAgent   string    `json:"user_agent"`
	ProxySlug   string    `json:"proxy_slug"`
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"started_at"`
	BytesSent   int64     `json:"bytes_sent"`

	lastWrite int64
	cancel    context.CancelFunc
}

// UpdateActivity records a write of n bytes as the session's most recent activity.
func (s *Session) UpdateActivity(n int) {
	atomic.StoreInt64(&s.lastWrite, time.Now().UnixNano())
	atomic.AddInt64(&s.BytesSent, int64(n))
}

// LastActivity returns the time of the session's last byte write, or its
// start time if nothing has been written yet.
func (s *Session) LastActivity() time.Time {
	v := atomic.LoadInt64(&s.lastWrite)
	if v == 0 {
		return s.StartedAt
	}
	return time.Unix(0, v)
}

// MarshalJSON excludes the unexported cancel func and lastWrite counter.
func (s *Session) MarshalJSON() ([]byte, error) {
	type alias Session
	return json.Marshal(&struct{ *alias }{alias: (*alias)(s)})
}

// SessionTracker is a read-write-locked registry of active sessions, with
// a background sweep that terminates sessions idle past idleTimeout. It
// does not log an aggregate summary.
type SessionTracker struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	mirror      *RedisMirror
}

// NewSessionTracker creates a tracker with the given idle timeout; a
// non-positive value uses the default of 5 minutes.
func NewSessionTracker(idleTimeout time.Duration) *SessionTracker {
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Minute
	}
	return &SessionTracker{sessions: make(map[string]*Session), idleTimeout: idleTimeout}
}

// SetMirror attaches an optional redis mirror; every Register/Unregister/
// Terminate/sweep is best-effort replicated to it afterward. Passing nil
// disables mirroring (the default).
func (t *SessionTracker) SetMirror(m *RedisMirror) {
	t.mu.Lock()
	t.mirror = m
	t.mu.Unlock()
}

// Register starts tracking a new session for the given request and channel,
// and returns it. cancel is invoked when the session is force-terminated or
// swept for idleness.
func (t *SessionTracker) Register(r *http.Request, proxySlug, channelID, channelName, mode string, cancel context.CancelFunc) *Session {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if len(host) > 7 && host[:7] == "::ffff:" {
		host = host[7:]
	}

	sess := &Session{
		ID:          uuid.New().String(),
		ClientIP:    host,
		UserAgent:   r.UserAgent(),
		ProxySlug:   proxySlug,
		ChannelID:   channelID,
		ChannelName: channelName,
		Mode:        mode,
		StartedAt:   time.Now(),
		cancel:      cancel,
		lastWrite:   time.Now().UnixNano(),
	}

	t.mu.Lock()
	t.sessions[sess.ID] = sess
	mirror := t.mirror
	t.mu.Unlock()

	if mirror != nil {
		_ = mirror.Publish(r.Context(), sess)
	}
	return sess
}

// Unregister stops tracking a session without canceling it (the caller's
// own handler goroutine is already unwinding).
func (t *SessionTracker) Unregister(id string) {
	t.mu.Lock()
	delete(t.sessions, id)
	mirror := t.mirror
	t.mu.Unlock()

	if mirror != nil {
		_ = mirror.Remove(context.Background(), id)
	}
}

// Terminate cancels and stops tracking a session, returning false if it
// wasn't found.
func (t *SessionTracker) Terminate(id string) bool {
	t.mu.Lock()
	sess, ok := t.sessions[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	if sess.cancel != nil {
		sess.cancel()
	}
	delete(t.sessions, id)
	mirror := t.mirror
	t.mu.Unlock()

	if mirror != nil {
		_ = mirror.Remove(context.Background(), id)
	}
	return true
}

// List returns a snapshot of all currently tracked sessions.
func (t *SessionTracker) List() []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of active sessions this instance tracks for a
// proxy slug. No per-proxy concurrent-stream cap is enforced from it.
func (t *SessionTracker) Count(proxySlug string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, s := range t.sessions {
		if s.ProxySlug == proxySlug {
			n++
		}
	}
	return n
}

// SweepIdle terminates any session whose last activity is older than the
// tracker's idle timeout. Intended to run on a ticker from the caller.
func (t *SessionTracker) SweepIdle() int {
	t.mu.Lock()
	n := 0
	cutoff := time.Now().Add(-t.idleTimeout)
	var swept []string
	for id, s := range t.sessions {
		if s.LastActivity().Before(cutoff) {
			if s.cancel != nil {
				s.cancel()
			}
			delete(t.sessions, id)
			swept = append(swept, id)
			n++
		}
	}
	mirror := t.mirror
	t.mu.Unlock()

	if mirror != nil {
		for _, id := range swept {
			_ = mirror.Remove(context.Background(), id)
		}
	}
	return n
}

// Run drives SweepIdle on the given interval until ctx is canceled.
func (t *SessionTracker) Run(ctx context.Context, sweepInterval time.Duration) {
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.SweepIdle()
		}
	}
}
