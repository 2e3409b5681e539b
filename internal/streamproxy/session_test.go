package streamproxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestRequest(t *testing.T, remoteAddr, ua string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "http://proxy.local/stream/demo/abc", nil)
	r.RemoteAddr = remoteAddr
	r.Header.Set("User-Agent", ua)
	return r
}

func TestSessionTrackerRegisterAndList(t *testing.T) {
	tr := NewSessionTracker(time.Minute)
	canceled := false
	r := newTestRequest(t, "203.0.113.7:54321", "vlc/3.0")

	sess := tr.Register(r, "demo", "chan-1", "Demo Channel", "proxy", func() { canceled = true })
	if sess.ClientIP != "203.0.113.7" {
		t.Fatalf("expected client IP without port, got %q", sess.ClientIP)
	}
	if sess.ProxySlug != "demo" || sess.ChannelID != "chan-1" {
		t.Fatalf("unexpected session fields: %+v", sess)
	}

	list := tr.List()
	if len(list) != 1 || list[0].ID != sess.ID {
		t.Fatalf("expected registered session in List(), got %v", list)
	}
	if tr.Count("demo") != 1 {
		t.Fatalf("expected Count(demo)=1, got %d", tr.Count("demo"))
	}
	if tr.Count("other") != 0 {
		t.Fatalf("expected Count(other)=0, got %d", tr.Count("other"))
	}

	if !tr.Terminate(sess.ID) {
		t.Fatal("expected Terminate to find the session")
	}
	if !canceled {
		t.Fatal("expected Terminate to invoke the cancel func")
	}
	if len(tr.List()) != 0 {
		t.Fatal("expected no sessions after Terminate")
	}
}

func TestSessionTrackerStripsIPv4MappedPrefix(t *testing.T) {
	tr := NewSessionTracker(time.Minute)
	r := newTestRequest(t, "[::ffff:198.51.100.4]:9000", "curl/8.0")
	sess := tr.Register(r, "demo", "chan-1", "Demo", "redirect", func() {})
	if sess.ClientIP != "198.51.100.4" {
		t.Fatalf("expected stripped IPv4-mapped address, got %q", sess.ClientIP)
	}
}

func TestSessionTrackerSweepIdle(t *testing.T) {
	tr := NewSessionTracker(10 * time.Millisecond)
	canceled := false
	r := newTestRequest(t, "203.0.113.8:1111", "ua")
	tr.Register(r, "demo", "chan-2", "Demo", "proxy", func() { canceled = true })

	time.Sleep(30 * time.Millisecond)
	n := tr.SweepIdle()
	if n != 1 {
		t.Fatalf("expected SweepIdle to remove 1 idle session, removed %d", n)
	}
	if !canceled {
		t.Fatal("expected idle sweep to cancel the session")
	}
	if len(tr.List()) != 0 {
		t.Fatal("expected no sessions left after sweep")
	}
}

func TestSessionTrackerUpdateActivityResetsIdle(t *testing.T) {
	tr := NewSessionTracker(20 * time.Millisecond)
	r := newTestRequest(t, "203.0.113.9:2222", "ua")
	sess := tr.Register(r, "demo", "chan-3", "Demo", "proxy", func() {})

	time.Sleep(10 * time.Millisecond)
	sess.UpdateActivity(1024)

	if tr.SweepIdle() != 0 {
		t.Fatal("expected recently active session to survive sweep")
	}
	if sess.BytesSent != 1024 {
		t.Fatalf("expected BytesSent=1024, got %d", sess.BytesSent)
	}
}

func TestSessionTrackerRunStopsOnContextDone(t *testing.T) {
	tr := NewSessionTracker(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after context cancellation")
	}
}
