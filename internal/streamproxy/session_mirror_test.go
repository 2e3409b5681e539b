package streamproxy

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupMiniRedisMirror(t *testing.T) (*miniredis.Miniredis, *RedisMirror) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	mirror := &RedisMirror{
		client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		key:    "test:sessions",
	}
	return mr, mirror
}

func TestRedisMirrorPublishAndRemove(t *testing.T) {
	mr, mirror := setupMiniRedisMirror(t)
	defer mr.Close()

	sess := &Session{
		ID:        "sess-1",
		ProxySlug: "news",
		Mode:      "proxy",
		StartedAt: time.Now(),
	}

	if err := mirror.Publish(context.Background(), sess); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !mr.Exists("test:sessions") {
		t.Fatal("expected session hash to exist after Publish")
	}

	if err := mirror.Remove(context.Background(), "sess-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	n, err := mirror.client.HLen(context.Background(), "test:sessions").Result()
	if err != nil {
		t.Fatalf("hlen: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty hash after Remove, got %d members", n)
	}
}

func TestSessionTrackerMirrorsRegisterAndTerminate(t *testing.T) {
	mr, mirror := setupMiniRedisMirror(t)
	defer mr.Close()

	tr := NewSessionTracker(time.Minute)
	tr.SetMirror(mirror)

	r := newTestRequest(t, "203.0.113.10:4444", "vlc/3.0")
	sess := tr.Register(r, "news", "chan-1", "News HD", "proxy", func() {})

	n, err := mirror.client.HLen(context.Background(), mirror.key).Result()
	if err != nil {
		t.Fatalf("hlen: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 mirrored session after Register, got %d", n)
	}

	if !tr.Terminate(sess.ID) {
		t.Fatal("expected Terminate to find the session")
	}
	n, err = mirror.client.HLen(context.Background(), mirror.key).Result()
	if err != nil {
		t.Fatalf("hlen: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected mirrored session removed after Terminate, got %d", n)
	}
}
