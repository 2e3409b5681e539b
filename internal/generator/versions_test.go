package generator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

func TestPublisherPublishWritesVersionedArtifactsAndLatestSymlinks(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir)

	channels := []domain.Channel{{DisplayName: "News", StreamURL: "http://origin/news.ts", TvgID: "news"}}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	pub, err := p.Publish("demo", channels, nil, "", nil, 3, now)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if _, err := os.Stat(pub.M3UPath); err != nil {
		t.Fatalf("expected versioned m3u file to exist: %v", err)
	}
	if _, err := os.Stat(pub.XMLTVPath); err != nil {
		t.Fatalf("expected versioned xmltv file to exist: %v", err)
	}

	latestM3U := filepath.Join(dir, "demo.m3u")
	target, err := os.Readlink(latestM3U)
	if err != nil {
		t.Fatalf("expected demo.m3u to be a symlink: %v", err)
	}
	if target != filepath.Base(pub.M3UPath) {
		t.Fatalf("expected latest symlink to point at %q, got %q", filepath.Base(pub.M3UPath), target)
	}

	data, err := os.ReadFile(latestM3U)
	if err != nil {
		t.Fatalf("expected to read through the symlink: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty m3u content through the latest symlink")
	}
}

func TestPublisherPrunesOldVersionsBeyondKeep(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir)
	channels := []domain.Channel{{DisplayName: "News", StreamURL: "http://origin/news.ts", TvgID: "news"}}

	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := p.Publish("demo", channels, nil, "", nil, 2, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Publish iteration %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var m3uVersions int
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".m3u" && e.Name() != "demo.m3u" {
			m3uVersions++
		}
	}
	if m3uVersions != 2 {
		t.Fatalf("expected exactly 2 retained m3u versions, found %d", m3uVersions)
	}
}

func TestPublisherPublishIsIdempotentPerSecond(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir)
	channels := []domain.Channel{{DisplayName: "News", StreamURL: "http://origin/news.ts", TvgID: "news"}}
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)

	first, err := p.Publish("demo", channels, nil, "", nil, 5, now)
	if err != nil {
		t.Fatalf("first publish: %v", err)
	}
	second, err := p.Publish("demo", channels, nil, "", nil, 5, now)
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if first.Version != second.Version {
		t.Fatalf("expected identical timestamp to produce identical version strings: %q vs %q", first.Version, second.Version)
	}
}
