package stages

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/generator"
	"github.com/m3uproxy/m3uproxy/internal/pipeline"
)

func TestGenerateStagePublishesArtifacts(t *testing.T) {
	dir := t.TempDir()
	pub := generator.NewPublisher(dir)
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)

	state := &pipeline.State{
		Proxy: &domain.Proxy{Slug: "sports", VersionsToKeep: 2},
		Channels: []domain.Channel{
			{DisplayName: "ESPN", StreamURL: "http://upstream/espn"},
		},
	}
	stage := NewGenerateStage(pub, "http://public/sports/epg.xml", func(c domain.Channel) string {
		return "http://public/sports/" + c.DisplayName
	}, now)

	result, err := stage.Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RecordsOut != 1 {
		t.Fatalf("expected 1 record out, got %d", result.RecordsOut)
	}

	m3u, err := os.ReadFile(filepath.Join(dir, "sports.m3u"))
	if err != nil {
		t.Fatalf("read latest m3u: %v", err)
	}
	if !strings.Contains(string(m3u), "http://public/sports/ESPN") {
		t.Fatalf("expected rewritten stream URL in published m3u, got:\n%s", m3u)
	}
}

func TestGenerateStageRequiresProxy(t *testing.T) {
	dir := t.TempDir()
	pub := generator.NewPublisher(dir)
	stage := NewGenerateStage(pub, "", nil, time.Now())

	state := &pipeline.State{}
	if _, err := stage.Execute(context.Background(), state); err == nil {
		t.Fatal("expected an error when state has no proxy")
	}
}
