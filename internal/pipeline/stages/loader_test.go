package stages

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/pipeline"
	"github.com/m3uproxy/m3uproxy/internal/store/sqlite"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loader_test.db")
	cfg := sqlite.DefaultConfig()
	cfg.MaxOpenConns = 1
	db, err := sqlite.Open(path, cfg)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := sqlite.Migrate(context.Background(), db); err != nil {
		t.Fatalf("sqlite.Migrate: %v", err)
	}
	return db
}

func TestLoaderStageMergesChannelsAcrossSourcesInOrder(t *testing.T) {
	db := openTestDB(t)
	channels := sqlite.NewChannelRepo(db)

	sourceA := uuid.New()
	sourceB := uuid.New()
	if err := channels.ReplaceForSource(context.Background(), sourceA, []domain.Channel{
		{SourceID: sourceA, DisplayName: "A1", StreamURL: "http://a/1", TvgID: "a1"},
	}); err != nil {
		t.Fatalf("seed source A: %v", err)
	}
	if err := channels.ReplaceForSource(context.Background(), sourceB, []domain.Channel{
		{SourceID: sourceB, DisplayName: "B1", StreamURL: "http://b/1", TvgID: "b1"},
	}); err != nil {
		t.Fatalf("seed source B: %v", err)
	}

	state := pipeline.NewState(uuid.New(), &domain.Proxy{})
	state.Sources = []domain.StreamSource{{ID: sourceA}, {ID: sourceB}}

	stage := NewLoaderStage(channels, sqlite.NewEpgRepo(db))
	result, err := stage.Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RecordsOut != 2 {
		t.Fatalf("expected 2 loaded channels, got %d", result.RecordsOut)
	}
	if state.Channels[0].DisplayName != "A1" || state.Channels[1].DisplayName != "B1" {
		t.Fatalf("expected source A's channels before source B's, got %+v", state.Channels)
	}
}

func TestLoaderStageIndexesChannelsByTvgID(t *testing.T) {
	db := openTestDB(t)
	channels := sqlite.NewChannelRepo(db)

	source := uuid.New()
	if err := channels.ReplaceForSource(context.Background(), source, []domain.Channel{
		{SourceID: source, DisplayName: "Has TvgID", StreamURL: "http://x/1", TvgID: "has.id"},
		{SourceID: source, DisplayName: "No TvgID", StreamURL: "http://x/2"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	state := pipeline.NewState(uuid.New(), &domain.Proxy{})
	state.Sources = []domain.StreamSource{{ID: source}}

	stage := NewLoaderStage(channels, sqlite.NewEpgRepo(db))
	if _, err := stage.Execute(context.Background(), state); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := state.ChannelByTvgID["has.id"]; !ok {
		t.Fatal("expected channel with tvg_id indexed by TvgID")
	}
	if len(state.ChannelByTvgID) != 1 {
		t.Fatalf("expected only the channel with a non-empty TvgID indexed, got %d entries", len(state.ChannelByTvgID))
	}
}
