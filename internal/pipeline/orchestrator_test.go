package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/store/sqlite"
)

func openOrchestratorTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orchestrator_test.db")
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

func insertTestFilter(t *testing.T, db *sqlite.DB, f domain.Filter) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `INSERT INTO filters
		(id, name, source_kind, inverse, expression, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID.String(), f.Name, string(f.SourceKind), f.Inverse, f.Expression,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		t.Fatalf("insert filter: %v", err)
	}
}

func TestOrchestratorPrepareStateOrdersSourcesAndFiltersByPriority(t *testing.T) {
	db := openOrchestratorTestDB(t)
	sources := sqlite.NewSourceRepo(db)
	rules := sqlite.NewRuleRepo(db)

	sourceA := domain.StreamSource{ID: uuid.New(), Name: "A", Kind: domain.SourceKindM3U, URL: "http://a", CreatedAt: time.Now()}
	sourceB := domain.StreamSource{ID: uuid.New(), Name: "B", Kind: domain.SourceKindM3U, URL: "http://b", CreatedAt: time.Now()}
	if err := sources.UpsertStreamSource(context.Background(), sourceA); err != nil {
		t.Fatalf("upsert source A: %v", err)
	}
	if err := sources.UpsertStreamSource(context.Background(), sourceB); err != nil {
		t.Fatalf("upsert source B: %v", err)
	}

	filterA := domain.Filter{ID: uuid.New(), Name: "first", SourceKind: domain.FilterSourceStream, Expression: `group_title contains "X"`}
	filterB := domain.Filter{ID: uuid.New(), Name: "second", SourceKind: domain.FilterSourceStream, Expression: `group_title contains "Y"`}
	insertTestFilter(t, db, filterA)
	insertTestFilter(t, db, filterB)

	proxy := &domain.Proxy{
		ID:   uuid.New(),
		Slug: "demo",
		Sources: []domain.ProxySource{
			{StreamSourceID: sourceB.ID, PriorityOrder: 0},
			{StreamSourceID: sourceA.ID, PriorityOrder: 1},
		},
		Filters: []domain.ProxyFilter{
			{FilterID: filterB.ID, PriorityOrder: 0},
			{FilterID: filterA.ID, PriorityOrder: 1},
		},
	}

	orch := NewOrchestrator(sources, rules, nil)
	state, err := orch.PrepareState(context.Background(), proxy)
	if err != nil {
		t.Fatalf("PrepareState: %v", err)
	}

	if len(state.Sources) != 2 || state.Sources[0].Name != "B" || state.Sources[1].Name != "A" {
		t.Fatalf("expected sources ordered by priority (B, A), got %+v", state.Sources)
	}
	if len(state.Filters) != 2 || state.Filters[0].Name != "second" || state.Filters[1].Name != "first" {
		t.Fatalf("expected filters ordered by priority (second, first), got %+v", state.Filters)
	}
}

func TestOrchestratorRunRecordsTimingAndAbortsOnStageError(t *testing.T) {
	orch := NewOrchestrator(nil, nil, nil)
	state := NewState(uuid.New(), &domain.Proxy{})

	err := orch.Run(context.Background(), state, []Stage{
		fakeStage{id: "ok", name: "OK"},
		fakeStage{id: "boom", name: "Boom", err: errBoom},
		fakeStage{id: "never", name: "Never"},
	})
	if err == nil {
		t.Fatal("expected Run to abort on the failing stage")
	}

	timings, _ := orch.Tracker.Snapshot()
	if len(timings) != 2 {
		t.Fatalf("expected exactly the two attempted stages recorded, got %d", len(timings))
	}
}

func TestOrchestratorRunCollectsWarningsWithoutAborting(t *testing.T) {
	orch := NewOrchestrator(nil, nil, nil)
	state := NewState(uuid.New(), &domain.Proxy{})

	err := orch.Run(context.Background(), state, []Stage{
		fakeStage{id: "warns", name: "Warns", warnings: []string{"something odd"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(state.Warnings) != 1 || state.Warnings[0] != "something odd" {
		t.Fatalf("expected the stage's warning propagated to state.Warnings, got %+v", state.Warnings)
	}
}

var errBoom = fmtError("boom")

type fmtError string

func (e fmtError) Error() string { return string(e) }

type fakeStage struct {
	id, name string
	err      error
	warnings []string
}

func (f fakeStage) ID() string   { return f.id }
func (f fakeStage) Name() string { return f.name }
func (f fakeStage) Execute(ctx context.Context, state *State) (*StageResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &StageResult{Warnings: f.warnings}, nil
}
