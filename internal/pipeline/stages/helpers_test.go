package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/apperr"
	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/pipeline"
)

func TestHelperResolutionStageExpandsTimeToken(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	state := &pipeline.State{
		Channels: []domain.Channel{
			{DisplayName: "Timeshift", TvgShift: "@time:now(+1h)"},
		},
		ChannelByTvgID: map[string]*domain.Channel{},
	}
	stage := NewHelperResolutionStage(nil, now)

	_, err := stage.Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := now.Add(time.Hour).UTC().Format("20060102150405 -0700")
	if state.Channels[0].TvgShift != want {
		t.Fatalf("expected expanded time token %q, got %q", want, state.Channels[0].TvgShift)
	}
}

func TestHelperResolutionStageExpandsLogoTokenViaLookup(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	lookup := func(ctx context.Context, lookupID uuid.UUID) (string, error) {
		if lookupID == id {
			return "https://cache.example/logo.png", nil
		}
		return "", apperr.NotFound("no such logo %s", lookupID)
	}
	state := &pipeline.State{
		Channels: []domain.Channel{
			{DisplayName: "Has Logo", TvgLogo: "@logo:" + id.String()},
		},
		ChannelByTvgID: map[string]*domain.Channel{},
	}
	stage := NewHelperResolutionStage(lookup, time.Now())

	_, err := stage.Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if state.Channels[0].TvgLogo != "https://cache.example/logo.png" {
		t.Fatalf("expected logo token resolved via lookup, got %q", state.Channels[0].TvgLogo)
	}
}

func TestHelperResolutionStageRemovesFieldForUnknownLogo(t *testing.T) {
	lookup := func(ctx context.Context, id uuid.UUID) (string, error) {
		return "", apperr.NotFound("no such logo %s", id)
	}
	state := &pipeline.State{
		Channels: []domain.Channel{
			{DisplayName: "Unknown Logo", TvgLogo: "@logo:11111111-2222-3333-4444-555555555555"},
		},
		ChannelByTvgID: map[string]*domain.Channel{},
	}
	stage := NewHelperResolutionStage(lookup, time.Now())

	_, err := stage.Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if state.Channels[0].TvgLogo != "" {
		t.Fatalf("expected tvg_logo field removed for unknown uuid, got %q", state.Channels[0].TvgLogo)
	}
}

func TestHelperResolutionStageAbortsOnCriticalLogoError(t *testing.T) {
	dbErr := errors.New("disk I/O error")
	lookup := func(ctx context.Context, id uuid.UUID) (string, error) {
		return "", apperr.Database(dbErr, "lookup failed")
	}
	state := &pipeline.State{
		Channels: []domain.Channel{
			{DisplayName: "Broken Lookup", TvgLogo: "@logo:11111111-2222-3333-4444-555555555555"},
		},
		ChannelByTvgID: map[string]*domain.Channel{},
	}
	stage := NewHelperResolutionStage(lookup, time.Now())

	_, err := stage.Execute(context.Background(), state)
	if err == nil {
		t.Fatal("Execute: expected a critical logo lookup error to abort the stage")
	}
	if !apperr.Is(err, apperr.KindCritical) {
		t.Fatalf("Execute: expected KindCritical error, got %v", err)
	}
}

func TestHelperResolutionStageDropsProgramsForMissingChannels(t *testing.T) {
	state := &pipeline.State{
		Channels: []domain.Channel{{DisplayName: "Kept", TvgID: "kept.us"}},
		Programs: []domain.EpgProgram{
			{ChannelID: "kept.us", Title: "Keep this program"},
			{ChannelID: "gone.us", Title: "Drop this program"},
		},
		ChannelByTvgID: map[string]*domain.Channel{
			"kept.us": {DisplayName: "Kept", TvgID: "kept.us"},
		},
	}
	stage := NewHelperResolutionStage(nil, time.Now())

	_, err := stage.Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(state.Programs) != 1 || state.Programs[0].ChannelID != "kept.us" {
		t.Fatalf("expected only the kept.us program to survive, got %+v", state.Programs)
	}
}
