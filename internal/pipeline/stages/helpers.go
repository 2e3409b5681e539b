package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/expr"
	"github.com/m3uproxy/m3uproxy/internal/pipeline"
)

// HelperResolutionStage expands any remaining @time:now(±offset) and
// @logo:<uuid> tokens across the surviving channels' fields, and matches
// each channel's EPG programs by TvgID. It runs after filtering so a logo
// cache lookup or EPG match is never wasted on a record the filter stage
// already dropped.
//
// A @logo: token that fails to resolve removes its field entirely rather
// than leaving the raw token or an empty string (spec.md §4.1/§4.3(4)); a
// malformed uuid is recorded as a stage warning. A logo lookup that fails
// for a reason other than not-found is Critical (spec.md §7) and aborts
// this Execute call, which Orchestrator.Run treats as a fatal stage error.
type HelperResolutionStage struct {
	Logos expr.LogoLookup
	Now   time.Time
}

func NewHelperResolutionStage(logos expr.LogoLookup, now time.Time) *HelperResolutionStage {
	return &HelperResolutionStage{Logos: logos, Now: now}
}

func (s *HelperResolutionStage) ID() string   { return "helper_resolution" }
func (s *HelperResolutionStage) Name() string { return "Helper resolution" }

var helperAwareFields = []expr.FieldID{
	expr.FieldDisplayName, expr.FieldTvgID, expr.FieldTvgName,
	expr.FieldTvgChno, expr.FieldTvgLogo, expr.FieldTvgShift, expr.FieldGroupTitle,
}

func (s *HelperResolutionStage) Execute(ctx context.Context, state *pipeline.State) (*pipeline.StageResult, error) {
	resolver := expr.NewResolver(expr.TimeSnapshot{Now: s.Now}, s.Logos)
	result := &pipeline.StageResult{RecordsIn: len(state.Channels)}

	for i := range state.Channels {
		ch := &state.Channels[i]
		acc := pipeline.ChannelAccessor{C: ch}
		for _, fieldID := range helperAwareFields {
			v, ok := acc.Field(fieldID, "")
			if !ok || v == "" {
				continue
			}
			resolved, remove, warning, err := resolver.Resolve(ctx, v, nil)
			if err != nil {
				return result, fmt.Errorf("channel %s: %w", ch.ID, err)
			}
			if warning != "" {
				result.Warnings = append(result.Warnings, fmt.Sprintf("channel %s: %s", ch.ID, warning))
			}
			switch {
			case remove:
				acc.RemoveField(fieldID, "")
			case resolved != v:
				acc.SetField(fieldID, "", resolved)
			}
		}
	}

	result.RecordsOut = len(state.Channels)

	// Match surviving EPG programs to channels by TvgID; programs for
	// channels filtered out of this run are dropped from the generated set.
	// The index is rebuilt here because filtering compacts state.Channels
	// after the loader built it.
	state.ChannelByTvgID = make(map[string]*domain.Channel, len(state.Channels))
	for i := range state.Channels {
		if c := &state.Channels[i]; c.TvgID != "" {
			state.ChannelByTvgID[c.TvgID] = c
		}
	}
	matched := state.Programs[:0]
	for _, p := range state.Programs {
		if _, ok := state.ChannelByTvgID[p.ChannelID]; ok {
			matched = append(matched, p)
		}
	}
	state.Programs = matched

	return result, nil
}
