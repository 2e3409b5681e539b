// Package stages implements the six pipeline.Stage steps run by the
// orchestrator for every proxy generation: Load, Data-mapping, Filter,
// Helper-resolution, Numbering, Generate.
package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/m3uproxy/m3uproxy/internal/pipeline"
	"github.com/m3uproxy/m3uproxy/internal/store/sqlite"
)

// LoaderStage reads each of the proxy's configured sources from storage, in
// priority order, and merges their channels/programs into pipeline.State.
// Later sources' channels are appended after earlier ones; de-duplication
// across sources is left to data-mapping/filter rules, matching the "last
// writer wins only via explicit rule" semantics of the data model.
type LoaderStage struct {
	Channels *sqlite.ChannelRepo
	Epg      *sqlite.EpgRepo
}

func NewLoaderStage(channels *sqlite.ChannelRepo, epg *sqlite.EpgRepo) *LoaderStage {
	return &LoaderStage{Channels: channels, Epg: epg}
}

func (s *LoaderStage) ID() string   { return "load" }
func (s *LoaderStage) Name() string { return "Load" }

func (s *LoaderStage) Execute(ctx context.Context, state *pipeline.State) (*pipeline.StageResult, error) {
	result := &pipeline.StageResult{}

	for _, src := range state.Sources {
		channels, err := s.Channels.ListBySource(ctx, src.ID)
		if err != nil {
			return nil, fmt.Errorf("pipeline: load channels for source %s: %w", src.ID, err)
		}
		state.Channels = append(state.Channels, channels...)
		result.RecordsIn += len(channels)
	}

	for _, src := range state.EpgSources {
		programs, err := s.Epg.ListWindow(ctx, src.ID, time.Time{}, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC))
		if err != nil {
			return nil, fmt.Errorf("pipeline: load programs for epg source %s: %w", src.ID, err)
		}
		state.Programs = append(state.Programs, programs...)
	}

	for i := range state.Channels {
		c := &state.Channels[i]
		if c.TvgID != "" {
			state.ChannelByTvgID[c.TvgID] = c
		}
	}

	result.RecordsOut = len(state.Channels)
	return result, nil
}
