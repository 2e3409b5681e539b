package stages

import (
	"context"
	"strconv"

	"github.com/m3uproxy/m3uproxy/internal/pipeline"
)

// NumberingStage assigns sequential tvg-chno values starting at the proxy's
// StartingChannelNumber to any surviving channel that doesn't already carry
// one from an upstream source or a data-mapping rule; channels that already
// have a number keep it, so a rule's explicit SET tvg_chno="..." always wins.
type NumberingStage struct{}

func NewNumberingStage() *NumberingStage { return &NumberingStage{} }

func (s *NumberingStage) ID() string   { return "numbering" }
func (s *NumberingStage) Name() string { return "Numbering" }

func (s *NumberingStage) Execute(ctx context.Context, state *pipeline.State) (*pipeline.StageResult, error) {
	result := &pipeline.StageResult{RecordsIn: len(state.Channels)}

	next := 1
	if state.Proxy != nil && state.Proxy.StartingChannelNumber > 0 {
		next = state.Proxy.StartingChannelNumber
	}

	used := make(map[string]bool, len(state.Channels))
	for _, c := range state.Channels {
		if c.TvgChno != "" {
			used[c.TvgChno] = true
		}
	}

	for i := range state.Channels {
		c := &state.Channels[i]
		if c.TvgChno != "" {
			continue
		}
		for used[strconv.Itoa(next)] {
			next++
		}
		c.TvgChno = strconv.Itoa(next)
		used[c.TvgChno] = true
		next++
	}

	result.RecordsOut = len(state.Channels)
	return result, nil
}
