// Package pipeline orchestrates the six stages that turn a Proxy's
// configured sources into a published channel/program set: Load,
// Data-mapping, Filter, Helper-resolution, Numbering, Generate.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/m3uproxy/m3uproxy/internal/domain"
)

// Stage is a single step in the orchestrator's run. Stages operate on the
// shared State in place, and report the record counts they processed so the
// PerformanceTracker can surface per-stage timing.
type Stage interface {
	ID() string
	Name() string
	Execute(ctx context.Context, state *State) (*StageResult, error)
}

// StageResult carries per-stage bookkeeping back to the orchestrator.
type StageResult struct {
	RecordsIn  int
	RecordsOut int
	Warnings   []string
}

// State is shared mutable context threaded through every stage of one
// pipeline run for one Proxy.
type State struct {
	ProxyID uuid.UUID
	Proxy   *domain.Proxy

	Sources    []domain.StreamSource
	EpgSources []domain.EpgSource
	Filters    []domain.Filter

	Channels []domain.Channel
	Programs []domain.EpgProgram

	// ChannelByTvgID indexes surviving channels by TvgID for the
	// helper-resolution stage's EPG matching.
	ChannelByTvgID map[string]*domain.Channel

	StartedAt time.Time
	Warnings  []string
}

// NewState seeds pipeline state for one proxy generation run.
func NewState(proxyID uuid.UUID, proxy *domain.Proxy) *State {
	return &State{
		ProxyID:        proxyID,
		Proxy:          proxy,
		ChannelByTvgID: make(map[string]*domain.Channel),
		StartedAt:      time.Now(),
	}
}
