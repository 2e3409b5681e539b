package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/metrics"
	"github.com/m3uproxy/m3uproxy/internal/store/sqlite"
)

// Orchestrator runs the six pipeline.Stage steps for one proxy, in the
// fixed order Load, Data-mapping, Filter, Helper-resolution, Numbering,
// Generate. Callers build Stages once per run (the stages close over
// rules/filters loaded for that proxy) and pass them to Run.
type Orchestrator struct {
	Sources *sqlite.SourceRepo
	Rules   *sqlite.RuleRepo
	Tracker *PerformanceTracker
}

func NewOrchestrator(sources *sqlite.SourceRepo, rules *sqlite.RuleRepo, tracker *PerformanceTracker) *Orchestrator {
	if tracker == nil {
		tracker = NewPerformanceTracker()
	}
	return &Orchestrator{Sources: sources, Rules: rules, Tracker: tracker}
}

// PrepareState resolves a proxy's attached stream/EPG sources and filters
// (via the proxy's join-table priority order) into a fresh State ready
// for Run. Data-mapping rules are not proxy-scoped — they're global,
// gated only by their own SourceKind/Active flags (Scope does not gate
// which rules apply; see DESIGN.md's open-question entry on RuleScope) —
// so stages build those from RuleRepo.ListDataMappingRules directly
// rather than through State.
func (o *Orchestrator) PrepareState(ctx context.Context, proxy *domain.Proxy) (*State, error) {
	allSources, err := o.Sources.ListStreamSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stream sources: %w", err)
	}
	allEpg, err := o.Sources.ListEpgSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list epg sources: %w", err)
	}
	allFilters, err := o.Rules.ListFilters(ctx, domain.FilterSourceStream)
	if err != nil {
		return nil, fmt.Errorf("list filters: %w", err)
	}

	sourceByID := make(map[string]domain.StreamSource, len(allSources))
	for _, s := range allSources {
		sourceByID[s.ID.String()] = s
	}
	epgByID := make(map[string]domain.EpgSource, len(allEpg))
	for _, s := range allEpg {
		epgByID[s.ID.String()] = s
	}
	filterByID := make(map[string]domain.Filter, len(allFilters))
	for _, f := range allFilters {
		filterByID[f.ID.String()] = f
	}

	state := NewState(proxy.ID, proxy)

	type prioritized struct {
		priority int
		source   domain.StreamSource
	}
	var sources []prioritized
	for _, ps := range proxy.Sources {
		if s, ok := sourceByID[ps.StreamSourceID.String()]; ok {
			sources = append(sources, prioritized{ps.PriorityOrder, s})
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].priority < sources[j].priority })
	for _, s := range sources {
		state.Sources = append(state.Sources, s.source)
	}

	for _, pe := range proxy.EpgSources {
		if s, ok := epgByID[pe.EpgSourceID.String()]; ok {
			state.EpgSources = append(state.EpgSources, s)
		}
	}

	type prioritizedFilter struct {
		priority int
		filter   domain.Filter
	}
	var filters []prioritizedFilter
	for _, pf := range proxy.Filters {
		if f, ok := filterByID[pf.FilterID.String()]; ok {
			filters = append(filters, prioritizedFilter{pf.PriorityOrder, f})
		}
	}
	sort.Slice(filters, func(i, j int) bool { return filters[i].priority < filters[j].priority })
	for _, f := range filters {
		state.Filters = append(state.Filters, f.filter)
	}

	return state, nil
}

// Run executes stages in order against state, recording timing for each
// and aborting on the first error. Warnings a stage reports (e.g. an
// unparseable rule) do not abort the run; they're appended to
// state.Warnings so the caller can surface them without losing the rest
// of the generated output.
func (o *Orchestrator) Run(ctx context.Context, state *State, runStages []Stage) error {
	proxyLabel := state.Proxy.Slug
	runStarted := time.Now()

	for _, stage := range runStages {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := time.Now()
		result, err := stage.Execute(ctx, state)
		duration := time.Since(started)
		metrics.RecordPipelineStage(proxyLabel, stage.Name(), duration)

		if err != nil {
			o.Tracker.Record(StageTiming{StageID: stage.ID(), StageName: stage.Name(), Duration: duration})
			return fmt.Errorf("stage %s: %w", stage.ID(), err)
		}

		timing := StageTiming{StageID: stage.ID(), StageName: stage.Name(), Duration: duration}
		if result != nil {
			timing.RecordsIn = result.RecordsIn
			timing.RecordsOut = result.RecordsOut
			timing.Warnings = result.Warnings
			state.Warnings = append(state.Warnings, result.Warnings...)
		}
		o.Tracker.Record(timing)
	}

	metrics.RecordPipelineRun(proxyLabel, time.Since(runStarted), len(state.Channels))
	return nil
}
