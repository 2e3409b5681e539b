package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/expr"
	"github.com/m3uproxy/m3uproxy/internal/pipeline"
)

// FilterStage applies the proxy's configured filters, in priority order,
// to the surviving channel set. A Filter with Inverse=false keeps only
// matching records (include); Inverse=true drops matching records
// (exclude). Multiple filters compose by intersection: a record must pass
// every filter to survive.
type FilterStage struct {
	Filters []domain.Filter
	Now     time.Time
}

func NewFilterStage(filters []domain.Filter, now time.Time) *FilterStage {
	return &FilterStage{Filters: filters, Now: now}
}

func (s *FilterStage) ID() string   { return "filter" }
func (s *FilterStage) Name() string { return "Filter" }

func (s *FilterStage) Execute(ctx context.Context, state *pipeline.State) (*pipeline.StageResult, error) {
	result := &pipeline.StageResult{RecordsIn: len(state.Channels)}

	type compiled struct {
		expr    expr.Expr
		inverse bool
		name    string
	}
	var active []compiled
	for _, f := range s.Filters {
		e, err := expr.ParseCondition(f.Expression)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("filter %q: %v", f.Name, err))
			continue
		}
		active = append(active, compiled{expr: e, inverse: f.Inverse, name: f.Name})
	}

	ev := expr.NewEvaluator(expr.TimeSnapshot{Now: s.Now})

	surviving := state.Channels[:0]
	for i := range state.Channels {
		ch := &state.Channels[i]
		keep := true
		for _, f := range active {
			matched, err := ev.Eval(f.expr, pipeline.ChannelAccessor{C: ch})
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("filter %q on channel %s: %v", f.name, ch.ID, err))
				continue
			}
			if f.inverse {
				matched = !matched
			}
			if !matched {
				keep = false
				break
			}
		}
		if keep {
			surviving = append(surviving, *ch)
		}
	}
	state.Channels = surviving

	result.RecordsOut = len(state.Channels)
	return result, nil
}
