package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/expr"
	"github.com/m3uproxy/m3uproxy/internal/pipeline"
)

// DataMappingStage conditionally rewrites channel fields per the proxy's
// active data-mapping rules, evaluated in sort_order/created_at order
// (ties broken by created_at ascending, per the data model's documented
// rule-ordering resolution).
//
// A rule's SET clause may assign to the pseudo-field "remove_channel"; once
// that happens for a record, later rules in the same pass are skipped for
// it — removal is terminal within one pass, matching the documented
// remove_channel-vs-later-rule precedence.
//
// domain.DataMappingRule.Scope is intentionally not branched on here; see
// DESIGN.md's open-question entry on RuleScope.
type DataMappingStage struct {
	Rules []domain.DataMappingRule
	Now   time.Time
}

func NewDataMappingStage(rules []domain.DataMappingRule, now time.Time) *DataMappingStage {
	return &DataMappingStage{Rules: rules, Now: now}
}

func (s *DataMappingStage) ID() string   { return "data_mapping" }
func (s *DataMappingStage) Name() string { return "Data mapping" }

func (s *DataMappingStage) Execute(ctx context.Context, state *pipeline.State) (*pipeline.StageResult, error) {
	result := &pipeline.StageResult{RecordsIn: len(state.Channels)}

	parsed := make([]*expr.Rule, 0, len(s.Rules))
	for _, r := range s.Rules {
		rule, err := expr.ParseRule(r.Expression)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("data mapping rule %q: %v", r.Name, err))
			continue
		}
		parsed = append(parsed, rule)
	}

	ev := expr.NewEvaluator(expr.TimeSnapshot{Now: s.Now})
	resolver := expr.NewResolver(expr.TimeSnapshot{Now: s.Now}, nil)

	surviving := state.Channels[:0]
	for i := range state.Channels {
		ch := &state.Channels[i]
		removed := false

		for _, rule := range parsed {
			var submatches []string
			matched := true
			if rule.Condition != nil {
				var err error
				value := conditionFieldValue(rule.Condition, ch)
				matched, err = ev.Eval(rule.Condition, pipeline.ChannelAccessor{C: ch})
				if err != nil {
					result.Warnings = append(result.Warnings, fmt.Sprintf("channel %s: %v", ch.ID, err))
					continue
				}
				if cond, ok := singleCondition(rule.Condition); ok {
					submatches = ev.Submatches(cond, value)
				}
			}
			if !matched {
				continue
			}

			for _, a := range rule.Assignments {
				if a.Field == pipeline.RemoveChannelField {
					ch.Removed = true
					removed = true
					break
				}
				resolved := resolver.ResolveBackrefs(a.Value, submatches)
				pipeline.ChannelAccessor{C: ch}.SetField(a.FieldID, a.Field, resolved)
			}
			if removed {
				break
			}
		}

		if !ch.Removed {
			surviving = append(surviving, *ch)
		}
	}
	state.Channels = surviving

	result.RecordsOut = len(state.Channels)
	return result, nil
}

// singleCondition extracts a Condition when the rule's whole expression is
// exactly one (no AND/OR combinator), since backreference capture only
// makes sense against a single matches/not_matches comparison.
func singleCondition(e expr.Expr) (expr.Condition, bool) {
	c, ok := e.(expr.Condition)
	return c, ok
}

func conditionFieldValue(e expr.Expr, ch *domain.Channel) string {
	c, ok := e.(expr.Condition)
	if !ok {
		return ""
	}
	v, _ := pipeline.ChannelAccessor{C: ch}.Field(c.FieldID, c.Field)
	return v
}
