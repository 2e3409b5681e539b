package stages

import (
	"context"
	"testing"
	"time"

	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/pipeline"
)

func TestDataMappingStageAppliesSetClause(t *testing.T) {
	state := &pipeline.State{
		Channels: []domain.Channel{
			{DisplayName: "ESPN", TvgName: "ESPN HD", GroupTitle: "Uncategorized"},
		},
	}
	stage := NewDataMappingStage([]domain.DataMappingRule{
		{Name: "tag sports", SortOrder: 1, Expression: `tvg_name contains "HD" SET group_title = "Sports HD"`},
	}, time.Now())

	_, err := stage.Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if state.Channels[0].GroupTitle != "Sports HD" {
		t.Fatalf("expected group_title rewritten, got %q", state.Channels[0].GroupTitle)
	}
}

func TestDataMappingStageRemoveChannelIsTerminal(t *testing.T) {
	state := &pipeline.State{
		Channels: []domain.Channel{
			{DisplayName: "Adult Channel", GroupTitle: "XXX"},
			{DisplayName: "Kids Channel", GroupTitle: "Kids"},
		},
	}
	stage := NewDataMappingStage([]domain.DataMappingRule{
		{Name: "drop adult", SortOrder: 1, Expression: `group_title contains "XXX" SET remove_channel = "true"`},
		{Name: "rename anyway", SortOrder: 2, Expression: `SET group_title = "Should not apply to removed"`},
	}, time.Now())

	_, err := stage.Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(state.Channels) != 1 || state.Channels[0].DisplayName != "Kids Channel" {
		t.Fatalf("expected only Kids Channel to survive, got %+v", state.Channels)
	}
	if state.Channels[0].GroupTitle != "Should not apply to removed" {
		t.Fatalf("expected the second default rule to still apply to the surviving channel, got %q", state.Channels[0].GroupTitle)
	}
}

func TestDataMappingStageBackreferenceSubstitution(t *testing.T) {
	state := &pipeline.State{
		Channels: []domain.Channel{
			{DisplayName: "ESPN", TvgName: "US: ESPN HD"},
		},
	}
	stage := NewDataMappingStage([]domain.DataMappingRule{
		{Name: "strip region prefix", Expression: `tvg_name matches "US: (.*)" SET tvg_name = "$1"`},
	}, time.Now())

	_, err := stage.Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if state.Channels[0].TvgName != "ESPN HD" {
		t.Fatalf("expected backreference substitution to strip the region prefix, got %q", state.Channels[0].TvgName)
	}
}

func TestDataMappingStageInvalidRuleWarnsAndContinues(t *testing.T) {
	state := &pipeline.State{
		Channels: []domain.Channel{{DisplayName: "Keep Me"}},
	}
	stage := NewDataMappingStage([]domain.DataMappingRule{
		{Name: "broken", Expression: `not a valid rule at all ===`},
	}, time.Now())

	result, err := stage.Execute(context.Background(), state)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for the unparseable rule")
	}
	if len(state.Channels) != 1 {
		t.Fatalf("expected channels to survive despite the broken rule, got %+v", state.Channels)
	}
}
