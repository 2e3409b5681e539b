package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/generator"
	"github.com/m3uproxy/m3uproxy/internal/pipeline"
)

// GenerateStage is the final stage of a run: it hands the surviving
// channels and programmes off to the generator package, which renders
// and atomically publishes the M3U and XMLTV artifacts.
type GenerateStage struct {
	Publisher *generator.Publisher
	XTvgURL   string
	// StreamURL rewrites a channel's upstream URL into the public URL
	// clients should request, per the proxy's Mode (redirect passes the
	// upstream URL through unchanged; proxy/relay route it back through
	// the streaming proxy's own handlers).
	StreamURL func(domain.Channel) string
	Now       time.Time
}

func NewGenerateStage(pub *generator.Publisher, xTvgURL string, streamURL func(domain.Channel) string, now time.Time) *GenerateStage {
	return &GenerateStage{Publisher: pub, XTvgURL: xTvgURL, StreamURL: streamURL, Now: now}
}

func (s *GenerateStage) ID() string   { return "generate" }
func (s *GenerateStage) Name() string { return "Generate" }

func (s *GenerateStage) Execute(ctx context.Context, state *pipeline.State) (*pipeline.StageResult, error) {
	result := &pipeline.StageResult{RecordsIn: len(state.Channels)}

	if state.Proxy == nil {
		return nil, fmt.Errorf("generate stage: state has no proxy")
	}

	keep := state.Proxy.VersionsToKeep
	if keep <= 0 {
		keep = 1
	}

	published, err := s.Publisher.Publish(state.Proxy.Slug, state.Channels, state.Programs, s.XTvgURL, s.StreamURL, keep, s.Now)
	if err != nil {
		return nil, fmt.Errorf("publish proxy %s: %w", state.Proxy.Slug, err)
	}

	result.RecordsOut = len(state.Channels)
	result.Warnings = append(result.Warnings, fmt.Sprintf("published version %s", published.Version))
	return result, nil
}
