package ingest

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/expr"
	"github.com/m3uproxy/m3uproxy/internal/metrics"
	"github.com/m3uproxy/m3uproxy/internal/pipeline"
	"github.com/m3uproxy/m3uproxy/internal/sandbox"
	"github.com/m3uproxy/m3uproxy/internal/store/sqlite"
)

// Stores bundles the repositories a Runner writes ingested records into.
type Stores struct {
	Sources  *sqlite.SourceRepo
	Channels *sqlite.ChannelRepo
	Epg      *sqlite.EpgRepo
}

// Runner fetches every active stream and EPG source on demand (normally
// triggered by a cron schedule) and replaces that source's rows in SQLite,
// the way cmd/m3u-proxyd's scheduler drives C2 ingestion ahead of a C3
// pipeline run.
type Runner struct {
	Stores  Stores
	Sandbox *sandbox.Sandbox
	Client  *http.Client
	Logger  zerolog.Logger

	// Strategy controls how each source's document is accumulated before
	// parsing; StrategyHybrid is a reasonable default for mixed playlist
	// sizes.
	Strategy Strategy

	// MaxConcurrency bounds how many sources are fetched/parsed at once,
	// via pipeline.IngestGate; defaults to 1 (fully sequential) if unset.
	MaxConcurrency int
}

// NewRunner builds a Runner with a hybrid accumulation strategy and the
// given ingest concurrency cap (config.IngestConfig.MaxConcurrency).
func NewRunner(stores Stores, box *sandbox.Sandbox, client *http.Client, logger zerolog.Logger, maxConcurrency int) *Runner {
	return &Runner{Stores: stores, Sandbox: box, Client: client, Logger: logger, Strategy: StrategyHybrid, MaxConcurrency: maxConcurrency}
}

// RunAll ingests every active stream source, then every active EPG source.
// Sources within each group run concurrently, bounded by MaxConcurrency via
// pipeline.IngestGate, so a proxy with dozens of upstreams doesn't open
// dozens of simultaneous downloads. A single source's failure is logged
// (and, for a stream source, recorded via MarkIngested); it does not abort
// ingestion of the rest.
func (r *Runner) RunAll(ctx context.Context) error {
	gate := pipeline.NewIngestGate(int64(r.MaxConcurrency))

	sources, err := r.Stores.Sources.ListStreamSources(ctx)
	if err != nil {
		return fmt.Errorf("ingest: list stream sources: %w", err)
	}
	var streamTasks []func() error
	for _, src := range sources {
		if !src.Active {
			continue
		}
		src := src
		streamTasks = append(streamTasks, func() error {
			channels, err := r.runStreamSource(ctx, src)
			if err != nil {
				r.Logger.Error().Err(err).Str("source", src.Name).Msg("stream source ingest failed")
				_ = r.Stores.Sources.MarkIngested(ctx, src.ID, time.Now().UTC(), err)
				metrics.RecordIngestRun(src.Name, "failure", 0)
				return nil
			}
			_ = r.Stores.Sources.MarkIngested(ctx, src.ID, time.Now().UTC(), nil)
			metrics.RecordIngestRun(src.Name, "success", channels)
			return nil
		})
	}
	if err := pipeline.RunAll(ctx, gate, streamTasks); err != nil {
		return fmt.Errorf("ingest: stream sources: %w", err)
	}

	epgSources, err := r.Stores.Sources.ListEpgSources(ctx)
	if err != nil {
		return fmt.Errorf("ingest: list epg sources: %w", err)
	}
	var epgTasks []func() error
	for _, src := range epgSources {
		if !src.Active {
			continue
		}
		src := src
		epgTasks = append(epgTasks, func() error {
			programs, err := r.runEpgSource(ctx, src)
			if err != nil {
				r.Logger.Error().Err(err).Str("source", src.Name).Msg("epg source ingest failed")
				metrics.RecordIngestRun(src.Name, "failure", 0)
				return nil
			}
			metrics.RecordIngestRun(src.Name, "success", programs)
			return nil
		})
	}
	if err := pipeline.RunAll(ctx, gate, epgTasks); err != nil {
		return fmt.Errorf("ingest: epg sources: %w", err)
	}
	return nil
}

func (r *Runner) runStreamSource(ctx context.Context, src domain.StreamSource) (int, error) {
	acc := NewAccumulator(r.Client, r.Sandbox, r.Strategy)
	accumulated, err := acc.Fetch(ctx, src.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", src.Name, err)
	}
	defer accumulated.Close()

	var channels []domain.Channel
	switch src.Kind {
	case domain.SourceKindM3U:
		reader, err := accumulated.Open()
		if err != nil {
			return 0, fmt.Errorf("open %s: %w", src.Name, err)
		}
		defer reader.Close()
		if err := ParseM3U(reader, src.ID, func(ch domain.Channel) error {
			channels = append(channels, ch)
			return nil
		}); err != nil {
			return 0, fmt.Errorf("parse m3u %s: %w", src.Name, err)
		}
	case domain.SourceKindXtream:
		client := NewXtreamClient(src.URL, src.Username, src.Password, r.Client)
		channels, err = client.ListLiveStreams(ctx, src.ID)
		if err != nil {
			return 0, fmt.Errorf("xtream list %s: %w", src.Name, err)
		}
	default:
		return 0, fmt.Errorf("unsupported stream source kind %q", src.Kind)
	}

	if err := r.Stores.Channels.ReplaceForSource(ctx, src.ID, channels); err != nil {
		return 0, fmt.Errorf("store channels for %s: %w", src.Name, err)
	}
	r.Logger.Info().Str("source", src.Name).Int("channels", len(channels)).Msg("stream source ingested")
	return len(channels), nil
}

func (r *Runner) runEpgSource(ctx context.Context, src domain.EpgSource) (int, error) {
	offset, err := expr.ParseTimeOffset(src.TimeOffset)
	if err != nil {
		return 0, fmt.Errorf("parse time offset for %s: %w", src.Name, err)
	}

	switch src.Kind {
	case domain.EpgKindXMLTV:
		return r.runXMLTVSource(ctx, src, offset)
	case domain.EpgKindXtream:
		return r.runXtreamEpgSource(ctx, src)
	default:
		return 0, fmt.Errorf("unsupported epg source kind %q", src.Kind)
	}
}

func (r *Runner) runXMLTVSource(ctx context.Context, src domain.EpgSource, offsetSeconds int) (int, error) {
	acc := NewAccumulator(r.Client, r.Sandbox, r.Strategy)
	accumulated, err := acc.Fetch(ctx, src.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", src.Name, err)
	}
	defer accumulated.Close()

	reader, err := accumulated.Open()
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src.Name, err)
	}
	defer reader.Close()

	var programs []domain.EpgProgram
	err = ParseXMLTV(reader, src.ID, offsetSeconds,
		func(xmltvChannelRef) error { return nil },
		func(p domain.EpgProgram) error {
			programs = append(programs, p)
			return nil
		})
	if err != nil {
		return 0, fmt.Errorf("parse xmltv %s: %w", src.Name, err)
	}

	if err := r.Stores.Epg.ReplaceForSource(ctx, src.ID, programs); err != nil {
		return 0, fmt.Errorf("store programs for %s: %w", src.Name, err)
	}
	r.Logger.Info().Str("source", src.Name).Int("programs", len(programs)).Msg("xmltv epg source ingested")
	return len(programs), nil
}

// runXtreamEpgSource pulls the rolling short-EPG window for every channel
// whose upstream panel matches this EPG source's URL/credentials, since
// Xtream's get_short_epg endpoint is keyed by stream_id rather than a bulk
// export.
func (r *Runner) runXtreamEpgSource(ctx context.Context, src domain.EpgSource) (int, error) {
	streamSources, err := r.Stores.Sources.ListStreamSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("list stream sources for %s: %w", src.Name, err)
	}

	var matched *domain.StreamSource
	for i := range streamSources {
		s := streamSources[i]
		if s.Kind == domain.SourceKindXtream && s.URL == src.URL && s.Username == src.Username {
			matched = &s
			break
		}
	}
	if matched == nil {
		return 0, fmt.Errorf("no matching xtream stream source for epg source %s", src.Name)
	}

	channels, err := r.Stores.Channels.ListBySource(ctx, matched.ID)
	if err != nil {
		return 0, fmt.Errorf("list channels for %s: %w", src.Name, err)
	}

	client := NewXtreamClient(src.URL, src.Username, src.Password, r.Client)
	var programs []domain.EpgProgram
	for _, ch := range channels {
		streamID := path.Base(strings.TrimSuffix(ch.StreamURL, "/"))
		entries, err := client.FetchShortEPG(ctx, src.ID, streamID, ch.TvgID, 0)
		if err != nil {
			r.Logger.Warn().Err(err).Str("channel", ch.DisplayName).Msg("short epg fetch failed")
			continue
		}
		programs = append(programs, entries...)
	}

	if err := r.Stores.Epg.ReplaceForSource(ctx, src.ID, programs); err != nil {
		return 0, fmt.Errorf("store programs for %s: %w", src.Name, err)
	}
	r.Logger.Info().Str("source", src.Name).Int("programs", len(programs)).Msg("xtream epg source ingested")
	return len(programs), nil
}

// parseTimeOffsetSeconds parses strings like "+1h30m" or "-45m" into a
// signed second count; an empty offset means UTC, unshifted.
func parseTimeOffsetSeconds(offset string) (int, error) {
	if offset == "" {
		return 0, nil
	}
	neg := false
	s := offset
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		neg = true
		s = s[1:]
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid time offset %q: %w", offset, err)
	}
	secs := int(d.Seconds())
	if neg {
		secs = -secs
	}
	return secs, nil
}
