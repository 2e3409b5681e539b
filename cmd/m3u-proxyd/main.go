// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/m3uproxy/m3uproxy/internal/apperr"
	"github.com/m3uproxy/m3uproxy/internal/config"
	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/expr"
	"github.com/m3uproxy/m3uproxy/internal/generator"
	"github.com/m3uproxy/m3uproxy/internal/health"
	"github.com/m3uproxy/m3uproxy/internal/httpx"
	"github.com/m3uproxy/m3uproxy/internal/ingest"
	mlog "github.com/m3uproxy/m3uproxy/internal/log"
	"github.com/m3uproxy/m3uproxy/internal/pipeline"
	"github.com/m3uproxy/m3uproxy/internal/pipeline/stages"
	"github.com/m3uproxy/m3uproxy/internal/ratelimit"
	"github.com/m3uproxy/m3uproxy/internal/sandbox"
	"github.com/m3uproxy/m3uproxy/internal/store/sqlite"
	"github.com/m3uproxy/m3uproxy/internal/streamproxy"
	"github.com/m3uproxy/m3uproxy/internal/telemetry"
	"github.com/m3uproxy/m3uproxy/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (TOML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	mlog.Configure(mlog.Config{Level: "info", Service: "m3u-proxy", Version: version.Version})
	logger := mlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		effectiveConfigPath = strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	}
	if effectiveConfigPath == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			effectiveConfigPath = config.DefaultConfigPath
		}
	}

	cfg, err := config.NewLoader(effectiveConfigPath, version.Version).Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	mlog.Configure(mlog.Config{Level: cfg.LogLevel, Service: cfg.LogService, Version: cfg.Version})
	logger = mlog.WithComponent("daemon")
	logger.Info().Str("listen", cfg.HTTP.ListenAddr).Str("config", effectiveConfigPath).Msg("starting m3u-proxyd")

	tracerProvider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    "production",
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init telemetry provider")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	if err := os.MkdirAll(cfg.Store.SandboxDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("create sandbox dir")
	}
	if err := os.MkdirAll(cfg.Store.ArtifactDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("create artifact dir")
	}

	db, err := sqlite.Open(cfg.Store.DatabasePath, sqlite.Config{
		BusyTimeout:  cfg.Store.BusyTimeout,
		MaxOpenConns: cfg.Store.MaxOpenConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	if err := sqlite.Migrate(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("migrate database")
	}

	sources := sqlite.NewSourceRepo(db)
	channels := sqlite.NewChannelRepo(db)
	epgRepo := sqlite.NewEpgRepo(db)
	proxies := sqlite.NewProxyRepo(db)
	rules := sqlite.NewRuleRepo(db)
	logos := sqlite.NewLogoRepo(db)
	codecs := sqlite.NewCodecRepo(db)

	spoolBox, err := sandbox.New(cfg.Store.SandboxDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("open sandbox")
	}
	logoBox, err := sandbox.New(cfg.Store.SandboxDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("open logo sandbox")
	}

	upstreamClient := httpx.NewClient(cfg.HTTP.UpstreamTimeout)

	runner := ingest.NewRunner(
		ingest.Stores{Sources: sources, Channels: channels, Epg: epgRepo},
		spoolBox,
		upstreamClient,
		mlog.WithComponent("ingest"),
		cfg.Ingest.MaxConcurrency,
	)

	var lastIngestAt time.Time
	var lastIngestErr error
	runIngest := func(ctx context.Context) {
		logger.Info().Msg("ingest run starting")
		err := runner.RunAll(ctx)
		lastIngestAt = time.Now().UTC()
		lastIngestErr = err
		if err != nil {
			logger.Error().Err(err).Msg("ingest run failed")
			return
		}
		logger.Info().Msg("ingest run complete")
	}

	pub := generator.NewPublisher(cfg.Store.ArtifactDir)
	orchestrator := pipeline.NewOrchestrator(sources, rules, nil)

	var lastRegenerateAt time.Time
	// lastChannelCount holds the number of proxies whose last regeneration
	// succeeded, not a channel total; the channels_loaded health check
	// reports unhealthy while it is zero.
	var lastChannelCount int
	regenerateAll := func(ctx context.Context) {
		all, err := proxies.ListAll(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("list proxies for regeneration")
			return
		}
		total := 0
		for i := range all {
			proxy := all[i]
			if err := regenerateProxy(ctx, orchestrator, &proxy, pub, channels, epgRepo, rules, logos, cfg.HTTP.PublicBaseURL); err != nil {
				logger.Error().Err(err).Str("proxy", proxy.Slug).Msg("pipeline run failed")
				continue
			}
			total++
		}
		lastRegenerateAt = time.Now().UTC()
		lastChannelCount = total
		logger.Info().Int("proxies", total).Time("at", lastRegenerateAt).Msg("regeneration run complete")
	}

	// Initial synchronous pass so artifacts exist before the first cron
	// tick and before the HTTP server starts answering requests.
	runIngest(ctx)
	regenerateAll(ctx)

	prober := ingest.NewProber("")
	probeGate := pipeline.NewIngestGate(int64(cfg.Ingest.MaxConcurrency))
	probeRelayChannels := func(ctx context.Context) {
		all, err := proxies.ListAll(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("list proxies for codec probing")
			return
		}
		var tasks []func() error
		for _, proxy := range all {
			if proxy.Mode != domain.ProxyModeRelay {
				continue
			}
			for _, ps := range proxy.Sources {
				chs, err := channels.ListBySource(ctx, ps.StreamSourceID)
				if err != nil {
					logger.Error().Err(err).Str("proxy", proxy.Slug).Msg("list channels for codec probing")
					continue
				}
				for _, ch := range chs {
					ch := ch
					tasks = append(tasks, func() error {
						result, err := prober.Probe(ctx, ch.ID, ch.StreamURL)
						if err != nil {
							logger.Warn().Err(err).Str("channel", ch.DisplayName).Msg("codec probe failed")
							return nil
						}
						if err := codecs.Upsert(ctx, result); err != nil {
							logger.Error().Err(err).Str("channel", ch.DisplayName).Msg("store codec probe")
						}
						return nil
					})
				}
			}
		}
		if err := pipeline.RunAll(ctx, probeGate, tasks); err != nil {
			logger.Error().Err(err).Msg("codec probe run failed")
			return
		}
		logger.Info().Int("channels", len(tasks)).Msg("codec probe run complete")
	}

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.Schedule.DefaultIngestCron, func() { runIngest(ctx) }); err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.Schedule.DefaultIngestCron).Msg("schedule ingest")
	}
	if _, err := sched.AddFunc(cfg.Schedule.RegenerateCron, func() { regenerateAll(ctx); probeRelayChannels(ctx) }); err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.Schedule.RegenerateCron).Msg("schedule regenerate")
	}
	sched.Start()
	defer sched.Stop()

	breakers := streamproxy.NewHostBreakers(5, 60*time.Second)
	sessions := streamproxy.NewSessionTracker(cfg.Streaming.IdleSessionTimeout)
	if cfg.Redis.Addr != "" {
		mirror := streamproxy.NewRedisMirror(cfg.Redis.Addr, cfg.Redis.KeyPrefix)
		sessions.SetMirror(mirror)
		defer mirror.Close()
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("session mirroring enabled")
	}
	go sessions.Run(ctx, 30*time.Second)
	relayer := streamproxy.NewRelayer(breakers, mlog.WithComponent("relay"))
	limiter := ratelimit.NewHostLimiter(cfg.Streaming.PerHostRequestsPerSecond, cfg.Streaming.PerHostBurst)

	handlers := &streamproxy.Handlers{
		Proxies:        proxies,
		Channels:       channels,
		Logos:          logos,
		ArtifactDir:    cfg.Store.ArtifactDir,
		LogoSandbox:    logoBox,
		UpstreamClient: upstreamClient,
		Breakers:       breakers,
		Limiter:        limiter,
		Sessions:       sessions,
		Relayer:        relayer,
		Logger:         mlog.WithComponent("streamproxy"),
	}

	healthMgr := health.NewManager(version.Version)
	healthMgr.SetReadyStrict(true)
	healthMgr.RegisterChecker(health.NewFileChecker("database", cfg.Store.DatabasePath))
	healthMgr.RegisterChecker(health.NewLastRunChecker(func() (time.Time, string) {
		if lastIngestErr != nil {
			return lastIngestAt, lastIngestErr.Error()
		}
		return lastIngestAt, ""
	}))
	healthMgr.RegisterChecker(health.NewChannelsChecker(func() int { return lastChannelCount }))

	r := chi.NewRouter()
	r.Use(mlog.Middleware())
	r.Use(httprate.LimitByIP(120, time.Minute))
	r.Get("/healthz", healthMgr.ServeHealth)
	r.Get("/readyz", healthMgr.ServeReady)
	r.Handle("/metrics", promhttp.Handler())
	handlers.Routes(r)

	srv := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTP.ListenAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// regenerateProxy runs the six fixed pipeline stages for one proxy and
// publishes the resulting M3U/XMLTV artifacts.
func regenerateProxy(
	ctx context.Context,
	orchestrator *pipeline.Orchestrator,
	proxy *domain.Proxy,
	pub *generator.Publisher,
	channels *sqlite.ChannelRepo,
	epgRepo *sqlite.EpgRepo,
	rules *sqlite.RuleRepo,
	logos *sqlite.LogoRepo,
	publicBaseURL string,
) error {
	state, err := orchestrator.PrepareState(ctx, proxy)
	if err != nil {
		return fmt.Errorf("prepare state: %w", err)
	}

	mappingRules, err := rules.ListDataMappingRules(ctx, domain.FilterSourceStream)
	if err != nil {
		return fmt.Errorf("list data-mapping rules: %w", err)
	}

	now := time.Now().UTC()
	logoLookup := expr.LogoLookup(func(ctx context.Context, id uuid.UUID) (string, error) {
		asset, err := logos.GetAsset(ctx, id)
		if err != nil {
			if errors.Is(err, sqlite.ErrNotFound) {
				return "", apperr.NotFound("logo asset %s", id)
			}
			return "", apperr.Database(err, "logo asset lookup failed")
		}
		return fmt.Sprintf("%s/logos/%s", publicBaseURL, asset.ID.String()), nil
	})

	runStages := []pipeline.Stage{
		stages.NewLoaderStage(channels, epgRepo),
		stages.NewDataMappingStage(mappingRules, now),
		stages.NewFilterStage(state.Filters, now),
		stages.NewHelperResolutionStage(logoLookup, now),
		stages.NewNumberingStage(),
		stages.NewGenerateStage(pub, fmt.Sprintf("%s/%s/epg.xml", publicBaseURL, proxy.Slug), buildStreamURLFunc(publicBaseURL, proxy.Slug), now),
	}

	return orchestrator.Run(ctx, state, runStages)
}

// buildStreamURLFunc rewrites every channel's published StreamURL to route
// through this proxy's own /stream endpoint, regardless of its Mode: the
// streaming proxy's Serve dispatch (redirect/proxy/relay) decides what
// happens to the request once it arrives, so routing through it uniformly
// keeps circuit breaking, rate limiting, and session tracking in effect
// even for redirect-mode proxies.
func buildStreamURLFunc(publicBaseURL, slug string) func(domain.Channel) string {
	return func(ch domain.Channel) string {
		return fmt.Sprintf("%s/stream/%s/%s", publicBaseURL, slug, ch.ID.String())
	}
}
