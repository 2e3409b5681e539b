// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/m3uproxy/m3uproxy/internal/apperr"
	"github.com/m3uproxy/m3uproxy/internal/config"
	"github.com/m3uproxy/m3uproxy/internal/domain"
	"github.com/m3uproxy/m3uproxy/internal/expr"
	"github.com/m3uproxy/m3uproxy/internal/generator"
	"github.com/m3uproxy/m3uproxy/internal/httpx"
	"github.com/m3uproxy/m3uproxy/internal/humanize"
	"github.com/m3uproxy/m3uproxy/internal/ingest"
	mlog "github.com/m3uproxy/m3uproxy/internal/log"
	"github.com/m3uproxy/m3uproxy/internal/pipeline"
	"github.com/m3uproxy/m3uproxy/internal/pipeline/stages"
	"github.com/m3uproxy/m3uproxy/internal/sandbox"
	"github.com/m3uproxy/m3uproxy/internal/store/sqlite"
)

var (
	configPath string
	daemonAddr string
	statusJSON bool
	regenerate string
)

func main() {
	root := &cobra.Command{
		Use:   "m3u-proxyctl",
		Short: "Administer a m3u-proxyd instance",
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to config file (TOML)")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run a one-off ingestion pass against every active source",
		RunE:  runIngestCmd,
	}

	regenerateCmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate published M3U/XMLTV artifacts for one or all proxies",
		RunE:  runRegenerateCmd,
	}
	regenerateCmd.Flags().StringVar(&regenerate, "proxy", "", "proxy slug to regenerate (default: all proxies)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running daemon's health/readiness status",
		RunE:  runStatusCmd,
	}
	statusCmd.Flags().StringVar(&daemonAddr, "addr", "http://localhost:8080", "daemon base URL")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print raw JSON")

	root.AddCommand(ingestCmd, regenerateCmd, statusCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context) (*sqlite.DB, config.AppConfig, error) {
	cfg, err := config.NewLoader(configPath, "m3u-proxyctl").Load()
	if err != nil {
		return nil, cfg, fmt.Errorf("load config: %w", err)
	}
	db, err := sqlite.Open(cfg.Store.DatabasePath, sqlite.Config{
		BusyTimeout:  cfg.Store.BusyTimeout,
		MaxOpenConns: cfg.Store.MaxOpenConns,
	})
	if err != nil {
		return nil, cfg, fmt.Errorf("open database: %w", err)
	}
	if err := sqlite.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, cfg, fmt.Errorf("migrate database: %w", err)
	}
	return db, cfg, nil
}

func runIngestCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	box, err := sandbox.New(cfg.Store.SandboxDir)
	if err != nil {
		return fmt.Errorf("open sandbox: %w", err)
	}
	client := httpx.NewClient(cfg.HTTP.UpstreamTimeout)

	runner := ingest.NewRunner(ingest.Stores{
		Sources:  sqlite.NewSourceRepo(db),
		Channels: sqlite.NewChannelRepo(db),
		Epg:      sqlite.NewEpgRepo(db),
	}, box, client, mlog.WithComponent("ingest"), cfg.Ingest.MaxConcurrency)

	if err := runner.RunAll(ctx); err != nil {
		return fmt.Errorf("ingest run: %w", err)
	}
	fmt.Println("ingest run complete")
	return nil
}

func runRegenerateCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	sourceRepo := sqlite.NewSourceRepo(db)
	channelRepo := sqlite.NewChannelRepo(db)
	epgRepo := sqlite.NewEpgRepo(db)
	proxyRepo := sqlite.NewProxyRepo(db)
	ruleRepo := sqlite.NewRuleRepo(db)
	logoRepo := sqlite.NewLogoRepo(db)
	pub := generator.NewPublisher(cfg.Store.ArtifactDir)
	orchestrator := pipeline.NewOrchestrator(sourceRepo, ruleRepo, nil)

	var targets []domain.Proxy
	if regenerate != "" {
		p, err := proxyRepo.GetBySlug(ctx, regenerate)
		if err != nil {
			return fmt.Errorf("load proxy %q: %w", regenerate, err)
		}
		targets = []domain.Proxy{*p}
	} else {
		targets, err = proxyRepo.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("list proxies: %w", err)
		}
	}

	for i := range targets {
		proxy := targets[i]
		if err := regenerateOne(ctx, orchestrator, &proxy, pub, channelRepo, epgRepo, ruleRepo, logoRepo, cfg.HTTP.PublicBaseURL); err != nil {
			return fmt.Errorf("regenerate %q: %w", proxy.Slug, err)
		}
		fmt.Printf("regenerated %s\n", proxy.Slug)
	}
	return nil
}

func regenerateOne(
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
		return err
	}
	mappingRules, err := rules.ListDataMappingRules(ctx, domain.FilterSourceStream)
	if err != nil {
		return err
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
		stages.NewGenerateStage(pub, fmt.Sprintf("%s/%s/epg.xml", publicBaseURL, proxy.Slug), func(ch domain.Channel) string {
			return fmt.Sprintf("%s/stream/%s/%s", publicBaseURL, proxy.Slug, ch.ID.String())
		}, now),
	}
	return orchestrator.Run(ctx, state, runStages)
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(daemonAddr + "/healthz")
	if err != nil {
		if statusJSON {
			fmt.Println(`{"error": "unreachable"}`)
		} else {
			fmt.Printf("daemon unreachable: %v\n", err)
		}
		os.Exit(2)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if statusJSON {
		fmt.Println(string(body))
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Printf("status: %d %v\n", resp.StatusCode, parsed["status"])

	if uptime, ok := parsed["uptime"].(float64); ok {
		fmt.Printf("uptime: %s\n", humanize.Duration(time.Duration(uptime)*time.Second))
	}
	return nil
}
