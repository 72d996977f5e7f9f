// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package main is the entry point for the Excubitor server.
//
// Excubitor continuously discovers recently published user-generated
// videos that plausibly infringe a configured IP catalog, scores each
// candidate on a 0-100 risk scale, and feeds a bounded stream of the
// highest-risk videos into a downstream vision-analysis pipeline, all
// within a hard daily budget of platform API units.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered loading (defaults, YAML file, env vars)
//  2. Store: embedded BadgerDB with videos/channels/keywords/snapshots/quota collections
//  3. Catalog: the IP target catalog, loaded once and immutable for the run
//  4. Ledgers: the discovery and rescan daily quota budgets, restored from the store
//  5. Platform client: rate-limited, retrying HTTP client behind a circuit breaker
//  6. Event transport: Watermill over NATS JetStream (embedded, external, or in-process)
//  7. Pipeline: keyword/channel registries, scanners, orchestrator, risk analyzer
//  8. Supervision: a suture tree running the GC loop, router, orchestrator,
//     analyzer, and ops HTTP server until SIGINT/SIGTERM
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, then config.yaml, then built-in
// defaults. The only required settings are the platform API key and the
// catalog path:
//
//	export PLATFORM_API_KEY=your-api-key
//	export CATALOG_PATH=./catalog.yaml
//	./excubitor
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the supervision tree, flush both quota
// ledgers, close the event transport, and close the store, in that
// order.
package main

import (
	"context"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/excubitor/internal/analyzer"
	"github.com/tomtom215/excubitor/internal/api"
	"github.com/tomtom215/excubitor/internal/catalog"
	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/discovery"
	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/intel"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/platform"
	"github.com/tomtom215/excubitor/internal/quota"
	"github.com/tomtom215/excubitor/internal/store"
	"github.com/tomtom215/excubitor/internal/supervisor"
	"github.com/tomtom215/excubitor/internal/velocity"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const (
	ledgerDiscovery = "discovery"
	ledgerRescan    = "rescan"

	// channelScanWorkers bounds concurrent uploads fetches in tier 2.
	channelScanWorkers = 4
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Default logger; config (and its logging section) never loaded.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", Version).
		Str("go_version", runtime.Version()).
		Msg("Starting Excubitor")
	metrics.AppInfo.WithLabelValues(Version, runtime.Version()).Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage first: every other component persists through it.
	st, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Store close failed")
		}
	}()

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Catalog.Path).Msg("Failed to load IP catalog")
	}
	logging.Info().Int("targets", cat.Len()).Msg("IP catalog loaded")

	// Ledgers restore today's spend from the store so a restart cannot
	// over-spend the day.
	dayLedger, err := quota.NewLedger(ctx, ledgerDiscovery, cfg.Quota.DailyUnits, st.Quota)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to restore discovery ledger")
	}
	rescanLedger, err := quota.NewLedger(ctx, ledgerRescan, cfg.Quota.RescanUnits, st.Quota)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to restore rescan ledger")
	}
	defer flushLedgers(dayLedger, rescanLedger)

	client := platform.NewBreakerClient(platform.NewHTTPClient(cfg.Platform), cfg.Platform)

	transport, err := events.Connect(ctx, cfg.NATS)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect event transport")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := transport.Close(closeCtx); err != nil {
			logging.Error().Err(err).Msg("Event transport close failed")
		}
	}()

	// Intelligence registries. Keyword seeding is idempotent: stats of
	// keywords that survived a catalog change are preserved.
	keywords := intel.NewKeywordRegistry(st.Keywords, cfg.Discovery)
	seeded, err := keywords.Seed(ctx, cat.SeedKeywords())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed keyword registry")
	}
	logging.Info().Int("new_keywords", seeded).Msg("Keyword registry seeded")
	channels := intel.NewChannelRegistry(st.Channels)

	processor := discovery.NewProcessor(discovery.ProcessorDeps{
		Matcher:   cat.Matcher(),
		Hydrator:  client,
		Videos:    st.Videos,
		Channels:  channels,
		Snapshots: st.Snapshots,
		Publisher: transport.Publisher,
	}, cfg.Discovery)

	orchestrator := discovery.NewOrchestrator(
		cfg.Discovery,
		dayLedger,
		discovery.NewFreshScanner(cat, keywords, client, processor),
		discovery.NewTrendingIngestor(cat, client, processor, cfg.Discovery.TrendingCategories),
		discovery.NewChannelScanner(channels, client, processor, channelScanWorkers),
		discovery.NewKeywordRotator(keywords, client, processor),
	)

	riskAnalyzer := analyzer.New(analyzer.Deps{
		Videos:    st.Videos,
		Channels:  channels,
		Tracker:   velocity.NewTracker(st.Snapshots),
		Fetcher:   client,
		Publisher: transport.Publisher,
		Rescan:    rescanLedger,
	}, cfg.Rescore)

	router, err := events.NewRouter(cfg.NATS, transport.Publisher.Watermill(), events.NewWatermillLogger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event router")
	}
	router.AddConsumerHandler("video-discovered-handler", events.TopicVideoDiscovered,
		transport.Subscriber, riskAnalyzer.HandleDiscovered)
	router.AddConsumerHandler("vision-feedback-handler", events.TopicVisionFeedback,
		transport.Subscriber, riskAnalyzer.HandleFeedback)

	opsServer := api.NewServer(cfg.Server, api.Deps{
		Discovery: orchestrator,
		Analyzer:  riskAnalyzer,
		Ledger:    dayLedger,
		Rescan:    rescanLedger,
		Videos:    st.Videos,
		Channels:  channels,
		Breaker:   client,
		Ready: func(ctx context.Context) error {
			_, err := st.Quota.GetQuotaUsage(ctx, ledgerDiscovery, time.Now().UTC().Format("2006-01-02"))
			return err
		},
	})

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddStorageService(st.GC())
	tree.AddPipelineService(router)
	tree.AddPipelineService(orchestrator)
	tree.AddPipelineService(riskAnalyzer)
	tree.AddAPIService(supervisor.NewHTTPService(opsServer, cfg.Server.Timeout))

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Int64("daily_quota", cfg.Quota.DailyUnits).
		Int64("rescan_quota", cfg.Quota.RescanUnits).
		Bool("nats_embedded", transport.Embedded()).
		Msg("Excubitor running")

	uptimeDone := make(chan struct{})
	go trackUptime(uptimeDone)

	err = tree.Serve(ctx)
	close(uptimeDone)
	if err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervision tree stopped unexpectedly")
	}

	logging.Info().Msg("Excubitor shut down")
}

// flushLedgers writes both day counters so the next start resumes from
// the exact spend. Best-effort: the write-through persistence inside
// Charge already keeps the store close to current.
func flushLedgers(ledgers ...*quota.Ledger) {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, l := range ledgers {
		l.Flush(flushCtx)
	}
}

func trackUptime(done <-chan struct{}) {
	start := time.Now()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			metrics.AppUptime.Set(time.Since(start).Seconds())
		}
	}
}
