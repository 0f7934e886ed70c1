package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"

	"github.com/couchcryptid/signal-story-pipeline/internal/adapter/civicdata"
	httpadapter "github.com/couchcryptid/signal-story-pipeline/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/signal-story-pipeline/internal/adapter/kafka"
	"github.com/couchcryptid/signal-story-pipeline/internal/adapter/narrative"
	"github.com/couchcryptid/signal-story-pipeline/internal/adapter/postgres"
	"github.com/couchcryptid/signal-story-pipeline/internal/config"
	"github.com/couchcryptid/signal-story-pipeline/internal/observability"
	"github.com/couchcryptid/signal-story-pipeline/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	domains, err := config.LoadDomainFile(cfg.DomainConfigPath)
	if err != nil {
		logger.Error("failed to load domain config", "path", cfg.DomainConfigPath, "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	pubStore := postgres.NewPublicationStore(db)
	registry := postgres.NewTargetRegistry(db)
	runLog := kafkaadapter.NewRunLogWriter(cfg.KafkaBrokers, cfg.RunLogTopic, logger)

	source := civicdata.NewClient(cfg.CivicDataBaseURL, cfg.CivicDataAppToken,
		cfg.CivicDataTimeout, cfg.CivicDataRateLimit, logger)
	sampleSource := civicdata.NewSampleSource(time.Now)
	generator := narrative.NewClient(cfg.NarrativeBaseURL, cfg.NarrativeTimeout, logger)

	clock := clockwork.NewRealClock()
	resolver := pipeline.NewResolver(registry, domains.AliasPrefix, cfg.TargetCacheSize, metrics, logger)
	publisher := pipeline.NewPublisher(pubStore, clock, logger)

	coordinator := pipeline.NewCoordinator(generator, resolver, publisher, runLog,
		clock, logger, metrics, pipeline.CoordinatorConfig{
			TimeBudget:     cfg.TimeBudget,
			BatchDelay:     cfg.BatchDelay,
			Concurrency:    cfg.BatchConcurrency,
			CoveredTargets: domains.CoveredTargets,
		})

	for _, dc := range domains.Domains {
		coordinator.Register(&pipeline.Job{
			Name:           dc.Name,
			Domain:         dc.Name,
			Strategy:       pipeline.NewClusterStrategy(dc, source, metrics, logger),
			SampleStrategy: pipeline.NewClusterStrategy(dc, sampleSource, metrics, logger),
		})
		logger.Info("registered cluster job", "job", dc.Name, "dataset", dc.Dataset)
	}
	if len(domains.Events) > 0 {
		defs := pipeline.EventDefinitionsFromConfig(domains.Events)
		coordinator.Register(&pipeline.Job{
			Name:     "events",
			Domain:   "events",
			Strategy: pipeline.NewCalendarStrategy("events", defs, logger),
		})
		logger.Info("registered calendar job", "job", "events", "events", len(defs))
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, coordinator, pubStore, cfg.TriggerToken, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := runLog.Close(); err != nil {
		logger.Error("run log writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
