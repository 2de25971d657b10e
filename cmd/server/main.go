// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	_ "github.com/klaxonhq/klaxon/docs" // Import generated swagger docs
	"github.com/klaxonhq/klaxon/internal/api"
	"github.com/klaxonhq/klaxon/internal/config"
	"github.com/klaxonhq/klaxon/internal/detection"
	"github.com/klaxonhq/klaxon/internal/ingest"
	"github.com/klaxonhq/klaxon/internal/logging"
	"github.com/klaxonhq/klaxon/internal/supervisor"
	"github.com/klaxonhq/klaxon/internal/supervisor/services"
	ws "github.com/klaxonhq/klaxon/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Klaxon with supervisor tree")
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("persistence_backend", cfg.Persistence.Backend).
		Bool("nats_enabled", cfg.Ingest.NATS.Enabled).
		Msg("Configuration loaded")

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
		logging.Warn().Msg("This should only be used for load testing!")
	}

	// Alert repository: memory backend returns nil, which the engine treats
	// as no persistence (alerts do not survive restart).
	repo, err := detection.NewRepository(detection.PersistenceConfig{
		Backend: cfg.Persistence.Backend,
		Path:    cfg.Persistence.Path,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize alert repository")
	}
	if repo != nil {
		logging.Info().
			Str("backend", cfg.Persistence.Backend).
			Str("path", cfg.Persistence.Path).
			Msg("Alert persistence enabled")
	}

	// Detection engine owns the rule registry, deduplicator, alert store and
	// action executor. The change sink is wired after the hub exists.
	engine := detection.NewEngine(detection.EngineConfig{
		Executor: detection.ExecutorConfig{
			MaxConcurrent:  cfg.Executor.MaxConcurrent,
			QueueSize:      cfg.Executor.QueueSize,
			DefaultTimeout: cfg.Executor.DefaultTimeout,
		},
	}, nil, repo)
	detection.RegisterDefaultActions(engine.Executor())

	// WebSocket hub reads alerts from the store and receives every state
	// change as the store's sink.
	wsHub := ws.NewHub(engine.Store())
	engine.Store().SetSink(wsHub)

	// Register configured webhook notifiers
	for _, whCfg := range cfg.Notifiers.Webhooks {
		if !whCfg.Enabled {
			continue
		}
		engine.AddNotifier(detection.NewWebhookNotifier(detection.WebhookConfig{
			Name:          whCfg.Name,
			URL:           whCfg.URL,
			Headers:       whCfg.Headers,
			MinSeverity:   detection.Severity(whCfg.MinSeverity),
			RatePerSecond: whCfg.RatePerSecond,
			Enabled:       whCfg.Enabled,
		}))
		logging.Info().
			Str("name", whCfg.Name).
			Str("min_severity", whCfg.MinSeverity).
			Msg("Webhook notifier registered")
	}

	// Ingest path: intake buffer -> internal pipeline -> engine
	pipeline := ingest.NewPipeline(engine)
	intake := ingest.NewIntake(pipeline.Sink(), cfg.Ingest.BufferSize)

	// Optional NATS JetStream consumption, with an embedded server for
	// single-node deployments that want a broker without operating one.
	var embedded *ingest.EmbeddedServer
	var consumer *ingest.NATSConsumer
	if cfg.Ingest.NATS.Enabled {
		natsURL := cfg.Ingest.NATS.URL
		if cfg.Ingest.NATS.EmbeddedServer {
			embedded, err = ingest.NewEmbeddedServer(ingest.ServerConfig{
				Host:              cfg.Ingest.NATS.Host,
				Port:              cfg.Ingest.NATS.Port,
				StoreDir:          cfg.Ingest.NATS.StoreDir,
				JetStreamMaxMem:   cfg.Ingest.NATS.MaxMemory,
				JetStreamMaxStore: cfg.Ingest.NATS.MaxStore,
			})
			if err != nil {
				logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
			}
			natsURL = embedded.ClientURL()
			logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
		}

		subCfg := ingest.DefaultSubscriberConfig(natsURL)
		if cfg.Ingest.NATS.Subject != "" {
			subCfg.Subject = cfg.Ingest.NATS.Subject
		}
		if cfg.Ingest.NATS.StreamName != "" {
			subCfg.StreamName = cfg.Ingest.NATS.StreamName
		}
		if cfg.Ingest.NATS.DurableName != "" {
			subCfg.DurableName = cfg.Ingest.NATS.DurableName
		}
		if cfg.Ingest.NATS.QueueGroup != "" {
			subCfg.QueueGroup = cfg.Ingest.NATS.QueueGroup
		}

		consumer, err = ingest.NewNATSConsumer(subCfg, intake)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to create NATS consumer")
		}
		logging.Info().
			Str("subject", subCfg.Subject).
			Str("stream", subCfg.StreamName).
			Str("queue_group", subCfg.QueueGroup).
			Msg("NATS event consumer configured")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the engine before any ingest path is live so restored alerts
	// and the action executor are ready for the first event.
	if err := engine.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to start detection engine")
	}

	handler := api.NewHandler(engine.Store(), engine, engine.Executor(), intake, wsHub, cfg.Security.CORSOrigins)

	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwConfig.RateLimitRequests = cfg.Security.RateLimitReqs
	mwConfig.RateLimitWindow = cfg.Security.RateLimitWindow
	mwConfig.RateLimitDisabled = cfg.Security.RateLimitDisabled
	router := api.NewRouter(handler, mwConfig)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Create structured logger for supervisor using our slog adapter.
	// This bridges zerolog to slog for sutureslog compatibility.
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Pipeline layer services
	tree.AddPipelineService(services.NewPipelineService(pipeline))
	var consumerToken suture.ServiceToken
	if consumer != nil {
		consumerToken = tree.AddPipelineService(services.NewNATSConsumerService(consumer))
		logging.Info().Msg("NATS consumer added to supervisor tree")
	}

	// Transport layer services. The HTTP service is added last so suture
	// stops it first on shutdown, refusing new requests before the hub and
	// pipeline wind down.
	tree.AddTransportService(services.NewWebSocketHubService(wsHub))
	tree.AddTransportService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

		// Drain before canceling the tree: stop the NATS consumer so no new
		// events arrive, then flush the intake buffer through the pipeline
		// while its subscriber is still running. Later HTTP submissions get
		// a shutting-down rejection.
		if consumer != nil {
			if rmErr := tree.RemovePipelineService(consumerToken, cfg.Server.ShutdownTimeout); rmErr != nil {
				logging.Warn().Err(rmErr).Msg("NATS consumer did not stop cleanly")
			}
			if closeErr := consumer.Close(); closeErr != nil {
				logging.Warn().Err(closeErr).Msg("Error closing NATS consumer")
			}
		}
		intake.Stop()
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	// The tree is down: HTTP drained, hub closed, pipeline subscriber
	// exited after consuming the intake flush. Tear down what remains.
	intake.Stop()
	if err := pipeline.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing event pipeline")
	}
	engine.Stop()
	if embedded != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := embedded.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
		}
		shutdownCancel()
	}

	logging.Info().Msg("Application stopped gracefully")
}
