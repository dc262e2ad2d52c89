package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hiveboard/hiveboard/alerting"
	"github.com/hiveboard/hiveboard/broadcast"
	"github.com/hiveboard/hiveboard/config"
	"github.com/hiveboard/hiveboard/ingest"
	"github.com/hiveboard/hiveboard/logger"
	"github.com/hiveboard/hiveboard/observability"
	"github.com/hiveboard/hiveboard/pricing"
	"github.com/hiveboard/hiveboard/router"
	"github.com/hiveboard/hiveboard/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("HIVEBOARD_CONFIG_PATH"))
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg)

	log.Info().Str("mode", string(cfg.Mode)).Str("addr", cfg.Addr).Msg("hiveboard starting")

	store, err := storage.New(cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init failed")
	}

	if err := store.BootstrapDevTenant(cfg.DevKey); err != nil {
		log.Error().Err(err).Msg("bootstrap dev tenant failed")
	}
	if err := store.EnsureDefaultProject("dev"); err != nil {
		log.Error().Err(err).Msg("ensure default project failed")
	}

	retention := storage.NewRetentionEngine(store, cfg.PruneInterval())
	retention.Start()

	var bus broadcast.Bus
	var nativeBus *broadcast.NativeManager
	var bridge *broadcast.Bridge
	if cfg.IsProduction() {
		bridge = broadcast.NewBridge(store, cfg.WSGatewayEndpoint, log)
		bus = bridge
		log.Info().Str("gateway", cfg.WSGatewayEndpoint).Msg("using HTTP-bridge broadcast backend")
	} else {
		nativeBus = broadcast.NewNativeManager(log)
		bus = nativeBus
		log.Info().Msg("using native in-process WebSocket broadcast backend")
	}

	catalog := pricing.DefaultCatalog()
	if path := os.Getenv("HIVEBOARD_PRICING_FILE"); path != "" {
		if err := catalog.LoadFromFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("pricing overrides load failed — using built-in catalog")
		} else {
			log.Info().Str("path", path).Msg("pricing overrides loaded")
		}
	}

	alertEngine := alerting.NewEngine(log)
	notifier := alerting.NewNotifier(log)

	metrics := observability.NewMetrics()

	pipeline := ingest.NewPipeline(store, bus, catalog, alertEngine, notifier, cfg.StuckThreshold(), metrics, log)

	r := router.New(cfg, log, router.Deps{
		Store:     store,
		Pipeline:  pipeline,
		Bus:       bus,
		NativeBus: nativeBus,
		Bridge:    bridge,
		Alerts:    alertEngine,
		Metrics:   metrics,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout() + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("hiveboard listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	retention.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("hiveboard stopped gracefully")
	}
}
