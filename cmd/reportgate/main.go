package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trialstack/reportgate/pkg/admission"
	"github.com/trialstack/reportgate/pkg/audit"
	"github.com/trialstack/reportgate/pkg/catalog"
	"github.com/trialstack/reportgate/pkg/config"
	"github.com/trialstack/reportgate/pkg/export"
	"github.com/trialstack/reportgate/pkg/gateway"
	"github.com/trialstack/reportgate/pkg/notify"
	"github.com/trialstack/reportgate/pkg/observability"
	"github.com/trialstack/reportgate/pkg/rights"
	"github.com/trialstack/reportgate/pkg/settings"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	if err := db.Ping(); err != nil {
		logger.WithError(err).Error("failed to ping database")
		os.Exit(1)
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.Alerting.SMTPAddr != "" {
		notifier = notify.NewSMTPNotifier(cfg.Alerting.SMTPAddr, cfg.Alerting.From)
	}

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		logger.WithError(err).Error("failed to initialize audit log")
		os.Exit(1)
	}

	settingsStore := settings.NewSQLStore(db)
	exporter := export.NewEngineClient(cfg.Engine.URL, cfg.Engine.ContextProject, metrics)
	issuer := admission.NewCapabilityIssuer(settingsStore, cfg.Relay.CapabilityTTL)
	relay := gateway.NewRelay(exporter, issuer, settingsStore, cfg.Relay.Endpoint, cfg.Relay.Timeout, logger, metrics)

	server := gateway.NewServer(gateway.Deps{
		Admission: admission.NewController(settingsStore, notifier, logger, metrics),
		Issuer:    issuer,
		Rights:    rights.NewResolver(rights.NewSQLStore(db)),
		Catalog:   catalog.NewService(catalog.NewSQLStore(db), settingsStore),
		Exporter:  exporter,
		Relay:     relay,
		Audit:     auditLogger,
		Logger:    logger,
		Metrics:   metrics,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	health := observability.NewHealthChecker(db)
	healthRouter := mux.NewRouter()
	healthRouter.HandleFunc("/healthz", health.Liveness).Methods("GET")
	healthRouter.HandleFunc("/readyz", health.Readiness).Methods("GET")
	if cfg.Observability.MetricsEnabled {
		healthRouter.Handle("/metrics", observability.Handler(registry)).Methods("GET")
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthRouter,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(context.Context) error { return db.Close() })

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", apiServer.Addr).Info("gateway listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("gateway server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown did not complete cleanly")
		os.Exit(1)
	}
}
