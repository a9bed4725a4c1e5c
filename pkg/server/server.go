// Package server provides the public entry point for initializing the
// AgriLens control plane server.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	defer srv.ShutdownFunc(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/agrilens/agrilens/control-plane/internal/api"
	"github.com/agrilens/agrilens/control-plane/internal/api/handlers"
	"github.com/agrilens/agrilens/control-plane/internal/catalog"
	"github.com/agrilens/agrilens/control-plane/internal/config"
	"github.com/agrilens/agrilens/control-plane/internal/diagnosis"
	"github.com/agrilens/agrilens/control-plane/internal/gateway"
	"github.com/agrilens/agrilens/control-plane/internal/history"
	"github.com/agrilens/agrilens/control-plane/internal/monitor"
	"github.com/agrilens/agrilens/control-plane/internal/retention"
	"github.com/agrilens/agrilens/control-plane/internal/sessions"
	"github.com/agrilens/agrilens/control-plane/internal/store"
	"github.com/agrilens/agrilens/control-plane/internal/telemetry"
	"github.com/agrilens/agrilens/control-plane/internal/uploads"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized AgriLens control plane.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the key-value store backing the diagnosis history.
	Store store.Store

	// Config is the server configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc stops background workers and flushes telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all control plane components from the environment.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the control plane with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	// Initialize telemetry
	flushTelemetry, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore, err := store.Open(store.Config{
		Driver:     cfg.Storage.Driver,
		DataDir:    cfg.Storage.DataDir,
		SQLitePath: cfg.Storage.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Info().Str("driver", cfg.Storage.Driver).Msg("✅ Store initialized")

	hist := history.New(dataStore)
	cat := catalog.NewCatalog(cfg.Catalog.OverridesFile)
	log.Info().Int("categories", len(cat.Categories())).Msg("✅ Catalog loaded")

	gwOpts := []gateway.Option{gateway.WithTimeout(cfg.Backend.Timeout)}
	if cfg.Backend.HealthURL != "" {
		gwOpts = append(gwOpts, gateway.WithHealthURL(cfg.Backend.HealthURL))
	}
	gw := gateway.New(cfg.Backend.BaseURL, gwOpts...)
	log.Info().
		Str("base_url", gw.BaseURL()).
		Str("health_url", gw.HealthURL()).
		Msg("✅ API gateway client initialized")

	images, err := uploads.New(cfg.Storage.UploadDir)
	if err != nil {
		dataStore.Close()
		return nil, fmt.Errorf("init uploads: %w", err)
	}

	orch := diagnosis.NewOrchestrator(gw, cat, hist, diagnosis.WithImageSaver(images))
	sess := sessions.NewManager(gw, nil)
	log.Info().Msg("✅ Diagnosis orchestrator and chat sessions initialized")

	// Background workers share one lifetime, ended by ShutdownFunc.
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	mon := monitor.NewHealthMonitor(gw, cfg.Backend.HealthInterval)
	mon.Start(bgCtx)

	janitor := retention.NewJanitor(sess, hist, images, cfg.Retention.SessionIdleTTL, cfg.Retention.Interval)
	go janitor.Start(bgCtx)

	// Build handlers + API router
	h := handlers.New(orch, hist, cat, sess, images, mon)
	h.AllowedOrigins = cfg.HTTP.AllowedOrigins
	h.Store = dataStore
	router := api.NewRouter(cfg, h)

	shutdown := func(ctx context.Context) error {
		cancel()
		mon.Stop()
		return errors.Join(flushTelemetry(ctx), dataStore.Close())
	}

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
