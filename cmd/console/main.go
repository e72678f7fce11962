package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/api"
	"github.com/dennisdiepolder/monti/console/internal/auth"
	"github.com/dennisdiepolder/monti/console/internal/backend"
	"github.com/dennisdiepolder/monti/console/internal/config"
	"github.com/dennisdiepolder/monti/console/internal/metrics"
	"github.com/dennisdiepolder/monti/console/internal/poller"
	"github.com/dennisdiepolder/monti/console/internal/simulation"
	"github.com/dennisdiepolder/monti/console/internal/store"
	"github.com/dennisdiepolder/monti/console/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Str("backend_url", cfg.BackendURL).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Dur("live_interval", cfg.Intervals.Live).
		Dur("history_interval", cfg.Intervals.History).
		Dur("policy_interval", cfg.Intervals.Policies).
		Msg("starting SQRS console")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persisted view state
	persistCfg := store.LoadPersistConfig()
	persister, err := store.NewPersister(ctx, persistCfg, log.Logger)
	if err != nil {
		log.Warn().Err(err).Str("mode", string(persistCfg.Mode)).Msg("persistence unavailable, continuing without it")
		persister = store.NewNoopPersister()
	}
	defer persister.Close()

	st := store.New(persister, log.Logger)
	if err := st.Rehydrate(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to rehydrate view state")
	}

	// Store writer outlives the poller so the last update is flushed
	storeCtx, storeCancel := context.WithCancel(context.Background())
	storeDone := make(chan struct{})
	go func() {
		st.Run(storeCtx)
		close(storeDone)
	}()

	client := backend.NewClient(cfg.BackendURL, cfg.RequestTimeout, cfg.MaxBatches)
	probeBackend(ctx, client, st)

	m := metrics.Get()
	connected := func() bool { return m.Connected(cfg.ConnectivityThreshold) }

	scheduler := poller.NewScheduler(client, st, cfg.Intervals, m, log.Logger)
	scheduler.Start(ctx)

	controller := simulation.NewController(client, scheduler, m, log.Logger)

	hub := websocket.NewHub(m, log.Logger)
	go hub.Run(ctx)
	broadcaster := websocket.NewBroadcaster(st, hub, connected, time.Second, log.Logger)
	go broadcaster.Run(ctx)

	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Health:         healthHandler,
		Auth:           auth.New(auth.Options{SkipAuth: cfg.SkipAuth, IssuerURL: cfg.OIDCIssuerURL}, log.Logger),
		View:           api.NewViewHandler(st, client, connected, log.Logger),
		Simulation:     api.NewSimulationHandler(controller, log.Logger),
		WebSocket:      websocket.NewHandler(hub, cfg, log.Logger),
		Metrics:        m.Handler(),
		Recorder:       m,
		Logger:         log.Logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	scheduler.Stop()
	cancel()

	storeCancel()
	<-storeDone

	log.Info().Msg("server stopped")
}

// probeBackend checks reachability and loads the backend configuration once.
// Failures are logged; the poller keeps trying on its own cadence.
func probeBackend(ctx context.Context, client *backend.Client, st *store.Store) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Health(probeCtx); err != nil {
		log.Warn().Err(err).Msg("backend health check failed")
		return
	}

	backendCfg, err := client.Config(probeCtx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load backend config")
		return
	}
	st.SetBackendConfig(backendCfg)
	log.Info().Int("keys", len(backendCfg)).Msg("backend config loaded")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"sqrs-console"}`)
}
