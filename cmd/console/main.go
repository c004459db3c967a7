package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/authctx"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/cache"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/client"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/config"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/dashboard"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/files"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/gateway"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/handlers"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/jobs"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/log"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/poller"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/repository"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/server"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/storage"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/store"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/stream"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment)
	ctx := context.Background()

	closers := []func(){}
	checks := map[string]handlers.Pinger{}

	stateStore, err := openAuthState(ctx, cfg, checks, &closers)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.AuthState.Backend).Msg("failed to open auth state store")
	}

	var sink files.DownloadSink
	if cfg.Storage.Endpoint != "" {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure bucket failed")
		}
		sink = objectStore
	}

	remote := client.New(cfg.API.BaseURL, cfg.API.Timeout, logger)
	checks["api"] = handlers.PingFunc(func(ctx context.Context) error {
		_, err := remote.FetchRealtimeStats(ctx)
		return err
	})
	sessions := store.New(cfg.Reconcile.IntentTTL, logger)
	fileManager := files.NewManager(remote, sink, logger)
	polls := poller.New(logger)
	dash := dashboard.New(remote, sessions, fileManager, polls, cfg.Poll, logger)
	auth := authctx.New(stateStore, remote, logger)

	auth.OnLogin(func(state models.AuthState) {
		if err := dash.Mount(state); err != nil {
			logger.Error().Err(err).Str("username", state.Username).Msg("dashboard mount failed")
		}
	})
	auth.OnLogout(func() {
		dash.Unmount()
		polls.StopAll()
		sessions.Reset()
		fileManager.Reset()
	})

	if err := auth.Init(ctx); err != nil {
		logger.Error().Err(err).Msg("could not restore previous session")
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Deps{
		Auth:      auth,
		Registrar: remote,
		Store:     sessions,
		Dashboard: dash,
		Gateway:   gateway.New(remote, sessions, logger),
		Files:     fileManager,
		Stream:    stream.New(sessions, auth, cfg.AllowCORSOrigins, logger),
		Checks:    checks,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(sessions, cfg.Jobs, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, polls, closers)
}

// openAuthState picks where the login state survives restarts.
func openAuthState(ctx context.Context, cfg *config.AppConfig, checks map[string]handlers.Pinger, closers *[]func()) (authctx.StateStore, error) {
	switch cfg.AuthState.Backend {
	case config.AuthStateRedis:
		rs, err := cache.OpenAuthStateStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		checks["redis"] = rs
		*closers = append(*closers, func() { _ = rs.Close() })
		return rs, nil

	case config.AuthStatePostgres:
		repo, err := repository.OpenAuthStateRepository(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		checks["postgres"] = repo
		*closers = append(*closers, repo.Close)
		return repo, nil

	default:
		return authctx.NewMemoryStore(), nil
	}
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, polls *poller.Poller, closers []func()) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()()
	polls.Shutdown()

	for _, closeFn := range closers {
		closeFn()
	}

	logger.Info().Msg("console exited cleanly")
}
