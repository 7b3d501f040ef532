package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/radiusdt/impact-connector/internal/attribution"
	"github.com/radiusdt/impact-connector/internal/config"
	"github.com/radiusdt/impact-connector/internal/conversion"
	"github.com/radiusdt/impact-connector/internal/database"
	"github.com/radiusdt/impact-connector/internal/events"
	"github.com/radiusdt/impact-connector/internal/httpserver"
	"github.com/radiusdt/impact-connector/internal/impact"
	"github.com/radiusdt/impact-connector/internal/metrics"
	"github.com/radiusdt/impact-connector/internal/middleware"
	"github.com/radiusdt/impact-connector/internal/settings"
	"github.com/radiusdt/impact-connector/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const limiterIdle = 10 * time.Minute

type hostStore interface {
	storage.AttributeStore
	storage.CommerceStore
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and event subscriber",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting impact-connector",
		zap.String("version", Version),
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	checks := make(map[string]httpserver.HealthChecker)

	var (
		host          hostStore
		settingsStore settings.Store
	)
	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		checks["postgres"] = db
		host = storage.NewPostgresStore(db.Pool, cfg.Impact.StoreID)
		settingsStore = settings.NewPostgresStore(db, cfg.Impact.StoreID)
	} else {
		logger.Warn("database disabled, using in-memory storage")
		host = storage.NewInMemoryStore()
		settingsStore = settings.NewInMemoryStore()
	}

	provider := settings.NewProvider(settingsStore, logger, m)
	if err := provider.EnsureDefaults(ctx); err != nil {
		return err
	}

	client := impact.NewClient(cfg.Impact.APIURL, cfg.Impact.UserAgent(), logger, m)
	reporter := conversion.NewReporter(host, host, client, logger, m)
	dispatcher := events.NewDispatcher(provider, reporter, logger, m)
	capturer := attribution.NewCapturer(host, logger, m)
	limiter := middleware.NewRateLimitMiddleware(cfg.RateLimit, logger)

	var wg sync.WaitGroup
	runBackground := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if cfg.Redis.Enabled {
		rdb, err := database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer rdb.Close()
		checks["redis"] = rdb

		if cfg.Events.RedisChannel != "" {
			sub := events.NewSubscriber(rdb.Client, cfg.Events.RedisChannel, dispatcher, logger)
			runBackground(func() {
				if err := sub.Run(ctx); err != nil {
					logger.Error("event subscriber stopped", zap.Error(err))
				}
			})
		}
	}

	runBackground(func() { provider.Run(ctx, cfg.Impact.SettingsRefresh) })
	runBackground(func() {
		ticker := time.NewTicker(limiterIdle)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(limiterIdle)
			}
		}
	})

	signer := attribution.NewCallbackSigner(cfg.Auth.CallbackKey(), attribution.DefaultCallbackTokenTTL)
	handler := httpserver.NewServer(&httpserver.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Metrics:     m,
		Settings:    provider,
		Commerce:    host,
		Capturer:    capturer,
		Renderer:    attribution.NewRenderer(capturer, signer, ""),
		Dispatcher:  dispatcher,
		Signer:      signer,
		RateLimiter: limiter,
		Checks:      checks,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	wg.Wait()
	logger.Info("server stopped")
	return nil
}
