package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/matchwatch/vlr-results-notifier-go/internal/config"
	"github.com/matchwatch/vlr-results-notifier-go/internal/db"
	"github.com/matchwatch/vlr-results-notifier-go/internal/db/repository"
	"github.com/matchwatch/vlr-results-notifier-go/internal/handler"
	"github.com/matchwatch/vlr-results-notifier-go/internal/metrics"
	"github.com/matchwatch/vlr-results-notifier-go/internal/middleware"
	"github.com/matchwatch/vlr-results-notifier-go/internal/mirror"
	"github.com/matchwatch/vlr-results-notifier-go/internal/notify"
	"github.com/matchwatch/vlr-results-notifier-go/internal/ratelimit"
	"github.com/matchwatch/vlr-results-notifier-go/internal/scheduler"
	"github.com/matchwatch/vlr-results-notifier-go/internal/scraper"
	"github.com/matchwatch/vlr-results-notifier-go/internal/service"
	"github.com/matchwatch/vlr-results-notifier-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.Log
	log.Info("match results notifier starting",
		zap.Duration("poll_interval", cfg.Poll.Interval),
		zap.Int("rate_limit_burst", cfg.RateLimit.Burst),
		zap.Duration("rate_limit_window", cfg.RateLimit.Window),
	)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, cleanup, err := buildRepository(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize match store", zap.Error(err))
	}
	defer cleanup()

	vlr := scraper.NewVLRScraper(
		&http.Client{Timeout: cfg.Scraper.Timeout},
		log,
		cfg.Scraper.URL,
		cfg.Scraper.BaseURL,
		cfg.Scraper.UserAgent,
		cfg.Scraper.Tournaments,
	)

	sink := notify.NewDiscordWebhookSink(
		&http.Client{Timeout: cfg.Notify.SendTimeout},
		log,
		cfg.Notify.WebhookURL,
		cfg.Notify.Username,
	)

	limiter := ratelimit.New(cfg.RateLimit.Burst, cfg.RateLimit.Window)

	var sheetsMirror mirror.Mirror
	if cfg.Mirror.WebhookURL != "" {
		sheetsMirror = mirror.NewSheetsWebhookMirror(
			&http.Client{Timeout: cfg.Mirror.Timeout},
			log,
			cfg.Mirror.WebhookURL,
		)
		log.Info("sheet mirror enabled")
	}

	var publisher *service.MatchEventPublisher
	var brokerHealth handler.BrokerHealth
	var eventPublisher service.EventPublisher
	if cfg.RabbitMQ.Host != "" {
		publisher, err = service.NewMatchEventPublisher(&cfg.RabbitMQ)
		if err != nil {
			log.Fatal("failed to initialize match event publisher", zap.Error(err))
		}
		defer publisher.Close()
		brokerHealth = publisher
		eventPublisher = publisher
	}

	engine := service.NewEngine(service.EngineOptions{
		Scraper:       vlr,
		Repo:          repo,
		Sink:          sink,
		Limiter:       limiter,
		Mirror:        sheetsMirror,
		Publisher:     eventPublisher,
		Logger:        log,
		RecencyWindow: cfg.Notify.RecencyWindow,
		MirrorTimeout: cfg.Mirror.Timeout,
	})

	sched := scheduler.New(engine, cfg.Poll.Interval, cfg.CycleTimeout(), log)

	healthHandler := handler.NewHealthHandler(repo, brokerHealth)
	adminHandler := handler.NewAdminHandler(engine, repo, cfg.CycleTimeout())
	authMiddleware := middleware.NewAPIKeyAuth(cfg.Server.APIKeys)

	router := handler.NewRouter(healthHandler, adminHandler, authMiddleware)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.ListenAndServe()
	}()

	schedulerDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(schedulerDone)
	}()

	select {
	case err := <-serverErrors:
		log.Error("http server error", zap.Error(err))
		stop()
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		_ = server.Close()
	}

	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		log.Warn("scheduler did not stop before shutdown deadline")
	}

	log.Info("match results notifier stopped gracefully")
}

// buildRepository selects the store backend: PostgreSQL when a database URL
// is configured, otherwise the single-file JSON store.
func buildRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.MatchRepository, func(), error) {
	if cfg.Database.URL != "" {
		pool, err := db.NewPool(ctx, &db.Config{
			URL:             cfg.Database.URL,
			MaxConns:        int32(cfg.Database.MaxConnections),
			MinConns:        int32(cfg.Database.MinConnections),
			MaxConnLifetime: cfg.Database.MaxLifetime,
			MaxConnIdleTime: cfg.Database.MaxIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}

		log.Info("database connection established",
			zap.Int32("max_conns", pool.Config().MaxConns),
		)

		return repository.NewMatchRepository(pool), pool.Close, nil
	}

	log.Info("file store selected", zap.String("path", cfg.Database.FilePath))

	return repository.NewFileMatchRepository(cfg.Database.FilePath), func() {}, nil
}
