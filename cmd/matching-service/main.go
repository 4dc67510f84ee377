// Package main provides the matching service entry point: the broker
// consumer that syncs feature data and fans out match alerts, and the HTTP
// query surface for scores, recommendations, and candidate ranking.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edumatch/matching-service/internal/adapter/httpserver"
	"github.com/edumatch/matching-service/internal/adapter/notify"
	"github.com/edumatch/matching-service/internal/adapter/observability"
	"github.com/edumatch/matching-service/internal/adapter/queue/rabbit"
	"github.com/edumatch/matching-service/internal/adapter/repo/postgres"
	"github.com/edumatch/matching-service/internal/config"
	"github.com/edumatch/matching-service/internal/domain"
	"github.com/edumatch/matching-service/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Setup logging
	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting matching service", slog.String("env", cfg.AppEnv))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database connection and schema
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		slog.Error("schema migration failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Redis for alert dedupe
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = redisClient.Close() }()

	// Repositories
	applicants := postgres.NewApplicantRepo(pool)
	opportunities := postgres.NewOpportunityRepo(pool)
	scores := postgres.NewScoreRepo(pool)

	publisher := rabbit.NewPublisher(cfg.AMQPURL)
	defer publisher.Close()

	sync := usecase.SyncService{
		Applicants:    applicants,
		Opportunities: opportunities,
		Alerts:        publisher,
		Dedupe:        notify.NewRedisDeduper(redisClient, cfg.AlertDedupeTTL),
		Retry: domain.RetryPolicy{
			MaxAttempts:  cfg.RetryMaxAttempts,
			InitialDelay: cfg.RetryInitialDelay,
			MaxDelay:     cfg.RetryMaxDelay,
			Multiplier:   cfg.RetryMultiplier,
		},
		Threshold: cfg.MatchAlertThreshold,
		Log:       logger,
	}

	matcher := usecase.NewMatcherService(applicants, opportunities, scores,
		cfg.ScoreCacheTTL, cfg.RecommendLimit, cfg.RecommendMaxLimit, logger)

	// HTTP query surface: match scores, recommendations, candidate ranking,
	// plus /healthz and /metrics.
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpserver.BuildRouter(cfg, httpserver.NewServer(matcher)),
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}
	go func() {
		slog.Info("http server listening", slog.Int("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", slog.Any("error", err))
			stop()
		}
	}()

	consumer := &rabbit.Consumer{
		URL: cfg.AMQPURL,
		Topology: rabbit.Topology{
			MessageTTL: cfg.QueueMessageTTL,
			MaxLength:  cfg.QueueMaxLength,
		},
		Dispatcher:     &rabbit.Dispatcher{Handler: sync, Log: logger},
		ReconnectDelay: cfg.BrokerReconnectDelay,
		Log:            logger,
	}

	runErr := consumer.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", slog.Any("error", err))
	}

	if runErr != nil && ctx.Err() == nil {
		slog.Error("consumer stopped", slog.Any("error", runErr))
		os.Exit(1)
	}
	slog.Info("consumer shut down")
}
