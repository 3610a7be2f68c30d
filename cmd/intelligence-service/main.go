// cmd/intelligence-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lead-intelligence/internal/cache"
	"lead-intelligence/internal/common/config"
	"lead-intelligence/internal/common/database"
	"lead-intelligence/internal/common/logger"
	"lead-intelligence/internal/common/observability"
	"lead-intelligence/internal/events"
	"lead-intelligence/internal/handoff"
	"lead-intelligence/internal/intelligence"
	"lead-intelligence/internal/producers/conversation"
	"lead-intelligence/internal/producers/preferences"
	"lead-intelligence/internal/producers/propertymatch"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	zapLog.Info("Starting intelligence service...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	indexCtx, indexCancel := context.WithTimeout(context.Background(), 5*time.Second)
	exists, err := esClient.IndexExists(indexCtx, cfg.Database.Elasticsearch.ListingIndex)
	indexCancel()
	if err != nil {
		zapLog.Warn("Listing index check failed",
			zap.String("index", cfg.Database.Elasticsearch.ListingIndex),
			zap.Error(err))
	} else if !exists {
		zapLog.Warn("Listing index not found, property matches will be empty",
			zap.String("index", cfg.Database.Elasticsearch.ListingIndex))
	}

	// --- Event sink ---
	var sink events.Sink
	switch cfg.Events.Backend {
	case "redis":
		sink = events.NewRedisSink(redisClient.Client, cfg.Events.Channel)
	case "sns":
		sink, err = events.NewSNSSink(ctx, cfg.Events.SNS.Region, cfg.Events.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("sns sink init failed", zap.Error(err))
		}
	default:
		sink = events.NopSink{}
	}
	zapLog.Info("Event sink initialized", zap.String("backend", cfg.Events.Backend))

	// --- Producers ---
	matcher := propertymatch.NewMatcher(esClient.Client, cfg.Database.Elasticsearch.ListingIndex, log)
	analyzer := conversation.NewAnalyzer(log)
	learner := preferences.NewLearner(pg.DB, redisClient.Client, log)

	// --- Services ---
	contextCache := cache.NewRedisCache(redisClient.Client)
	aggregator := intelligence.NewAggregator(&cfg.Intelligence, contextCache, sink, matcher, analyzer, learner, log)
	handoffService := handoff.NewService(&cfg.Handoff, contextCache, sink, log)

	zapLog.Info("Intelligence services initialized",
		zap.Int("producerTimeoutMs", cfg.Intelligence.ProducerTimeoutMs),
		zap.Int("activeCacheTtlSec", cfg.Intelligence.ActiveCacheTTLSec),
		zap.Int("handoffCacheTtlSec", cfg.Handoff.CacheTTLSec),
	)

	// --- HTTP API + Health & Metrics ---
	api := newServer(aggregator, handoffService, learner, obs, log)

	mux := http.NewServeMux()
	api.register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := redisClient.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	srv := &http.Server{
		Addr:         cfg.App.ListenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.App.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Intelligence service stopped")
}
