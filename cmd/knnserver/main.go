package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/cache"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/handler"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/labels"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/publisher"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/store"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/stream"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/simir/pkg/redis"
)

// maxK bounds the k a request may ask for.
const maxK = 100

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting classify service", "port", cfg.Server.Port, "index", cfg.Index.Basename)

	model, err := ranker.LookupModel(cfg.Classifier.Model)
	if err != nil {
		slog.Error("unknown retrieval model", "error", err, "available", ranker.ModelNames())
		os.Exit(1)
	}
	engine, err := indexer.Open(cfg.Index)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	training, err := labels.LoadFile(cfg.Classifier.LabelsPath)
	if err != nil {
		slog.Error("failed to load labels", "error", err)
		os.Exit(1)
	}

	m := metrics.New(nil)
	param := cfg.Classifier.Param(model.DefaultParam)
	exec := executor.New(engine, model, param, m)
	c := classifier.New(exec, training, cfg.Classifier.K, cfg.Classifier.ResultLimit, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if engine.Terms() > 0 && engine.TotalDocs() > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d terms, %d docs", engine.Terms(), engine.TotalDocs())}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "index is empty"}
	})

	var predictionCache *cache.PredictionCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, classification caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			predictionCache = cache.New(redisClient, model.Name, param, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping, false))
			slog.Info("classification cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var sinks classifier.MultiSink
	var stored handler.PredictionStore
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		predictions := store.New(db, model.Name)
		if err := predictions.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare prediction store", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, predictions)
		stored = predictions
		checker.Register("postgres", health.PingCheck(db.Ping, true))
	}
	var events *publisher.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Predictions)
		defer producer.Close()
		events = publisher.New(producer, model.Name, 1)
		sinks = append(sinks, events)
		slog.Info("prediction events enabled", "topic", cfg.Kafka.Predictions)

		if cfg.Kafka.Queries != "" {
			consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Queries, stream.Handler(c, sinks))
			go func() {
				if err := consumer.Start(ctx); err != nil {
					slog.Error("query consumer error", "error", err)
				}
			}()
			slog.Info("query consumer started", "topic", cfg.Kafka.Queries, "group", cfg.Kafka.ConsumerGroup)
		}
	}
	var sink classifier.Sink
	if len(sinks) > 0 {
		sink = sinks
	}

	h := handler.New(c, predictionCache, sink, stored, maxK)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/classify", h.Classify)
	mux.HandleFunc("GET /api/v1/predictions/{id}", h.Prediction)
	mux.HandleFunc("GET /api/v1/stats/labels", h.LabelCounts)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("classify service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("classify service stopped")
}
