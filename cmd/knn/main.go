// Command knn classifies every query in a query file by majority vote among
// its k nearest labeled neighbors and prints "label queryID" lines to
// stdout. Queries without any labeled neighbor are printed with label -1.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/labels"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/publisher"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/store"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	modelName := flag.String("model", "", "retrieval model: tfidf, bm25 or dirichlet (config classifier.model when empty)")
	goldPath := flag.String("gold", "", "optional \"label queryID\" file to score predictions against")
	workers := flag.Int("workers", 0, "queries scored concurrently (config classifier.workers when 0)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <basename> <labels> <queries> <k> [param]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 4 || flag.NArg() > 5 {
		flag.Usage()
		os.Exit(2)
	}
	basename, labelsPath, queriesPath := flag.Arg(0), flag.Arg(1), flag.Arg(2)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	k, err := strconv.Atoi(flag.Arg(3))
	if err != nil || k < 1 {
		slog.Error("k must be a positive integer", "k", flag.Arg(3))
		os.Exit(1)
	}
	if *modelName != "" && *modelName != cfg.Classifier.Model {
		// A configured param belongs to the configured model.
		cfg.Classifier.Model = *modelName
		cfg.Classifier.ModelParam = nil
	}
	model, err := ranker.LookupModel(cfg.Classifier.Model)
	if err != nil {
		slog.Error("unknown retrieval model", "error", err, "available", ranker.ModelNames())
		os.Exit(1)
	}
	param := cfg.Classifier.Param(model.DefaultParam)
	if flag.NArg() == 5 {
		param, err = strconv.ParseFloat(flag.Arg(4), 64)
		if err != nil {
			slog.Error("param must be a number", "param", flag.Arg(4))
			os.Exit(1)
		}
	}
	if *workers > 0 {
		cfg.Classifier.Workers = *workers
	}
	cfg.Index.Basename = basename

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	engine, err := indexer.Open(cfg.Index)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	training, err := labels.LoadFile(labelsPath)
	if err != nil {
		slog.Error("failed to load labels", "error", err)
		os.Exit(1)
	}
	var gold labels.Table
	if *goldPath != "" {
		gold, err = labels.LoadFile(*goldPath)
		if err != nil {
			slog.Error("failed to load gold labels", "error", err)
			os.Exit(1)
		}
	}

	text := classifier.NewTextSink(os.Stdout)
	sinks := classifier.MultiSink{text}
	collector := &classifier.Collector{}
	if gold != nil {
		sinks = append(sinks, collector)
	}
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
	}
	var events *publisher.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Predictions)
		defer producer.Close()
		events = publisher.New(producer, model.Name, cfg.Kafka.BatchSize)
		sinks = append(sinks, events)
	}

	slog.Info("classifying",
		"queries", queriesPath,
		"k", k,
		"model", model.Name,
		"param", param,
		"workers", cfg.Classifier.Workers,
	)
	start := time.Now()
	exec := executor.New(engine, model, param, m)
	c := classifier.New(exec, training, k, cfg.Classifier.ResultLimit, m)
	stats, runErr := c.RunBatchFile(ctx, queriesPath, cfg.Classifier.Workers, sinks)
	if err := text.Flush(); err != nil {
		slog.Error("failed to write predictions", "error", err)
		os.Exit(1)
	}
	if events != nil {
		if err := events.Flush(context.Background()); err != nil {
			slog.Error("failed to publish predictions", "error", err)
		}
	}
	if runErr != nil {
		slog.Error("classification failed", "error", runErr)
		os.Exit(1)
	}
	slog.Info("classification finished",
		"queries", stats.Queries,
		"classified", stats.Classified,
		"no_class", stats.NoClass,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if gold != nil {
		report := classifier.Evaluate(collector.Predictions(), gold)
		slog.Info("evaluation",
			"total", report.Total,
			"correct", report.Correct,
			"no_class", report.NoClass,
			"unjudged", report.Unjudged,
			"accuracy", report.Accuracy,
		)
	}
}
