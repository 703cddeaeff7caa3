// Command doclen sums each document's term counts over a raw postings file
// and writes the "docID length" table the classifier normalises with.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/doclen"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	workers := flag.Int("workers", 0, "summing goroutines (config index.docLenWorkers when 0)")
	out := flag.String("out", "", "output path (<basename>.dlen when empty)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <raw-postings> <basename>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	n := *workers
	if n <= 0 {
		n = cfg.Index.DocLenWorkers
	}
	path := *out
	if path == "" {
		path = segment.DocLengthPath(flag.Arg(1))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table, err := doclen.ComputeFile(ctx, flag.Arg(0), path, n)
	if err != nil {
		slog.Error("document length computation failed", "error", err)
		os.Exit(1)
	}
	docs, avg := table.Stats()
	slog.Info("document lengths written", "path", path, "docs", docs, "avg_doc_length", avg, "workers", n)
}
