// Command indexbuild converts a raw postings file, one "term docID count
// docID count ..." line per term, into the binary lexicon and postings
// files <basename>.lex and <basename>.pos.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/doclen"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	withLengths := flag.Bool("doclen", false, "also compute <basename>.dlen from the same raw postings")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <raw-postings> <basename>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	rawPath, basename := flag.Arg(0), flag.Arg(1)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	start := time.Now()
	slog.Info("building index", "raw", rawPath, "basename", basename)
	stats, err := segment.BuildFile(ctx, rawPath, basename, func(b *segment.Builder) {
		b.OnEntry = func(index.LexiconEntry) { m.BuildTermsTotal.Inc() }
		b.OnDropped = func(error) { m.BuildDroppedRecords.Inc() }
	})
	if err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
	slog.Info("index built",
		"terms", stats.Terms,
		"postings", stats.Postings,
		"dropped_records", stats.DroppedRecords,
		"empty_terms", stats.EmptyTerms,
		"postings_bytes", stats.PostingsBytes,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if *withLengths {
		out := segment.DocLengthPath(basename)
		table, err := doclen.ComputeFile(ctx, rawPath, out, cfg.Index.DocLenWorkers)
		if err != nil {
			slog.Error("document length computation failed", "error", err)
			os.Exit(1)
		}
		docs, avg := table.Stats()
		slog.Info("document lengths written", "path", out, "docs", docs, "avg_doc_length", avg)
	}
}
