package classifier

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/parser"
)

const maxQueryLineSize = 16 * 1024 * 1024

// BatchStats summarises a batch run.
type BatchStats struct {
	Queries      int
	Classified   int
	NoClass      int
	BlankLines   int
	SkippedTerms int
}

// RunBatch classifies every query line in r ("queryID term term ...") and
// emits the predictions to sink in input order. Up to workers queries are
// scored at once; lines are read in windows so memory stays bounded by the
// window, not the file. Blank lines are skipped.
func (c *Classifier) RunBatch(ctx context.Context, r io.Reader, source string, workers int, sink Sink) (BatchStats, error) {
	if workers < 1 {
		workers = 1
	}
	window := workers * 16
	var stats BatchStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxQueryLineSize)
	pending := make([]*parser.Query, 0, window)
	line := 0
	for {
		more := scanner.Scan()
		if more {
			line++
			q, err := parser.Parse(scanner.Text())
			if err != nil {
				stats.BlankLines++
			} else {
				pending = append(pending, q)
			}
		}
		if len(pending) == window || (!more && len(pending) > 0) {
			if err := c.runWindow(ctx, pending, workers, sink, &stats); err != nil {
				return stats, err
			}
			pending = pending[:0]
		}
		if !more {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading queries %s at line %d: %w", source, line, err)
	}
	c.logger.Info("batch complete",
		"source", source,
		"queries", stats.Queries,
		"classified", stats.Classified,
		"no_class", stats.NoClass,
		"skipped_terms", stats.SkippedTerms,
	)
	return stats, nil
}

func (c *Classifier) runWindow(ctx context.Context, queries []*parser.Query, workers int, sink Sink, stats *BatchStats) error {
	results := make([]Prediction, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, q := range queries {
		g.Go(func() error {
			p, err := c.Classify(gctx, q, 0)
			if err != nil {
				return fmt.Errorf("classifying query %s: %w", q.ID, err)
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, p := range results {
		stats.Queries++
		stats.SkippedTerms += len(p.Stats.SkippedTerms)
		if p.Classified() {
			stats.Classified++
		} else {
			stats.NoClass++
		}
		if err := sink.Emit(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RunBatchFile runs RunBatch over the query file at path.
func (c *Classifier) RunBatchFile(ctx context.Context, path string, workers int, sink Sink) (BatchStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return BatchStats{}, fmt.Errorf("opening queries: %w", err)
	}
	defer f.Close()
	return c.RunBatch(ctx, f, path, workers, sink)
}
