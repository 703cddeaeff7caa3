package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/simir/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/metrics"
)

// cancelCheckEvery is how many posting records are scored between context
// checks.
const cancelCheckEvery = 1024

// Index is the read-only index state scoring needs. *indexer.Engine
// implements it.
type Index interface {
	Lookup(term string) (index.LexiconEntry, bool)
	Postings(entry index.LexiconEntry) (index.PostingList, error)
	DocLength(docID string) (int, bool)
	TotalDocs() int64
	AvgDocLength() float64
	TotalCollectionTermCount() int64
}

// ScoreStats describes how a query was scored.
type ScoreStats struct {
	// QueryLength counts query tokens, repeats included, that are in the
	// lexicon.
	QueryLength    int      `json:"query_length"`
	MatchedTerms   int      `json:"matched_terms"`
	SkippedTerms   []string `json:"skipped_terms,omitempty"`
	PostingsRead   int      `json:"postings_read"`
	MissingLengths int      `json:"missing_lengths"`
}

// Executor scores queries against an index with a retrieval model. It holds
// no per-query state and may be shared by concurrent callers.
type Executor struct {
	idx     Index
	model   ranker.Model
	param   float64
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Executor. m may be nil.
func New(idx Index, model ranker.Model, param float64, m *metrics.Metrics) *Executor {
	return &Executor{
		idx:     idx,
		model:   model,
		param:   param,
		metrics: m,
		logger:  logger.WithComponent("query-executor").With("model", model.Name),
	}
}

// Score builds a fresh accumulator for q. Each distinct query term found in
// the lexicon adds weight × query frequency to every document in its
// postings. Terms are visited in lexical order so that floating-point sums,
// and therefore ties, are reproducible.
func (e *Executor) Score(ctx context.Context, q *parser.Query) (ranker.Accumulator, ScoreStats, error) {
	acc := make(ranker.Accumulator)
	var stats ScoreStats

	type matched struct {
		term  string
		qf    int
		entry index.LexiconEntry
	}
	terms := make([]matched, 0, len(q.Terms))
	for _, term := range q.SortedTerms() {
		entry, ok := e.idx.Lookup(term)
		if !ok {
			stats.SkippedTerms = append(stats.SkippedTerms, term)
			e.logger.Warn("skipping query term", "query_id", q.ID, "term", term, "error", apperrors.ErrTermNotFound)
			if e.metrics != nil {
				e.metrics.QueryTermsSkipped.Inc()
			}
			continue
		}
		qf := q.Terms[term]
		stats.QueryLength += qf
		terms = append(terms, matched{term: term, qf: qf, entry: entry})
	}

	base := ranker.TermStats{
		TotalDocs:                e.idx.TotalDocs(),
		TotalCollectionTermCount: e.idx.TotalCollectionTermCount(),
		AvgDocLength:             e.idx.AvgDocLength(),
		Param:                    e.param,
	}
	for _, m := range terms {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("scoring query %q: %w", q.ID, err)
		}
		postings, err := e.idx.Postings(m.entry)
		if err != nil {
			return nil, stats, fmt.Errorf("scoring query %q: %w", q.ID, err)
		}
		stats.MatchedTerms++
		stats.PostingsRead += len(postings)
		if e.metrics != nil {
			e.metrics.PostingsRead.Add(float64(len(postings)))
		}

		ts := base
		ts.DocFreq = m.entry.DocFreq
		ts.CollectionTermCount = m.entry.CollectionTermCount
		for i, p := range postings {
			if i%cancelCheckEvery == cancelCheckEvery-1 {
				if err := ctx.Err(); err != nil {
					return nil, stats, fmt.Errorf("scoring query %q: %w", q.ID, err)
				}
			}
			docLen, ok := e.idx.DocLength(p.DocID)
			if !ok {
				stats.MissingLengths++
				e.logger.Warn("dropping posting contribution",
					"query_id", q.ID,
					"term", m.term,
					"doc_id", p.DocID,
					"error", apperrors.ErrMissingDocLength,
				)
				if e.metrics != nil {
					e.metrics.MissingDocLengths.Inc()
				}
				continue
			}
			ts.TermFreq = p.Frequency
			ts.DocLength = docLen
			acc.Add(p.DocID, e.model.Weight(ts)*float64(m.qf))
		}
	}

	if e.model.Adjust != nil {
		for docID, score := range acc {
			docLen, _ := e.idx.DocLength(docID)
			acc[docID] = e.model.Adjust(score, stats.QueryLength, docLen, e.param)
		}
	}

	e.logger.Debug("query scored",
		"query_id", q.ID,
		"matched_terms", stats.MatchedTerms,
		"skipped_terms", len(stats.SkippedTerms),
		"candidates", len(acc),
	)
	return acc, stats, nil
}
