// Package classifier turns query documents into class predictions: each query
// is scored against the index, the accumulator is ranked, and the k nearest
// labeled neighbors vote.
package classifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/knn"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/metrics"
)

// Scorer builds the score accumulator for one query. *executor.Executor
// implements it.
type Scorer interface {
	Score(ctx context.Context, q *parser.Query) (ranker.Accumulator, executor.ScoreStats, error)
}

// Prediction is the classification of one query together with how it was
// scored.
type Prediction struct {
	knn.Result
	K     int                 `json:"k"`
	Stats executor.ScoreStats `json:"stats"`
}

// Classifier is safe for concurrent use as long as its Scorer is.
type Classifier struct {
	scorer      Scorer
	labels      knn.Labels
	k           int
	resultLimit int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New creates a Classifier voting with k neighbors by default. A positive
// resultLimit keeps only that many top-ranked documents per query. m may be
// nil.
func New(scorer Scorer, labels knn.Labels, k, resultLimit int, m *metrics.Metrics) *Classifier {
	return &Classifier{
		scorer:      scorer,
		labels:      labels,
		k:           k,
		resultLimit: resultLimit,
		metrics:     m,
		logger:      logger.WithComponent("classifier"),
	}
}

// K returns the default neighbor count.
func (c *Classifier) K() int {
	return c.k
}

// Classify scores, ranks and votes for q. A k below 1 means the default.
// Having fewer than k labeled neighbors is not an error.
func (c *Classifier) Classify(ctx context.Context, q *parser.Query, k int) (Prediction, error) {
	if k < 1 {
		k = c.k
	}
	start := time.Now()
	acc, stats, err := c.scorer.Score(ctx, q)
	if err != nil {
		c.observe("error", start, 0)
		return Prediction{}, err
	}

	var ranked []ranker.ScoredDoc
	if c.resultLimit > 0 {
		ranked = ranker.TopN(acc, c.resultLimit)
	} else {
		ranked = ranker.Rank(acc)
	}
	res := knn.Classify(q.ID, ranked, c.labels, k)
	if len(res.Neighbors) < k {
		c.logger.Warn("fewer labeled neighbors than requested",
			"query_id", q.ID,
			"k", k,
			"found", len(res.Neighbors),
			"ranked", len(ranked),
		)
	}

	outcome := "classified"
	if !res.Classified() {
		outcome = "no_class"
	}
	c.observe(outcome, start, len(res.Neighbors))
	return Prediction{Result: res, K: k, Stats: stats}, nil
}

func (c *Classifier) observe(outcome string, start time.Time, neighbors int) {
	if c.metrics == nil {
		return
	}
	c.metrics.QueriesTotal.WithLabelValues(outcome).Inc()
	c.metrics.QueryLatency.Observe(time.Since(start).Seconds())
	if outcome != "error" {
		c.metrics.NeighborsFound.Observe(float64(neighbors))
	}
}
