// Package cache memoises classifications in Redis. Concurrent misses for the
// same query share one computation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/simir/pkg/redis"
)

const keyPrefix = "knn:"

// Backend is the key-value store behind the cache. *redis.Client
// implements it.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// PredictionCache caches predictions by query terms, k, model and model
// parameter. Query IDs are not part of the key: a hit is relabeled with the
// caller's ID.
type PredictionCache struct {
	backend Backend
	model   string
	param   float64
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a PredictionCache for predictions made with model and param.
// m may be nil.
func New(backend Backend, model string, param float64, ttl time.Duration, m *metrics.Metrics) *PredictionCache {
	return &PredictionCache{
		backend: backend,
		model:   model,
		param:   param,
		ttl:     ttl,
		metrics: m,
		logger:  logger.WithComponent("prediction-cache"),
	}
}

// Get returns the cached prediction for q with k neighbors.
func (c *PredictionCache) Get(ctx context.Context, q *parser.Query, k int) (classifier.Prediction, bool) {
	key := c.Key(q, k)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return classifier.Prediction{}, false
	}
	var p classifier.Prediction
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return classifier.Prediction{}, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	p.QueryID = q.ID
	return p, true
}

// Set stores p under the key for q and k. Failures are logged, not returned.
func (c *PredictionCache) Set(ctx context.Context, q *parser.Query, k int, p classifier.Prediction) {
	key := c.Key(q, k)
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached prediction or runs compute once per key
// across concurrent callers. The boolean reports a cache hit.
func (c *PredictionCache) GetOrCompute(
	ctx context.Context,
	q *parser.Query,
	k int,
	compute func() (classifier.Prediction, error),
) (classifier.Prediction, bool, error) {
	if p, ok := c.Get(ctx, q, k); ok {
		return p, true, nil
	}
	key := c.Key(q, k)
	val, err, _ := c.group.Do(key, func() (any, error) {
		p, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, q, k, p)
		return p, nil
	})
	if err != nil {
		return classifier.Prediction{}, false, err
	}
	p := val.(classifier.Prediction)
	p.QueryID = q.ID
	return p, false, nil
}

// Invalidate removes every cached prediction.
func (c *PredictionCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns hit and miss counts since start.
func (c *PredictionCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Key hashes the model, its parameter, k and the query's term bag. Each term
// is length-prefixed and fields are separated by spaces, which no term can
// contain. Term order and query ID do not affect it.
func (c *PredictionCache) Key(q *parser.Query, k int) string {
	h := xxhash.New()
	var b []byte
	b = append(b, c.model...)
	b = append(b, ' ')
	b = strconv.AppendFloat(b, c.param, 'g', -1, 64)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(k), 10)
	for _, term := range q.SortedTerms() {
		b = append(b, ' ')
		b = strconv.AppendInt(b, int64(len(term)), 10)
		b = append(b, ':')
		b = append(b, term...)
		b = append(b, '=')
		b = strconv.AppendInt(b, int64(q.Terms[term]), 10)
	}
	_, _ = h.Write(b)
	return fmt.Sprintf("%s%016x", keyPrefix, h.Sum64())
}

func (c *PredictionCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
