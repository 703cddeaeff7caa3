package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/cache"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/store"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/simir/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/middleware"
)

type Classifier interface {
	Classify(ctx context.Context, q *parser.Query, k int) (classifier.Prediction, error)
	K() int
}

// PredictionStore reads back stored predictions. *store.Store implements it.
type PredictionStore interface {
	Get(ctx context.Context, queryID string, k int) (*store.Record, error)
	LabelCounts(ctx context.Context) (map[int]int, error)
}

// ClassifyResponse is the body of a successful classify call.
type ClassifyResponse struct {
	classifier.Prediction
	CacheHit  bool  `json:"cache_hit"`
	LatencyMs int64 `json:"latency_ms"`
}

type Handler struct {
	classifier Classifier
	cache      *cache.PredictionCache
	sink       classifier.Sink
	store      PredictionStore
	maxK       int
	logger     *slog.Logger
}

// New creates a Handler. queryCache, sink and predictions may be nil.
// Requests may ask for at most maxK neighbors.
func New(c Classifier, queryCache *cache.PredictionCache, sink classifier.Sink, predictions PredictionStore, maxK int) *Handler {
	return &Handler{
		classifier: c,
		cache:      queryCache,
		sink:       sink,
		store:      predictions,
		maxK:       maxK,
		logger:     logger.WithComponent("classify-handler"),
	}
}

// Classify serves GET /api/v1/classify?q=terms[&id=queryID][&k=n].
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	text := r.URL.Query().Get("q")
	if strings.TrimSpace(text) == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		id = middleware.GetRequestID(ctx)
	}
	if id == "" {
		id = "query"
	}

	k, ok := h.parseK(w, r)
	if !ok {
		return
	}

	q := parser.New(id, strings.Fields(text))
	compute := func() (classifier.Prediction, error) {
		return h.classifier.Classify(ctx, q, k)
	}

	var pred classifier.Prediction
	var err error
	cacheHit := false
	if h.cache != nil {
		pred, cacheHit, err = h.cache.GetOrCompute(ctx, q, k, compute)
	} else {
		pred, err = compute()
	}
	if err != nil {
		log.Error("classification failed", "query_id", id, "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			h.writeError(w, http.StatusGatewayTimeout, "classification timed out")
			return
		}
		h.writeError(w, apperrors.HTTPStatusCode(err), "classification failed")
		return
	}

	if h.sink != nil {
		if err := h.sink.Emit(ctx, pred); err != nil {
			log.Error("recording prediction failed", "query_id", id, "error", err)
		}
	}

	latency := time.Since(start).Milliseconds()
	log.Info("classification completed",
		"query_id", id,
		"label", pred.Label,
		"k", k,
		"neighbors", len(pred.Neighbors),
		"cache_hit", cacheHit,
		"latency_ms", latency,
	)
	h.writeJSON(w, http.StatusOK, ClassifyResponse{Prediction: pred, CacheHit: cacheHit, LatencyMs: latency})
}

// Prediction serves GET /api/v1/predictions/{id}[?k=n], the stored
// prediction for a query.
func (h *Handler) Prediction(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, http.StatusServiceUnavailable, "prediction store is disabled")
		return
	}
	k, ok := h.parseK(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	rec, err := h.store.Get(r.Context(), id, k)
	if err != nil {
		logger.FromContext(r.Context()).Error("prediction lookup failed", "query_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "prediction lookup failed")
		return
	}
	if rec == nil {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("no prediction for %s with k=%d", id, k))
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// LabelCounts serves GET /api/v1/stats/labels: stored predictions per label.
func (h *Handler) LabelCounts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, http.StatusServiceUnavailable, "prediction store is disabled")
		return
	}
	counts, err := h.store.LabelCounts(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("label count failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "label count failed")
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"labels": counts, "total": total})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// parseK reads the optional k parameter, writing a 400 when it is invalid.
func (h *Handler) parseK(w http.ResponseWriter, r *http.Request) (int, bool) {
	kStr := r.URL.Query().Get("k")
	if kStr == "" {
		return h.classifier.K(), true
	}
	k, err := strconv.Atoi(kStr)
	if err != nil || k < 1 {
		h.writeError(w, http.StatusBadRequest, "k must be a positive integer")
		return 0, false
	}
	if k > h.maxK {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("k must not exceed %d", h.maxK))
		return 0, false
	}
	return k, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
