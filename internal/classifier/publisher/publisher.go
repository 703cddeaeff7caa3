// Package publisher sends predictions to Kafka as JSON events keyed by query
// ID, buffering them into batches.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/knn"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/resilience"
)

// BatchWriter is the producer side the publisher needs. *kafka.Producer
// implements it.
type BatchWriter interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// PredictionEvent is the JSON payload of one prediction.
type PredictionEvent struct {
	QueryID      string         `json:"query_id"`
	Label        int            `json:"label"`
	Classified   bool           `json:"classified"`
	K            int            `json:"k"`
	Model        string         `json:"model"`
	Votes        map[int]int    `json:"votes"`
	Neighbors    []knn.Neighbor `json:"neighbors"`
	ClassifiedAt time.Time      `json:"classified_at"`
}

// Publisher is a classifier.Sink. Events are written once batchSize have
// accumulated and on Flush.
type Publisher struct {
	writer    BatchWriter
	model     string
	batchSize int
	mu        sync.Mutex
	buffer    []kafka.Event
	published int
	retry     resilience.RetryConfig
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Publisher tagging events with model.
func New(writer BatchWriter, model string, batchSize int) *Publisher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Publisher{
		writer:    writer,
		model:     model,
		batchSize: batchSize,
		buffer:    make([]kafka.Event, 0, batchSize),
		logger:    logger.WithComponent("prediction-publisher"),
		now:       time.Now,
	}
}

func (p *Publisher) Emit(ctx context.Context, pred classifier.Prediction) error {
	event := kafka.Event{
		Key: pred.QueryID,
		Value: PredictionEvent{
			QueryID:      pred.QueryID,
			Label:        pred.Label,
			Classified:   pred.Classified(),
			K:            pred.K,
			Model:        p.model,
			Votes:        pred.Votes,
			Neighbors:    pred.Neighbors,
			ClassifiedAt: p.now().UTC(),
		},
	}
	p.mu.Lock()
	p.buffer = append(p.buffer, event)
	full := len(p.buffer) >= p.batchSize
	p.mu.Unlock()
	if full {
		return p.Flush(ctx)
	}
	return nil
}

// Flush writes buffered events, retrying transient broker errors. On failure
// the events stay buffered for the next call.
func (p *Publisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buffer) == 0 {
		return nil
	}
	err := resilience.Retry(ctx, "publish-predictions", p.retry, func() error {
		return p.writer.PublishBatch(ctx, p.buffer)
	})
	if err != nil {
		p.logger.Error("batch flush failed", "batch_size", len(p.buffer), "error", err)
		return err
	}
	p.published += len(p.buffer)
	p.logger.Debug("batch flushed", "events", len(p.buffer))
	p.buffer = make([]kafka.Event, 0, p.batchSize)
	return nil
}

// Pending returns the number of buffered events.
func (p *Publisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// Published returns the number of events written so far.
func (p *Publisher) Published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published
}
