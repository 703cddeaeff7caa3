// Package stream classifies query documents arriving on a Kafka topic.
package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/simir/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/kafka"
)

// QueryMessage is the JSON value of a query message. An empty ID falls back
// to the message key; K below 1 uses the classifier default.
type QueryMessage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	K    int    `json:"k,omitempty"`
}

// Handler returns a MessageHandler that classifies each message and emits the
// prediction to sink.
func Handler(c *classifier.Classifier, sink classifier.Sink) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		msg, err := kafka.DecodeJSON[QueryMessage](value)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
		if msg.ID == "" {
			msg.ID = string(key)
		}
		if msg.ID == "" {
			return fmt.Errorf("query message without id: %w", apperrors.ErrInvalidInput)
		}
		p, err := c.Classify(ctx, parser.New(msg.ID, strings.Fields(msg.Text)), msg.K)
		if err != nil {
			return fmt.Errorf("classifying %s: %w", msg.ID, err)
		}
		return sink.Emit(ctx, p)
	}
}
