package classifier

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Sink receives predictions in query-file order.
type Sink interface {
	Emit(ctx context.Context, p Prediction) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, p Prediction) error

func (f SinkFunc) Emit(ctx context.Context, p Prediction) error {
	return f(ctx, p)
}

// MultiSink emits to every sink in turn and stops at the first error.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, p Prediction) error {
	for _, s := range m {
		if err := s.Emit(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// TextSink writes one "label queryID" line per prediction. A query with no
// labeled neighbors is written with the label -1.
type TextSink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewTextSink buffers output to w; call Flush when done.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: bufio.NewWriter(w)}
}

func (s *TextSink) Emit(_ context.Context, p Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "%d %s\n", p.Label, p.QueryID); err != nil {
		return fmt.Errorf("writing prediction for %s: %w", p.QueryID, err)
	}
	return nil
}

// Flush writes any buffered lines.
func (s *TextSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

// Collector keeps every prediction in memory, for evaluation.
type Collector struct {
	mu          sync.Mutex
	predictions []Prediction
}

func (c *Collector) Emit(_ context.Context, p Prediction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.predictions = append(c.predictions, p)
	return nil
}

// Predictions returns the collected predictions in emission order.
func (c *Collector) Predictions() []Prediction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Prediction, len(c.predictions))
	copy(out, c.predictions)
	return out
}
