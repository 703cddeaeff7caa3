package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/knn"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/resilience"
)

type recordingWriter struct {
	batches  [][]kafka.Event
	err      error
	failures int
	calls    int
}

func (w *recordingWriter) PublishBatch(_ context.Context, events []kafka.Event) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	if w.failures > 0 {
		w.failures--
		return errors.New("leader not available")
	}
	w.batches = append(w.batches, append([]kafka.Event(nil), events...))
	return nil
}

func pred(id string, label int) classifier.Prediction {
	return classifier.Prediction{Result: knn.Result{QueryID: id, Label: label, Votes: map[int]int{}}, K: 5}
}

func TestEmitFlushesFullBatches(t *testing.T) {
	w := &recordingWriter{}
	p := New(w, "bm25", 2)
	ctx := context.Background()
	for i, id := range []string{"q1", "q2", "q3"} {
		require.NoError(t, p.Emit(ctx, pred(id, i)))
	}
	require.Len(t, w.batches, 1)
	assert.Len(t, w.batches[0], 2)
	assert.Equal(t, 1, p.Pending())

	require.NoError(t, p.Flush(ctx))
	require.Len(t, w.batches, 2)
	assert.Equal(t, "q3", w.batches[1][0].Key)
	assert.Equal(t, 3, p.Published())
	assert.Zero(t, p.Pending())
}

func TestEventPayload(t *testing.T) {
	w := &recordingWriter{}
	p := New(w, "tfidf", 10)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	require.NoError(t, p.Emit(context.Background(), pred("q9", knn.NoClass)))
	require.NoError(t, p.Flush(context.Background()))

	ev := w.batches[0][0].Value.(PredictionEvent)
	assert.Equal(t, PredictionEvent{
		QueryID:      "q9",
		Label:        knn.NoClass,
		Classified:   false,
		K:            5,
		Model:        "tfidf",
		Votes:        map[int]int{},
		ClassifiedAt: fixed,
	}, ev)
}

func TestFlushFailureKeepsEvents(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := New(w, "tfidf", 10)
	p.retry = resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}
	require.NoError(t, p.Emit(context.Background(), pred("q1", 1)))
	require.Error(t, p.Flush(context.Background()))
	assert.Equal(t, 1, p.Pending())
	assert.Equal(t, 2, w.calls)

	w.err = nil
	require.NoError(t, p.Flush(context.Background()))
	assert.Equal(t, 1, p.Published())
}

func TestFlushRetriesTransientFailures(t *testing.T) {
	w := &recordingWriter{failures: 1}
	p := New(w, "tfidf", 10)
	p.retry = resilience.RetryConfig{InitialDelay: time.Millisecond}
	require.NoError(t, p.Emit(context.Background(), pred("q1", 1)))
	require.NoError(t, p.Flush(context.Background()))
	assert.Equal(t, 2, w.calls)
	assert.Equal(t, 1, p.Published())
}

func TestFlushEmptyIsNoop(t *testing.T) {
	w := &recordingWriter{}
	require.NoError(t, New(w, "tfidf", 0).Flush(context.Background()))
	assert.Empty(t, w.batches)
}
