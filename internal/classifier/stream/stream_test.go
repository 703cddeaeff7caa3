package stream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/labels"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/simir/pkg/errors"
)

// termScorer gives every document named after a query term one point per
// occurrence.
type termScorer struct{}

func (termScorer) Score(_ context.Context, q *parser.Query) (ranker.Accumulator, executor.ScoreStats, error) {
	acc := make(ranker.Accumulator)
	for term, qf := range q.Terms {
		acc.Add(term, float64(qf))
	}
	return acc, executor.ScoreStats{QueryLength: q.Length()}, nil
}

func newHandler(col *classifier.Collector) func(context.Context, []byte, []byte) error {
	c := classifier.New(termScorer{}, labels.Table{"a": 1, "b": 2, "c": 2}, 1, 0, nil)
	return Handler(c, col)
}

func TestHandlerClassifiesMessage(t *testing.T) {
	var col classifier.Collector
	h := newHandler(&col)

	require.NoError(t, h(context.Background(), nil, []byte(`{"id":"q1","text":"a a b"}`)))
	require.NoError(t, h(context.Background(), []byte("q2"), []byte(`{"text":"b c","k":2}`)))

	preds := col.Predictions()
	require.Len(t, preds, 2)
	assert.Equal(t, "q1", preds[0].QueryID)
	assert.Equal(t, 1, preds[0].Label)
	assert.Equal(t, "q2", preds[1].QueryID)
	assert.Equal(t, 2, preds[1].K)
	assert.Equal(t, map[int]int{2: 2}, preds[1].Votes)
}

func TestHandlerRejectsBadMessages(t *testing.T) {
	var col classifier.Collector
	h := newHandler(&col)

	err := h(context.Background(), nil, []byte(`not json`))
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	err = h(context.Background(), nil, []byte(`{"text":"a"}`))
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, col.Predictions())
}
