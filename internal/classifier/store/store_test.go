package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/knn"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/postgres"
)

// newStore runs the store against an in-memory SQLite database, which
// accepts the same upsert and $N placeholders as PostgreSQL.
func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := New(postgres.Wrap(db), "tfidf")
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func prediction(queryID string, label int, votes map[int]int, neighbors int) classifier.Prediction {
	res := knn.Result{QueryID: queryID, Label: label, Votes: votes}
	for i := 0; i < neighbors; i++ {
		res.Neighbors = append(res.Neighbors, knn.Neighbor{DocID: "d", Label: label})
	}
	return classifier.Prediction{Result: res, K: 3}
}

func TestEmitThenGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Emit(ctx, prediction("q1", 2, map[int]int{2: 2, 0: 1}, 3)))

	rec, err := s.Get(ctx, "q1", 3)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, Record{QueryID: "q1", Model: "tfidf", K: 3, Label: 2, Neighbors: 3, Votes: map[int]int{2: 2, 0: 1}}, *rec)
}

func TestEmitReplacesEarlierPrediction(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Emit(ctx, prediction("q1", 2, map[int]int{2: 1}, 1)))
	require.NoError(t, s.Emit(ctx, prediction("q1", knn.NoClass, map[int]int{}, 0)))

	rec, err := s.Get(ctx, "q1", 3)
	require.NoError(t, err)
	assert.Equal(t, knn.NoClass, rec.Label)
	assert.Zero(t, rec.Neighbors)

	counts, err := s.LabelCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{knn.NoClass: 1}, counts)
}

func TestGetMissing(t *testing.T) {
	s := newStore(t)
	rec, err := s.Get(context.Background(), "nope", 3)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestLabelCounts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for i, label := range []int{0, 1, 1, 4} {
		require.NoError(t, s.Emit(ctx, prediction(string(rune('a'+i)), label, map[int]int{label: 1}, 1)))
	}
	counts, err := s.LabelCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 1, 1: 2, 4: 1}, counts)
}
