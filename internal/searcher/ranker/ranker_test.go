package ranker

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankOrdersByScoreThenDocID(t *testing.T) {
	acc := Accumulator{"d3": 1.5, "d1": 2.0, "b": 1.5, "a": 1.5, "d9": 0.1}
	got := Rank(acc)
	want := []ScoredDoc{
		{DocID: "d1", Score: 2.0},
		{DocID: "a", Score: 1.5},
		{DocID: "b", Score: 1.5},
		{DocID: "d3", Score: 1.5},
		{DocID: "d9", Score: 0.1},
	}
	assert.Equal(t, want, got)
	assert.Len(t, acc, 5, "accumulator must not be modified")
}

func TestRankIsDeterministic(t *testing.T) {
	acc := make(Accumulator)
	for i := 0; i < 500; i++ {
		acc[fmt.Sprintf("doc-%03d", i)] = float64(i % 7)
	}
	first := Rank(acc)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Rank(acc))
	}
}

func TestTopNMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	acc := make(Accumulator)
	for i := 0; i < 1000; i++ {
		// Coarse scores force plenty of exact ties.
		acc[fmt.Sprintf("d%d", rng.Intn(5000))] = float64(rng.Intn(20))
	}
	full := Rank(acc)
	for _, n := range []int{1, 3, 10, 100, 300, len(acc) - 1, len(acc), len(acc) + 5} {
		want := full
		if n < len(full) {
			want = full[:n]
		}
		assert.Equal(t, want, TopN(acc, n), "n=%d", n)
	}
	assert.Equal(t, full, TopN(acc, 0))
}

func TestTopNEmpty(t *testing.T) {
	assert.Empty(t, TopN(Accumulator{}, 5))
	assert.Empty(t, Rank(Accumulator{}))
}

func TestAccumulatorAdd(t *testing.T) {
	acc := make(Accumulator)
	acc.Add("d1", 1.25)
	acc.Add("d1", 0.75)
	acc.Add("d2", 3)
	assert.Equal(t, Accumulator{"d1": 2, "d2": 3}, acc)
}

func TestTFIDFReference(t *testing.T) {
	s := TermStats{TermFreq: 2, DocFreq: 2, TotalDocs: 2}
	assert.InDelta(t, 2*math.Log(3.0/2.5), TFIDF(s), 1e-12)

	// Inputs beyond tf, df and N do not matter.
	s2 := s
	s2.DocLength, s2.AvgDocLength, s2.Param, s2.CollectionTermCount = 99, 3, 7, 40
	assert.Equal(t, TFIDF(s), TFIDF(s2))
}

func TestBM25PrefersShorterDocuments(t *testing.T) {
	short := TermStats{TermFreq: 1, DocFreq: 1, TotalDocs: 10, DocLength: 5, AvgDocLength: 10, Param: 0.75}
	long := short
	long.DocLength = 20
	assert.Greater(t, BM25(short), BM25(long))
	assert.Greater(t, BM25(short), 0.0)

	bad := short
	bad.Param = 5
	short.Param = b
	assert.Equal(t, BM25(short), BM25(bad))
}

func TestDirichlet(t *testing.T) {
	s := TermStats{TermFreq: 2, CollectionTermCount: 4, TotalCollectionTermCount: 100, Param: 10}
	assert.InDelta(t, math.Log(1+2/(10*0.04)), Dirichlet(s), 1e-12)
	assert.Zero(t, Dirichlet(TermStats{TermFreq: 2}))

	assert.InDelta(t, 1+2*math.Log(10.0/15.0), DirichletAdjust(1, 2, 5, 10), 1e-12)
	assert.Equal(t, 1.0, DirichletAdjust(1, 2, 5, 0))
}

func TestLookupModel(t *testing.T) {
	for _, name := range ModelNames() {
		m, err := LookupModel(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.Name)
		assert.NotNil(t, m.Weight)
	}
	m, err := LookupModel("tfidf")
	require.NoError(t, err)
	assert.Nil(t, m.Adjust)

	_, err = LookupModel("lucene")
	require.Error(t, err)
}

func BenchmarkTopN(b *testing.B) {
	acc := make(Accumulator)
	for i := 0; i < 100000; i++ {
		acc[fmt.Sprintf("doc-%d", i)] = float64(i%997) / 13
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = TopN(acc, 50)
	}
}

func BenchmarkRank(b *testing.B) {
	acc := make(Accumulator)
	for i := 0; i < 100000; i++ {
		acc[fmt.Sprintf("doc-%d", i)] = float64(i%997) / 13
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Rank(acc)
	}
}
