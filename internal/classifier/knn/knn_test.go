package knn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/ranker"
)

type labelMap map[string]int

func (m labelMap) Label(docID string) (int, bool) {
	l, ok := m[docID]
	return l, ok
}

func ranked(ids ...string) []ranker.ScoredDoc {
	out := make([]ranker.ScoredDoc, len(ids))
	for i, id := range ids {
		out[i] = ranker.ScoredDoc{DocID: id, Score: float64(len(ids) - i)}
	}
	return out
}

func TestMajorityTieGoesToLowestLabel(t *testing.T) {
	assert.Equal(t, 0, Majority(map[int]int{0: 3, 1: 3, 2: 1}))
	assert.Equal(t, 4, Majority(map[int]int{7: 2, 4: 2, 9: 1}))
	assert.Equal(t, 2, Majority(map[int]int{0: 1, 2: 5}))
}

func TestMajorityNoVotes(t *testing.T) {
	assert.Equal(t, NoClass, Majority(map[int]int{}))
	assert.Equal(t, NoClass, Majority(map[int]int{0: 0, 3: 0}))
}

func TestClassifyStopsAfterKLabeledNeighbors(t *testing.T) {
	labels := labelMap{"a": 1, "b": 2, "c": 2, "d": 2, "e": 1}
	res := Classify("q1", ranked("a", "x", "b", "y", "e", "c", "d"), labels, 3)

	assert.Equal(t, "q1", res.QueryID)
	assert.Equal(t, 1, res.Label, "votes 1:2, 2:1 among a, b, e")
	assert.Equal(t, map[int]int{1: 2, 2: 1}, res.Votes)
	assert.Len(t, res.Neighbors, 3)
	assert.Equal(t, "e", res.Neighbors[2].DocID)
	assert.True(t, res.Classified())
}

func TestClassifyUnlabeledDocumentsDoNotCount(t *testing.T) {
	labels := labelMap{"z": 5}
	res := Classify("q", ranked("u1", "u2", "u3", "z"), labels, 1)
	assert.Equal(t, 5, res.Label)
	assert.Equal(t, []Neighbor{{DocID: "z", Score: 1, Label: 5}}, res.Neighbors)
}

func TestClassifyFewerThanKNeighbors(t *testing.T) {
	labels := labelMap{"a": 3, "b": 1}
	res := Classify("q", ranked("a", "b", "c"), labels, 10)
	assert.Len(t, res.Neighbors, 2)
	assert.Equal(t, 1, res.Label, "1:1 vs 3:1 ties to the lowest label")
}

func TestClassifyNoLabeledNeighbors(t *testing.T) {
	res := Classify("q", ranked("a", "b"), labelMap{"zz": 1}, 3)
	assert.Equal(t, NoClass, res.Label)
	assert.False(t, res.Classified())
	assert.Empty(t, res.Neighbors)

	res = Classify("q", nil, labelMap{"a": 1}, 3)
	assert.Equal(t, NoClass, res.Label)
}

func TestClassifyTieBreakExample(t *testing.T) {
	labels := labelMap{"a": 1, "b": 0, "c": 1, "d": 0, "e": 2, "f": 0, "g": 1}
	res := Classify("q", ranked("a", "b", "c", "d", "e", "f", "g"), labels, 7)
	assert.Equal(t, map[int]int{0: 3, 1: 3, 2: 1}, res.Votes)
	assert.Equal(t, 0, res.Label)
}

func TestClassifyHugeAndNonPositiveK(t *testing.T) {
	labels := labelMap{"d1": 3}
	var res Result
	assert.NotPanics(t, func() { res = Classify("q1", ranked("d1"), labels, 1<<50) })
	assert.Equal(t, 3, res.Label)
	assert.Len(t, res.Neighbors, 1)

	for _, k := range []int{0, -1, -1 << 40} {
		assert.NotPanics(t, func() { res = Classify("q1", ranked("d1"), labels, k) })
		assert.Equal(t, NoClass, res.Label)
		assert.Empty(t, res.Neighbors)
	}
}
