package ranker

import (
	"container/heap"
	"sort"
)

// Accumulator holds the running score of every document that matched at
// least one query term. A fresh Accumulator is built for every query.
type Accumulator map[string]float64

// Add adds v to the score of docID, creating the entry if needed.
func (a Accumulator) Add(docID string, v float64) {
	a[docID] += v
}

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Before reports whether x ranks ahead of y: higher score first, equal
// scores by ascending document ID.
func Before(x, y ScoredDoc) bool {
	if x.Score != y.Score {
		return x.Score > y.Score
	}
	return x.DocID < y.DocID
}

// Rank returns every accumulated document in rank order. The accumulator is
// copied before sorting and is not modified.
func Rank(acc Accumulator) []ScoredDoc {
	result := snapshot(acc)
	sort.Slice(result, func(i, j int) bool {
		return Before(result[i], result[j])
	})
	return result
}

// TopN returns the first n documents of Rank(acc). For n well below the
// accumulator size it keeps a bounded heap instead of sorting everything.
// n <= 0 means no limit.
func TopN(acc Accumulator, n int) []ScoredDoc {
	if n <= 0 || n >= len(acc) {
		return Rank(acc)
	}
	if n > len(acc)/4 {
		return Rank(acc)[:n]
	}
	h := make(worstFirst, 0, n)
	for docID, score := range acc {
		d := ScoredDoc{DocID: docID, Score: score}
		if len(h) < n {
			heap.Push(&h, d)
			continue
		}
		if Before(d, h[0]) {
			h[0] = d
			heap.Fix(&h, 0)
		}
	}
	result := make([]ScoredDoc, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(ScoredDoc)
	}
	return result
}

func snapshot(acc Accumulator) []ScoredDoc {
	result := make([]ScoredDoc, 0, len(acc))
	for docID, score := range acc {
		result = append(result, ScoredDoc{DocID: docID, Score: score})
	}
	return result
}

// worstFirst is a heap whose root is the lowest-ranked document kept so far.
type worstFirst []ScoredDoc

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return Before(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x any) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
