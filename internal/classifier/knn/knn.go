// Package knn classifies a query by majority vote among its k highest-ranked
// labeled neighbors.
package knn

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/searcher/ranker"
)

// NoClass is returned when no ranked document carries a label.
const NoClass = -1

// Labels maps a training document ID to its class label. Labels are
// non-negative integers.
type Labels interface {
	Label(docID string) (int, bool)
}

// Neighbor is a labeled document that voted.
type Neighbor struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
	Label int     `json:"label"`
}

// Result is the outcome of classifying one query.
type Result struct {
	QueryID   string      `json:"query_id"`
	Label     int         `json:"label"`
	Votes     map[int]int `json:"votes"`
	Neighbors []Neighbor  `json:"neighbors"`
}

// Classified reports whether a label was assigned.
func (r Result) Classified() bool {
	return r.Label != NoClass
}

// Classify walks ranked from the top, letting each labeled document vote,
// until k labeled documents have voted or the list ends. Unlabeled documents
// do not count toward k. The label with the most votes wins; ties go to the
// lowest label. With no votes at all the label is NoClass.
func Classify(queryID string, ranked []ranker.ScoredDoc, labels Labels, k int) Result {
	res := Result{
		QueryID:   queryID,
		Label:     NoClass,
		Votes:     make(map[int]int),
		Neighbors: []Neighbor{},
	}
	if k < 1 {
		return res
	}
	res.Neighbors = make([]Neighbor, 0, min(k, len(ranked)))
	for _, doc := range ranked {
		label, ok := labels.Label(doc.DocID)
		if !ok {
			continue
		}
		res.Votes[label]++
		res.Neighbors = append(res.Neighbors, Neighbor{DocID: doc.DocID, Score: doc.Score, Label: label})
		if len(res.Neighbors) == k {
			break
		}
	}
	res.Label = Majority(res.Votes)
	return res
}

// Majority returns the label with the strictly greatest count, scanning
// labels in ascending order so that ties go to the lowest label. It returns
// NoClass when every count is zero.
func Majority(votes map[int]int) int {
	ordered := make([]int, 0, len(votes))
	for label := range votes {
		ordered = append(ordered, label)
	}
	sort.Ints(ordered)
	best, bestCount := NoClass, 0
	for _, label := range ordered {
		if votes[label] > bestCount {
			best, bestCount = label, votes[label]
		}
	}
	return best
}
