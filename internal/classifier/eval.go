package classifier

import (
	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier/knn"
)

// Report is the accuracy of a set of predictions against gold labels.
type Report struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	NoClass  int     `json:"no_class"`
	Unjudged int     `json:"unjudged"`
	Accuracy float64 `json:"accuracy"`
}

// Evaluate compares predictions with gold labels keyed by query ID.
// Predictions for queries without a gold label are counted as unjudged and
// left out of Total. A NoClass prediction is always wrong.
func Evaluate(predictions []Prediction, gold knn.Labels) Report {
	var r Report
	for _, p := range predictions {
		want, ok := gold.Label(p.QueryID)
		if !ok {
			r.Unjudged++
			continue
		}
		r.Total++
		if !p.Classified() {
			r.NoClass++
			continue
		}
		if p.Label == want {
			r.Correct++
		}
	}
	if r.Total > 0 {
		r.Accuracy = float64(r.Correct) / float64(r.Total)
	}
	return r
}
