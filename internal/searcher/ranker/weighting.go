package ranker

import (
	"fmt"
	"math"
	"sort"
)

const (
	k1 = 1.2
	b  = 0.75
)

// TermStats is everything a weighting function may use to weigh one matched
// (term, document) pair.
type TermStats struct {
	TermFreq                 int
	DocFreq                  int
	TotalDocs                int64
	CollectionTermCount      int
	TotalCollectionTermCount int64
	DocLength                int
	AvgDocLength             float64
	Param                    float64
}

// WeightFunc weighs one matched (term, document) pair. Accumulation does not
// depend on which function is used.
type WeightFunc func(s TermStats) float64

// AdjustFunc rewrites a document's accumulated score once every query term
// has been scored. queryLength counts the query tokens found in the lexicon.
type AdjustFunc func(score float64, queryLength int, docLength int, param float64) float64

// Model pairs a weighting function with an optional adjustment pass.
type Model struct {
	Name         string
	Weight       WeightFunc
	Adjust       AdjustFunc
	DefaultParam float64
}

var models = map[string]Model{
	"tfidf":     {Name: "tfidf", Weight: TFIDF, DefaultParam: 0.5},
	"bm25":      {Name: "bm25", Weight: BM25, DefaultParam: b},
	"dirichlet": {Name: "dirichlet", Weight: Dirichlet, Adjust: DirichletAdjust, DefaultParam: 2000},
}

// LookupModel returns the registered model called name.
func LookupModel(name string) (Model, error) {
	m, ok := models[name]
	if !ok {
		return Model{}, fmt.Errorf("unknown retrieval model %q (known: %v)", name, ModelNames())
	}
	return m, nil
}

// ModelNames lists the registered models in name order.
func ModelNames() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TFIDF is raw term frequency times ln((1+N)/(0.5+df)). It ignores document
// length and collection counts.
func TFIDF(s TermStats) float64 {
	idf := math.Log((1.0 + float64(s.TotalDocs)) / (0.5 + float64(s.DocFreq)))
	return float64(s.TermFreq) * idf
}

// BM25 is Okapi BM25 with k1 = 1.2. Param is the length normalisation b and
// must lie in [0, 1]; anything else falls back to 0.75.
func BM25(s TermStats) float64 {
	bb := s.Param
	if bb < 0 || bb > 1 {
		bb = b
	}
	return computeIDF(s.TotalDocs, int64(s.DocFreq)) *
		computeTFNorm(float64(s.TermFreq), float64(s.DocLength), s.AvgDocLength, bb)
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64, bb float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-bb+bb*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}

// Dirichlet is the per-term part of query likelihood with Dirichlet prior
// smoothing, ln(1 + tf / (mu * p(t|C))), with Param as mu. It needs
// DirichletAdjust to add the document-length part.
func Dirichlet(s TermStats) float64 {
	if s.TotalCollectionTermCount == 0 || s.CollectionTermCount == 0 || s.Param <= 0 {
		return 0
	}
	pc := float64(s.CollectionTermCount) / float64(s.TotalCollectionTermCount)
	return math.Log(1 + float64(s.TermFreq)/(s.Param*pc))
}

// DirichletAdjust adds |Q| ln(mu / (mu + |D|)).
func DirichletAdjust(score float64, queryLength int, docLength int, param float64) float64 {
	if param <= 0 {
		return score
	}
	return score + float64(queryLength)*math.Log(param/(param+float64(docLength)))
}
