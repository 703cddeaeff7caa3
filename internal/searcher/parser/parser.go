package parser

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/simir/pkg/errors"
)

// Query is a query document: its identifier and its terms collapsed into a
// term → frequency bag.
type Query struct {
	ID    string
	Terms map[string]int
}

// Parse reads one query line, "queryID term1 term2 ...". Repeated terms are
// counted once with their total frequency.
func Parse(line string) (*Query, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty query line: %w", apperrors.ErrInvalidInput)
	}
	return New(fields[0], fields[1:]), nil
}

// New builds a query from an identifier and its tokens.
func New(id string, tokens []string) *Query {
	q := &Query{
		ID:    id,
		Terms: make(map[string]int, len(tokens)),
	}
	for _, tok := range tokens {
		q.Terms[tok]++
	}
	return q
}

// Length is the number of query tokens, repeats included.
func (q *Query) Length() int {
	n := 0
	for _, f := range q.Terms {
		n += f
	}
	return n
}

// SortedTerms returns the distinct terms in lexical order.
func (q *Query) SortedTerms() []string {
	terms := make([]string, 0, len(q.Terms))
	for t := range q.Terms {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}
