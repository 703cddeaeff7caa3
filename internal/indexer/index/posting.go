// Package index defines the records stored in a binary index: one
// LexiconEntry per distinct term and a run of Posting records per term.
package index

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// MaxFieldLen is the longest term or docID, in bytes, an index can store.
const MaxFieldLen = math.MaxUint16

// ErrNoFrequency is returned by ParsePosting when the token after a docID is
// not an integer. That token may begin the next pair.
var ErrNoFrequency = errors.New("docID has no frequency")

// Posting is one (term, document) occurrence: the document ID and the number
// of times the term occurs in it.
type Posting struct {
	DocID     string
	Frequency int
}

// PostingList is the postings of one term in the order they were built.
type PostingList []Posting

// LexiconEntry holds per-term statistics and the location of the term's
// postings in the postings file. Entries written by one build cover
// contiguous, non-overlapping byte ranges in insertion order.
type LexiconEntry struct {
	Term                string
	DocFreq             int
	CollectionTermCount int
	PostingsOffset      int64
	PostingsByteLength  int
}

// End returns the offset one past the entry's last postings byte.
func (e LexiconEntry) End() int64 {
	return e.PostingsOffset + int64(e.PostingsByteLength)
}

// ParsePosting validates one raw "docID count" pair. The count must be a
// positive int32 and the docID must fit the index format.
func ParsePosting(docID, countTok string) (Posting, error) {
	count, err := strconv.Atoi(countTok)
	if err != nil {
		return Posting{}, ErrNoFrequency
	}
	if len(docID) > MaxFieldLen {
		return Posting{}, fmt.Errorf("docID of %d bytes is too long", len(docID))
	}
	if count < 1 || count > math.MaxInt32 {
		return Posting{}, fmt.Errorf("invalid frequency %d", count)
	}
	return Posting{DocID: docID, Frequency: count}, nil
}
