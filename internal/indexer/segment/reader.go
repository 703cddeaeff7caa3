package segment

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
)

// Reader holds a fully loaded lexicon and serves postings from the postings
// file with positional reads. It is safe for concurrent use: every
// ReadPostings call reads its own byte range and shares no file cursor.
type Reader struct {
	file      *os.File
	filePath  string
	size      int64
	lexicon   map[string]index.LexiconEntry
	totalTerm int64
}

// OpenReader loads <basename>.lex into memory and opens <basename>.pos.
func OpenReader(basename string) (*Reader, error) {
	lexPath := LexiconPath(basename)
	lf, err := os.Open(lexPath)
	if err != nil {
		return nil, fmt.Errorf("opening lexicon: %w", err)
	}
	lexicon, total, err := LoadLexicon(lf, lexPath)
	lf.Close()
	if err != nil {
		return nil, err
	}

	posPath := PostingsPath(basename)
	f, err := os.Open(posPath)
	if err != nil {
		return nil, fmt.Errorf("opening postings: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat postings %s: %w", posPath, err)
	}
	return &Reader{
		file:      f,
		filePath:  posPath,
		size:      info.Size(),
		lexicon:   lexicon,
		totalTerm: total,
	}, nil
}

// ScanLexicon decodes lexicon records from r in file order, calling fn for
// each one.
func ScanLexicon(r io.Reader, fn func(index.LexiconEntry) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for n := 0; ; n++ {
		entry, err := ReadLexiconEntry(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading lexicon record %d: %w", n, err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
}

// LoadLexicon reads every lexicon record from r into a map keyed by term and
// returns the sum of all collection term counts. A repeated term means the
// build was corrupted; the later record wins and a warning is logged.
func LoadLexicon(r io.Reader, source string) (map[string]index.LexiconEntry, int64, error) {
	log := logger.WithComponent("index-reader")
	lexicon := make(map[string]index.LexiconEntry)
	var total int64
	err := ScanLexicon(r, func(e index.LexiconEntry) error {
		if prev, dup := lexicon[e.Term]; dup {
			log.Warn("duplicate lexicon term, keeping the later entry",
				"term", e.Term,
				"source", source,
			)
			total -= int64(prev.CollectionTermCount)
		}
		lexicon[e.Term] = e
		total += int64(e.CollectionTermCount)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("loading lexicon %s: %w", source, err)
	}
	return lexicon, total, nil
}

// Lookup returns the lexicon entry for term.
func (r *Reader) Lookup(term string) (index.LexiconEntry, bool) {
	e, ok := r.lexicon[term]
	return e, ok
}

// ReadPostings reads the DocFreq posting records stored in the entry's byte
// range.
func (r *Reader) ReadPostings(entry index.LexiconEntry) (index.PostingList, error) {
	if entry.DocFreq == 0 {
		return index.PostingList{}, nil
	}
	if entry.PostingsOffset < 0 || entry.PostingsByteLength < 0 || entry.End() > r.size {
		return nil, fmt.Errorf("postings for %q span [%d, %d) outside %s (%d bytes)",
			entry.Term, entry.PostingsOffset, entry.End(), r.filePath, r.size)
	}
	data := make([]byte, entry.PostingsByteLength)
	if _, err := r.file.ReadAt(data, entry.PostingsOffset); err != nil {
		return nil, fmt.Errorf("reading postings for %q: %w", entry.Term, err)
	}
	postings, err := DecodePostings(bytes.NewReader(data), entry.DocFreq)
	if err != nil {
		return nil, fmt.Errorf("decoding postings for %q: %w", entry.Term, err)
	}
	return postings, nil
}

// DecodePostings reads exactly n posting records from data and fails if bytes
// remain afterwards.
func DecodePostings(data *bytes.Reader, n int) (index.PostingList, error) {
	postings := make(index.PostingList, 0, n)
	for i := 0; i < n; i++ {
		p, err := ReadPosting(data)
		if err != nil {
			return nil, fmt.Errorf("record %d of %d: %w", i, n, unexpected(err))
		}
		postings = append(postings, p)
	}
	if data.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after %d records", data.Len(), n)
	}
	return postings, nil
}

// Terms returns the number of distinct terms in the lexicon.
func (r *Reader) Terms() int {
	return len(r.lexicon)
}

// TotalCollectionTermCount is the sum of CollectionTermCount over the
// lexicon.
func (r *Reader) TotalCollectionTermCount() int64 {
	return r.totalTerm
}

func (r *Reader) Close() error {
	return r.file.Close()
}
