package indexer

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/doclen"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
)

// Engine is the process-lifetime, read-only view of a built index: the
// in-memory lexicon, the postings file, the document-length table and the
// collection statistics derived from them. It is safe for concurrent use.
type Engine struct {
	reader       *segment.Reader
	docLengths   doclen.Table
	totalDocs    int64
	avgDocLength float64
	logger       *slog.Logger
}

// Open loads the index named by cfg.
func Open(cfg config.IndexConfig) (*Engine, error) {
	if cfg.Basename == "" {
		return nil, fmt.Errorf("index basename is not configured")
	}
	reader, err := segment.OpenReader(cfg.Basename)
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", cfg.Basename, err)
	}
	lengths, err := doclen.LoadFile(cfg.DocLengths())
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("opening index %s: %w", cfg.Basename, err)
	}
	e := NewEngine(reader, lengths)
	e.logger.Info("index loaded",
		"basename", cfg.Basename,
		"terms", reader.Terms(),
		"docs", e.totalDocs,
		"avg_doc_length", e.avgDocLength,
		"total_term_count", reader.TotalCollectionTermCount(),
	)
	return e, nil
}

// NewEngine wraps an open reader and a loaded document-length table.
func NewEngine(reader *segment.Reader, lengths doclen.Table) *Engine {
	docs, avg := lengths.Stats()
	return &Engine{
		reader:       reader,
		docLengths:   lengths,
		totalDocs:    docs,
		avgDocLength: avg,
		logger:       logger.WithComponent("indexer"),
	}
}

func (e *Engine) Lookup(term string) (index.LexiconEntry, bool) {
	return e.reader.Lookup(term)
}

func (e *Engine) Postings(entry index.LexiconEntry) (index.PostingList, error) {
	return e.reader.ReadPostings(entry)
}

// DocLength returns the length of docID and whether the table has it.
func (e *Engine) DocLength(docID string) (int, bool) {
	return e.docLengths.Length(docID)
}

func (e *Engine) AvgDocLength() float64 {
	return e.avgDocLength
}

// TotalDocs is the number of documents in the document-length table.
func (e *Engine) TotalDocs() int64 {
	return e.totalDocs
}

func (e *Engine) TotalCollectionTermCount() int64 {
	return e.reader.TotalCollectionTermCount()
}

func (e *Engine) Terms() int {
	return e.reader.Terms()
}

func (e *Engine) Close() error {
	return e.reader.Close()
}
