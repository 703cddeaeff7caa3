// Package doclen computes, writes and loads the document-length table: one
// "docID length" line per document, where length is the sum of the
// document's term counts over the raw postings.
package doclen

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/simir/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
)

const maxLineSize = 64 * 1024 * 1024

// Table maps a document ID to its length in words. It is read-only once
// loaded.
type Table map[string]int

// Length returns the length of docID and whether the document is known.
func (t Table) Length(docID string) (int, bool) {
	n, ok := t[docID]
	return n, ok
}

// Stats returns the number of documents and their mean length. The mean of an
// empty table is 0.
func (t Table) Stats() (docs int64, avg float64) {
	var total int64
	for _, n := range t {
		total += int64(n)
	}
	docs = int64(len(t))
	if docs == 0 {
		return 0, 0
	}
	return docs, float64(total) / float64(docs)
}

// Load parses a document-length table. Malformed lines are logged and
// skipped; a repeated docID keeps the later value.
func Load(r io.Reader, source string) (Table, error) {
	log := logger.WithComponent("doclen")
	table := make(Table)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			log.Warn("skipping line", "error", apperrors.Malformed(source, line, "want \"docID length\", got %d fields", len(fields)))
			continue
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			log.Warn("skipping line", "error", apperrors.Malformed(source, line, "invalid length %q", fields[1]))
			continue
		}
		table[fields[0]] = n
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading document lengths %s: %w", source, err)
	}
	return table, nil
}

// LoadFile loads the document-length table stored at path.
func LoadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document lengths: %w", err)
	}
	defer f.Close()
	return Load(f, path)
}

// Compute sums every document's term counts over the raw postings in r.
// Lines are fanned out to workers that each keep a partial table; the
// partial tables are merged once all lines are consumed. Pairs are validated
// with index.ParsePosting and over-long terms are skipped, so the table counts
// exactly the postings the index builder keeps.
func Compute(ctx context.Context, r io.Reader, workers int) (Table, error) {
	if workers < 1 {
		workers = 1
	}
	log := logger.WithComponent("doclen")
	type rawLine struct {
		no   int
		text string
	}
	lines := make(chan rawLine, workers*4)
	partials := make([]Table, workers)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		no := 0
		for scanner.Scan() {
			no++
			select {
			case lines <- rawLine{no: no, text: scanner.Text()}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading raw postings: %w", err)
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		partial := make(Table)
		partials[w] = partial
		g.Go(func() error {
			for l := range lines {
				fields := strings.Fields(l.text)
				if len(fields) == 0 {
					continue
				}
				if len(fields[0]) > index.MaxFieldLen {
					log.Warn("skipping term longer than the format allows", "line", l.no, "bytes", len(fields[0]))
					continue
				}
				pending := ""
				for _, tok := range fields[1:] {
					if pending == "" {
						pending = tok
						continue
					}
					p, err := index.ParsePosting(pending, tok)
					if errors.Is(err, index.ErrNoFrequency) {
						log.Warn("ignoring posting", "error", apperrors.Malformed("raw", l.no, "docID %q has no frequency", pending))
						pending = tok
						continue
					}
					if err != nil {
						log.Warn("ignoring posting", "error", apperrors.Malformed("raw", l.no, "docID %.64q: %v", pending, err))
					} else {
						partial[p.DocID] += p.Frequency
					}
					pending = ""
				}
				if pending != "" {
					log.Warn("ignoring posting", "error", apperrors.Malformed("raw", l.no, "docID %q has no frequency", pending))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := partials[0]
	for _, p := range partials[1:] {
		for docID, n := range p {
			table[docID] += n
		}
	}
	return table, nil
}

// Write emits the table as "docID length" lines sorted by docID.
func Write(w io.Writer, t Table) error {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	bw := bufio.NewWriter(w)
	for _, id := range ids {
		if _, err := fmt.Fprintf(bw, "%s %d\n", id, t[id]); err != nil {
			return fmt.Errorf("writing document length for %s: %w", id, err)
		}
	}
	return bw.Flush()
}

// ComputeFile computes the table for the raw postings at rawPath and writes
// it to outPath.
func ComputeFile(ctx context.Context, rawPath, outPath string, workers int) (Table, error) {
	in, err := os.Open(rawPath)
	if err != nil {
		return nil, fmt.Errorf("opening raw postings: %w", err)
	}
	defer in.Close()
	table, err := Compute(ctx, in, workers)
	if err != nil {
		return nil, err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("creating document lengths: %w", err)
	}
	if err := Write(out, table); err != nil {
		out.Close()
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("closing %s: %w", outPath, err)
	}
	return table, nil
}
