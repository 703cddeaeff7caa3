package segment

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/simir/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
)

const progressEvery = 5000

// BuildStats summarises one builder run.
type BuildStats struct {
	Terms          int
	Postings       int
	DroppedRecords int
	EmptyTerms     int
	PostingsBytes  int64
}

// Builder streams raw posting lines of the form "term doc1 count1 doc2
// count2 ..." into a postings file and a lexicon. Memory use is constant per
// term: postings are written as they are parsed.
type Builder struct {
	lex    *bufio.Writer
	pos    *bufio.Writer
	offset int64
	buf    []byte
	stats  BuildStats
	logger *slog.Logger

	// OnEntry, when set, is called after each lexicon entry is written.
	OnEntry func(index.LexiconEntry)
	// OnDropped, when set, is called for every dropped posting pair.
	OnDropped func(err error)
}

// NewBuilder creates a Builder writing the lexicon to lex and postings to pos.
func NewBuilder(lex, pos io.Writer) *Builder {
	return &Builder{
		lex:    bufio.NewWriterSize(lex, 64*1024),
		pos:    bufio.NewWriterSize(pos, 256*1024),
		buf:    make([]byte, 0, 256),
		logger: logger.WithComponent("index-builder"),
	}
}

// Build consumes raw until EOF. source names the input in diagnostics.
// Malformed pairs are dropped and logged; only I/O failures and values that
// cannot be represented in the index format are returned as errors.
func (b *Builder) Build(ctx context.Context, raw io.Reader, source string) (BuildStats, error) {
	tr := newTokenReader(raw)
	for {
		if err := ctx.Err(); err != nil {
			return b.stats, fmt.Errorf("building index: %w", err)
		}
		term, ok, err := tr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return b.stats, fmt.Errorf("reading %s: %w", source, err)
		}
		if !ok {
			continue
		}
		if err := b.addTerm(term, tr, source); err != nil {
			return b.stats, err
		}
		if b.stats.Terms%progressEvery == 0 {
			b.logger.Info("terms processed", "terms", b.stats.Terms, "postings_bytes", b.offset)
		}
	}
	if err := b.pos.Flush(); err != nil {
		return b.stats, fmt.Errorf("flushing postings: %w", err)
	}
	if err := b.lex.Flush(); err != nil {
		return b.stats, fmt.Errorf("flushing lexicon: %w", err)
	}
	b.stats.PostingsBytes = b.offset
	return b.stats, nil
}

// addTerm consumes the rest of the current line as (docID, count) pairs.
func (b *Builder) addTerm(term string, tr *tokenReader, source string) error {
	line := tr.line
	if len(term) > MaxStringLen {
		b.logger.Warn("skipping term longer than the format allows", "source", source, "line", line, "bytes", len(term))
		return tr.skipLine()
	}
	entry := index.LexiconEntry{
		Term:           term,
		PostingsOffset: b.offset,
	}
	pending := ""
	for {
		tok, ok, err := tr.next()
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading %s: %w", source, err)
		}
		if !ok {
			break
		}
		if pending == "" {
			pending = tok
			continue
		}
		p, perr := index.ParsePosting(pending, tok)
		if errors.Is(perr, index.ErrNoFrequency) {
			// tok is not a count, so pending has none. Treat tok as the
			// next docID.
			b.drop(apperrors.Malformed(source, line, "term %q: docID %q has no frequency", term, pending))
			pending = tok
			continue
		}
		if perr != nil {
			b.drop(apperrors.Malformed(source, line, "term %q: docID %.64q: %v", term, pending, perr))
			pending = ""
			continue
		}
		if err := b.writePosting(p); err != nil {
			return fmt.Errorf("%s:%d: term %q: %w", source, line, term, err)
		}
		entry.DocFreq++
		entry.CollectionTermCount += p.Frequency
		if entry.CollectionTermCount > math.MaxInt32 {
			return fmt.Errorf("%s:%d: term %q: collection term count overflows 32 bits", source, line, term)
		}
		pending = ""
	}
	if pending != "" {
		b.drop(apperrors.Malformed(source, line, "term %q: docID %q has no frequency", term, pending))
	}

	delta := b.offset - entry.PostingsOffset
	if delta > math.MaxInt32 {
		return fmt.Errorf("%s:%d: term %q: postings span %d overflows 32 bits", source, line, term, delta)
	}
	entry.PostingsByteLength = int(delta)
	if entry.DocFreq == 0 {
		b.stats.EmptyTerms++
		b.logger.Warn("term has no postings", "term", term, "source", source, "line", line)
	}

	b.buf = b.buf[:0]
	buf, err := AppendLexiconEntry(b.buf, entry)
	if err != nil {
		return fmt.Errorf("%s:%d: %w", source, line, err)
	}
	b.buf = buf
	if _, err := b.lex.Write(buf); err != nil {
		return fmt.Errorf("writing lexicon entry for %q: %w", term, err)
	}
	b.stats.Terms++
	if b.OnEntry != nil {
		b.OnEntry(entry)
	}
	return nil
}

func (b *Builder) writePosting(p index.Posting) error {
	b.buf = b.buf[:0]
	buf, err := AppendPosting(b.buf, p)
	if err != nil {
		return err
	}
	b.buf = buf
	n, err := b.pos.Write(buf)
	b.offset += int64(n)
	if err != nil {
		return fmt.Errorf("writing posting: %w", err)
	}
	b.stats.Postings++
	return nil
}

func (b *Builder) drop(err error) {
	b.stats.DroppedRecords++
	b.logger.Warn("dropping posting", "error", err)
	if b.OnDropped != nil {
		b.OnDropped(err)
	}
}

// BuildFile builds <basename>.lex and <basename>.pos from the raw postings
// file at rawPath. Outputs are written to .tmp files and renamed on success.
func BuildFile(ctx context.Context, rawPath, basename string, configure func(*Builder)) (BuildStats, error) {
	in, err := os.Open(rawPath)
	if err != nil {
		return BuildStats{}, fmt.Errorf("opening raw postings %s: %w", rawPath, err)
	}
	defer in.Close()

	lexPath, posPath := LexiconPath(basename), PostingsPath(basename)
	lexFile, err := os.Create(lexPath + ".tmp")
	if err != nil {
		return BuildStats{}, fmt.Errorf("creating lexicon %s: %w", lexPath, err)
	}
	defer lexFile.Close()
	posFile, err := os.Create(posPath + ".tmp")
	if err != nil {
		os.Remove(lexFile.Name())
		return BuildStats{}, fmt.Errorf("creating postings %s: %w", posPath, err)
	}
	defer posFile.Close()

	b := NewBuilder(lexFile, posFile)
	if configure != nil {
		configure(b)
	}
	stats, err := b.Build(ctx, in, rawPath)
	if err == nil {
		err = syncAndRename(lexFile, lexPath)
	}
	if err == nil {
		err = syncAndRename(posFile, posPath)
	}
	if err != nil {
		os.Remove(lexFile.Name())
		os.Remove(posFile.Name())
		return stats, err
	}
	return stats, nil
}

func syncAndRename(f *os.File, finalPath string) error {
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", f.Name(), err)
	}
	if err := os.Rename(f.Name(), finalPath); err != nil {
		return fmt.Errorf("renaming %s: %w", finalPath, err)
	}
	return nil
}

// tokenReader yields whitespace-separated tokens one line at a time without
// buffering whole lines.
type tokenReader struct {
	r    *bufio.Reader
	line int
	tok  []byte
	// atLineStart is true when the next token begins a new line.
	atLineStart bool
}

func newTokenReader(r io.Reader) *tokenReader {
	return &tokenReader{r: bufio.NewReaderSize(r, 64*1024), atLineStart: true}
}

// skipLine discards the remaining tokens of the current line.
func (t *tokenReader) skipLine() error {
	for {
		_, ok, err := t.next()
		if err == io.EOF || (err == nil && !ok) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// next returns the next token on the current line. ok is false at the end of
// the line; err is io.EOF once the input is exhausted.
func (t *tokenReader) next() (tok string, ok bool, err error) {
	if t.atLineStart {
		t.line++
		t.atLineStart = false
	}
	for {
		c, err := t.r.ReadByte()
		if err != nil {
			return "", false, err
		}
		switch c {
		case '\n':
			t.atLineStart = true
			return "", false, nil
		case ' ', '\t', '\r', '\v', '\f':
			continue
		}
		t.tok = append(t.tok[:0], c)
		break
	}
	for {
		c, err := t.r.ReadByte()
		if err == io.EOF {
			return string(t.tok), true, nil
		}
		if err != nil {
			return "", false, err
		}
		switch c {
		case '\n':
			if err := t.r.UnreadByte(); err != nil {
				return "", false, err
			}
			return string(t.tok), true, nil
		case ' ', '\t', '\r', '\v', '\f':
			return string(t.tok), true, nil
		}
		t.tok = append(t.tok, c)
	}
}
