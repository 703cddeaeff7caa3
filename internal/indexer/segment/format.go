package segment

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/index"
)

// An index is two files sharing a basename. Records carry no length of their
// own; boundaries are recovered by reading fields in order. There is no
// header, checksum or version: format changes need a new file name.
//
// Lexicon record: string term, int32 docFreq, int32 collectionTermCount,
// int64 postingsOffset, int32 postingsByteLength.
//
// Postings record: string docID, int32 frequency.
//
// A string is a big-endian uint16 byte count followed by the UTF-8 bytes.
// All integers are big-endian.
const (
	LexiconSuffix   = ".lex"
	PostingsSuffix  = ".pos"
	DocLengthSuffix = ".dlen"

	MaxStringLen     = index.MaxFieldLen
	lexiconFixedSize = 4 + 4 + 8 + 4
	postingFixedSize = 4
)

// LexiconPath returns the lexicon file name for basename.
func LexiconPath(basename string) string { return basename + LexiconSuffix }

// PostingsPath returns the postings file name for basename.
func PostingsPath(basename string) string { return basename + PostingsSuffix }

// DocLengthPath returns the document-length table file name for basename.
func DocLengthPath(basename string) string { return basename + DocLengthSuffix }

// PostingSize is the encoded size of a posting for docID.
func PostingSize(docID string) int {
	return 2 + len(docID) + postingFixedSize
}

func appendString(buf []byte, s string) ([]byte, error) {
	if len(s) > MaxStringLen {
		return buf, fmt.Errorf("string of %d bytes exceeds %d byte limit", len(s), MaxStringLen)
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...), nil
}

func appendInt32(buf []byte, v int, field string) ([]byte, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return buf, fmt.Errorf("%s %d does not fit in 32 bits", field, v)
	}
	return binary.BigEndian.AppendUint32(buf, uint32(int32(v))), nil
}

// AppendPosting appends the encoded posting to buf.
func AppendPosting(buf []byte, p index.Posting) ([]byte, error) {
	buf, err := appendString(buf, p.DocID)
	if err != nil {
		return buf, fmt.Errorf("encoding docID: %w", err)
	}
	return appendInt32(buf, p.Frequency, "term frequency")
}

// AppendLexiconEntry appends the encoded lexicon entry to buf.
func AppendLexiconEntry(buf []byte, e index.LexiconEntry) ([]byte, error) {
	buf, err := appendString(buf, e.Term)
	if err != nil {
		return buf, fmt.Errorf("encoding term: %w", err)
	}
	if buf, err = appendInt32(buf, e.DocFreq, "document frequency"); err != nil {
		return buf, err
	}
	if buf, err = appendInt32(buf, e.CollectionTermCount, "collection term count"); err != nil {
		return buf, err
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(e.PostingsOffset))
	return appendInt32(buf, e.PostingsByteLength, "postings byte length")
}

func readString(r io.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	buf := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", unexpected(err)
	}
	return string(buf), nil
}

// unexpected turns a clean EOF in the middle of a record into
// io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// ReadPosting decodes one posting record. It returns io.EOF only when r is
// exhausted before the record starts.
func ReadPosting(r io.Reader) (index.Posting, error) {
	docID, err := readString(r)
	if err != nil {
		return index.Posting{}, err
	}
	var fixed [postingFixedSize]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return index.Posting{}, unexpected(err)
	}
	return index.Posting{
		DocID:     docID,
		Frequency: int(int32(binary.BigEndian.Uint32(fixed[:]))),
	}, nil
}

// ReadLexiconEntry decodes one lexicon record. It returns io.EOF only when r
// is exhausted before the record starts.
func ReadLexiconEntry(r io.Reader) (index.LexiconEntry, error) {
	term, err := readString(r)
	if err != nil {
		return index.LexiconEntry{}, err
	}
	var fixed [lexiconFixedSize]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return index.LexiconEntry{}, unexpected(err)
	}
	return index.LexiconEntry{
		Term:                term,
		DocFreq:             int(int32(binary.BigEndian.Uint32(fixed[0:4]))),
		CollectionTermCount: int(int32(binary.BigEndian.Uint32(fixed[4:8]))),
		PostingsOffset:      int64(binary.BigEndian.Uint64(fixed[8:16])),
		PostingsByteLength:  int(int32(binary.BigEndian.Uint32(fixed[16:20]))),
	}, nil
}
