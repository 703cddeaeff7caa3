package segment

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/simir/pkg/errors"
)

const rawSample = `cat d1 2 d2 1
dog d2 3
fish d3 1 d1 4 d7 9
zebra a-very-long-document-identifier 12
`

func buildInMemory(t *testing.T, raw string) (*bytes.Buffer, *bytes.Buffer, BuildStats, []index.LexiconEntry) {
	t.Helper()
	var lex, pos bytes.Buffer
	var entries []index.LexiconEntry
	b := NewBuilder(&lex, &pos)
	b.OnEntry = func(e index.LexiconEntry) { entries = append(entries, e) }
	stats, err := b.Build(context.Background(), strings.NewReader(raw), "raw")
	require.NoError(t, err)
	return &lex, &pos, stats, entries
}

func buildOnDisk(t *testing.T, raw string) string {
	t.Helper()
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "raw.txt")
	require.NoError(t, os.WriteFile(rawPath, []byte(raw), 0o644))
	base := filepath.Join(dir, "idx")
	_, err := BuildFile(context.Background(), rawPath, base, nil)
	require.NoError(t, err)
	return base
}

func TestBuildLexiconStatistics(t *testing.T) {
	lex, _, stats, _ := buildInMemory(t, rawSample)

	assert.Equal(t, 4, stats.Terms)
	assert.Equal(t, 7, stats.Postings)
	assert.Zero(t, stats.DroppedRecords)

	var got []index.LexiconEntry
	require.NoError(t, ScanLexicon(lex, func(e index.LexiconEntry) error {
		got = append(got, e)
		return nil
	}))
	require.Len(t, got, 4)
	assert.Equal(t, "cat", got[0].Term)
	assert.Equal(t, 2, got[0].DocFreq)
	assert.Equal(t, 3, got[0].CollectionTermCount)
	assert.Equal(t, int64(0), got[0].PostingsOffset)
	assert.Equal(t, PostingSize("d1")+PostingSize("d2"), got[0].PostingsByteLength)
	assert.Equal(t, 3, got[2].DocFreq)
	assert.Equal(t, 14, got[2].CollectionTermCount)
}

func TestBuildOffsetsAreContiguous(t *testing.T) {
	lex, pos, stats, _ := buildInMemory(t, rawSample)

	var got []index.LexiconEntry
	require.NoError(t, ScanLexicon(lex, func(e index.LexiconEntry) error {
		got = append(got, e)
		return nil
	}))
	for i := 0; i+1 < len(got); i++ {
		assert.Equal(t, got[i].End(), got[i+1].PostingsOffset, "entry %d", i)
	}
	last := got[len(got)-1]
	assert.Equal(t, int64(pos.Len()), last.End())
	assert.Equal(t, int64(pos.Len()), stats.PostingsBytes)
}

func TestRoundTripThroughFiles(t *testing.T) {
	base := buildOnDisk(t, rawSample)
	r, err := OpenReader(base)
	require.NoError(t, err)
	defer r.Close()

	want := map[string]index.PostingList{
		"cat":   {{DocID: "d1", Frequency: 2}, {DocID: "d2", Frequency: 1}},
		"dog":   {{DocID: "d2", Frequency: 3}},
		"fish":  {{DocID: "d3", Frequency: 1}, {DocID: "d1", Frequency: 4}, {DocID: "d7", Frequency: 9}},
		"zebra": {{DocID: "a-very-long-document-identifier", Frequency: 12}},
	}
	assert.Equal(t, len(want), r.Terms())
	for term, postings := range want {
		entry, ok := r.Lookup(term)
		require.True(t, ok, term)
		got, err := r.ReadPostings(entry)
		require.NoError(t, err)
		assert.Equal(t, postings, got, term)
	}
	_, ok := r.Lookup("unicorn")
	assert.False(t, ok)
	assert.Equal(t, int64(3+3+14+12), r.TotalCollectionTermCount())

	_, err = os.Stat(LexiconPath(base) + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestBuildDropsMalformedPairs(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     index.PostingList
		dropped  int
		totalCnt int
	}{
		{"trailing docID without count", "cat d1 2 d2\n", index.PostingList{{DocID: "d1", Frequency: 2}}, 1, 2},
		{"docID followed by docID", "cat d1 d2 3\n", index.PostingList{{DocID: "d2", Frequency: 3}}, 1, 3},
		{"zero count", "cat d1 0 d2 5\n", index.PostingList{{DocID: "d2", Frequency: 5}}, 1, 5},
		{"negative count", "cat d1 -4\n", index.PostingList{}, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var drops []error
			var lex, pos bytes.Buffer
			b := NewBuilder(&lex, &pos)
			b.OnDropped = func(err error) { drops = append(drops, err) }
			stats, err := b.Build(context.Background(), strings.NewReader(tt.raw), "raw")
			require.NoError(t, err)
			assert.Equal(t, tt.dropped, stats.DroppedRecords)
			require.Len(t, drops, tt.dropped)
			assert.True(t, errors.Is(drops[0], apperrors.ErrMalformedRecord))

			lexicon, _, err := LoadLexicon(&lex, "lex")
			require.NoError(t, err)
			entry := lexicon["cat"]
			assert.Equal(t, len(tt.want), entry.DocFreq)
			assert.Equal(t, tt.totalCnt, entry.CollectionTermCount)
			got, err := DecodePostings(bytes.NewReader(pos.Bytes()[entry.PostingsOffset:entry.End()]), entry.DocFreq)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildTermWithoutPostings(t *testing.T) {
	lex, _, stats, entries := buildInMemory(t, "lonely\ncat d1 1\n")
	assert.Equal(t, 1, stats.EmptyTerms)
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].DocFreq)
	assert.Equal(t, 0, entries[0].PostingsByteLength)
	assert.Equal(t, int64(0), entries[1].PostingsOffset)

	lexicon, _, err := LoadLexicon(lex, "lex")
	require.NoError(t, err)
	assert.Contains(t, lexicon, "lonely")
}

func TestBuildHandlesBlankLinesAndMissingFinalNewline(t *testing.T) {
	_, _, stats, entries := buildInMemory(t, "\n\ncat d1 2\r\n\n  dog\td2   1")
	assert.Equal(t, 2, stats.Terms)
	require.Len(t, entries, 2)
	assert.Equal(t, "dog", entries[1].Term)
	assert.Equal(t, 1, entries[1].DocFreq)
}

func TestBuildFileMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := BuildFile(context.Background(), filepath.Join(dir, "nope.txt"), filepath.Join(dir, "idx"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.txt")
}

func TestBuildFileUnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "raw.txt")
	require.NoError(t, os.WriteFile(rawPath, []byte(rawSample), 0o644))
	_, err := BuildFile(context.Background(), rawPath, filepath.Join(dir, "missing-dir", "idx"), nil)
	require.Error(t, err)
}

func TestBuildHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var lex, pos bytes.Buffer
	_, err := NewBuilder(&lex, &pos).Build(ctx, strings.NewReader(rawSample), "raw")
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadLexiconDuplicateLastWriteWins(t *testing.T) {
	var buf []byte
	var err error
	buf, err = AppendLexiconEntry(buf, index.LexiconEntry{Term: "cat", DocFreq: 1, CollectionTermCount: 5, PostingsByteLength: 8})
	require.NoError(t, err)
	buf, err = AppendLexiconEntry(buf, index.LexiconEntry{Term: "cat", DocFreq: 2, CollectionTermCount: 7, PostingsOffset: 8, PostingsByteLength: 16})
	require.NoError(t, err)

	lexicon, total, err := LoadLexicon(bytes.NewReader(buf), "lex")
	require.NoError(t, err)
	assert.Equal(t, 2, lexicon["cat"].DocFreq)
	assert.Equal(t, int64(8), lexicon["cat"].PostingsOffset)
	assert.Equal(t, int64(7), total)
}

func TestLoadLexiconTruncatedRecord(t *testing.T) {
	buf, err := AppendLexiconEntry(nil, index.LexiconEntry{Term: "cat", DocFreq: 1, CollectionTermCount: 1, PostingsByteLength: 7})
	require.NoError(t, err)
	_, _, err = LoadLexicon(bytes.NewReader(buf[:len(buf)-3]), "lex")
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadPostingsRejectsOutOfRangeEntry(t *testing.T) {
	base := buildOnDisk(t, rawSample)
	r, err := OpenReader(base)
	require.NoError(t, err)
	defer r.Close()

	entry, _ := r.Lookup("cat")
	entry.PostingsOffset = r.size
	_, err = r.ReadPostings(entry)
	require.Error(t, err)

	entry, _ = r.Lookup("cat")
	entry.DocFreq = 1
	_, err = r.ReadPostings(entry)
	require.Error(t, err, "span holds two records but only one was requested")
}

func TestOpenReaderMissingFiles(t *testing.T) {
	_, err := OpenReader(filepath.Join(t.TempDir(), "idx"))
	require.Error(t, err)
}

func TestLexiconEntryByteLayout(t *testing.T) {
	buf, err := AppendLexiconEntry(nil, index.LexiconEntry{
		Term: "ab", DocFreq: 1, CollectionTermCount: 2, PostingsOffset: 3, PostingsByteLength: 4,
	})
	require.NoError(t, err)
	want := []byte{
		0, 2, 'a', 'b',
		0, 0, 0, 1,
		0, 0, 0, 2,
		0, 0, 0, 0, 0, 0, 0, 3,
		0, 0, 0, 4,
	}
	assert.Equal(t, want, buf)

	p, err := AppendPosting(nil, index.Posting{DocID: "d", Frequency: 258})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 'd', 0, 0, 1, 2}, p)
}

func TestAppendStringRejectsOversizedValues(t *testing.T) {
	_, err := AppendPosting(nil, index.Posting{DocID: strings.Repeat("x", MaxStringLen+1), Frequency: 1})
	require.Error(t, err)
}

func BenchmarkBuild(b *testing.B) {
	var sb strings.Builder
	for i := 0; i < 2000; i++ {
		sb.WriteString("term")
		sb.WriteString(strings.Repeat(" doc 3", 20))
		sb.WriteByte('\n')
	}
	raw := sb.String()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var lex, pos bytes.Buffer
		if _, err := NewBuilder(&lex, &pos).Build(context.Background(), strings.NewReader(raw), "raw"); err != nil {
			b.Fatal(err)
		}
	}
}
