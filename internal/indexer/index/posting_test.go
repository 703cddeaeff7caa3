package index

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePosting(t *testing.T) {
	p, err := ParsePosting("d1", "3")
	require.NoError(t, err)
	assert.Equal(t, Posting{DocID: "d1", Frequency: 3}, p)

	tests := []struct {
		name  string
		docID string
		count string
	}{
		{"zero count", "d1", "0"},
		{"negative count", "d1", "-2"},
		{"count above int32", "d1", strconv.FormatInt(math.MaxInt32+1, 10)},
		{"docID too long", strings.Repeat("x", MaxFieldLen+1), "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePosting(tt.docID, tt.count)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrNoFrequency)
		})
	}

	_, err = ParsePosting("d1", "d2")
	require.ErrorIs(t, err, ErrNoFrequency)
}
