package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/simir/pkg/errors"
)

func TestParseCollapsesRepeatedTerms(t *testing.T) {
	q, err := Parse("q7  cat dog cat\tfish cat")
	require.NoError(t, err)
	assert.Equal(t, "q7", q.ID)
	assert.Equal(t, map[string]int{"cat": 3, "dog": 1, "fish": 1}, q.Terms)
	assert.Equal(t, 5, q.Length())
	assert.Equal(t, []string{"cat", "dog", "fish"}, q.SortedTerms())
}

func TestParseQueryWithoutTerms(t *testing.T) {
	q, err := Parse("q1")
	require.NoError(t, err)
	assert.Equal(t, "q1", q.ID)
	assert.Empty(t, q.Terms)
	assert.Zero(t, q.Length())
}

func TestParseEmptyLine(t *testing.T) {
	_, err := Parse("   ")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
