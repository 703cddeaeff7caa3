package main

import (
	"bufio"
	"bytes"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueriesSkipsLinesWithoutTerms(t *testing.T) {
	got, err := parseQueries(bufio.NewScanner(strings.NewReader("q1 cat dog\n\nq2\nq3  fish \n")))
	require.NoError(t, err)
	assert.Equal(t, []QueryLine{{ID: "q1", Text: "cat dog"}, {ID: "q3", Text: "fish"}}, got)
}

func TestClassifyURL(t *testing.T) {
	raw := classifyURL("http://localhost:8080/", QueryLine{ID: "q 1", Text: "cat&dog"}, 3)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/classify", u.Path)
	assert.Equal(t, "q 1", u.Query().Get("id"))
	assert.Equal(t, "cat&dog", u.Query().Get("q"))
	assert.Equal(t, "3", u.Query().Get("k"))

	assert.NotContains(t, classifyURL("http://x", QueryLine{ID: "a", Text: "b"}, 0), "k=")
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Zero(t, percentile(nil, 50))
}

func TestReport(t *testing.T) {
	s := NewStats()
	s.RecordRequest(2*time.Millisecond, 200, nil, &classifyBody{Label: 1, CacheHit: true})
	s.RecordRequest(4*time.Millisecond, 200, nil, &classifyBody{Label: -1})
	s.RecordRequest(time.Millisecond, 400, nil, nil)
	s.RecordRequest(0, 0, errors.New("refused"), nil)

	var out bytes.Buffer
	assert.True(t, printReport(&out, s, time.Second))
	report := out.String()
	assert.Contains(t, report, "Total Requests:  4")
	assert.Contains(t, report, "Errors:          2")
	assert.Contains(t, report, "Cache Hit Rate:  50.00%")
	assert.Contains(t, report, "No Class:        1")
	assert.Contains(t, report, "  400: 1")

	out.Reset()
	assert.False(t, printReport(&out, NewStats(), time.Second))
}
