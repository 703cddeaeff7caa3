// Package labels loads "label docID" tables: the training labels the
// classifier votes with, and the gold labels predictions are scored against.
package labels

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/simir/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
)

// Table maps a document ID to its class label.
type Table map[string]int

// Label returns the label of docID and whether the document is labeled.
func (t Table) Label(docID string) (int, bool) {
	l, ok := t[docID]
	return l, ok
}

// Classes returns how many documents carry each label.
func (t Table) Classes() map[int]int {
	counts := make(map[int]int)
	for _, l := range t {
		counts[l]++
	}
	return counts
}

// Load parses "label docID" lines. Blank lines are ignored; lines with the
// wrong shape or a negative or non-integer label are logged and skipped. A
// docID labeled twice keeps the later label.
func Load(r io.Reader, source string) (Table, error) {
	log := logger.WithComponent("labels")
	table := make(Table)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			log.Warn("skipping line", "error", apperrors.Malformed(source, line, "want \"label docID\", got %d fields", len(fields)))
			continue
		}
		label, err := strconv.Atoi(fields[0])
		if err != nil || label < 0 {
			log.Warn("skipping line", "error", apperrors.Malformed(source, line, "invalid label %q", fields[0]))
			continue
		}
		if prev, ok := table[fields[1]]; ok && prev != label {
			log.Warn("document relabeled", "source", source, "line", line, "doc_id", fields[1], "previous", prev, "label", label)
		}
		table[fields[1]] = label
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading labels %s: %w", source, err)
	}
	return table, nil
}

// LoadFile loads the label table stored at path.
func LoadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening labels: %w", err)
	}
	defer f.Close()
	table, err := Load(f, path)
	if err != nil {
		return nil, err
	}
	logger.WithComponent("labels").Info("labels loaded", "path", path, "documents", len(table), "classes", len(table.Classes()))
	return table, nil
}
