// Package store persists predictions to PostgreSQL so batch runs and the
// classify service leave a queryable record.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/simir/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/simir/pkg/resilience"
)

const schema = `CREATE TABLE IF NOT EXISTS predictions (
    query_id   TEXT NOT NULL,
    model      TEXT NOT NULL,
    k          INTEGER NOT NULL,
    label      INTEGER NOT NULL,
    neighbors  INTEGER NOT NULL,
    votes      TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (query_id, model, k)
)`

const upsert = `INSERT INTO predictions (query_id, model, k, label, neighbors, votes)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (query_id, model, k) DO UPDATE
SET label = excluded.label, neighbors = excluded.neighbors, votes = excluded.votes`

// Record is a stored prediction.
type Record struct {
	QueryID   string      `json:"query_id"`
	Model     string      `json:"model"`
	K         int         `json:"k"`
	Label     int         `json:"label"`
	Neighbors int         `json:"neighbors"`
	Votes     map[int]int `json:"votes"`
}

// Store writes predictions made with one retrieval model. Re-running a query
// with the same model and k replaces the earlier row.
type Store struct {
	db     *postgres.Client
	model  string
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// New creates a Store tagging rows with model.
func New(db *postgres.Client, model string) *Store {
	return &Store{
		db:     db,
		model:  model,
		logger: logger.WithComponent("prediction-store"),
	}
}

// EnsureSchema creates the predictions table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating predictions table: %w", err)
	}
	return nil
}

// Emit upserts p, retrying transient failures.
func (s *Store) Emit(ctx context.Context, p classifier.Prediction) error {
	votes, err := json.Marshal(p.Votes)
	if err != nil {
		return fmt.Errorf("marshaling votes: %w", err)
	}
	err = resilience.Retry(ctx, "store-prediction", s.retry, func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, upsert, p.QueryID, s.model, p.K, p.Label, len(p.Neighbors), string(votes))
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("storing prediction for %s: %w", p.QueryID, err)
	}
	s.logger.Debug("prediction stored", "query_id", p.QueryID, "label", p.Label)
	return nil
}

// Get loads the prediction for queryID made with k neighbors. It returns
// nil, nil when there is none.
func (s *Store) Get(ctx context.Context, queryID string, k int) (*Record, error) {
	rec := Record{QueryID: queryID, Model: s.model, K: k}
	var votes string
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT label, neighbors, votes FROM predictions WHERE query_id = $1 AND model = $2 AND k = $3`,
		queryID, s.model, k,
	).Scan(&rec.Label, &rec.Neighbors, &votes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying prediction %s: %w", queryID, err)
	}
	if err := json.Unmarshal([]byte(votes), &rec.Votes); err != nil {
		return nil, fmt.Errorf("unmarshaling votes for %s: %w", queryID, err)
	}
	return &rec, nil
}

// LabelCounts returns how many stored predictions carry each label.
func (s *Store) LabelCounts(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT label, COUNT(*) FROM predictions WHERE model = $1 GROUP BY label`, s.model)
	if err != nil {
		return nil, fmt.Errorf("counting labels: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var label, n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scanning label count: %w", err)
		}
		counts[label] = n
	}
	return counts, rows.Err()
}
