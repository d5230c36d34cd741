package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyard/tallyard/internal/shared"
)

// PGGenerator allocates numbers from a per-org-per-kind counter row using a
// single atomic upsert-increment. It never falls back to counting existing
// documents, which races under concurrent callers.
type PGGenerator struct {
	pool       *pgxpool.Pool
	maxRetries int
	now        func() time.Time
}

// NewPGGenerator constructs a PGGenerator. maxRetries bounds retries on
// serialization conflicts before surfacing ErrConflict.
func NewPGGenerator(pool *pgxpool.Pool, maxRetries int) *PGGenerator {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &PGGenerator{pool: pool, maxRetries: maxRetries, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (g *PGGenerator) WithNow(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

const incrementSQL = `INSERT INTO doc_sequences (org_id, kind, year, counter)
VALUES ($1, $2, $3, 1)
ON CONFLICT (org_id, kind, year)
DO UPDATE SET counter = doc_sequences.counter + 1
RETURNING counter`

// Next returns the next document number for org and kind.
func (g *PGGenerator) Next(ctx context.Context, orgID int64, kind Kind) (string, error) {
	year := g.now().Year()
	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		var counter int64
		err := g.pool.QueryRow(ctx, incrementSQL, orgID, string(kind), year).Scan(&counter)
		if err == nil {
			return Format(kind, year, counter), nil
		}
		if !retryable(err) {
			return "", fmt.Errorf("sequence: increment %s/%d: %w", kind, orgID, err)
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: sequence %s/%d contended: %v", shared.ErrConflict, kind, orgID, lastErr)
}

// retryable reports whether the increment hit a serialization or unique
// conflict that a repeat attempt can resolve.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "23505"
	}
	return false
}
