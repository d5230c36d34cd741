package journals

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyard/tallyard/internal/ledger"
	"github.com/tallyard/tallyard/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, orgID int64) ([]JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, number, date, narration, status, posted_by, created_at
FROM journal_entries WHERE org_id = $1 ORDER BY date DESC, id DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	index := make(map[int64]int)
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.OrgID, &e.Number, &e.Date, &e.Narration, &e.Status, &e.PostedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		index[e.ID] = len(entries)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	lineRows, err := r.pool.Query(ctx, `SELECT l.id, l.je_id, l.account_id, a.code, a.name, l.debit, l.credit
FROM journal_lines l
JOIN journal_entries e ON e.id = l.je_id
JOIN ledger_accounts a ON a.id = l.account_id
WHERE e.org_id = $1 ORDER BY l.id ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var line JournalLine
		if err := lineRows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.AccountCode, &line.AccountName, &line.Debit, &line.Credit); err != nil {
			return nil, err
		}
		if pos, ok := index[line.JournalID]; ok {
			entries[pos].Lines = append(entries[pos].Lines, line)
		}
	}
	return entries, lineRows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", shared.ErrStore, err)
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit tx: %w", shared.ErrStore, err)
	}
	return nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, entry JournalEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (org_id, number, date, narration, status, posted_by)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		entry.OrgID, entry.Number, entry.Date, entry.Narration, string(entry.Status), entry.PostedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertJournalLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (je_id, account_id, debit, credit) VALUES ($1,$2,$3,$4)`,
			entryID, line.AccountID, line.Debit, line.Credit); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetAccounts(ctx context.Context, orgID int64, ids []int64) (map[int64]ledger.Account, error) {
	accounts := make(map[int64]ledger.Account, len(ids))
	for _, id := range ids {
		if _, ok := accounts[id]; ok {
			continue
		}
		acc, err := ledger.GetAccountTx(ctx, r.tx, orgID, id)
		if err != nil {
			if err == shared.ErrCrossTenant {
				return nil, shared.ErrNotFound
			}
			return nil, err
		}
		accounts[id] = acc
	}
	return accounts, nil
}

func (r *txRepository) ApplyPosting(ctx context.Context, in ledger.PostingInput) error {
	return ledger.ApplyPosting(ctx, r.tx, in)
}
