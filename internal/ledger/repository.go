package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyard/tallyard/internal/shared"
)

// Repository provides read access to accounts and the transaction log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetAccount fetches an account scoped to the org.
func (r *Repository) GetAccount(ctx context.Context, orgID, id int64) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, org_id, code, name, type, balance, COALESCE(bank_name,''), COALESCE(account_number,''), created_at, updated_at
FROM ledger_accounts WHERE id = $1 AND org_id = $2`, id, orgID)
	var acc Account
	if err := row.Scan(&acc.ID, &acc.OrgID, &acc.Code, &acc.Name, &acc.Type, &acc.Balance, &acc.BankName, &acc.AccountNumber, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	return acc, nil
}

// ListAccounts returns all accounts of an org ordered by code.
func (r *Repository) ListAccounts(ctx context.Context, orgID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, code, name, type, balance, COALESCE(bank_name,''), COALESCE(account_number,''), created_at, updated_at
FROM ledger_accounts WHERE org_id = $1 ORDER BY code ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var acc Account
		if err := rows.Scan(&acc.ID, &acc.OrgID, &acc.Code, &acc.Name, &acc.Type, &acc.Balance, &acc.BankName, &acc.AccountNumber, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// EffectiveBalance projects the stored balance forward over pending
// flows routed to the account. Settled (PAID) transactions are already
// reflected in the balance by the posting gateway and must not be added
// again.
func (r *Repository) EffectiveBalance(ctx context.Context, orgID, accountID int64) (int64, error) {
	acc, err := r.GetAccount(ctx, orgID, accountID)
	if err != nil {
		return 0, err
	}
	var pending int64
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(CASE WHEN type = 'INCOME' THEN amount ELSE -amount END), 0)
FROM transactions WHERE org_id = $1 AND bank_account_id = $2 AND status = 'PENDING'`, orgID, accountID).Scan(&pending)
	if err != nil {
		return 0, err
	}
	return acc.Balance + pending, nil
}

// ListPaidTransactions returns PAID transactions of an org, newest first,
// bounded by the row-scan cap.
func (r *Repository) ListPaidTransactions(ctx context.Context, orgID int64, scanCap int) ([]Transaction, error) {
	if scanCap <= 0 {
		scanCap = 10000
	}
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, type, category, amount, date, COALESCE(counterparty,''), bank_account_id, status, COALESCE(ref_kind,''), COALESCE(ref_id,0), created_at
FROM transactions WHERE org_id = $1 AND status = 'PAID' ORDER BY date DESC, id DESC LIMIT $2`, orgID, scanCap)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txns []Transaction
	for rows.Next() {
		var txn Transaction
		if err := rows.Scan(&txn.ID, &txn.OrgID, &txn.Type, &txn.Category, &txn.Amount, &txn.Date, &txn.Counterparty, &txn.BankAccountID, &txn.Status, &txn.RefKind, &txn.RefID, &txn.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}
