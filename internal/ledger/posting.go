package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyard/tallyard/internal/platform/db"
	"github.com/tallyard/tallyard/internal/shared"
)

// TransactionInput describes a transaction to append.
type TransactionInput struct {
	Type          TxnType
	Category      string
	Amount        int64
	Date          time.Time
	Counterparty  string
	BankAccountID *int64
	Status        TxnStatus
	RefKind       string
	RefID         int64
}

// BalanceDelta adjusts an account baseline balance by a signed amount.
type BalanceDelta struct {
	AccountID int64
	Amount    int64
}

// PostingInput groups transaction appends and balance deltas applied as one
// atomic unit.
type PostingInput struct {
	OrgID        int64
	Transactions []TransactionInput
	Deltas       []BalanceDelta
}

// Validate checks posting invariants before any mutation begins.
func (in PostingInput) Validate() error {
	if in.OrgID == 0 {
		return fmt.Errorf("%w: posting requires org", shared.ErrValidation)
	}
	if len(in.Transactions) == 0 && len(in.Deltas) == 0 {
		return fmt.Errorf("%w: empty posting", shared.ErrValidation)
	}
	for idx, txn := range in.Transactions {
		if txn.Type != TxnTypeIncome && txn.Type != TxnTypeExpense {
			return fmt.Errorf("%w: transaction %d has unknown type %q", shared.ErrValidation, idx, txn.Type)
		}
		if txn.Amount <= 0 {
			return fmt.Errorf("%w: transaction %d amount must be positive", shared.ErrValidation, idx)
		}
	}
	for idx, delta := range in.Deltas {
		if delta.AccountID == 0 {
			return fmt.Errorf("%w: delta %d missing account", shared.ErrValidation, idx)
		}
	}
	return nil
}

// Poster is the exclusive gateway for ledger writes. No other component
// appends transactions or mutates account balances.
type Poster struct {
	pool *pgxpool.Pool
}

// NewPoster constructs a Poster.
func NewPoster(pool *pgxpool.Pool) *Poster {
	return &Poster{pool: pool}
}

// Post applies the posting in its own transaction.
func (p *Poster) Post(ctx context.Context, in PostingInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	return db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		return ApplyPosting(ctx, tx, in)
	})
}

// ApplyPosting applies transaction appends and balance deltas inside an
// existing transaction. Callers composing larger atomic units (invoice
// payment, journal posting) pass their own tx so the whole unit commits or
// rolls back together.
func ApplyPosting(ctx context.Context, tx pgx.Tx, in PostingInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	for _, txn := range in.Transactions {
		status := txn.Status
		if status == "" {
			status = TxnStatusPaid
		}
		date := txn.Date
		if date.IsZero() {
			date = time.Now()
		}
		_, err := tx.Exec(ctx, `INSERT INTO transactions (org_id, type, category, amount, date, counterparty, bank_account_id, status, ref_kind, ref_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			in.OrgID, string(txn.Type), txn.Category, txn.Amount, date, txn.Counterparty, txn.BankAccountID, string(status), txn.RefKind, nullID(txn.RefID))
		if err != nil {
			return fmt.Errorf("ledger: append transaction: %w", err)
		}
	}
	for _, delta := range in.Deltas {
		cmd, err := tx.Exec(ctx, `UPDATE ledger_accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2 AND org_id = $3`,
			delta.Amount, delta.AccountID, in.OrgID)
		if err != nil {
			return fmt.Errorf("ledger: adjust balance: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("%w: ledger account %d", shared.ErrNotFound, delta.AccountID)
		}
	}
	return nil
}

// GetAccountTx loads an account inside a transaction with a row lock so a
// concurrent payment cannot interleave a balance mutation.
func GetAccountTx(ctx context.Context, tx pgx.Tx, orgID, accountID int64) (Account, error) {
	row := tx.QueryRow(ctx, `SELECT id, org_id, code, name, type, balance, COALESCE(bank_name,''), COALESCE(account_number,''), created_at, updated_at
FROM ledger_accounts WHERE id = $1 FOR UPDATE`, accountID)
	var acc Account
	if err := row.Scan(&acc.ID, &acc.OrgID, &acc.Code, &acc.Name, &acc.Type, &acc.Balance, &acc.BankName, &acc.AccountNumber, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	if acc.OrgID != orgID {
		return Account{}, shared.ErrCrossTenant
	}
	return acc, nil
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
