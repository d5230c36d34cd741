package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyard/tallyard/internal/ledger"
	"github.com/tallyard/tallyard/internal/shared"
)

const uniqueViolation = "23505"

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed RepositoryPort.
func NewRepository(pool *pgxpool.Pool) RepositoryPort {
	return &repository{pool: pool}
}

const invoiceColumns = `id, org_id, number, vendor_id, vendor_invoice_no, po_id, receipt_id,
amount, tax_amount, total_amount, status, issue_date, due_date, paid_at,
COALESCE(payment_method,''), COALESCE(payment_ref,''), bank_account_id, approved_by, created_at`

func scanInvoice(row pgx.Row) (VendorInvoice, error) {
	var inv VendorInvoice
	err := row.Scan(&inv.ID, &inv.OrgID, &inv.Number, &inv.VendorID, &inv.VendorInvoiceNo, &inv.POID, &inv.ReceiptID,
		&inv.Amount, &inv.TaxAmount, &inv.TotalAmount, &inv.Status, &inv.IssueDate, &inv.DueDate, &inv.PaidAt,
		&inv.PaymentMethod, &inv.PaymentRef, &inv.BankAccountID, &inv.ApprovedBy, &inv.CreatedAt)
	if err == pgx.ErrNoRows {
		return VendorInvoice{}, shared.ErrNotFound
	}
	return inv, err
}

func (r *repository) Create(ctx context.Context, inv VendorInvoice) (VendorInvoice, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO vendor_invoices
(org_id, number, vendor_id, vendor_invoice_no, po_id, receipt_id, amount, tax_amount, total_amount, status, issue_date, due_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING `+invoiceColumns,
		inv.OrgID, inv.Number, inv.VendorID, inv.VendorInvoiceNo, inv.POID, inv.ReceiptID,
		inv.Amount, inv.TaxAmount, inv.TotalAmount, string(inv.Status), inv.IssueDate, inv.DueDate)
	created, err := scanInvoice(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return VendorInvoice{}, fmt.Errorf("%w: invoice %s for vendor %d already registered",
				shared.ErrConflict, inv.VendorInvoiceNo, inv.VendorID)
		}
		return VendorInvoice{}, err
	}
	return created, nil
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (VendorInvoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM vendor_invoices WHERE id = $1 AND org_id = $2`, id, orgID))
}

func (r *repository) List(ctx context.Context, orgID int64, status InvoiceStatus, limit, offset int) ([]VendorInvoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM vendor_invoices WHERE org_id = $1`
	args := []any{orgID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT %d OFFSET %d`, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VendorInvoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *repository) VendorExists(ctx context.Context, orgID, vendorID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM vendors WHERE id = $1 AND org_id = $2)`, vendorID, orgID).Scan(&exists)
	return exists, err
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

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, orgID, id int64) (VendorInvoice, error) {
	return scanInvoice(r.tx.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM vendor_invoices WHERE id = $1 AND org_id = $2 FOR UPDATE`, id, orgID))
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus, approvedBy *int64) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE vendor_invoices SET status = $1, approved_by = COALESCE($2, approved_by) WHERE id = $3`,
		string(status), approvedBy, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) MarkPaid(ctx context.Context, id int64, paidAt time.Time, method, reference string, bankAccountID int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE vendor_invoices
SET status = 'PAID', paid_at = $1, payment_method = $2, payment_ref = $3, bank_account_id = $4
WHERE id = $5`,
		paidAt, method, reference, bankAccountID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) GetAccount(ctx context.Context, orgID, accountID int64) (ledger.Account, error) {
	acc, err := ledger.GetAccountTx(ctx, r.tx, orgID, accountID)
	if err != nil {
		if err == shared.ErrCrossTenant {
			return ledger.Account{}, shared.ErrNotFound
		}
		return ledger.Account{}, err
	}
	return acc, nil
}

func (r *txRepository) ApplyPosting(ctx context.Context, in ledger.PostingInput) error {
	return ledger.ApplyPosting(ctx, r.tx, in)
}
