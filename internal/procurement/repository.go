package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyard/tallyard/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed RepositoryPort.
func NewRepository(pool *pgxpool.Pool) RepositoryPort {
	return &repository{pool: pool}
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

const prColumns = `id, org_id, number, title, department, priority, status, estimated_amount,
requested_by, cm_actor_id, cm_acted_at, finance_actor_id, finance_acted_at, created_at`

func scanPR(row pgx.Row) (PurchaseRequest, error) {
	var pr PurchaseRequest
	err := row.Scan(&pr.ID, &pr.OrgID, &pr.Number, &pr.Title, &pr.Department, &pr.Priority, &pr.Status,
		&pr.EstimatedAmount, &pr.RequestedBy, &pr.CMActorID, &pr.CMActedAt, &pr.FinanceActorID, &pr.FinanceActedAt, &pr.CreatedAt)
	if err == pgx.ErrNoRows {
		return PurchaseRequest{}, shared.ErrNotFound
	}
	return pr, err
}

func (r *repository) GetPR(ctx context.Context, orgID, id int64) (PurchaseRequest, error) {
	pr, err := scanPR(r.pool.QueryRow(ctx,
		`SELECT `+prColumns+` FROM purchase_requests WHERE id = $1 AND org_id = $2`, id, orgID))
	if err != nil {
		return PurchaseRequest{}, err
	}
	pr.Items, err = r.loadItems(ctx, "pr_items", "pr_id", pr.ID)
	return pr, err
}

func (r *repository) ListPRs(ctx context.Context, orgID int64, limit, offset int) ([]PurchaseRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+prColumns+` FROM purchase_requests WHERE org_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseRequest
	for rows.Next() {
		pr, err := scanPR(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

const poColumns = `id, org_id, number, status, vendor_id, pr_id, subtotal, tax_amount, total_amount,
order_date, expected_delivery, delivered_at, payment_terms, created_at`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.OrgID, &po.Number, &po.Status, &po.VendorID, &po.PRID, &po.Subtotal,
		&po.TaxAmount, &po.TotalAmount, &po.OrderDate, &po.ExpectedDelivery, &po.DeliveredAt, &po.PaymentTerms, &po.CreatedAt)
	if err == pgx.ErrNoRows {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	return po, err
}

func (r *repository) GetPO(ctx context.Context, orgID, id int64) (PurchaseOrder, error) {
	po, err := scanPO(r.pool.QueryRow(ctx,
		`SELECT `+poColumns+` FROM purchase_orders WHERE id = $1 AND org_id = $2`, id, orgID))
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items, err = r.loadItems(ctx, "po_items", "po_id", po.ID)
	return po, err
}

func (r *repository) ListPOs(ctx context.Context, orgID int64, limit, offset int) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+poColumns+` FROM purchase_orders WHERE org_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

const receiptColumns = `id, org_id, number, type, po_id, vendor_id, status, quality_status,
invoice_ref, received_by, received_at`

func scanReceipt(row pgx.Row) (Receipt, error) {
	var rc Receipt
	err := row.Scan(&rc.ID, &rc.OrgID, &rc.Number, &rc.Type, &rc.POID, &rc.VendorID, &rc.Status,
		&rc.Quality, &rc.InvoiceRef, &rc.ReceivedBy, &rc.ReceivedAt)
	if err == pgx.ErrNoRows {
		return Receipt{}, shared.ErrNotFound
	}
	return rc, err
}

func (r *repository) GetReceipt(ctx context.Context, orgID, id int64) (Receipt, error) {
	rc, err := scanReceipt(r.pool.QueryRow(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE id = $1 AND org_id = $2`, id, orgID))
	if err != nil {
		return Receipt{}, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, description, qty, unit_price, state FROM receipt_items WHERE receipt_id = $1 ORDER BY id ASC`, rc.ID)
	if err != nil {
		return Receipt{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item ReceiptItem
		if err := rows.Scan(&item.ID, &item.Description, &item.Qty, &item.UnitPrice, &item.State); err != nil {
			return Receipt{}, err
		}
		rc.Items = append(rc.Items, item)
	}
	return rc, rows.Err()
}

func (r *repository) ListReceipts(ctx context.Context, orgID int64, limit, offset int) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE org_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Receipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (r *repository) VendorExists(ctx context.Context, orgID, vendorID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM vendors WHERE id = $1 AND org_id = $2)`, vendorID, orgID).Scan(&exists)
	return exists, err
}

func (r *repository) TotalOrderValue(ctx context.Context, orgID int64, from, to time.Time) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0) FROM purchase_orders
WHERE org_id = $1 AND status <> 'CANCELLED' AND order_date >= $2 AND order_date < $3`,
		orgID, from, to).Scan(&total)
	return total, err
}

func (r *repository) UpdateReceiptQuality(ctx context.Context, orgID, id int64, status QCStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE receipts SET quality_status = $1 WHERE id = $2 AND org_id = $3`, string(status), id, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateReceiptInvoiceRef(ctx context.Context, orgID, id int64, ref string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE receipts SET invoice_ref = $1 WHERE id = $2 AND org_id = $3`, ref, id, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) loadItems(ctx context.Context, table, fk string, parentID int64) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, description, qty, unit_price FROM %s WHERE %s = $1 ORDER BY id ASC`, table, fk), parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LineItem
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.Description, &item.Qty, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) CreatePR(ctx context.Context, pr PurchaseRequest) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_requests
(org_id, number, title, department, priority, status, estimated_amount, requested_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		pr.OrgID, pr.Number, pr.Title, pr.Department, string(pr.Priority), string(pr.Status),
		pr.EstimatedAmount, pr.RequestedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertPRItem(ctx context.Context, prID int64, item LineItem) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO pr_items (pr_id, description, qty, unit_price) VALUES ($1,$2,$3,$4)`,
		prID, item.Description, item.Qty, item.UnitPrice)
	return err
}

func (r *txRepository) GetPRForUpdate(ctx context.Context, orgID, id int64) (PurchaseRequest, error) {
	return scanPR(r.tx.QueryRow(ctx,
		`SELECT `+prColumns+` FROM purchase_requests WHERE id = $1 AND org_id = $2 FOR UPDATE`, id, orgID))
}

func (r *txRepository) UpdatePRStatus(ctx context.Context, id int64, status PRStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_requests SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetPRApprover(ctx context.Context, id int64, stage ApprovalStage, actorID int64, at time.Time) error {
	column := "cm"
	if stage == StageFinance {
		column = "finance"
	}
	_, err := r.tx.Exec(ctx, fmt.Sprintf(
		`UPDATE purchase_requests SET %s_actor_id = $1, %s_acted_at = $2 WHERE id = $3`, column, column),
		actorID, at, id)
	return err
}

func (r *txRepository) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders
(org_id, number, status, vendor_id, pr_id, subtotal, tax_amount, total_amount, order_date, expected_delivery, payment_terms)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		po.OrgID, po.Number, string(po.Status), po.VendorID, po.PRID, po.Subtotal, po.TaxAmount,
		po.TotalAmount, po.OrderDate, po.ExpectedDelivery, po.PaymentTerms).Scan(&id)
	return id, err
}

func (r *txRepository) InsertPOItem(ctx context.Context, poID int64, item LineItem) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO po_items (po_id, description, qty, unit_price) VALUES ($1,$2,$3,$4)`,
		poID, item.Description, item.Qty, item.UnitPrice)
	return err
}

func (r *txRepository) GetPOForUpdate(ctx context.Context, orgID, id int64) (PurchaseOrder, error) {
	return scanPO(r.tx.QueryRow(ctx,
		`SELECT `+poColumns+` FROM purchase_orders WHERE id = $1 AND org_id = $2 FOR UPDATE`, id, orgID))
}

func (r *txRepository) UpdatePOStatus(ctx context.Context, id int64, status POStatus, deliveredAt *time.Time) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchase_orders SET status = $1, delivered_at = COALESCE($2, delivered_at) WHERE id = $3`,
		string(status), deliveredAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) CreateReceipt(ctx context.Context, rc Receipt) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO receipts
(org_id, number, type, po_id, vendor_id, status, quality_status, invoice_ref, received_by, received_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		rc.OrgID, rc.Number, string(rc.Type), rc.POID, rc.VendorID, string(rc.Status),
		string(rc.Quality), rc.InvoiceRef, rc.ReceivedBy, rc.ReceivedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertReceiptItem(ctx context.Context, receiptID int64, item ReceiptItem) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO receipt_items (receipt_id, description, qty, unit_price, state) VALUES ($1,$2,$3,$4,$5)`,
		receiptID, item.Description, item.Qty, item.UnitPrice, string(item.State))
	return err
}
