package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyard/tallyard/internal/ledger"
	"github.com/tallyard/tallyard/internal/sequence"
	"github.com/tallyard/tallyard/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Create(ctx context.Context, inv VendorInvoice) (VendorInvoice, error)
	Get(ctx context.Context, orgID, id int64) (VendorInvoice, error)
	List(ctx context.Context, orgID int64, status InvoiceStatus, limit, offset int) ([]VendorInvoice, error)
	VendorExists(ctx context.Context, orgID, vendorID int64) (bool, error)
}

// TxRepository exposes the transactional operations payment composes.
type TxRepository interface {
	GetInvoiceForUpdate(ctx context.Context, orgID, id int64) (VendorInvoice, error)
	UpdateStatus(ctx context.Context, id int64, status InvoiceStatus, approvedBy *int64) error
	MarkPaid(ctx context.Context, id int64, paidAt time.Time, method, reference string, bankAccountID int64) error
	GetAccount(ctx context.Context, orgID, accountID int64) (ledger.Account, error)
	ApplyPosting(ctx context.Context, in ledger.PostingInput) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages vendor invoices. Paying an invoice is one atomic unit:
// the status flip, the expense transaction and the bank balance decrement
// commit together or not at all.
type Service struct {
	repo   RepositoryPort
	seq    sequence.Generator
	audit  AuditPort
	events EventsPort
	now    func() time.Time
}

// NewService constructs the billing service.
func NewService(repo RepositoryPort, seq sequence.Generator, audit AuditPort, events EventsPort) *Service {
	return &Service{repo: repo, seq: seq, audit: audit, events: events, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create registers a vendor invoice in PENDING. A duplicate vendor invoice
// number for the same vendor surfaces as a conflict.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInvoiceInput) (VendorInvoice, error) {
	if err := input.Validate(); err != nil {
		return VendorInvoice{}, err
	}
	exists, err := s.repo.VendorExists(ctx, actor.OrgID, input.VendorID)
	if err != nil {
		return VendorInvoice{}, err
	}
	if !exists {
		return VendorInvoice{}, fmt.Errorf("%w: vendor %d", shared.ErrNotFound, input.VendorID)
	}
	number, err := s.seq.Next(ctx, actor.OrgID, sequence.KindVendorInvoice)
	if err != nil {
		return VendorInvoice{}, err
	}
	amount := shared.ToCents(input.Amount)
	tax := shared.ToCents(input.TaxAmount)
	issueDate := input.IssueDate
	if issueDate.IsZero() {
		issueDate = s.now()
	}
	inv := VendorInvoice{
		OrgID:           actor.OrgID,
		Number:          number,
		VendorID:        input.VendorID,
		VendorInvoiceNo: input.VendorInvoiceNo,
		POID:            input.POID,
		ReceiptID:       input.ReceiptID,
		Amount:          amount,
		TaxAmount:       tax,
		TotalAmount:     amount + tax,
		Status:          InvoiceStatusPending,
		IssueDate:       issueDate,
		DueDate:         input.DueDate,
	}
	created, err := s.repo.Create(ctx, inv)
	if err != nil {
		return VendorInvoice{}, err
	}
	s.recordAudit(ctx, actor, "invoice.create", created.Number, map[string]any{"vendor": created.VendorID, "total": created.TotalAmount})
	return created, nil
}

// Approve moves a PENDING invoice to APPROVED and records the approver.
func (s *Service) Approve(ctx context.Context, actor shared.Actor, invoiceID int64) (VendorInvoice, error) {
	var inv VendorInvoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, actor.OrgID, invoiceID)
		if err != nil {
			return err
		}
		if current.Status != InvoiceStatusPending {
			return fmt.Errorf("%w: invoice %s is %s", shared.ErrInvalidTransition, current.Number, current.Status)
		}
		if err := tx.UpdateStatus(ctx, invoiceID, InvoiceStatusApproved, &actor.ID); err != nil {
			return err
		}
		inv = current
		inv.Status = InvoiceStatusApproved
		inv.ApprovedBy = &actor.ID
		return nil
	})
	if err != nil {
		return VendorInvoice{}, err
	}
	s.recordAudit(ctx, actor, "invoice.approve", inv.Number, nil)
	return inv, nil
}

// Pay settles an invoice: it stamps payment metadata, appends the expense
// transaction and decrements the bank account balance in one transaction.
// Any invoice that is not already PAID may be paid; approval is not a
// precondition.
func (s *Service) Pay(ctx context.Context, actor shared.Actor, invoiceID int64, input PayInvoiceInput) (VendorInvoice, error) {
	if err := input.Validate(); err != nil {
		return VendorInvoice{}, err
	}
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	if input.Reference == "" {
		input.Reference = uuid.NewString()
	}
	var inv VendorInvoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, actor.OrgID, invoiceID)
		if err != nil {
			return err
		}
		if current.Status == InvoiceStatusPaid {
			return fmt.Errorf("%w: invoice %s", shared.ErrAlreadyPaid, current.Number)
		}
		account, err := tx.GetAccount(ctx, actor.OrgID, input.BankAccountID)
		if err != nil {
			return err
		}
		if account.Type != ledger.AccountTypeAsset {
			return fmt.Errorf("%w: account %s is not an asset account", shared.ErrValidation, account.Code)
		}
		if err := tx.MarkPaid(ctx, invoiceID, paidAt, input.Method, input.Reference, input.BankAccountID); err != nil {
			return err
		}
		err = tx.ApplyPosting(ctx, ledger.PostingInput{
			OrgID: actor.OrgID,
			Transactions: []ledger.TransactionInput{{
				Type:          ledger.TxnTypeExpense,
				Category:      "Vendor Payments",
				Amount:        current.TotalAmount,
				Date:          paidAt,
				Counterparty:  current.VendorInvoiceNo,
				BankAccountID: &input.BankAccountID,
				Status:        ledger.TxnStatusPaid,
				RefKind:       "vendor_invoice",
				RefID:         current.ID,
			}},
			Deltas: []ledger.BalanceDelta{{AccountID: input.BankAccountID, Amount: -current.TotalAmount}},
		})
		if err != nil {
			return err
		}
		inv = current
		inv.Status = InvoiceStatusPaid
		inv.PaidAt = &paidAt
		inv.PaymentMethod = input.Method
		inv.PaymentRef = input.Reference
		inv.BankAccountID = &input.BankAccountID
		return nil
	})
	if err != nil {
		return VendorInvoice{}, err
	}
	s.recordAudit(ctx, actor, "invoice.pay", inv.Number, map[string]any{"bank_account": input.BankAccountID, "total": inv.TotalAmount})
	if s.events != nil {
		_ = s.events.InvoicePaid(ctx, InvoicePaidEvent{
			ID:            inv.ID,
			OrgID:         inv.OrgID,
			Number:        inv.Number,
			VendorID:      inv.VendorID,
			TotalAmount:   inv.TotalAmount,
			BankAccountID: input.BankAccountID,
		})
	}
	return inv, nil
}

// Get loads one invoice scoped to the org.
func (s *Service) Get(ctx context.Context, orgID, id int64) (VendorInvoice, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List pages invoices, optionally filtered by status.
func (s *Service) List(ctx context.Context, orgID int64, status InvoiceStatus, limit, offset int) ([]VendorInvoice, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, orgID, status, limit, offset)
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    actor.OrgID,
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "vendor_invoice",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
}
