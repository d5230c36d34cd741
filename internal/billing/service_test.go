package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallyard/tallyard/internal/ledger"
	"github.com/tallyard/tallyard/internal/ledger/reports"
	"github.com/tallyard/tallyard/internal/sequence"
	"github.com/tallyard/tallyard/internal/shared"
)

type memoryBillingRepo struct {
	invoices map[int64]VendorInvoice
	accounts map[int64]ledger.Account
	txns     []ledger.Transaction
	vendors  map[int64]bool
	nextID   int64

	failPosting bool
}

func newMemoryBillingRepo() *memoryBillingRepo {
	return &memoryBillingRepo{
		invoices: make(map[int64]VendorInvoice),
		accounts: map[int64]ledger.Account{
			1: {ID: 1, OrgID: 1, Code: "1000", Name: "Operating Bank", Type: ledger.AccountTypeAsset, Balance: 500000},
			2: {ID: 2, OrgID: 1, Code: "4000", Name: "Maintenance Income", Type: ledger.AccountTypeIncome},
			3: {ID: 3, OrgID: 2, Code: "1000", Name: "Other Org Bank", Type: ledger.AccountTypeAsset, Balance: 90000},
		},
		vendors: map[int64]bool{7: true},
	}
}

func (r *memoryBillingRepo) Create(ctx context.Context, inv VendorInvoice) (VendorInvoice, error) {
	for _, existing := range r.invoices {
		if existing.OrgID == inv.OrgID && existing.VendorID == inv.VendorID && existing.VendorInvoiceNo == inv.VendorInvoiceNo {
			return VendorInvoice{}, fmt.Errorf("%w: invoice %s for vendor %d already registered",
				shared.ErrConflict, inv.VendorInvoiceNo, inv.VendorID)
		}
	}
	r.nextID++
	inv.ID = r.nextID
	r.invoices[inv.ID] = inv
	return inv, nil
}

func (r *memoryBillingRepo) Get(ctx context.Context, orgID, id int64) (VendorInvoice, error) {
	inv, ok := r.invoices[id]
	if !ok || inv.OrgID != orgID {
		return VendorInvoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (r *memoryBillingRepo) List(ctx context.Context, orgID int64, status InvoiceStatus, limit, offset int) ([]VendorInvoice, error) {
	var out []VendorInvoice
	for _, inv := range r.invoices {
		if inv.OrgID != orgID {
			continue
		}
		if status != "" && inv.Status != status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (r *memoryBillingRepo) VendorExists(ctx context.Context, orgID, vendorID int64) (bool, error) {
	return r.vendors[vendorID], nil
}

func (r *memoryBillingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	invoices := make(map[int64]VendorInvoice, len(r.invoices))
	for k, v := range r.invoices {
		invoices[k] = v
	}
	accounts := make(map[int64]ledger.Account, len(r.accounts))
	for k, v := range r.accounts {
		accounts[k] = v
	}
	txns := append([]ledger.Transaction(nil), r.txns...)
	if err := fn(ctx, &memoryBillingTx{repo: r}); err != nil {
		r.invoices, r.accounts, r.txns = invoices, accounts, txns
		return err
	}
	return nil
}

type memoryBillingTx struct {
	repo *memoryBillingRepo
}

func (t *memoryBillingTx) GetInvoiceForUpdate(ctx context.Context, orgID, id int64) (VendorInvoice, error) {
	return t.repo.Get(ctx, orgID, id)
}

func (t *memoryBillingTx) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus, approvedBy *int64) error {
	inv, ok := t.repo.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.Status = status
	if approvedBy != nil {
		inv.ApprovedBy = approvedBy
	}
	t.repo.invoices[id] = inv
	return nil
}

func (t *memoryBillingTx) MarkPaid(ctx context.Context, id int64, paidAt time.Time, method, reference string, bankAccountID int64) error {
	inv, ok := t.repo.invoices[id]
	if !ok {
		return shared.ErrNotFound
	}
	inv.Status = InvoiceStatusPaid
	inv.PaidAt = &paidAt
	inv.PaymentMethod = method
	inv.PaymentRef = reference
	inv.BankAccountID = &bankAccountID
	t.repo.invoices[id] = inv
	return nil
}

func (t *memoryBillingTx) GetAccount(ctx context.Context, orgID, accountID int64) (ledger.Account, error) {
	acc, ok := t.repo.accounts[accountID]
	if !ok || acc.OrgID != orgID {
		return ledger.Account{}, shared.ErrNotFound
	}
	return acc, nil
}

func (t *memoryBillingTx) ApplyPosting(ctx context.Context, in ledger.PostingInput) error {
	if t.repo.failPosting {
		return errors.New("storage failure")
	}
	if err := in.Validate(); err != nil {
		return err
	}
	for _, txn := range in.Transactions {
		t.repo.txns = append(t.repo.txns, ledger.Transaction{
			OrgID:         in.OrgID,
			Type:          txn.Type,
			Category:      txn.Category,
			Amount:        txn.Amount,
			Date:          txn.Date,
			Counterparty:  txn.Counterparty,
			BankAccountID: txn.BankAccountID,
			Status:        txn.Status,
			RefKind:       txn.RefKind,
			RefID:         txn.RefID,
		})
	}
	for _, delta := range in.Deltas {
		acc, ok := t.repo.accounts[delta.AccountID]
		if !ok || acc.OrgID != in.OrgID {
			return shared.ErrNotFound
		}
		acc.Balance += delta.Amount
		t.repo.accounts[delta.AccountID] = acc
	}
	return nil
}

type stubBillingEvents struct {
	paid []InvoicePaidEvent
}

func (e *stubBillingEvents) InvoicePaid(ctx context.Context, evt InvoicePaidEvent) error {
	e.paid = append(e.paid, evt)
	return nil
}

var billingActor = shared.Actor{ID: 30, Role: "finance", OrgID: 1}

func newBillingService(repo *memoryBillingRepo, events *stubBillingEvents) *Service {
	seq := sequence.NewMemoryGenerator()
	fixed := func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	seq.WithNow(fixed)
	svc := NewService(repo, seq, nil, events)
	svc.WithNow(fixed)
	return svc
}

func sampleInvoice(t *testing.T, svc *Service) VendorInvoice {
	t.Helper()
	inv, err := svc.Create(context.Background(), billingActor, CreateInvoiceInput{
		VendorID:        7,
		VendorInvoiceNo: "ACME-2025-88",
		Amount:          1000,
		TaxAmount:       180,
	})
	require.NoError(t, err)
	return inv
}

func TestCreateInvoice(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo, &stubBillingEvents{})

	inv := sampleInvoice(t, svc)
	require.Equal(t, "INV-2025-0001", inv.Number)
	require.Equal(t, InvoiceStatusPending, inv.Status)
	require.Equal(t, int64(100000), inv.Amount)
	require.Equal(t, int64(118000), inv.TotalAmount)
}

func TestCreateInvoiceDuplicateNumber(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo, &stubBillingEvents{})

	sampleInvoice(t, svc)
	_, err := svc.Create(context.Background(), billingActor, CreateInvoiceInput{
		VendorID:        7,
		VendorInvoiceNo: "ACME-2025-88",
		Amount:          500,
	})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateInvoiceUnknownVendor(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo, &stubBillingEvents{})

	_, err := svc.Create(context.Background(), billingActor, CreateInvoiceInput{
		VendorID:        999,
		VendorInvoiceNo: "X-1",
		Amount:          100,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApproveInvoice(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo, &stubBillingEvents{})
	ctx := context.Background()

	inv := sampleInvoice(t, svc)
	approved, err := svc.Approve(ctx, billingActor, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	require.Equal(t, billingActor.ID, *approved.ApprovedBy)

	// A second approval is not a legal transition.
	_, err = svc.Approve(ctx, billingActor, inv.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestPayInvoicePostsExpenseAndDecrementsBank(t *testing.T) {
	repo := newMemoryBillingRepo()
	events := &stubBillingEvents{}
	svc := newBillingService(repo, events)
	ctx := context.Background()

	inv := sampleInvoice(t, svc)
	_, err := svc.Approve(ctx, billingActor, inv.ID)
	require.NoError(t, err)

	paid, err := svc.Pay(ctx, billingActor, inv.ID, PayInvoiceInput{
		BankAccountID: 1,
		Method:        "bank_transfer",
		Reference:     "TRX-555",
	})
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	require.Equal(t, int64(500000-118000), repo.accounts[1].Balance)
	require.Len(t, repo.txns, 1)
	txn := repo.txns[0]
	require.Equal(t, ledger.TxnTypeExpense, txn.Type)
	require.Equal(t, int64(118000), txn.Amount)
	require.Equal(t, "vendor_invoice", txn.RefKind)
	require.Equal(t, inv.ID, txn.RefID)

	require.Len(t, events.paid, 1)
	require.Equal(t, inv.Number, events.paid[0].Number)
}

func TestPayInvoiceWithoutApproval(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo, &stubBillingEvents{})

	// Approval is advisory; a pending invoice can be paid directly.
	inv := sampleInvoice(t, svc)
	paid, err := svc.Pay(context.Background(), billingActor, inv.ID, PayInvoiceInput{
		BankAccountID: 1,
		Method:        "bank_transfer",
	})
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, paid.Status)
}

func TestPayInvoiceTwice(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo, &stubBillingEvents{})
	ctx := context.Background()

	inv := sampleInvoice(t, svc)
	_, err := svc.Pay(ctx, billingActor, inv.ID, PayInvoiceInput{BankAccountID: 1, Method: "bank_transfer"})
	require.NoError(t, err)

	_, err = svc.Pay(ctx, billingActor, inv.ID, PayInvoiceInput{BankAccountID: 1, Method: "bank_transfer"})
	require.ErrorIs(t, err, shared.ErrAlreadyPaid)

	// The second attempt must not post another expense.
	require.Len(t, repo.txns, 1)
	require.Equal(t, int64(500000-118000), repo.accounts[1].Balance)
}

func TestPayInvoiceIsAtomic(t *testing.T) {
	repo := newMemoryBillingRepo()
	repo.failPosting = true
	svc := newBillingService(repo, &stubBillingEvents{})

	inv := sampleInvoice(t, svc)
	_, err := svc.Pay(context.Background(), billingActor, inv.ID, PayInvoiceInput{
		BankAccountID: 1,
		Method:        "bank_transfer",
	})
	require.Error(t, err)

	// A failed posting leaves the invoice unpaid and the bank untouched.
	stored, err := svc.Get(context.Background(), 1, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPending, stored.Status)
	require.Nil(t, stored.PaidAt)
	require.Equal(t, int64(500000), repo.accounts[1].Balance)
	require.Empty(t, repo.txns)
}

func TestPaymentCountsOnceInTrialBalance(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo, &stubBillingEvents{})
	ctx := context.Background()

	// 1180.00 paid from a bank holding 5000.00 must project 3820.00, not
	// the doubled-up 2640.00 of a replay stacked on the mutated balance.
	inv := sampleInvoice(t, svc)
	_, err := svc.Pay(ctx, billingActor, inv.ID, PayInvoiceInput{
		BankAccountID: 1,
		Method:        "bank_transfer",
	})
	require.NoError(t, err)

	var accounts []ledger.Account
	for _, acc := range repo.accounts {
		if acc.OrgID == billingActor.OrgID {
			accounts = append(accounts, acc)
		}
	}
	tb := reports.Build(accounts, repo.txns)

	var bankLine *reports.ReportLine
	for i := range tb.Assets.Lines {
		if tb.Assets.Lines[i].Label == "Operating Bank" {
			bankLine = &tb.Assets.Lines[i]
		}
	}
	require.NotNil(t, bankLine)
	require.Equal(t, int64(382000), bankLine.Amount)
	require.Equal(t, repo.accounts[1].Balance, bankLine.Amount)
	require.Equal(t, int64(118000), tb.Expenses.Total)
}

func TestPayInvoiceNonAssetAccount(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo, &stubBillingEvents{})

	inv := sampleInvoice(t, svc)
	_, err := svc.Pay(context.Background(), billingActor, inv.ID, PayInvoiceInput{
		BankAccountID: 2,
		Method:        "bank_transfer",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPayInvoiceCrossTenantAccount(t *testing.T) {
	repo := newMemoryBillingRepo()
	svc := newBillingService(repo, &stubBillingEvents{})

	inv := sampleInvoice(t, svc)
	_, err := svc.Pay(context.Background(), billingActor, inv.ID, PayInvoiceInput{
		BankAccountID: 3,
		Method:        "bank_transfer",
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, int64(90000), repo.accounts[3].Balance)
}
