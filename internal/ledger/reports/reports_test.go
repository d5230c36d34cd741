package reports

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tallyard/tallyard/internal/ledger"
)

func ptr(v int64) *int64 { return &v }

func sampleAccounts() []ledger.Account {
	// The stored bank balance already reflects the bank-routed flows
	// below: the posting gateway applies delta and transaction together.
	return []ledger.Account{
		{ID: 1, OrgID: 1, Code: "1000", Name: "Operating Bank", Type: ledger.AccountTypeAsset, Balance: 550000},
		{ID: 2, OrgID: 1, Code: "2000", Name: "Security Deposits", Type: ledger.AccountTypeLiability, Balance: 120000},
	}
}

func sampleTxns() []ledger.Transaction {
	return []ledger.Transaction{
		{ID: 1, OrgID: 1, Type: ledger.TxnTypeIncome, Category: "Maintenance Fees", Amount: 80000, Status: ledger.TxnStatusPaid, BankAccountID: ptr(1)},
		{ID: 2, OrgID: 1, Type: ledger.TxnTypeExpense, Category: "Repairs", Amount: 30000, Status: ledger.TxnStatusPaid, BankAccountID: ptr(1)},
		{ID: 3, OrgID: 1, Type: ledger.TxnTypeIncome, Category: "Maintenance Fees", Amount: 5000, Status: ledger.TxnStatusPaid},
		{ID: 4, OrgID: 1, Type: ledger.TxnTypeExpense, Category: "Stationery", Amount: 1000, Status: ledger.TxnStatusPaid},
		// Pending rows never count.
		{ID: 5, OrgID: 1, Type: ledger.TxnTypeExpense, Category: "Repairs", Amount: 99999, Status: ledger.TxnStatusPending},
	}
}

func TestBuildTrialBalance(t *testing.T) {
	tb := Build(sampleAccounts(), sampleTxns())

	// The bank line is the stored balance, untouched by replay; only
	// bankless flow lands in cash.
	require.Len(t, tb.Assets.Lines, 2)
	require.Equal(t, "Operating Bank", tb.Assets.Lines[0].Label)
	require.Equal(t, int64(550000), tb.Assets.Lines[0].Amount)
	require.Equal(t, "Cash in Hand", tb.Assets.Lines[1].Label)
	require.Equal(t, int64(5000-1000), tb.Assets.Lines[1].Amount)

	// Bank-routed flows must not be added on top of the balance the
	// posting gateway already maintains.
	require.Equal(t, int64(550000+4000), tb.Assets.Total)

	require.Equal(t, int64(120000), tb.Liabilities.Total)

	require.Len(t, tb.Income.Lines, 1)
	require.Equal(t, int64(85000), tb.Income.Total)

	require.Len(t, tb.Expenses.Lines, 2)
	require.Equal(t, int64(31000), tb.Expenses.Total)
	require.Equal(t, "Repairs", tb.Expenses.Lines[0].Label)
	require.Equal(t, "Stationery", tb.Expenses.Lines[1].Label)
}

type stubReportRepo struct {
	accounts []ledger.Account
	txns     []ledger.Transaction
	calls    int
}

func (r *stubReportRepo) ListAccounts(ctx context.Context, orgID int64) ([]ledger.Account, error) {
	return r.accounts, nil
}

func (r *stubReportRepo) ListPaidTransactions(ctx context.Context, orgID int64, scanCap int) ([]ledger.Transaction, error) {
	r.calls++
	return r.txns, nil
}

func TestTrialBalanceCaching(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := &stubReportRepo{accounts: sampleAccounts(), txns: sampleTxns()}
	svc := NewService(repo, client, time.Minute, 1000)
	svc.WithNow(func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) })
	ctx := context.Background()

	first, err := svc.TrialBalance(ctx, 1)
	require.NoError(t, err)
	second, err := svc.TrialBalance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first.Assets.Total, second.Assets.Total)
	require.Equal(t, 1, repo.calls, "second read must come from cache")

	svc.Invalidate(ctx, 1)
	_, err = svc.TrialBalance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}
