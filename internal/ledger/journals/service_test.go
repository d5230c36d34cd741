package journals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallyard/tallyard/internal/ledger"
	"github.com/tallyard/tallyard/internal/sequence"
	"github.com/tallyard/tallyard/internal/shared"
)

type memoryJournalRepo struct {
	accounts map[int64]ledger.Account
	entries  map[int64]JournalEntry
	lines    map[int64][]JournalLine
	nextID   int64
}

func newMemoryJournalRepo() *memoryJournalRepo {
	return &memoryJournalRepo{
		accounts: make(map[int64]ledger.Account),
		entries:  make(map[int64]JournalEntry),
		lines:    make(map[int64][]JournalLine),
	}
}

func (r *memoryJournalRepo) List(ctx context.Context, orgID int64) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, e := range r.entries {
		if e.OrgID != orgID {
			continue
		}
		e.Lines = append([]JournalLine(nil), r.lines[e.ID]...)
		out = append(out, e)
	}
	return out, nil
}

func (r *memoryJournalRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Snapshot state so a failed closure leaves nothing applied.
	snapshot := newMemoryJournalRepo()
	for k, v := range r.accounts {
		snapshot.accounts[k] = v
	}
	for k, v := range r.entries {
		snapshot.entries[k] = v
	}
	for k, v := range r.lines {
		snapshot.lines[k] = append([]JournalLine(nil), v...)
	}
	snapshot.nextID = r.nextID
	if err := fn(ctx, &memoryJournalTx{repo: r}); err != nil {
		*r = *snapshot
		return err
	}
	return nil
}

type memoryJournalTx struct {
	repo *memoryJournalRepo
}

func (tx *memoryJournalTx) InsertJournalEntry(ctx context.Context, entry JournalEntry) (int64, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.repo.entries[entry.ID] = entry
	return entry.ID, nil
}

func (tx *memoryJournalTx) InsertJournalLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	for _, line := range lines {
		line.JournalID = entryID
		tx.repo.lines[entryID] = append(tx.repo.lines[entryID], line)
	}
	return nil
}

func (tx *memoryJournalTx) GetAccounts(ctx context.Context, orgID int64, ids []int64) (map[int64]ledger.Account, error) {
	out := make(map[int64]ledger.Account)
	for _, id := range ids {
		acc, ok := tx.repo.accounts[id]
		if !ok || acc.OrgID != orgID {
			return nil, shared.ErrNotFound
		}
		out[id] = acc
	}
	return out, nil
}

func (tx *memoryJournalTx) ApplyPosting(ctx context.Context, in ledger.PostingInput) error {
	for _, delta := range in.Deltas {
		acc, ok := tx.repo.accounts[delta.AccountID]
		if !ok {
			return shared.ErrNotFound
		}
		acc.Balance += delta.Amount
		tx.repo.accounts[delta.AccountID] = acc
	}
	return nil
}

func testActor() shared.Actor {
	return shared.Actor{ID: 9, Role: "finance", OrgID: 1}
}

func newJournalService(repo *memoryJournalRepo) *Service {
	gen := sequence.NewMemoryGenerator()
	gen.WithNow(func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) })
	svc := NewService(repo, gen, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) })
	return svc
}

func TestCreateBalancedJournal(t *testing.T) {
	repo := newMemoryJournalRepo()
	repo.accounts[1] = ledger.Account{ID: 1, OrgID: 1, Code: "1000", Name: "Bank", Type: ledger.AccountTypeAsset, Balance: 500000}
	repo.accounts[2] = ledger.Account{ID: 2, OrgID: 1, Code: "5000", Name: "Repairs", Type: ledger.AccountTypeExpense}
	svc := newJournalService(repo)

	entry, err := svc.Create(context.Background(), testActor(), CreateInput{
		Narration: "lift repair accrual",
		Lines: []LineInput{
			{AccountID: 2, Debit: 250.50},
			{AccountID: 1, Credit: 250.50},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "JV-2025-0001", entry.Number)
	require.Equal(t, JournalStatusPosted, entry.Status)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, "5000", entry.Lines[0].AccountCode)

	// Debit grows the expense account, credit shrinks the asset.
	require.Equal(t, int64(25050), repo.accounts[2].Balance)
	require.Equal(t, int64(500000-25050), repo.accounts[1].Balance)
}

func TestCreateUnbalancedJournalRejected(t *testing.T) {
	repo := newMemoryJournalRepo()
	repo.accounts[1] = ledger.Account{ID: 1, OrgID: 1, Code: "1000", Name: "Bank", Type: ledger.AccountTypeAsset, Balance: 100000}
	repo.accounts[2] = ledger.Account{ID: 2, OrgID: 1, Code: "5000", Name: "Repairs", Type: ledger.AccountTypeExpense}
	svc := newJournalService(repo)

	_, err := svc.Create(context.Background(), testActor(), CreateInput{
		Narration: "broken entry",
		Lines: []LineInput{
			{AccountID: 2, Debit: 100},
			{AccountID: 1, Credit: 90},
		},
	})
	var unbalanced *shared.UnbalancedError
	require.ErrorAs(t, err, &unbalanced)
	require.Equal(t, int64(10000), unbalanced.Debit)
	require.Equal(t, int64(9000), unbalanced.Credit)

	// No ledger effect is observable.
	require.Equal(t, int64(100000), repo.accounts[1].Balance)
	require.Equal(t, int64(0), repo.accounts[2].Balance)
	require.Empty(t, repo.entries)
}

func TestCreateWithinToleranceAccepted(t *testing.T) {
	repo := newMemoryJournalRepo()
	repo.accounts[1] = ledger.Account{ID: 1, OrgID: 1, Code: "1000", Name: "Bank", Type: ledger.AccountTypeAsset}
	repo.accounts[2] = ledger.Account{ID: 2, OrgID: 1, Code: "5000", Name: "Repairs", Type: ledger.AccountTypeExpense}
	svc := newJournalService(repo)

	_, err := svc.Create(context.Background(), testActor(), CreateInput{
		Narration: "rounding residue",
		Lines: []LineInput{
			{AccountID: 2, Debit: 100.00},
			{AccountID: 1, Credit: 99.99},
		},
	})
	require.NoError(t, err)
}

func TestCreateRejectsTooFewLines(t *testing.T) {
	svc := newJournalService(newMemoryJournalRepo())
	_, err := svc.Create(context.Background(), testActor(), CreateInput{
		Narration: "single",
		Lines:     []LineInput{{AccountID: 1, Debit: 10}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateCrossTenantAccountRejected(t *testing.T) {
	repo := newMemoryJournalRepo()
	repo.accounts[1] = ledger.Account{ID: 1, OrgID: 1, Code: "1000", Name: "Bank", Type: ledger.AccountTypeAsset}
	repo.accounts[2] = ledger.Account{ID: 2, OrgID: 2, Code: "5000", Name: "Other org", Type: ledger.AccountTypeExpense}
	svc := newJournalService(repo)

	_, err := svc.Create(context.Background(), testActor(), CreateInput{
		Narration: "crosses orgs",
		Lines: []LineInput{
			{AccountID: 2, Debit: 50},
			{AccountID: 1, Credit: 50},
		},
	})
	require.True(t, errors.Is(err, shared.ErrNotFound))
	require.Empty(t, repo.entries)
}
