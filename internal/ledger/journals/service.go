package journals

import (
	"context"
	"fmt"
	"time"

	"github.com/tallyard/tallyard/internal/ledger"
	"github.com/tallyard/tallyard/internal/sequence"
	"github.com/tallyard/tallyard/internal/shared"
)

// Repository describes persistence used by Service.
type Repository interface {
	List(ctx context.Context, orgID int64) ([]JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes operations available within a posting transaction.
type TxRepository interface {
	InsertJournalEntry(ctx context.Context, entry JournalEntry) (int64, error)
	InsertJournalLines(ctx context.Context, entryID int64, lines []JournalLine) error
	GetAccounts(ctx context.Context, orgID int64, ids []int64) (map[int64]ledger.Account, error)
	ApplyPosting(ctx context.Context, in ledger.PostingInput) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// EventsPort receives journal domain events after commit.
type EventsPort interface {
	JournalPosted(ctx context.Context, entry JournalEntry) error
}

// Service validates and posts manual balanced journal entries.
type Service struct {
	repo   Repository
	seq    sequence.Generator
	audit  AuditPort
	events EventsPort
	now    func() time.Time
}

// NewService constructs the journal service.
func NewService(repo Repository, seq sequence.Generator, audit AuditPort, events EventsPort) *Service {
	return &Service{repo: repo, seq: seq, audit: audit, events: events, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create posts a balanced journal entry and materializes its ledger
// effects in the same transaction. There is no draft workflow; a valid
// entry posts immediately.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	number, err := s.seq.Next(ctx, actor.OrgID, sequence.KindJournalVoucher)
	if err != nil {
		return JournalEntry{}, err
	}
	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	entry := JournalEntry{
		OrgID:     actor.OrgID,
		Number:    number,
		Date:      date,
		Narration: input.Narration,
		Status:    JournalStatusPosted,
		PostedBy:  actor.ID,
	}
	lines := make([]JournalLine, 0, len(input.Lines))
	accountIDs := make([]int64, 0, len(input.Lines))
	for _, in := range input.Lines {
		lines = append(lines, JournalLine{
			AccountID: in.AccountID,
			Debit:     shared.ToCents(in.Debit),
			Credit:    shared.ToCents(in.Credit),
		})
		accountIDs = append(accountIDs, in.AccountID)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		accounts, err := tx.GetAccounts(ctx, actor.OrgID, accountIDs)
		if err != nil {
			return err
		}
		deltas := make([]ledger.BalanceDelta, 0, len(lines))
		for idx, line := range lines {
			acc, ok := accounts[line.AccountID]
			if !ok {
				return fmt.Errorf("%w: account %d", shared.ErrNotFound, line.AccountID)
			}
			lines[idx].AccountCode = acc.Code
			lines[idx].AccountName = acc.Name
			deltas = append(deltas, ledger.BalanceDelta{
				AccountID: line.AccountID,
				Amount:    lineDelta(acc.Type, line),
			})
		}
		entryID, err := tx.InsertJournalEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = entryID
		if err := tx.InsertJournalLines(ctx, entryID, lines); err != nil {
			return err
		}
		return tx.ApplyPosting(ctx, ledger.PostingInput{OrgID: actor.OrgID, Deltas: deltas})
	})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			OrgID:    actor.OrgID,
			ActorID:  actor.ID,
			Action:   "journal.post",
			Entity:   "journal_entry",
			EntityID: entry.Number,
			Meta:     map[string]any{"lines": len(lines)},
			At:       s.now(),
		})
	}
	if s.events != nil {
		_ = s.events.JournalPosted(ctx, entry)
	}
	return entry, nil
}

// List returns entries of an org ordered by date descending with resolved
// line and account detail.
func (s *Service) List(ctx context.Context, orgID int64) ([]JournalEntry, error) {
	return s.repo.List(ctx, orgID)
}

// lineDelta converts a journal line into a signed baseline adjustment.
// Debits increase asset and expense accounts; credits increase liability
// and income accounts.
func lineDelta(accType ledger.AccountType, line JournalLine) int64 {
	switch accType {
	case ledger.AccountTypeAsset, ledger.AccountTypeExpense:
		return line.Debit - line.Credit
	default:
		return line.Credit - line.Debit
	}
}
