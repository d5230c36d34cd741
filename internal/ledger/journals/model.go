package journals

import "time"

// JournalStatus enumerates journal lifecycle values. Entries post
// immediately; DRAFT exists for imported documents awaiting review.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "DRAFT"
	JournalStatusPosted JournalStatus = "POSTED"
)

// JournalEntry captures a manual balanced posting.
type JournalEntry struct {
	ID        int64
	OrgID     int64
	Number    string
	Date      time.Time
	Narration string
	Status    JournalStatus
	PostedBy  int64
	CreatedAt time.Time
	Lines     []JournalLine
}

// JournalLine stores a debit or credit amount for an account, in minor
// units. Account code and name are resolved on reads.
type JournalLine struct {
	ID          int64
	JournalID   int64
	AccountID   int64
	AccountCode string
	AccountName string
	Debit       int64
	Credit      int64
}
