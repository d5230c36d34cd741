package ledger

import "time"

// AccountType enumerates ledger account categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// TxnType enumerates transaction directions. Amounts are always positive;
// the sign is implied by the type.
type TxnType string

const (
	TxnTypeIncome  TxnType = "INCOME"
	TxnTypeExpense TxnType = "EXPENSE"
)

// TxnStatus enumerates transaction settlement states.
type TxnStatus string

const (
	TxnStatusPending TxnStatus = "PENDING"
	TxnStatusPaid    TxnStatus = "PAID"
)

// Account models a ledger account. Balance is the stored baseline in minor
// units; the effective balance adds the signed sum of posted transactions
// referencing the account, never a cached total alone.
type Account struct {
	ID            int64
	OrgID         int64
	Code          string
	Name          string
	Type          AccountType
	Balance       int64
	BankName      string
	AccountNumber string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Transaction is an immutable, append-only ledger posting.
type Transaction struct {
	ID            int64
	OrgID         int64
	Type          TxnType
	Category      string
	Amount        int64
	Date          time.Time
	Counterparty  string
	BankAccountID *int64
	Status        TxnStatus
	RefKind       string
	RefID         int64
	CreatedAt     time.Time
}

// Signed returns the transaction amount with its direction applied.
func (t Transaction) Signed() int64 {
	if t.Type == TxnTypeExpense {
		return -t.Amount
	}
	return t.Amount
}
