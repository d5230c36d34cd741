package reports

import (
	"sort"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/tallyard/tallyard/internal/ledger"
	"github.com/tallyard/tallyard/internal/shared"
)

// ReportLine is one labelled amount inside a bucket. Amount is minor
// units; Pretty is the grouped display rendering.
type ReportLine struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
	Pretty string `json:"pretty"`
}

// Bucket aggregates lines for one account type.
type Bucket struct {
	Type  ledger.AccountType `json:"type"`
	Lines []ReportLine       `json:"lines"`
	Total int64              `json:"total"`
}

// TrialBalance is the read-only four-bucket projection of the ledger.
type TrialBalance struct {
	Assets      Bucket    `json:"assets"`
	Liabilities Bucket    `json:"liabilities"`
	Income      Bucket    `json:"income"`
	Expenses    Bucket    `json:"expenses"`
	GeneratedAt time.Time `json:"generated_at"`
}

var printer = message.NewPrinter(language.English)

func pretty(cents int64) string {
	return printer.Sprint(number.Decimal(shared.FromCents(cents), number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// Build recomputes the projection from accounts and the PAID transaction
// stream. Instrument lines read the stored balance: the posting gateway
// applies every bank-routed flow to its account balance in the same
// transaction that appends it, so replaying those flows on top of the
// balance would count each payment twice. Only bankless flow, which has
// no account to carry it, is replayed as cash in hand. Income and expense
// buckets group transactions by category.
func Build(accounts []ledger.Account, txns []ledger.Transaction) TrialBalance {
	tb := TrialBalance{
		Assets:      Bucket{Type: ledger.AccountTypeAsset},
		Liabilities: Bucket{Type: ledger.AccountTypeLiability},
		Income:      Bucket{Type: ledger.AccountTypeIncome},
		Expenses:    Bucket{Type: ledger.AccountTypeExpense},
	}

	incomeByCategory := make(map[string]int64)
	expenseByCategory := make(map[string]int64)
	var cashInHand int64
	for _, txn := range txns {
		if txn.Status != ledger.TxnStatusPaid {
			continue
		}
		switch txn.Type {
		case ledger.TxnTypeIncome:
			incomeByCategory[txn.Category] += txn.Amount
		case ledger.TxnTypeExpense:
			expenseByCategory[txn.Category] += txn.Amount
		}
		if txn.BankAccountID == nil {
			cashInHand += txn.Signed()
		}
	}

	for _, acc := range accounts {
		switch acc.Type {
		case ledger.AccountTypeAsset:
			appendLine(&tb.Assets, acc.Name, acc.Balance)
		case ledger.AccountTypeLiability:
			appendLine(&tb.Liabilities, acc.Name, acc.Balance)
		}
	}
	if cashInHand != 0 {
		appendLine(&tb.Assets, "Cash in Hand", cashInHand)
	}
	appendCategoryLines(&tb.Income, incomeByCategory)
	appendCategoryLines(&tb.Expenses, expenseByCategory)
	return tb
}

func appendLine(bucket *Bucket, label string, amount int64) {
	bucket.Lines = append(bucket.Lines, ReportLine{Label: label, Amount: amount, Pretty: pretty(amount)})
	bucket.Total += amount
}

func appendCategoryLines(bucket *Bucket, byCategory map[string]int64) {
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		appendLine(bucket, category, byCategory[category])
	}
}
