package journals

import (
	"fmt"
	"time"

	"github.com/tallyard/tallyard/internal/shared"
)

// LineInput describes a journal line for a posting request. Amounts are
// major currency units; they are converted to minor units before any
// arithmetic.
type LineInput struct {
	AccountID int64
	Debit     float64
	Credit    float64
}

// CreateInput groups fields required to post a journal entry.
type CreateInput struct {
	Date      time.Time
	Narration string
	Lines     []LineInput
}

// balanceTolerance is one minor unit, the 0.01 currency-unit tolerance.
const balanceTolerance = 1

// Validate ensures the entry has at least two lines and balances within
// tolerance. It returns UnbalancedError carrying both sums otherwise.
func (in CreateInput) Validate() error {
	if len(in.Lines) < 2 {
		return fmt.Errorf("%w: journal requires at least two lines", shared.ErrValidation)
	}
	var debit, credit int64
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("%w: line %d missing account", shared.ErrValidation, idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("%w: line %d negative amount", shared.ErrValidation, idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("%w: line %d cannot be both debit and credit", shared.ErrValidation, idx)
		}
		debit += shared.ToCents(line.Debit)
		credit += shared.ToCents(line.Credit)
	}
	if diff := debit - credit; diff > balanceTolerance || diff < -balanceTolerance {
		return &shared.UnbalancedError{Debit: debit, Credit: credit}
	}
	return nil
}
