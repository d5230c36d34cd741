package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("invalid input")
	// ErrInvalidTransition indicates an illegal state-machine edge.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrAlreadyConverted guards the one-way PR to PO conversion.
	ErrAlreadyConverted = errors.New("purchase request already converted")
	// ErrAlreadyPaid guards repeated invoice payment.
	ErrAlreadyPaid = errors.New("invoice already paid")
	// ErrConflict indicates a unique-constraint violation.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates a referenced entity is absent or belongs to another org.
	ErrNotFound = errors.New("not found")
	// ErrCrossTenant indicates an org mismatch on a referenced entity.
	ErrCrossTenant = errors.New("cross-tenant access denied")
	// ErrStore wraps retryable store-level failures inside atomic blocks.
	ErrStore = errors.New("store failure")
)

// UnbalancedError reports the debit and credit sums of a rejected journal.
// Sums are carried in minor units.
type UnbalancedError struct {
	Debit  int64
	Credit int64
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("journal lines must balance: debit=%s credit=%s", FormatAmount(e.Debit), FormatAmount(e.Credit))
}
