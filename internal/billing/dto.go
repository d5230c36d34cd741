package billing

import (
	"fmt"
	"time"

	"github.com/tallyard/tallyard/internal/shared"
)

// CreateInvoiceInput describes a vendor invoice registration. Amounts are
// major currency units.
type CreateInvoiceInput struct {
	VendorID        int64
	VendorInvoiceNo string
	POID            *int64
	ReceiptID       *int64
	Amount          float64
	TaxAmount       float64
	IssueDate       time.Time
	DueDate         *time.Time
}

// Validate checks creation invariants before any mutation.
func (in CreateInvoiceInput) Validate() error {
	if in.VendorID == 0 {
		return fmt.Errorf("%w: vendor required", shared.ErrValidation)
	}
	if in.VendorInvoiceNo == "" {
		return fmt.Errorf("%w: vendor invoice number required", shared.ErrValidation)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	if in.TaxAmount < 0 {
		return fmt.Errorf("%w: negative tax amount", shared.ErrValidation)
	}
	return nil
}

// PayInvoiceInput describes a payment instruction.
type PayInvoiceInput struct {
	BankAccountID int64
	Method        string
	Reference     string
	PaidAt        time.Time
}

// Validate checks payment invariants before any mutation.
func (in PayInvoiceInput) Validate() error {
	if in.BankAccountID == 0 {
		return fmt.Errorf("%w: bank account required", shared.ErrValidation)
	}
	if in.Method == "" {
		return fmt.Errorf("%w: payment method required", shared.ErrValidation)
	}
	return nil
}
