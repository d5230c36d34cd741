package procurement

import (
	"fmt"
	"time"

	"github.com/tallyard/tallyard/internal/shared"
)

// LineItemInput describes a requested or ordered position. Prices are
// major currency units.
type LineItemInput struct {
	Description string
	Qty         float64
	UnitPrice   float64
}

func (in LineItemInput) validate(idx int) error {
	if in.Description == "" {
		return fmt.Errorf("%w: item %d missing description", shared.ErrValidation, idx)
	}
	if in.Qty <= 0 {
		return fmt.Errorf("%w: item %d quantity must be positive", shared.ErrValidation, idx)
	}
	if in.UnitPrice < 0 {
		return fmt.Errorf("%w: item %d negative unit price", shared.ErrValidation, idx)
	}
	return nil
}

// CreatePRInput describes a purchase request creation payload.
type CreatePRInput struct {
	Title           string
	Department      string
	Priority        Priority
	EstimatedAmount float64
	Items           []LineItemInput
}

// Validate checks creation invariants before any mutation.
func (in CreatePRInput) Validate() error {
	if in.Title == "" {
		return fmt.Errorf("%w: title required", shared.ErrValidation)
	}
	if in.Department == "" {
		return fmt.Errorf("%w: department required", shared.ErrValidation)
	}
	if !ValidPriority(in.Priority) {
		return fmt.Errorf("%w: unknown priority %q", shared.ErrValidation, in.Priority)
	}
	if in.EstimatedAmount < 0 {
		return fmt.Errorf("%w: estimated amount must not be negative", shared.ErrValidation)
	}
	for idx, item := range in.Items {
		if err := item.validate(idx); err != nil {
			return err
		}
	}
	return nil
}

// CreatePOInput defines data to create a purchase order, directly or from
// an approved purchase request.
type CreatePOInput struct {
	VendorID         int64
	PRID             *int64
	Items            []LineItemInput
	TaxAmount        float64
	ExpectedDelivery *time.Time
	PaymentTerms     string
}

// Validate checks creation invariants before any mutation.
func (in CreatePOInput) Validate() error {
	if in.VendorID == 0 {
		return fmt.Errorf("%w: vendor required", shared.ErrValidation)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: minimal 1 line", shared.ErrValidation)
	}
	if in.TaxAmount < 0 {
		return fmt.Errorf("%w: negative tax amount", shared.ErrValidation)
	}
	for idx, item := range in.Items {
		if err := item.validate(idx); err != nil {
			return err
		}
	}
	return nil
}

// SubtotalCents computes the order line total in minor units. Each line
// is priced in fixed point before summing.
func (in CreatePOInput) SubtotalCents() int64 {
	var total int64
	for _, item := range in.Items {
		total += shared.LineCents(item.Qty, item.UnitPrice)
	}
	return total
}

// ReceiptItemInput describes one received position with its fulfillment
// state.
type ReceiptItemInput struct {
	Description string
	Qty         float64
	UnitPrice   float64
	State       ItemState
}

// CreateReceiptInput describes receipt creation.
type CreateReceiptInput struct {
	Type       ReceiptType
	POID       *int64
	VendorID   int64
	ReceivedAt time.Time
	Items      []ReceiptItemInput
}

// Validate checks creation invariants before any mutation.
func (in CreateReceiptInput) Validate() error {
	if in.Type != ReceiptTypeGoods && in.Type != ReceiptTypeService {
		return fmt.Errorf("%w: unknown receipt type %q", shared.ErrValidation, in.Type)
	}
	if in.VendorID == 0 {
		return fmt.Errorf("%w: vendor required", shared.ErrValidation)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: minimal 1 line", shared.ErrValidation)
	}
	for idx, item := range in.Items {
		if item.Description == "" {
			return fmt.Errorf("%w: item %d missing description", shared.ErrValidation, idx)
		}
		if item.Qty <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", shared.ErrValidation, idx)
		}
		if !ValidItemState(item.State) {
			return fmt.Errorf("%w: item %d unknown state %q", shared.ErrValidation, idx, item.State)
		}
	}
	return nil
}
