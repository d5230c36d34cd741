package billing

import "context"

// InvoicePaidEvent announces a settled vendor invoice.
type InvoicePaidEvent struct {
	ID            int64
	OrgID         int64
	Number        string
	VendorID      int64
	TotalAmount   int64
	BankAccountID int64
}

// EventsPort receives billing domain events, delivered only after the
// triggering transaction commits.
type EventsPort interface {
	InvoicePaid(ctx context.Context, evt InvoicePaidEvent) error
}
