package billing

import "time"

// InvoiceStatus enumerates the vendor invoice lifecycle. Approval is an
// advisory gate; payment requires only that the invoice is not already
// paid.
type InvoiceStatus string

const (
	InvoiceStatusPending  InvoiceStatus = "PENDING"
	InvoiceStatusApproved InvoiceStatus = "APPROVED"
	InvoiceStatusPaid     InvoiceStatus = "PAID"
)

// VendorInvoice models a payable received from a vendor. The pair
// (vendor, vendor invoice number) is unique per org; Number is the
// internal document number. Payment fields are set once, by Pay.
type VendorInvoice struct {
	ID              int64
	OrgID           int64
	Number          string
	VendorID        int64
	VendorInvoiceNo string
	POID            *int64
	ReceiptID       *int64
	Amount          int64
	TaxAmount       int64
	TotalAmount     int64
	Status          InvoiceStatus
	IssueDate       time.Time
	DueDate         *time.Time
	PaidAt          *time.Time
	PaymentMethod   string
	PaymentRef      string
	BankAccountID   *int64
	ApprovedBy      *int64
	CreatedAt       time.Time
}
