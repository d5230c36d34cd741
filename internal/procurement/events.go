package procurement

import "context"

// PRApprovedEvent announces a purchase request reaching APPROVED.
type PRApprovedEvent struct {
	ID         int64
	OrgID      int64
	Number     string
	Title      string
	ApprovedBy int64
}

// POCreatedEvent announces a new purchase order, with the originating
// purchase request when converted.
type POCreatedEvent struct {
	ID          int64
	OrgID       int64
	Number      string
	VendorID    int64
	PRNumber    string
	TotalAmount int64
}

// ReceiptRecordedEvent announces a recorded goods or service receipt.
type ReceiptRecordedEvent struct {
	ID     int64
	OrgID  int64
	Number string
	Type   ReceiptType
	Status ReceiptStatus
}

// EventsPort receives procurement domain events. Implementations deliver
// them to the notification collaborator; events are emitted only after the
// triggering transaction commits.
type EventsPort interface {
	PRApproved(ctx context.Context, evt PRApprovedEvent) error
	POCreated(ctx context.Context, evt POCreatedEvent) error
	ReceiptRecorded(ctx context.Context, evt ReceiptRecordedEvent) error
}
