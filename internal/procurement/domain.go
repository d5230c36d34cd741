package procurement

import "time"

// Priority levels for purchase requests.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Purchase request lifecycle statuses. The request moves through two
// approval stages before conversion; REJECTED is terminal from either
// pending stage and CONVERTED_PO is set only by PO creation.
type PRStatus string

const (
	PRStatusPendingCM      PRStatus = "PENDING_CM"
	PRStatusPendingFinance PRStatus = "PENDING_FINANCE"
	PRStatusApproved       PRStatus = "APPROVED"
	PRStatusRejected       PRStatus = "REJECTED"
	PRStatusConvertedPO    PRStatus = "CONVERTED_PO"
)

// prEdges holds the caller-reachable transitions. APPROVED→CONVERTED_PO is
// intentionally absent: only purchase order creation takes that edge.
var prEdges = map[PRStatus][]PRStatus{
	PRStatusPendingCM:      {PRStatusPendingFinance, PRStatusRejected},
	PRStatusPendingFinance: {PRStatusApproved, PRStatusRejected},
}

// CanTransitionPR reports whether from→to is a legal caller transition.
func CanTransitionPR(from, to PRStatus) bool {
	for _, next := range prEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Purchase order lifecycle statuses.
type POStatus string

const (
	POStatusDraft             POStatus = "DRAFT"
	POStatusSent              POStatus = "SENT"
	POStatusConfirmed         POStatus = "CONFIRMED"
	POStatusPartiallyReceived POStatus = "PARTIALLY_RECEIVED"
	POStatusDelivered         POStatus = "DELIVERED"
	POStatusCancelled         POStatus = "CANCELLED"
)

// poEdges holds operator-reachable transitions. Receipt feedback normally
// drives PARTIALLY_RECEIVED and DELIVERED, but an operator override is
// permitted.
var poEdges = map[POStatus][]POStatus{
	POStatusDraft:             {POStatusSent, POStatusCancelled},
	POStatusSent:              {POStatusConfirmed, POStatusCancelled},
	POStatusConfirmed:         {POStatusPartiallyReceived, POStatusDelivered, POStatusCancelled},
	POStatusPartiallyReceived: {POStatusDelivered, POStatusCancelled},
}

// CanTransitionPO reports whether from→to is a legal transition.
func CanTransitionPO(from, to POStatus) bool {
	for _, next := range poEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TerminalPO reports whether the status admits no further transitions.
func TerminalPO(status POStatus) bool {
	return status == POStatusDelivered || status == POStatusCancelled
}

// ReceiptType distinguishes goods from service receipts; each kind draws
// from its own document number series.
type ReceiptType string

const (
	ReceiptTypeGoods   ReceiptType = "GOODS"
	ReceiptTypeService ReceiptType = "SERVICE"
)

// ItemState tracks per-line fulfillment on a receipt.
type ItemState string

const (
	ItemStatePending  ItemState = "pending"
	ItemStatePartial  ItemState = "partial"
	ItemStateComplete ItemState = "complete"
)

// ValidItemState reports whether s is a known fulfillment state.
func ValidItemState(s ItemState) bool {
	return s == ItemStatePending || s == ItemStatePartial || s == ItemStateComplete
}

// ReceiptStatus is the aggregate derived from line item states.
type ReceiptStatus string

const (
	ReceiptStatusPending   ReceiptStatus = "PENDING"
	ReceiptStatusPartial   ReceiptStatus = "PARTIAL"
	ReceiptStatusCompleted ReceiptStatus = "COMPLETED"
)

// QCStatus tracks the quality check independent of fulfillment.
type QCStatus string

const (
	QCStatusPending QCStatus = "PENDING"
	QCStatusPassed  QCStatus = "PASSED"
	QCStatusFailed  QCStatus = "FAILED"
)

// ValidQCStatus reports whether s is a known quality-check status.
func ValidQCStatus(s QCStatus) bool {
	return s == QCStatusPending || s == QCStatusPassed || s == QCStatusFailed
}

// LineItem is one requested or ordered position. UnitPrice is minor units.
type LineItem struct {
	ID          int64
	Description string
	Qty         float64
	UnitPrice   int64
}

// PurchaseRequest domain model. Approver references record which actor
// performed the community-manager action and the finance action.
type PurchaseRequest struct {
	ID              int64
	OrgID           int64
	Number          string
	Title           string
	Department      string
	Priority        Priority
	Status          PRStatus
	EstimatedAmount int64
	RequestedBy     int64
	CMActorID       *int64
	CMActedAt       *time.Time
	FinanceActorID  *int64
	FinanceActedAt  *time.Time
	CreatedAt       time.Time
	Items           []LineItem
}

// PurchaseOrder domain model. PRID links the at-most-one originating
// purchase request.
type PurchaseOrder struct {
	ID               int64
	OrgID            int64
	Number           string
	Status           POStatus
	VendorID         int64
	PRID             *int64
	Subtotal         int64
	TaxAmount        int64
	TotalAmount      int64
	OrderDate        time.Time
	ExpectedDelivery *time.Time
	DeliveredAt      *time.Time
	PaymentTerms     string
	CreatedAt        time.Time
	Items            []LineItem
}

// ReceiptItem is a received position with its fulfillment state.
type ReceiptItem struct {
	ID          int64
	Description string
	Qty         float64
	UnitPrice   int64
	State       ItemState
}

// Receipt records fulfillment against a purchase order. Immutable once
// created except the quality-check status and the invoice cross-reference.
type Receipt struct {
	ID         int64
	OrgID      int64
	Number     string
	Type       ReceiptType
	POID       *int64
	VendorID   int64
	Status     ReceiptStatus
	Quality    QCStatus
	InvoiceRef string
	ReceivedBy int64
	ReceivedAt time.Time
	Items      []ReceiptItem
}

// AggregateStatus derives the receipt status from its line items: any
// pending item keeps the receipt PENDING, otherwise any partial item makes
// it PARTIAL, otherwise COMPLETED.
func AggregateStatus(items []ReceiptItem) ReceiptStatus {
	anyPartial := false
	for _, item := range items {
		switch item.State {
		case ItemStatePending:
			return ReceiptStatusPending
		case ItemStatePartial:
			anyPartial = true
		}
	}
	if anyPartial {
		return ReceiptStatusPartial
	}
	return ReceiptStatusCompleted
}
