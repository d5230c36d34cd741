package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/tallyard/tallyard/internal/sequence"
	"github.com/tallyard/tallyard/internal/shared"
)

// ApprovalStage names the PR approval stage being stamped.
type ApprovalStage string

const (
	StageCM      ApprovalStage = "cm"
	StageFinance ApprovalStage = "finance"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPR(ctx context.Context, orgID, id int64) (PurchaseRequest, error)
	GetPO(ctx context.Context, orgID, id int64) (PurchaseOrder, error)
	GetReceipt(ctx context.Context, orgID, id int64) (Receipt, error)
	ListPRs(ctx context.Context, orgID int64, limit, offset int) ([]PurchaseRequest, error)
	ListPOs(ctx context.Context, orgID int64, limit, offset int) ([]PurchaseOrder, error)
	ListReceipts(ctx context.Context, orgID int64, limit, offset int) ([]Receipt, error)
	VendorExists(ctx context.Context, orgID, vendorID int64) (bool, error)
	TotalOrderValue(ctx context.Context, orgID int64, from, to time.Time) (int64, error)
	UpdateReceiptQuality(ctx context.Context, orgID, id int64, status QCStatus) error
	UpdateReceiptInvoiceRef(ctx context.Context, orgID, id int64, ref string) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreatePR(ctx context.Context, pr PurchaseRequest) (int64, error)
	InsertPRItem(ctx context.Context, prID int64, item LineItem) error
	GetPRForUpdate(ctx context.Context, orgID, id int64) (PurchaseRequest, error)
	UpdatePRStatus(ctx context.Context, id int64, status PRStatus) error
	SetPRApprover(ctx context.Context, id int64, stage ApprovalStage, actorID int64, at time.Time) error
	CreatePO(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertPOItem(ctx context.Context, poID int64, item LineItem) error
	GetPOForUpdate(ctx context.Context, orgID, id int64) (PurchaseOrder, error)
	UpdatePOStatus(ctx context.Context, id int64, status POStatus, deliveredAt *time.Time) error
	CreateReceipt(ctx context.Context, rc Receipt) (int64, error)
	InsertReceiptItem(ctx context.Context, receiptID int64, item ReceiptItem) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the purchase request, purchase order and receipt
// engines. Cross-entity side effects (PR conversion, receipt feedback)
// happen inside the same transaction as the primary write.
type Service struct {
	repo   RepositoryPort
	seq    sequence.Generator
	audit  AuditPort
	events EventsPort
	now    func() time.Time
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, seq sequence.Generator, audit AuditPort, events EventsPort) *Service {
	return &Service{repo: repo, seq: seq, audit: audit, events: events, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreatePurchaseRequest persists a new request in PENDING_CM.
func (s *Service) CreatePurchaseRequest(ctx context.Context, actor shared.Actor, input CreatePRInput) (PurchaseRequest, error) {
	if err := input.Validate(); err != nil {
		return PurchaseRequest{}, err
	}
	number, err := s.seq.Next(ctx, actor.OrgID, sequence.KindPurchaseRequest)
	if err != nil {
		return PurchaseRequest{}, err
	}
	pr := PurchaseRequest{
		OrgID:           actor.OrgID,
		Number:          number,
		Title:           input.Title,
		Department:      input.Department,
		Priority:        input.Priority,
		Status:          PRStatusPendingCM,
		EstimatedAmount: shared.ToCents(input.EstimatedAmount),
		RequestedBy:     actor.ID,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		prID, err := tx.CreatePR(ctx, pr)
		if err != nil {
			return err
		}
		pr.ID = prID
		for _, item := range input.Items {
			line := LineItem{Description: item.Description, Qty: item.Qty, UnitPrice: shared.ToCents(item.UnitPrice)}
			if err := tx.InsertPRItem(ctx, prID, line); err != nil {
				return err
			}
			pr.Items = append(pr.Items, line)
		}
		return nil
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	s.recordAudit(ctx, actor, "pr.create", "purchase_request", pr.Number, map[string]any{"priority": pr.Priority})
	return pr, nil
}

// TransitionPurchaseRequest walks one legal approval edge, recording which
// actor performed the stage action. APPROVED→CONVERTED_PO is not reachable
// here; only purchase order creation takes it.
func (s *Service) TransitionPurchaseRequest(ctx context.Context, actor shared.Actor, prID int64, target PRStatus) (PurchaseRequest, error) {
	var pr PurchaseRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPRForUpdate(ctx, actor.OrgID, prID)
		if err != nil {
			return err
		}
		if !CanTransitionPR(current.Status, target) {
			return fmt.Errorf("%w: purchase request %s→%s", shared.ErrInvalidTransition, current.Status, target)
		}
		stage := StageCM
		if current.Status == PRStatusPendingFinance {
			stage = StageFinance
		}
		now := s.now()
		if err := tx.UpdatePRStatus(ctx, prID, target); err != nil {
			return err
		}
		if err := tx.SetPRApprover(ctx, prID, stage, actor.ID, now); err != nil {
			return err
		}
		pr = current
		pr.Status = target
		if stage == StageCM {
			pr.CMActorID = &actor.ID
			pr.CMActedAt = &now
		} else {
			pr.FinanceActorID = &actor.ID
			pr.FinanceActedAt = &now
		}
		return nil
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	s.recordAudit(ctx, actor, "pr.transition", "purchase_request", pr.Number, map[string]any{"to": target})
	if target == PRStatusApproved && s.events != nil {
		_ = s.events.PRApproved(ctx, PRApprovedEvent{ID: pr.ID, OrgID: pr.OrgID, Number: pr.Number, Title: pr.Title, ApprovedBy: actor.ID})
	}
	return pr, nil
}

// CreatePurchaseOrder creates an order, optionally converting an approved
// purchase request. The PR status flip and the PO insert share one
// transaction: both succeed or both fail.
func (s *Service) CreatePurchaseOrder(ctx context.Context, actor shared.Actor, input CreatePOInput) (PurchaseOrder, error) {
	if err := input.Validate(); err != nil {
		return PurchaseOrder{}, err
	}
	exists, err := s.repo.VendorExists(ctx, actor.OrgID, input.VendorID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !exists {
		return PurchaseOrder{}, fmt.Errorf("%w: vendor %d", shared.ErrNotFound, input.VendorID)
	}
	number, err := s.seq.Next(ctx, actor.OrgID, sequence.KindPurchaseOrder)
	if err != nil {
		return PurchaseOrder{}, err
	}
	subtotal := input.SubtotalCents()
	tax := shared.ToCents(input.TaxAmount)
	po := PurchaseOrder{
		OrgID:            actor.OrgID,
		Number:           number,
		Status:           POStatusDraft,
		VendorID:         input.VendorID,
		PRID:             input.PRID,
		Subtotal:         subtotal,
		TaxAmount:        tax,
		TotalAmount:      subtotal + tax,
		OrderDate:        s.now(),
		ExpectedDelivery: input.ExpectedDelivery,
		PaymentTerms:     input.PaymentTerms,
	}
	var prNumber string
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.PRID != nil {
			pr, err := tx.GetPRForUpdate(ctx, actor.OrgID, *input.PRID)
			if err != nil {
				return err
			}
			switch pr.Status {
			case PRStatusApproved:
				// conversion allowed
			case PRStatusConvertedPO:
				return fmt.Errorf("%w: %s", shared.ErrAlreadyConverted, pr.Number)
			default:
				return fmt.Errorf("%w: purchase request %s is %s", shared.ErrInvalidTransition, pr.Number, pr.Status)
			}
			if err := tx.UpdatePRStatus(ctx, pr.ID, PRStatusConvertedPO); err != nil {
				return err
			}
			prNumber = pr.Number
		}
		poID, err := tx.CreatePO(ctx, po)
		if err != nil {
			return err
		}
		po.ID = poID
		for _, item := range input.Items {
			line := LineItem{Description: item.Description, Qty: item.Qty, UnitPrice: shared.ToCents(item.UnitPrice)}
			if err := tx.InsertPOItem(ctx, poID, line); err != nil {
				return err
			}
			po.Items = append(po.Items, line)
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actor, "po.create", "purchase_order", po.Number, map[string]any{"vendor": po.VendorID, "from_pr": prNumber})
	if s.events != nil {
		_ = s.events.POCreated(ctx, POCreatedEvent{ID: po.ID, OrgID: po.OrgID, Number: po.Number, VendorID: po.VendorID, PRNumber: prNumber, TotalAmount: po.TotalAmount})
	}
	return po, nil
}

// SetPurchaseOrderStatus performs an operator-driven transition. Setting
// DELIVERED stamps the delivery timestamp.
func (s *Service) SetPurchaseOrderStatus(ctx context.Context, actor shared.Actor, poID int64, target POStatus) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPOForUpdate(ctx, actor.OrgID, poID)
		if err != nil {
			return err
		}
		if !CanTransitionPO(current.Status, target) {
			return fmt.Errorf("%w: purchase order %s→%s", shared.ErrInvalidTransition, current.Status, target)
		}
		var deliveredAt *time.Time
		if target == POStatusDelivered {
			now := s.now()
			deliveredAt = &now
		}
		if err := tx.UpdatePOStatus(ctx, poID, target, deliveredAt); err != nil {
			return err
		}
		po = current
		po.Status = target
		po.DeliveredAt = deliveredAt
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actor, "po.status", "purchase_order", po.Number, map[string]any{"to": target})
	return po, nil
}

// TotalOrderValue sums totals of non-cancelled orders dated in the window.
func (s *Service) TotalOrderValue(ctx context.Context, orgID int64, from, to time.Time) (int64, error) {
	return s.repo.TotalOrderValue(ctx, orgID, from, to)
}

// CreateReceipt records fulfillment and pushes status feedback to the
// linked purchase order inside the same transaction: COMPLETED delivers
// the order, any other aggregate marks it partially received.
func (s *Service) CreateReceipt(ctx context.Context, actor shared.Actor, input CreateReceiptInput) (Receipt, error) {
	if err := input.Validate(); err != nil {
		return Receipt{}, err
	}
	kind := sequence.KindGoodsReceipt
	if input.Type == ReceiptTypeService {
		kind = sequence.KindServiceReceipt
	}
	number, err := s.seq.Next(ctx, actor.OrgID, kind)
	if err != nil {
		return Receipt{}, err
	}
	items := make([]ReceiptItem, 0, len(input.Items))
	for _, in := range input.Items {
		items = append(items, ReceiptItem{Description: in.Description, Qty: in.Qty, UnitPrice: shared.ToCents(in.UnitPrice), State: in.State})
	}
	receivedAt := input.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	rc := Receipt{
		OrgID:      actor.OrgID,
		Number:     number,
		Type:       input.Type,
		POID:       input.POID,
		VendorID:   input.VendorID,
		Status:     AggregateStatus(items),
		Quality:    QCStatusPending,
		ReceivedBy: actor.ID,
		ReceivedAt: receivedAt,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.POID != nil {
			po, err := tx.GetPOForUpdate(ctx, actor.OrgID, *input.POID)
			if err != nil {
				return err
			}
			if po.Status == POStatusCancelled {
				return fmt.Errorf("%w: purchase order %s is cancelled", shared.ErrInvalidTransition, po.Number)
			}
			feedback := POStatusPartiallyReceived
			var deliveredAt *time.Time
			if rc.Status == ReceiptStatusCompleted {
				feedback = POStatusDelivered
				now := s.now()
				deliveredAt = &now
			}
			if err := tx.UpdatePOStatus(ctx, po.ID, feedback, deliveredAt); err != nil {
				return err
			}
		}
		rcID, err := tx.CreateReceipt(ctx, rc)
		if err != nil {
			return err
		}
		rc.ID = rcID
		for _, item := range items {
			if err := tx.InsertReceiptItem(ctx, rcID, item); err != nil {
				return err
			}
		}
		rc.Items = items
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	s.recordAudit(ctx, actor, "receipt.create", "receipt", rc.Number, map[string]any{"type": rc.Type, "status": rc.Status})
	if s.events != nil {
		_ = s.events.ReceiptRecorded(ctx, ReceiptRecordedEvent{ID: rc.ID, OrgID: rc.OrgID, Number: rc.Number, Type: rc.Type, Status: rc.Status})
	}
	return rc, nil
}

// UpdateQualityCheck sets the quality-check status. It has no cascading
// effect on fulfillment.
func (s *Service) UpdateQualityCheck(ctx context.Context, actor shared.Actor, receiptID int64, status QCStatus) error {
	if !ValidQCStatus(status) {
		return fmt.Errorf("%w: unknown quality status %q", shared.ErrValidation, status)
	}
	if err := s.repo.UpdateReceiptQuality(ctx, actor.OrgID, receiptID, status); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "receipt.quality", "receipt", fmt.Sprintf("%d", receiptID), map[string]any{"status": status})
	return nil
}

// SetReceiptInvoiceRef cross-references the vendor invoice number.
func (s *Service) SetReceiptInvoiceRef(ctx context.Context, actor shared.Actor, receiptID int64, ref string) error {
	if ref == "" {
		return fmt.Errorf("%w: invoice reference required", shared.ErrValidation)
	}
	return s.repo.UpdateReceiptInvoiceRef(ctx, actor.OrgID, receiptID, ref)
}

// GetPurchaseRequest loads a request scoped to the actor's org.
func (s *Service) GetPurchaseRequest(ctx context.Context, orgID, id int64) (PurchaseRequest, error) {
	return s.repo.GetPR(ctx, orgID, id)
}

// GetPurchaseOrder loads an order scoped to the actor's org.
func (s *Service) GetPurchaseOrder(ctx context.Context, orgID, id int64) (PurchaseOrder, error) {
	return s.repo.GetPO(ctx, orgID, id)
}

// GetReceipt loads a receipt scoped to the actor's org.
func (s *Service) GetReceipt(ctx context.Context, orgID, id int64) (Receipt, error) {
	return s.repo.GetReceipt(ctx, orgID, id)
}

// ListPurchaseRequests pages requests for an org.
func (s *Service) ListPurchaseRequests(ctx context.Context, orgID int64, limit, offset int) ([]PurchaseRequest, error) {
	return s.repo.ListPRs(ctx, orgID, normalizeLimit(limit), offset)
}

// ListPurchaseOrders pages orders for an org.
func (s *Service) ListPurchaseOrders(ctx context.Context, orgID int64, limit, offset int) ([]PurchaseOrder, error) {
	return s.repo.ListPOs(ctx, orgID, normalizeLimit(limit), offset)
}

// ListReceipts pages receipts for an org.
func (s *Service) ListReceipts(ctx context.Context, orgID int64, limit, offset int) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, orgID, normalizeLimit(limit), offset)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    actor.OrgID,
		ActorID:  actor.ID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
}
