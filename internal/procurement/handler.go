package procurement

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tallyard/tallyard/internal/platform/httpx"
	"github.com/tallyard/tallyard/internal/shared"
)

// Handler wires HTTP endpoints for purchase requests, purchase orders and
// receipts.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchase-requests", h.createPR)
	r.Get("/purchase-requests", h.listPRs)
	r.Get("/purchase-requests/{id}", h.getPR)
	r.Post("/purchase-requests/{id}/transition", h.transitionPR)

	r.Post("/purchase-orders", h.createPO)
	r.Get("/purchase-orders", h.listPOs)
	r.Get("/purchase-orders/stats", h.orderStats)
	r.Get("/purchase-orders/{id}", h.getPO)
	r.Post("/purchase-orders/{id}/status", h.setPOStatus)

	r.Post("/receipts", h.createReceipt)
	r.Get("/receipts", h.listReceipts)
	r.Get("/receipts/{id}", h.getReceipt)
	r.Patch("/receipts/{id}/quality", h.updateQuality)
	r.Patch("/receipts/{id}/invoice-ref", h.setInvoiceRef)
}

type itemRequest struct {
	Description string  `json:"description" validate:"required"`
	Qty         float64 `json:"qty" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

type itemResponse struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
}

func toItemResponses(items []LineItem) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, itemResponse{ID: item.ID, Description: item.Description, Qty: item.Qty, UnitPrice: shared.FromCents(item.UnitPrice)})
	}
	return out
}

type createPRRequest struct {
	Title           string        `json:"title" validate:"required"`
	Department      string        `json:"department" validate:"required"`
	Priority        string        `json:"priority" validate:"required"`
	EstimatedAmount float64       `json:"estimated_amount" validate:"gte=0"`
	Items           []itemRequest `json:"items" validate:"dive"`
}

type prResponse struct {
	ID              int64          `json:"id"`
	Number          string         `json:"number"`
	Title           string         `json:"title"`
	Department      string         `json:"department"`
	Priority        string         `json:"priority"`
	Status          string         `json:"status"`
	EstimatedAmount float64        `json:"estimated_amount"`
	RequestedBy     int64          `json:"requested_by"`
	CMActorID       *int64         `json:"cm_actor_id,omitempty"`
	CMActedAt       *time.Time     `json:"cm_acted_at,omitempty"`
	FinanceActorID  *int64         `json:"finance_actor_id,omitempty"`
	FinanceActedAt  *time.Time     `json:"finance_acted_at,omitempty"`
	Items           []itemResponse `json:"items"`
}

func toPRResponse(pr PurchaseRequest) prResponse {
	return prResponse{
		ID:              pr.ID,
		Number:          pr.Number,
		Title:           pr.Title,
		Department:      pr.Department,
		Priority:        string(pr.Priority),
		Status:          string(pr.Status),
		EstimatedAmount: shared.FromCents(pr.EstimatedAmount),
		RequestedBy:     pr.RequestedBy,
		CMActorID:       pr.CMActorID,
		CMActedAt:       pr.CMActedAt,
		FinanceActorID:  pr.FinanceActorID,
		FinanceActedAt:  pr.FinanceActedAt,
		Items:           toItemResponses(pr.Items),
	}
}

func (h *Handler) createPR(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	var req createPRRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreatePRInput{
		Title:           req.Title,
		Department:      req.Department,
		Priority:        Priority(req.Priority),
		EstimatedAmount: req.EstimatedAmount,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, LineItemInput{Description: item.Description, Qty: item.Qty, UnitPrice: item.UnitPrice})
	}
	pr, err := h.service.CreatePurchaseRequest(r.Context(), actor, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPRResponse(pr))
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) transitionPR(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	pr, err := h.service.TransitionPurchaseRequest(r.Context(), actor, id, PRStatus(req.Status))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPRResponse(pr))
}

func (h *Handler) getPR(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	pr, err := h.service.GetPurchaseRequest(r.Context(), actor.OrgID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPRResponse(pr))
}

func (h *Handler) listPRs(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	limit, offset := pagination(r)
	prs, err := h.service.ListPurchaseRequests(r.Context(), actor.OrgID, limit, offset)
	if err != nil {
		h.logger.Error("list purchase requests", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]prResponse, 0, len(prs))
	for _, pr := range prs {
		out = append(out, toPRResponse(pr))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type createPORequest struct {
	VendorID         int64         `json:"vendor_id" validate:"required"`
	PRID             *int64        `json:"pr_id,omitempty"`
	TaxAmount        float64       `json:"tax_amount" validate:"gte=0"`
	ExpectedDelivery *time.Time    `json:"expected_delivery,omitempty"`
	PaymentTerms     string        `json:"payment_terms"`
	Items            []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type poResponse struct {
	ID               int64          `json:"id"`
	Number           string         `json:"number"`
	Status           string         `json:"status"`
	VendorID         int64          `json:"vendor_id"`
	PRID             *int64         `json:"pr_id,omitempty"`
	Subtotal         float64        `json:"subtotal"`
	TaxAmount        float64        `json:"tax_amount"`
	TotalAmount      float64        `json:"total_amount"`
	OrderDate        time.Time      `json:"order_date"`
	ExpectedDelivery *time.Time     `json:"expected_delivery,omitempty"`
	DeliveredAt      *time.Time     `json:"delivered_at,omitempty"`
	PaymentTerms     string         `json:"payment_terms"`
	Items            []itemResponse `json:"items"`
}

func toPOResponse(po PurchaseOrder) poResponse {
	return poResponse{
		ID:               po.ID,
		Number:           po.Number,
		Status:           string(po.Status),
		VendorID:         po.VendorID,
		PRID:             po.PRID,
		Subtotal:         shared.FromCents(po.Subtotal),
		TaxAmount:        shared.FromCents(po.TaxAmount),
		TotalAmount:      shared.FromCents(po.TotalAmount),
		OrderDate:        po.OrderDate,
		ExpectedDelivery: po.ExpectedDelivery,
		DeliveredAt:      po.DeliveredAt,
		PaymentTerms:     po.PaymentTerms,
		Items:            toItemResponses(po.Items),
	}
}

func (h *Handler) createPO(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	var req createPORequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreatePOInput{
		VendorID:         req.VendorID,
		PRID:             req.PRID,
		TaxAmount:        req.TaxAmount,
		ExpectedDelivery: req.ExpectedDelivery,
		PaymentTerms:     req.PaymentTerms,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, LineItemInput{Description: item.Description, Qty: item.Qty, UnitPrice: item.UnitPrice})
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), actor, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPOResponse(po))
}

func (h *Handler) setPOStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	po, err := h.service.SetPurchaseOrderStatus(r.Context(), actor, id, POStatus(req.Status))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) getPO(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	po, err := h.service.GetPurchaseOrder(r.Context(), actor.OrgID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) listPOs(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	limit, offset := pagination(r)
	pos, err := h.service.ListPurchaseOrders(r.Context(), actor.OrgID, limit, offset)
	if err != nil {
		h.logger.Error("list purchase orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]poResponse, 0, len(pos))
	for _, po := range pos {
		out = append(out, toPOResponse(po))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) orderStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return
	}
	total, err := h.service.TotalOrderValue(r.Context(), actor.OrgID, from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"total_order_value": shared.FromCents(total),
		"from":              from.Format("2006-01-02"),
		"to":                to.Format("2006-01-02"),
	})
}

type receiptItemRequest struct {
	Description string  `json:"description" validate:"required"`
	Qty         float64 `json:"qty" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	State       string  `json:"state" validate:"required"`
}

type createReceiptRequest struct {
	Type       string               `json:"type" validate:"required"`
	POID       *int64               `json:"po_id,omitempty"`
	VendorID   int64                `json:"vendor_id" validate:"required"`
	ReceivedAt time.Time            `json:"received_at"`
	Items      []receiptItemRequest `json:"items" validate:"required,min=1,dive"`
}

type receiptItemResponse struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
	State       string  `json:"state"`
}

type receiptResponse struct {
	ID         int64                 `json:"id"`
	Number     string                `json:"number"`
	Type       string                `json:"type"`
	POID       *int64                `json:"po_id,omitempty"`
	VendorID   int64                 `json:"vendor_id"`
	Status     string                `json:"status"`
	Quality    string                `json:"quality_status"`
	InvoiceRef string                `json:"invoice_ref,omitempty"`
	ReceivedBy int64                 `json:"received_by"`
	ReceivedAt time.Time             `json:"received_at"`
	Items      []receiptItemResponse `json:"items"`
}

func toReceiptResponse(rc Receipt) receiptResponse {
	resp := receiptResponse{
		ID:         rc.ID,
		Number:     rc.Number,
		Type:       string(rc.Type),
		POID:       rc.POID,
		VendorID:   rc.VendorID,
		Status:     string(rc.Status),
		Quality:    string(rc.Quality),
		InvoiceRef: rc.InvoiceRef,
		ReceivedBy: rc.ReceivedBy,
		ReceivedAt: rc.ReceivedAt,
	}
	for _, item := range rc.Items {
		resp.Items = append(resp.Items, receiptItemResponse{
			ID:          item.ID,
			Description: item.Description,
			Qty:         item.Qty,
			UnitPrice:   shared.FromCents(item.UnitPrice),
			State:       string(item.State),
		})
	}
	return resp
}

func (h *Handler) createReceipt(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	var req createReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateReceiptInput{
		Type:       ReceiptType(req.Type),
		POID:       req.POID,
		VendorID:   req.VendorID,
		ReceivedAt: req.ReceivedAt,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, ReceiptItemInput{
			Description: item.Description,
			Qty:         item.Qty,
			UnitPrice:   item.UnitPrice,
			State:       ItemState(item.State),
		})
	}
	rc, err := h.service.CreateReceipt(r.Context(), actor, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toReceiptResponse(rc))
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	rc, err := h.service.GetReceipt(r.Context(), actor.OrgID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReceiptResponse(rc))
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	limit, offset := pagination(r)
	receipts, err := h.service.ListReceipts(r.Context(), actor.OrgID, limit, offset)
	if err != nil {
		h.logger.Error("list receipts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]receiptResponse, 0, len(receipts))
	for _, rc := range receipts {
		out = append(out, toReceiptResponse(rc))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type qualityRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) updateQuality(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req qualityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.service.UpdateQualityCheck(r.Context(), actor, id, QCStatus(req.Status)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

type invoiceRefRequest struct {
	InvoiceRef string `json:"invoice_ref" validate:"required"`
}

func (h *Handler) setInvoiceRef(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req invoiceRefRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.service.SetReceiptInvoiceRef(r.Context(), actor, id, req.InvoiceRef); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"invoice_ref": req.InvoiceRef})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
