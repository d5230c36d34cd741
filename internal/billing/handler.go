package billing

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

// Handler wires HTTP endpoints for vendor invoices.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.create)
	r.Get("/invoices", h.list)
	r.Get("/invoices/{id}", h.get)
	r.Post("/invoices/{id}/approve", h.approve)
	r.Post("/invoices/{id}/pay", h.pay)
}

type createRequest struct {
	VendorID        int64      `json:"vendor_id" validate:"required"`
	VendorInvoiceNo string     `json:"vendor_invoice_no" validate:"required"`
	POID            *int64     `json:"po_id,omitempty"`
	ReceiptID       *int64     `json:"receipt_id,omitempty"`
	Amount          float64    `json:"amount" validate:"gt=0"`
	TaxAmount       float64    `json:"tax_amount" validate:"gte=0"`
	IssueDate       time.Time  `json:"issue_date"`
	DueDate         *time.Time `json:"due_date,omitempty"`
}

type payRequest struct {
	BankAccountID int64     `json:"bank_account_id" validate:"required"`
	Method        string    `json:"method" validate:"required"`
	Reference     string    `json:"reference"`
	PaidAt        time.Time `json:"paid_at"`
}

type invoiceResponse struct {
	ID              int64      `json:"id"`
	Number          string     `json:"number"`
	VendorID        int64      `json:"vendor_id"`
	VendorInvoiceNo string     `json:"vendor_invoice_no"`
	POID            *int64     `json:"po_id,omitempty"`
	ReceiptID       *int64     `json:"receipt_id,omitempty"`
	Amount          float64    `json:"amount"`
	TaxAmount       float64    `json:"tax_amount"`
	TotalAmount     float64    `json:"total_amount"`
	Status          string     `json:"status"`
	IssueDate       time.Time  `json:"issue_date"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	PaymentRef      string     `json:"payment_ref,omitempty"`
	BankAccountID   *int64     `json:"bank_account_id,omitempty"`
}

func toInvoiceResponse(inv VendorInvoice) invoiceResponse {
	return invoiceResponse{
		ID:              inv.ID,
		Number:          inv.Number,
		VendorID:        inv.VendorID,
		VendorInvoiceNo: inv.VendorInvoiceNo,
		POID:            inv.POID,
		ReceiptID:       inv.ReceiptID,
		Amount:          shared.FromCents(inv.Amount),
		TaxAmount:       shared.FromCents(inv.TaxAmount),
		TotalAmount:     shared.FromCents(inv.TotalAmount),
		Status:          string(inv.Status),
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
		PaidAt:          inv.PaidAt,
		PaymentMethod:   inv.PaymentMethod,
		PaymentRef:      inv.PaymentRef,
		BankAccountID:   inv.BankAccountID,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inv, err := h.service.Create(r.Context(), actor, CreateInvoiceInput{
		VendorID:        req.VendorID,
		VendorInvoiceNo: req.VendorInvoiceNo,
		POID:            req.POID,
		ReceiptID:       req.ReceiptID,
		Amount:          req.Amount,
		TaxAmount:       req.TaxAmount,
		IssueDate:       req.IssueDate,
		DueDate:         req.DueDate,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
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
	inv, err := h.service.Approve(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
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
	var req payRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inv, err := h.service.Pay(r.Context(), actor, id, PayInvoiceInput{
		BankAccountID: req.BankAccountID,
		Method:        req.Method,
		Reference:     req.Reference,
		PaidAt:        req.PaidAt,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
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
	inv, err := h.service.Get(r.Context(), actor.OrgID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	status := InvoiceStatus(r.URL.Query().Get("status"))
	invoices, err := h.service.List(r.Context(), actor.OrgID, status, limit, offset)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
