package journals

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tallyard/tallyard/internal/platform/httpx"
	"github.com/tallyard/tallyard/internal/shared"
)

// Handler wires HTTP endpoints for journal entries.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/journals", h.create)
	r.Get("/journals", h.list)
}

type lineRequest struct {
	AccountID int64   `json:"account_id" validate:"required"`
	Debit     float64 `json:"debit" validate:"gte=0"`
	Credit    float64 `json:"credit" validate:"gte=0"`
}

type createRequest struct {
	Date      time.Time     `json:"date"`
	Narration string        `json:"narration" validate:"required"`
	Lines     []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type lineResponse struct {
	AccountID   int64   `json:"account_id"`
	AccountCode string  `json:"account_code"`
	AccountName string  `json:"account_name"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
}

type entryResponse struct {
	ID        int64          `json:"id"`
	Number    string         `json:"number"`
	Date      time.Time      `json:"date"`
	Narration string         `json:"narration"`
	Status    string         `json:"status"`
	Lines     []lineResponse `json:"lines"`
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
	input := CreateInput{Date: req.Date, Narration: req.Narration}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit})
	}
	entry, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	entries, err := h.service.List(r.Context(), actor.OrgID)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntryResponse(entry))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func toEntryResponse(entry JournalEntry) entryResponse {
	resp := entryResponse{
		ID:        entry.ID,
		Number:    entry.Number,
		Date:      entry.Date,
		Narration: entry.Narration,
		Status:    string(entry.Status),
	}
	for _, line := range entry.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			AccountID:   line.AccountID,
			AccountCode: line.AccountCode,
			AccountName: line.AccountName,
			Debit:       shared.FromCents(line.Debit),
			Credit:      shared.FromCents(line.Credit),
		})
	}
	return resp
}
