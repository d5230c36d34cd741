package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tallyard/tallyard/internal/platform/httpx"
	"github.com/tallyard/tallyard/internal/shared"
)

// Handler exposes read-only account endpoints. Ledger writes go through
// the Poster; there is no HTTP surface for raw postings.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.list)
	r.Get("/accounts/{id}", h.get)
}

type accountResponse struct {
	ID               int64     `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	Balance          float64   `json:"balance"`
	EffectiveBalance *float64  `json:"effective_balance,omitempty"`
	BankName         string    `json:"bank_name,omitempty"`
	AccountNumber    string    `json:"account_number,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toAccountResponse(acc Account) accountResponse {
	return accountResponse{
		ID:            acc.ID,
		Code:          acc.Code,
		Name:          acc.Name,
		Type:          string(acc.Type),
		Balance:       shared.FromCents(acc.Balance),
		BankName:      acc.BankName,
		AccountNumber: acc.AccountNumber,
		UpdatedAt:     acc.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	accounts, err := h.repo.ListAccounts(r.Context(), actor.OrgID)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, toAccountResponse(acc))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	acc, err := h.repo.GetAccount(r.Context(), actor.OrgID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := toAccountResponse(acc)
	if effective, err := h.repo.EffectiveBalance(r.Context(), actor.OrgID, id); err == nil {
		v := shared.FromCents(effective)
		resp.EffectiveBalance = &v
	}
	httpx.JSON(w, http.StatusOK, resp)
}
