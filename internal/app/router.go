package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tallyard/tallyard/internal/billing"
	"github.com/tallyard/tallyard/internal/ledger"
	"github.com/tallyard/tallyard/internal/ledger/journals"
	"github.com/tallyard/tallyard/internal/ledger/reports"
	"github.com/tallyard/tallyard/internal/observability"
	"github.com/tallyard/tallyard/internal/procurement"
	"github.com/tallyard/tallyard/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	ProcurementHandler *procurement.Handler
	BillingHandler     *billing.Handler
	LedgerHandler      *ledger.Handler
	JournalsHandler    *journals.Handler
	ReportsHandler     *reports.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/procurement", func(r chi.Router) {
		if params.ProcurementHandler != nil {
			params.ProcurementHandler.MountRoutes(r)
		}
	})

	r.Route("/billing", func(r chi.Router) {
		if params.BillingHandler != nil {
			params.BillingHandler.MountRoutes(r)
		}
	})

	r.Route("/ledger", func(r chi.Router) {
		if params.LedgerHandler != nil {
			params.LedgerHandler.MountRoutes(r)
		}
		if params.JournalsHandler != nil {
			params.JournalsHandler.MountRoutes(r)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(r)
		}
	})

	r.Route("/jobs", func(r chi.Router) {
		if params.JobHandler != nil {
			params.JobHandler.MountRoutes(r)
		}
	})

	return r
}
