package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/daftar-erp/daftar-erp/internal/auth"
	"github.com/daftar-erp/daftar-erp/internal/coa"
	"github.com/daftar-erp/daftar-erp/internal/fiscal"
	"github.com/daftar-erp/daftar-erp/internal/ledger"
	"github.com/daftar-erp/daftar-erp/internal/observability"
	"github.com/daftar-erp/daftar-erp/internal/reports"
	"github.com/daftar-erp/daftar-erp/internal/settings"
	"github.com/daftar-erp/daftar-erp/internal/treasury"
	"github.com/daftar-erp/daftar-erp/internal/treasury/posting"
	"github.com/daftar-erp/daftar-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AuthHandler     *auth.Handler
	AuthMiddleware  *auth.Middleware
	CatalogHandler  *coa.Handler
	FiscalHandler   *fiscal.Handler
	LedgerHandler   *ledger.Handler
	TreasuryHandler *treasury.Handler
	PostingHandler  *posting.Handler
	SettingsHandler *settings.Handler
	ReportsHandler  *reports.Handler
	JobsHandler     *jobs.Handler
	Metrics         *observability.Metrics
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

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		if params.AuthMiddleware != nil {
			r.Use(params.AuthMiddleware.Require)
		}
		if params.CatalogHandler != nil {
			r.Route("/catalog", params.CatalogHandler.MountRoutes)
		}
		if params.FiscalHandler != nil {
			r.Route("/fiscal-years", params.FiscalHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			r.Route("/journals", params.LedgerHandler.MountRoutes)
		}
		if params.TreasuryHandler != nil {
			r.Route("/treasury", func(r chi.Router) {
				params.TreasuryHandler.MountRoutes(r)
				if params.PostingHandler != nil {
					params.PostingHandler.MountRoutes(r)
				}
			})
		}
		if params.SettingsHandler != nil {
			r.Route("/settings", params.SettingsHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
