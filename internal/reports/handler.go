package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/daftar-erp/daftar-erp/internal/platform/httpx"
	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// Handler exposes reports over JSON, plus PDF exports when a renderer
// is configured.
type Handler struct {
	logger   *slog.Logger
	repo     *Repository
	renderer *Renderer
}

// NewHandler constructs the reports handler. renderer may be nil; PDF
// routes then answer with a configuration problem.
func NewHandler(logger *slog.Logger, repo *Repository, renderer *Renderer) *Handler {
	return &Handler{logger: logger, repo: repo, renderer: renderer}
}

// MountRoutes attaches report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/trial-balance/pdf", h.trialBalancePDF)
	r.Get("/details/{id}/statement", h.detailStatement)
}

func yearParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get("fiscal_year_id"), 10, 64)
}

func dateParam(r *http.Request, name string) *time.Time {
	if v := r.URL.Query().Get(name); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return &t
		}
	}
	return nil
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	yearID, err := yearParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("fiscal_year_id is required"))
		return
	}
	balances, err := h.repo.CodeBalances(r.Context(), yearID, dateParam(r, "from"), dateParam(r, "to"))
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, BuildTrialBalance(balances))
}

func (h *Handler) trialBalancePDF(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		httpx.RespondError(w, shared.Configuration("pdf rendering is not configured"))
		return
	}
	yearID, err := yearParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("fiscal_year_id is required"))
		return
	}
	balances, err := h.repo.CodeBalances(r.Context(), yearID, dateParam(r, "from"), dateParam(r, "to"))
	if err != nil {
		h.logger.Error("trial balance pdf", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	pdf, err := h.renderer.TrialBalancePDF(r.Context(), BuildTrialBalance(balances))
	if err != nil {
		h.logger.Error("render trial balance pdf", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="trial-balance.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) detailStatement(w http.ResponseWriter, r *http.Request) {
	yearID, err := yearParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("fiscal_year_id is required"))
		return
	}
	detailID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid detail id"))
		return
	}
	lines, err := h.repo.DetailStatement(r.Context(), yearID, detailID)
	if err != nil {
		h.logger.Error("detail statement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	var debit, credit float64
	for _, l := range lines {
		debit += l.Debit
		credit += l.Credit
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"lines":        lines,
		"total_debit":  debit,
		"total_credit": credit,
	})
}
