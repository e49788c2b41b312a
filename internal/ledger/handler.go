package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/daftar-erp/daftar-erp/internal/platform/httpx"
	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// Handler exposes journals over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func actorID(r *http.Request) int64 {
	if caller := shared.CallerFromContext(r.Context()); caller != nil {
		return caller.ID
	}
	return 0
}

func (h *Handler) decode(r *http.Request) (CreateInput, error) {
	var req JournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return CreateInput{}, shared.Validation("invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return CreateInput{}, shared.Validation(err.Error())
	}
	date, _ := time.Parse("2006-01-02", req.Date)
	return CreateInput{
		FiscalYearID: req.FiscalYearID,
		Date:         date,
		Description:  req.Description,
		Items:        toItemInputs(req.Items),
	}, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	filter := Filter{Limit: perPage, Offset: shared.Offset(page, perPage)}
	if year := r.URL.Query().Get("fiscal_year_id"); year != "" {
		if id, err := strconv.ParseInt(year, 10, 64); err == nil {
			filter.FiscalYearID = &id
		}
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := Status(status)
		filter.Status = &s
	}
	journals, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]JournalResponse, 0, len(journals))
	for _, j := range journals {
		items = append(items, toJournalResponse(j))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid journal id"))
		return
	}
	journal, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toJournalResponse(journal))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	input, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	journal, err := h.service.Create(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toJournalResponse(journal))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid journal id"))
		return
	}
	input, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	journal, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toJournalResponse(journal))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid journal id"))
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid journal id"))
		return
	}
	journal, err := h.service.Post(r.Context(), id, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toJournalResponse(journal))
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid journal id"))
		return
	}
	journal, err := h.service.Reverse(r.Context(), id, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toJournalResponse(journal))
}
