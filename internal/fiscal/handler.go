package fiscal

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

// Handler exposes fiscal years over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the fiscal handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// YearRequest is the JSON payload for creating or updating a year.
type YearRequest struct {
	Name      string `json:"name" validate:"required,max=60"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// YearResponse is the JSON shape of a year.
type YearResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	IsClosed  bool   `json:"is_closed"`
}

func toYearResponse(y Year) YearResponse {
	return YearResponse{
		ID:        y.ID,
		Name:      y.Name,
		StartDate: y.StartDate.Format("2006-01-02"),
		EndDate:   y.EndDate.Format("2006-01-02"),
		IsClosed:  y.IsClosed,
	}
}

func (h *Handler) decodeYear(r *http.Request) (YearRequest, time.Time, time.Time, error) {
	var req YearRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return req, time.Time{}, time.Time{}, shared.Validation("invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return req, time.Time{}, time.Time{}, shared.Validation(err.Error())
	}
	start, _ := time.Parse("2006-01-02", req.StartDate)
	end, _ := time.Parse("2006-01-02", req.EndDate)
	return req, start, end, nil
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

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	years, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list fiscal years", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]YearResponse, 0, len(years))
	for _, y := range years {
		items = append(items, toYearResponse(y))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid year id"))
		return
	}
	year, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toYearResponse(year))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, start, end, err := h.decodeYear(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	year, err := h.service.Create(r.Context(), CreateInput{Name: req.Name, StartDate: start, EndDate: end})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toYearResponse(year))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid year id"))
		return
	}
	req, start, end, err := h.decodeYear(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	year, err := h.service.Update(r.Context(), id, UpdateInput{Name: req.Name, StartDate: start, EndDate: end})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toYearResponse(year))
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid year id"))
		return
	}
	if err := h.service.Open(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) openNext(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid year id"))
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	_ = httpx.DecodeJSON(r, &body)
	year, err := h.service.OpenNext(r.Context(), id, body.Name, actorID(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toYearResponse(year))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid year id"))
		return
	}
	if err := h.service.Delete(r.Context(), id, actorID(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
