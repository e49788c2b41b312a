package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/daftar-erp/daftar-erp/internal/platform/httpx"
	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// Handler exposes settings over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the settings handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{name}", h.get)
	r.Put("/{name}", h.set)
}

// SettingRequest is the JSON payload for writing a setting.
type SettingRequest struct {
	Value  *string `json:"value,omitempty" validate:"omitempty,max=255"`
	CodeID *int64  `json:"code_id,omitempty"`
}

// SettingResponse is the JSON shape of a setting.
type SettingResponse struct {
	Name   string  `json:"name"`
	Value  *string `json:"value,omitempty"`
	CodeID *int64  `json:"code_id,omitempty"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	setting, err := h.service.Get(r.Context(), name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, SettingResponse{Name: setting.Name, Value: setting.Value, CodeID: setting.CodeID})
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req SettingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validation(err.Error()))
		return
	}
	if err := h.service.Set(r.Context(), name, req.Value, req.CodeID); err != nil {
		h.logger.Error("set setting", slog.String("name", name), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, SettingResponse{Name: name, Value: req.Value, CodeID: req.CodeID})
}
