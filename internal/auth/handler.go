package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/daftar-erp/daftar-erp/internal/platform/httpx"
	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Get("/me", h.me)
}

// LoginRequest is the JSON login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validation(err.Error()))
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("login failed", slog.String("email", req.Email))
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
		return
	}
	token, expiresAt, err := h.service.IssueToken(user)
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt.Format(time.RFC3339)})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	caller := shared.CallerFromContext(r.Context())
	if caller == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "not authenticated")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":      caller.ID,
		"subject": caller.Subject,
		"service": caller.Service,
	})
}
