package posting

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/daftar-erp/daftar-erp/internal/ledger"
	"github.com/daftar-erp/daftar-erp/internal/platform/httpx"
	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// Handler exposes posting over JSON.
type Handler struct {
	logger      *slog.Logger
	engine      *Engine
	idempotency *shared.IdempotencyStore
}

// NewHandler constructs the posting handler.
func NewHandler(logger *slog.Logger, engine *Engine, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, engine: engine, idempotency: idempotency}
}

// MountRoutes attaches posting routes next to the document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/receipts/{id}/post", h.postReceipt)
	r.Post("/payments/{id}/post", h.postPayment)
}

func actorID(r *http.Request) int64 {
	if caller := shared.CallerFromContext(r.Context()); caller != nil {
		return caller.ID
	}
	return 0
}

func (h *Handler) postReceipt(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, h.engine.PostReceipt)
}

func (h *Handler) postPayment(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, h.engine.PostPayment)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, actorID int64) (ledger.Journal, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid document id"))
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key != "" {
		if err := h.idempotency.Reserve(r.Context(), key, "posting"); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	journal, err := fn(r.Context(), id, actorID(r))
	if err != nil {
		if key != "" {
			if relErr := h.idempotency.Release(r.Context(), key); relErr != nil {
				h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", relErr))
			}
		}
		h.logger.Error("post document", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"journal_id": journal.ID,
		"ref_no":     journal.RefNo,
		"code":       journal.Code,
	})
}
