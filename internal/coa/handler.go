package coa

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/daftar-erp/daftar-erp/internal/platform/httpx"
	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// Handler exposes the catalogue over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the catalogue handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) listNodes(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	filter := NodeFilter{Limit: perPage, Offset: shared.Offset(page, perPage)}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		k := NodeKind(kind)
		filter.Kind = &k
	}
	if parent := r.URL.Query().Get("parent_id"); parent != "" {
		if id, err := strconv.ParseInt(parent, 10, 64); err == nil {
			filter.ParentID = &id
		}
	}
	nodes, total, err := h.service.ListNodes(r.Context(), filter)
	if err != nil {
		h.logger.Error("list nodes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]NodeResponse, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, toNodeResponse(n))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid node id"))
		return
	}
	node, err := h.service.GetNode(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toNodeResponse(node))
}

func (h *Handler) createNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validation(err.Error()))
		return
	}
	node, err := h.service.CreateNode(r.Context(), NodeInput{
		ParentID: req.ParentID,
		Code:     req.Code,
		Title:    req.Title,
		Kind:     NodeKind(req.Kind),
		IsActive: true,
		Nature:   natureFromString(req.Nature),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toNodeResponse(node))
}

func (h *Handler) updateNode(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid node id"))
		return
	}
	var req UpdateNodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validation(err.Error()))
		return
	}
	current, err := h.service.GetNode(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	node, err := h.service.UpdateNode(r.Context(), id, NodeInput{
		ParentID: req.ParentID,
		Code:     req.Code,
		Title:    req.Title,
		Kind:     current.Kind,
		IsActive: req.IsActive,
		Nature:   natureFromString(req.Nature),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toNodeResponse(node))
}

func (h *Handler) deleteNode(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid node id"))
		return
	}
	if err := h.service.DeleteNode(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listDetails(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageParams(r)
	filter := DetailFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  perPage,
		Offset: shared.Offset(page, perPage),
	}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		k := DetailKind(kind)
		filter.Kind = &k
	}
	details, total, err := h.service.ListDetails(r.Context(), filter)
	if err != nil {
		h.logger.Error("list details", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]DetailResponse, 0, len(details))
	for _, d := range details {
		items = append(items, toDetailResponse(d))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) createDetail(w http.ResponseWriter, r *http.Request) {
	var req DetailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validation(err.Error()))
		return
	}
	detail, err := h.service.CreateDetail(r.Context(), req.Code, req.Title)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDetailResponse(detail))
}

func (h *Handler) updateDetail(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid detail id"))
		return
	}
	var req DetailRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validation(err.Error()))
		return
	}
	detail, err := h.service.UpdateDetail(r.Context(), id, req.Code, req.Title, req.IsActive)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *Handler) deleteDetail(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid detail id"))
		return
	}
	if err := h.service.DeleteDetail(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) suggestDetailCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.service.SuggestNextDetailCode(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"code": code})
}

func (h *Handler) linkDetail(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid detail id"))
		return
	}
	var req LinkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validation(err.Error()))
		return
	}
	link, err := h.service.LinkDetail(r.Context(), id, req.NodeID, req.IsPrimary, req.Position)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, link)
}

func (h *Handler) unlinkDetail(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid detail id"))
		return
	}
	nodeID, err := strconv.ParseInt(chi.URLParam(r, "nodeID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid node id"))
		return
	}
	if err := h.service.UnlinkDetail(r.Context(), id, nodeID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
