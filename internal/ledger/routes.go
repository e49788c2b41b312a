package ledger

import "github.com/go-chi/chi/v5"

// MountRoutes attaches journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/post", h.post)
	r.Post("/{id}/reverse", h.reverse)
}
