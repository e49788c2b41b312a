package fiscal

import "github.com/go-chi/chi/v5"

// MountRoutes attaches fiscal-year routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/open", h.open)
	r.Post("/{id}/open-next", h.openNext)
}
