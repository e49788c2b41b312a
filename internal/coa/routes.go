package coa

import "github.com/go-chi/chi/v5"

// MountRoutes attaches catalogue routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/nodes", func(r chi.Router) {
		r.Get("/", h.listNodes)
		r.Post("/", h.createNode)
		r.Get("/{id}", h.getNode)
		r.Put("/{id}", h.updateNode)
		r.Delete("/{id}", h.deleteNode)
	})
	r.Route("/details", func(r chi.Router) {
		r.Get("/", h.listDetails)
		r.Post("/", h.createDetail)
		r.Get("/suggest-code", h.suggestDetailCode)
		r.Put("/{id}", h.updateDetail)
		r.Delete("/{id}", h.deleteDetail)
		r.Post("/{id}/links", h.linkDetail)
		r.Delete("/{id}/links/{nodeID}", h.unlinkDetail)
	})
}
