package treasury

import "github.com/go-chi/chi/v5"

// MountRoutes attaches treasury routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/banks", func(r chi.Router) {
		r.Get("/", h.listBanks)
		r.Post("/", h.createBank)
		r.Put("/{id}", h.updateBank)
		r.Delete("/{id}", h.deleteBank)
	})
	r.Route("/bank-accounts", func(r chi.Router) {
		r.Get("/", h.listBankAccounts)
		r.Post("/", h.createBankAccount)
		r.Put("/{id}", h.updateBankAccount)
		r.Delete("/{id}", h.deleteBankAccount)
	})
	r.Route("/card-readers", func(r chi.Router) {
		r.Get("/", h.listCardReaders)
		r.Post("/", h.createCardReader)
		r.Put("/{id}", h.updateCardReader)
		r.Delete("/{id}", h.deleteCardReader)
	})
	r.Route("/cashboxes", func(r chi.Router) {
		r.Get("/", h.listCashboxes)
		r.Post("/", h.createCashbox)
		r.Put("/{id}", h.updateCashbox)
		r.Delete("/{id}", h.deleteCashbox)
	})
	r.Route("/checkbooks", func(r chi.Router) {
		r.Get("/", h.listCheckbooks)
		r.Post("/", h.createCheckbook)
		r.Delete("/{id}", h.deleteCheckbook)
	})
	r.Route("/checks", func(r chi.Router) {
		r.Get("/", h.listChecks)
		r.Post("/issue", h.issueCheck)
		r.Post("/incoming", h.registerIncomingCheck)
		r.Get("/{id}", h.getCheck)
		r.Delete("/{id}", h.deleteCheck)
	})
	r.Route("/receipts", func(r chi.Router) {
		r.Get("/", h.listReceipts)
		r.Post("/", h.createReceipt)
		r.Get("/{id}", h.getReceipt)
		r.Put("/{id}", h.updateReceipt)
		r.Delete("/{id}", h.deleteReceipt)
	})
	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.listPayments)
		r.Post("/", h.createPayment)
		r.Get("/{id}", h.getPayment)
		r.Put("/{id}", h.updatePayment)
		r.Delete("/{id}", h.deletePayment)
	})
}
