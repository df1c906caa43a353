package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the read-only portfolio and rebalance routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolio", h.HandleGetPortfolio)

	r.Route("/allocations", func(r chi.Router) {
		r.Get("/", h.HandleGetAllocations)
		r.Get("/{id}", h.HandleGetAllocation)
	})

	r.Route("/rebalance", func(r chi.Router) {
		r.Get("/status", h.HandleGetStatus)
		r.Get("/drift", h.HandleGetDrift)
		r.Get("/config", h.HandleGetConfig)
		r.Get("/runs", h.HandleGetRuns)
		r.Get("/snapshots", h.HandleGetSnapshots)
	})
}

// RegisterAdminRoutes registers mutating rebalance routes. Mount these
// behind the admin token middleware.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/rebalance", h.HandleRebalance)
	r.Put("/rebalance/config", h.HandleUpdateConfig)
}
