package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers read-only strategy routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/strategies", func(r chi.Router) {
		r.Get("/", h.HandleListStrategies)
		r.Get("/{id}", h.HandleGetStrategy)
	})
}

// RegisterAdminRoutes registers mutating strategy routes. Mount these
// behind the admin token middleware.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	// Plain method routes: RegisterRoutes already mounts a subrouter on
	// /strategies, and chi panics when the same pattern is mounted twice.
	r.Post("/strategies", h.HandleAddStrategy)
	r.Put("/strategies/{id}/weight", h.HandleUpdateWeight)
	r.Delete("/strategies/{id}", h.HandleRemoveStrategy)
}
