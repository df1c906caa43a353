// Package handlers provides HTTP handlers for strategy registry operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/modules/registry"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// StrategyAdmin mutates the registry under the rebalance guard. Satisfied
// by the rebalancing service so registry writes cannot race an in-flight
// rebalance.
type StrategyAdmin interface {
	AddStrategy(rec domain.StrategyRecord, strat domain.Strategy) error
	RemoveStrategy(id string) error
	UpdateWeight(id string, newWeightBps uint64) error
}

// Handler handles strategy registry HTTP requests
type Handler struct {
	registry *registry.Service
	admin    StrategyAdmin
	factory  registry.StrategyFactory
	log      zerolog.Logger
}

// NewHandler creates a new registry handler
func NewHandler(reg *registry.Service, admin StrategyAdmin, factory registry.StrategyFactory, log zerolog.Logger) *Handler {
	return &Handler{
		registry: reg,
		admin:    admin,
		factory:  factory,
		log:      log.With().Str("handler", "registry").Logger(),
	}
}

// AddStrategyRequest represents a request to register a strategy
type AddStrategyRequest struct {
	ID              string `json:"id"`
	TargetWeightBps uint64 `json:"target_weight_bps"`
}

// UpdateWeightRequest represents a request to change a target weight
type UpdateWeightRequest struct {
	TargetWeightBps uint64 `json:"target_weight_bps"`
}

// HandleListStrategies handles GET /api/strategies
func (h *Handler) HandleListStrategies(w http.ResponseWriter, r *http.Request) {
	records := h.registry.Records()

	strategies := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		strategies = append(strategies, strategyJSON(rec))
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"strategies":       strategies,
			"count":            len(strategies),
			"total_weight_bps": h.registry.TotalWeightBps(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetStrategy handles GET /api/strategies/{id}
func (h *Handler) HandleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, strat, err := h.registry.Get(id)
	if err != nil {
		http.Error(w, "Strategy not found", http.StatusNotFound)
		return
	}

	data := strategyJSON(rec)
	data["active"] = strat.IsActive()
	if value, err := strat.TotalValue(); err == nil {
		data["total_value"] = value
	} else {
		h.log.Warn().Err(err).Str("strategy", id).Msg("Failed to read strategy value")
	}

	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleAddStrategy handles POST /api/strategies
func (h *Handler) HandleAddStrategy(w http.ResponseWriter, r *http.Request) {
	var req AddStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	rec := domain.StrategyRecord{
		ID:              req.ID,
		Vault:           h.registry.Vault(),
		Asset:           h.registry.Asset(),
		TargetWeightBps: req.TargetWeightBps,
	}

	strat, err := h.factory(rec)
	if err != nil {
		h.log.Error().Err(err).Str("strategy", req.ID).Msg("Failed to construct strategy")
		http.Error(w, "Failed to construct strategy", http.StatusInternalServerError)
		return
	}

	if err := h.admin.AddStrategy(rec, strat); err != nil {
		h.writeDomainError(w, err)
		return
	}

	response := map[string]interface{}{
		"data": strategyJSON(rec),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusCreated, response)
}

// HandleUpdateWeight handles PUT /api/strategies/{id}/weight
func (h *Handler) HandleUpdateWeight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateWeightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.admin.UpdateWeight(id, req.TargetWeightBps); err != nil {
		h.writeDomainError(w, err)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"id":                id,
			"target_weight_bps": req.TargetWeightBps,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleRemoveStrategy handles DELETE /api/strategies/{id}
func (h *Handler) HandleRemoveStrategy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.admin.RemoveStrategy(id); err != nil {
		h.writeDomainError(w, err)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"id":      id,
			"removed": true,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

func strategyJSON(rec domain.StrategyRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":                rec.ID,
		"vault":             rec.Vault,
		"asset":             rec.Asset,
		"target_weight_bps": rec.TargetWeightBps,
	}
}

// writeDomainError maps domain sentinel errors to HTTP status codes
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrStrategyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrStrategyAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRebalanceInProgress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidStrategy),
		errors.Is(err, domain.ErrInvalidAllocation),
		errors.Is(err, domain.ErrAllocationExceedsTotal),
		errors.Is(err, domain.ErrStrategyHasFunds):
		status = http.StatusBadRequest
	}

	h.log.Warn().Err(err).Int("status", status).Msg("Registry request rejected")
	http.Error(w, err.Error(), status)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
