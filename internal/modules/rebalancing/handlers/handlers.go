// Package handlers provides HTTP handlers for portfolio and rebalance
// operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/modules/history"
	"github.com/aristath/ballast/internal/modules/rebalancing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles rebalance HTTP requests
type Handler struct {
	service *rebalancing.Service
	runs    *history.Repository
	log     zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(service *rebalancing.Service, runs *history.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		runs:    runs,
		log:     log.With().Str("handler", "rebalancing").Logger(),
	}
}

// UpdateConfigRequest carries new executor settings. Pointers distinguish
// "not provided" from zero.
type UpdateConfigRequest struct {
	DeviationThresholdBps *uint64 `json:"deviation_threshold_bps"`
	MinRebalanceAmount    *uint64 `json:"min_rebalance_amount"`
}

// HandleGetPortfolio handles GET /api/portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	totalValue, err := h.service.TotalValue()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to value portfolio")
		http.Error(w, "Failed to value portfolio", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"total_value": totalValue,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetAllocations handles GET /api/allocations
func (h *Handler) HandleGetAllocations(w http.ResponseWriter, r *http.Request) {
	states, err := h.service.AllocationStates()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"allocations": states,
			"count":       len(states),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetAllocation handles GET /api/allocations/{id}
func (h *Handler) HandleGetAllocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	state, err := h.service.GetAllocation(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	response := map[string]interface{}{
		"data": state,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetStatus handles GET /api/rebalance/status
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	needed, maxDeviation, err := h.service.NeedsRebalancing()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	cfg, err := h.service.Config().Get()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load rebalance config")
		http.Error(w, "Failed to load rebalance config", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"needed":                  needed,
			"max_deviation_bps":       maxDeviation,
			"deviation_threshold_bps": cfg.DeviationThresholdBps,
			"last_rebalance_at":       cfg.LastRebalanceAt,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetDrift handles GET /api/rebalance/drift
func (h *Handler) HandleGetDrift(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.DriftSummary()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	response := map[string]interface{}{
		"data": summary,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetConfig handles GET /api/rebalance/config
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.Config().Get()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load rebalance config")
		http.Error(w, "Failed to load rebalance config", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": cfg,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleUpdateConfig handles PUT /api/rebalance/config
func (h *Handler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.DeviationThresholdBps == nil && req.MinRebalanceAmount == nil {
		http.Error(w, "no settings provided", http.StatusBadRequest)
		return
	}

	if req.DeviationThresholdBps != nil {
		if err := h.service.Config().SetDeviationThreshold(*req.DeviationThresholdBps); err != nil {
			h.writeDomainError(w, err)
			return
		}
	}
	if req.MinRebalanceAmount != nil {
		if err := h.service.Config().SetMinRebalanceAmount(*req.MinRebalanceAmount); err != nil {
			h.writeDomainError(w, err)
			return
		}
	}

	cfg, err := h.service.Config().Get()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load rebalance config")
		http.Error(w, "Failed to load rebalance config", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": cfg,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleRebalance handles POST /api/rebalance
func (h *Handler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Rebalance()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	response := map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetRuns handles GET /api/rebalance/runs?limit=N
func (h *Handler) HandleGetRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.runs.Runs(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load rebalance runs")
		http.Error(w, "Failed to load rebalance runs", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"runs":  runs,
			"count": len(runs),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetSnapshots handles GET /api/rebalance/snapshots?since=RFC3339&limit=N
func (h *Handler) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "since must be an RFC3339 timestamp", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	snapshots, err := h.runs.Snapshots(since, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load allocation snapshots")
		http.Error(w, "Failed to load allocation snapshots", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"snapshots": snapshots,
			"count":     len(snapshots),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// writeDomainError maps domain sentinel errors to HTTP status codes
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrStrategyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRebalanceInProgress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRebalancingNotNeeded),
		errors.Is(err, domain.ErrBelowMinimum),
		errors.Is(err, domain.ErrInsufficientTotalValue),
		errors.Is(err, domain.ErrInvalidAllocation):
		status = http.StatusUnprocessableEntity
	}

	h.log.Warn().Err(err).Int("status", status).Msg("Rebalance request rejected")
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
