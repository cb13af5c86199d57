// Package handlers exposes the portfolio optimizer over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rhenning/finanzplaner/internal/domain"
	"github.com/rhenning/finanzplaner/internal/modules/optimization"
)

// Handler handles HTTP requests for the optimization module.
type Handler struct {
	optimizer *optimization.Optimizer
	log       zerolog.Logger
}

// NewHandler creates a new optimization handler.
func NewHandler(optimizer *optimization.Optimizer, log zerolog.Logger) *Handler {
	return &Handler{
		optimizer: optimizer,
		log:       log.With().Str("component", "optimization_handler").Logger(),
	}
}

// RunRequest is the body of an optimizer run. A nil config falls back
// to the default three-asset portfolio.
type RunRequest struct {
	Config       *domain.PortfolioConfig      `json:"config,omitempty"`
	Objective    domain.OptimizationObjective `json:"objective"`
	RiskFreeRate float64                      `json:"risk_free_rate"`
}

// HandleRun handles POST /api/optimizer/run - optimizes target weights
// for the requested objective.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg := domain.DefaultPortfolioConfig()
	if req.Config != nil {
		cfg = *req.Config
	}

	result, err := h.optimizer.Optimize(cfg, req.Objective, req.RiskFreeRate)
	if err != nil {
		h.log.Error().Err(err).Str("objective", string(req.Objective)).Msg("Optimization rejected")
		h.writeError(w, statusFor(err), fmt.Sprintf("Optimization failed: %v", err))
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleEvaluate handles POST /api/optimizer/evaluate - scores the
// configured target allocation without moving it.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg := domain.DefaultPortfolioConfig()
	if req.Config != nil {
		cfg = *req.Config
	}

	result, err := h.optimizer.EvaluateWeights(cfg, req.RiskFreeRate)
	if err != nil {
		h.log.Error().Err(err).Msg("Evaluation rejected")
		h.writeError(w, statusFor(err), fmt.Sprintf("Evaluation failed: %v", err))
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrInvalidConfig) || errors.Is(err, domain.ErrNotApplicable) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": message,
	})
}
