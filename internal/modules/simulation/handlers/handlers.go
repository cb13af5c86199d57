// Package handlers exposes the simulation engine over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rhenning/finanzplaner/internal/domain"
	"github.com/rhenning/finanzplaner/internal/modules/charts"
	"github.com/rhenning/finanzplaner/internal/modules/simulation"
)

// Handler handles HTTP requests for the simulation module.
type Handler struct {
	engine *simulation.Engine
	log    zerolog.Logger
}

// NewHandler creates a new simulation handler.
func NewHandler(engine *simulation.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		log:    log.With().Str("component", "simulation_handler").Logger(),
	}
}

// HandleRun handles POST /api/simulation/run - runs a full simulation
// and returns the year-by-year result.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req simulation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.engine.Run(req)
	if err != nil {
		h.log.Error().Err(err).Msg("Simulation rejected")
		h.writeError(w, statusFor(err), fmt.Sprintf("Simulation failed: %v", err))
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleChart handles POST /api/simulation/chart - runs a simulation
// and returns the capital development as a PNG image.
func (h *Handler) HandleChart(w http.ResponseWriter, r *http.Request) {
	var req simulation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.engine.Run(req)
	if err != nil {
		h.log.Error().Err(err).Msg("Simulation rejected")
		h.writeError(w, statusFor(err), fmt.Sprintf("Simulation failed: %v", err))
		return
	}
	if len(result.Records) == 0 {
		h.writeError(w, http.StatusUnprocessableEntity, "Simulation produced no records to chart")
		return
	}

	png, err := charts.RenderCapitalChart("Kapitalverlauf", result.Records)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render chart")
		h.writeError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Error().Err(err).Msg("Failed to write chart response")
	}
}

// HandleAllocationChart handles POST /api/simulation/allocation-chart -
// renders the configured target allocation as a pie chart. An empty
// body charts the default portfolio.
func (h *Handler) HandleAllocationChart(w http.ResponseWriter, r *http.Request) {
	cfg := domain.DefaultPortfolioConfig()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	png, err := charts.RenderAllocationChart(cfg)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render allocation chart")
		h.writeError(w, statusFor(err), fmt.Sprintf("Chart rendering failed: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Error().Err(err).Msg("Failed to write chart response")
	}
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrInvalidConfig) {
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
