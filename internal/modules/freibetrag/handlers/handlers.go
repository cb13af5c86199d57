// Package handlers exposes the allowance scheduler over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rhenning/finanzplaner/internal/domain"
	"github.com/rhenning/finanzplaner/internal/modules/freibetrag"
)

// Handler handles HTTP requests for the Freibetrag module.
type Handler struct {
	log zerolog.Logger
}

// NewHandler creates a new Freibetrag handler.
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		log: log.With().Str("component", "freibetrag_handler").Logger(),
	}
}

// ScheduleRequest plans realizations over a fixed horizon. Omitted
// rates fall back to the equity-fund statutory defaults; omitted
// allowances to the Sparerpauschbetrag per year.
type ScheduleRequest struct {
	TotalGain        float64   `json:"total_gain"`
	StartYear        int       `json:"start_year"`
	HorizonYears     int       `json:"horizon_years"`
	Allowances       []float64 `json:"allowances,omitempty"`
	TaxRate          *float64  `json:"tax_rate,omitempty"`
	PartialExemption *float64  `json:"partial_exemption,omitempty"`
}

// HorizonsRequest compares schedules across a horizon range.
type HorizonsRequest struct {
	TotalGain        float64  `json:"total_gain"`
	StartYear        int      `json:"start_year"`
	MinYears         int      `json:"min_years"`
	MaxYears         int      `json:"max_years"`
	TaxRate          *float64 `json:"tax_rate,omitempty"`
	PartialExemption *float64 `json:"partial_exemption,omitempty"`
}

// HandleSchedule handles POST /api/freibetrag/schedule.
func (h *Handler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rate, exemption := ratesOrDefaults(req.TaxRate, req.PartialExemption)
	schedule, err := freibetrag.Optimize(req.TotalGain, req.StartYear, req.HorizonYears, req.Allowances, rate, exemption)
	if err != nil {
		h.log.Error().Err(err).Msg("Schedule rejected")
		h.writeError(w, statusFor(err), fmt.Sprintf("Scheduling failed: %v", err))
		return
	}

	h.writeJSON(w, http.StatusOK, schedule)
}

// HandleHorizons handles POST /api/freibetrag/horizons.
func (h *Handler) HandleHorizons(w http.ResponseWriter, r *http.Request) {
	var req HorizonsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rate, exemption := ratesOrDefaults(req.TaxRate, req.PartialExemption)
	cmp, err := freibetrag.CompareHorizons(req.TotalGain, req.StartYear, req.MinYears, req.MaxYears, rate, exemption)
	if err != nil {
		h.log.Error().Err(err).Msg("Horizon comparison rejected")
		h.writeError(w, statusFor(err), fmt.Sprintf("Comparison failed: %v", err))
		return
	}

	h.writeJSON(w, http.StatusOK, cmp)
}

func ratesOrDefaults(rate, exemption *float64) (float64, float64) {
	outRate := domain.FlatCapitalGainsTaxRate
	outExemption := domain.PartialExemptionEquityFund
	if rate != nil {
		outRate = *rate
	}
	if exemption != nil {
		outExemption = *exemption
	}
	return outRate, outExemption
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
