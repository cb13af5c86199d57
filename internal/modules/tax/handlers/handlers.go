// Package handlers exposes the Vorabpauschale computation over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rhenning/finanzplaner/internal/domain"
	"github.com/rhenning/finanzplaner/internal/modules/tax"
)

// Handler handles HTTP requests for the tax module.
type Handler struct {
	log zerolog.Logger
}

// NewHandler creates a new tax handler.
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		log: log.With().Str("component", "tax_handler").Logger(),
	}
}

// VorabpauschaleRequest computes one lot-year. Basiszins defaults to
// the statutory rate for the year, months to a full holding year, and
// the tax config to the equity-fund defaults.
type VorabpauschaleRequest struct {
	Year           int               `json:"year"`
	OpeningCapital float64           `json:"opening_capital"`
	GainInYear     float64           `json:"gain_in_year"`
	Basiszins      *float64          `json:"basiszins,omitempty"`
	MonthsHeld     *int              `json:"months_held,omitempty"`
	Tax            *domain.TaxConfig `json:"tax,omitempty"`
}

// HandleVorabpauschale handles POST /api/tax/vorabpauschale - computes
// the advance lump-sum taxation for a single lot and year.
func (h *Handler) HandleVorabpauschale(w http.ResponseWriter, r *http.Request) {
	var req VorabpauschaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	in := tax.Input{
		Year:           req.Year,
		OpeningCapital: req.OpeningCapital,
		GainInYear:     req.GainInYear,
		Basiszins:      domain.BasiszinsForYear(req.Year),
		MonthsHeld:     12,
	}
	if req.Basiszins != nil {
		in.Basiszins = *req.Basiszins
	}
	if req.MonthsHeld != nil {
		in.MonthsHeld = *req.MonthsHeld
	}

	cfg := domain.DefaultTaxConfig()
	if req.Tax != nil {
		cfg = *req.Tax
	}
	if err := cfg.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid tax config: %v", err))
		return
	}

	details, err := tax.ComputeVorabpauschale(in, cfg, tax.NewAllowanceTracker(cfg))
	if err != nil {
		h.log.Error().Err(err).Int("year", req.Year).Msg("Vorabpauschale computation rejected")
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidConfig) {
			status = http.StatusBadRequest
		}
		h.writeError(w, status, fmt.Sprintf("Computation failed: %v", err))
		return
	}

	h.writeJSON(w, http.StatusOK, details)
}

// HandleBasiszins handles GET /api/tax/basiszins - returns the
// published base-rate table and the fallback for future years.
func (h *Handler) HandleBasiszins(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"table":   domain.BasiszinsTable(),
		"default": domain.DefaultBasiszins,
	})
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
