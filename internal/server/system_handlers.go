package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/rhenning/finanzplaner/internal/domain"
)

// handleHealth handles GET /health - liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleSystemHealth handles GET /api/system/health - process and host
// resource usage for monitoring dashboards.
func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	cpuAvg, memUsed := s.systemStats()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"uptime_seconds":   int(time.Since(s.startedAt).Seconds()),
		"cpu_percent":      cpuAvg,
		"mem_used_percent": memUsed,
	})
}

// handleReferenceAssets handles GET /api/reference/assets - the default
// asset universe, correlation matrix and statutory tax parameters.
func (s *Server) handleReferenceAssets(w http.ResponseWriter, r *http.Request) {
	corr := domain.DefaultCorrelationMatrix()
	matrix := make(map[domain.AssetClass]map[domain.AssetClass]float64, len(domain.AllAssetClasses))
	for _, a := range domain.AllAssetClasses {
		row := make(map[domain.AssetClass]float64, len(domain.AllAssetClasses))
		for _, b := range domain.AllAssetClasses {
			row[b] = corr.At(a, b)
		}
		matrix[a] = row
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"assets":         domain.DefaultAssetConfigs(),
		"correlation":    matrix,
		"basiszins":      domain.BasiszinsTable(),
		"reference_year": s.cfg.ReferenceYear,
		"allowance":      domain.SparerpauschbetragForYear(s.cfg.ReferenceYear),
		"tax":            domain.DefaultTaxConfig(),
	})
}

// systemStats samples host CPU and memory. The 100ms CPU window keeps
// the endpoint fast enough for tight dashboard polling.
func (s *Server) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
