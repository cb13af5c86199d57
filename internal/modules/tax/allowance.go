package tax

import "github.com/rhenning/finanzplaner/internal/domain"

// AllowanceTracker tracks Sparerpauschbetrag consumption per calendar
// year. The allowance resets every year and unused amounts are never
// carried forward (use-it-or-lose-it is statutory, not a simplification).
type AllowanceTracker struct {
	cfg       domain.TaxConfig
	remaining map[int]float64
}

// NewAllowanceTracker creates a tracker backed by the tax config's
// per-year allowance map (statutory defaults for unlisted years).
func NewAllowanceTracker(cfg domain.TaxConfig) *AllowanceTracker {
	return &AllowanceTracker{
		cfg:       cfg,
		remaining: make(map[int]float64),
	}
}

// Remaining returns the unconsumed allowance for a year.
func (t *AllowanceTracker) Remaining(year int) float64 {
	if v, ok := t.remaining[year]; ok {
		return v
	}
	return t.cfg.AllowanceForYear(year)
}

// Consume deducts up to amount from the year's remaining allowance and
// returns how much was actually consumed.
func (t *AllowanceTracker) Consume(year int, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	remaining := t.Remaining(year)
	used := amount
	if used > remaining {
		used = remaining
	}
	t.remaining[year] = remaining - used
	return used
}
