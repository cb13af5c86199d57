// Package charts renders simulation output as PNG images.
package charts

import (
	"fmt"
	"strconv"

	charts "github.com/vicanso/go-charts/v2"

	"github.com/rhenning/finanzplaner/internal/domain"
)

const (
	chartWidth  = 1000
	chartHeight = 600
)

// RenderCapitalChart draws the nominal and inflation-adjusted closing
// capital of a simulation run as a line chart and returns PNG bytes.
func RenderCapitalChart(title string, records []domain.YearRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records to chart", domain.ErrInvalidConfig)
	}

	years := make([]string, len(records))
	nominal := make([]float64, len(records))
	real := make([]float64, len(records))
	for i, r := range records {
		years[i] = strconv.Itoa(r.Year)
		nominal[i] = r.ClosingCapital
		real[i] = r.RealClosingCapital
	}

	names := []string{"Nominal", "Real (inflationsbereinigt)"}
	p, err := charts.LineRender([][]float64{nominal, real},
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: years, BoundaryGap: charts.FalseFlag()}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Top: charts.PositionTop}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}

// RenderAllocationChart draws the enabled target allocations as a pie
// chart and returns PNG bytes.
func RenderAllocationChart(cfg domain.PortfolioConfig) ([]byte, error) {
	enabled := cfg.EnabledAssets()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("%w: no enabled assets to chart", domain.ErrInvalidConfig)
	}

	values := make([]float64, len(enabled))
	labels := make([]string, len(enabled))
	for i, a := range enabled {
		values[i] = a.TargetAllocation
		labels[i] = fmt.Sprintf("%s (%.1f%%)", a.Class, a.TargetAllocation*100)
	}

	p, err := charts.PieRender(values,
		charts.TitleTextOptionFunc("Zielallokation"),
		charts.LegendOptionFunc(charts.LegendOption{Data: labels, Top: charts.PositionTop}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}
