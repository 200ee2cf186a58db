package repository

import (
	"math"
	"sort"
	"time"

	"RegimeFlow/internal/domain/models"
)

// closes is one ticker's date -> close observations.
type closes map[time.Time]float64

// assemble pivots per-ticker closes onto the union of their dates, forward
// fills gaps and drops the dates that still miss a value. The volatility
// index is split out of the asset columns.
func assemble(assets []string, vixTicker string, data map[string]closes) (*models.Panel, *models.Series, error) {
	if _, ok := data[vixTicker]; !ok {
		return nil, nil, models.NewContractError("volatility index %q has no data", vixTicker)
	}
	set := make(map[time.Time]struct{})
	for _, c := range data {
		for d := range c {
			set[d] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })

	cols := append(append([]string(nil), assets...), vixTicker)
	grid := make([][]float64, len(dates))
	last := make([]float64, len(cols))
	for j := range last {
		last[j] = math.NaN()
	}
	for i, d := range dates {
		row := make([]float64, len(cols))
		for j, t := range cols {
			if v, ok := data[t][d]; ok && !math.IsNaN(v) {
				last[j] = v
			}
			row[j] = last[j]
		}
		grid[i] = row
	}

	prices := &models.Panel{Assets: append([]string(nil), assets...)}
	vix := &models.Series{}
	for i, row := range grid {
		complete := true
		for _, v := range row {
			if math.IsNaN(v) {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		prices.Dates = append(prices.Dates, dates[i])
		prices.Values = append(prices.Values, row[:len(assets)])
		vix.Dates = append(vix.Dates, dates[i])
		vix.Values = append(vix.Values, row[len(assets)])
	}
	if prices.Rows() == 0 {
		return nil, nil, models.NewContractError("no date has a value for every ticker")
	}
	return prices, vix, nil
}
