package repository

import (
	"math"
	"time"

	"RegimeFlow/internal/domain/models"
)

func day(i int) time.Time {
	return time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

// samplePanel has awkward floats and one NaN cell.
func samplePanel() (*models.Panel, *models.Series) {
	dates := []time.Time{day(0), day(1), day(2)}
	prices := &models.Panel{
		Dates:  dates,
		Assets: []string{"SPY", "TLT"},
		Values: [][]float64{
			{100.1, 0.1 + 0.2},
			{101.123456789012345, math.NaN()},
			{1e-7, 123456789.125},
		},
	}
	vix := &models.Series{Dates: dates, Values: []float64{15.5, 1.0 / 3, 22}}
	return prices, vix
}
