package regime

import (
	"math"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/services/features"
)

// FeatureNames lists the classifier inputs in column order.
var FeatureNames = []string{
	"vix_level",
	"vix_change_5d",
	"vix_change_20d",
	"vix_zscore_20d",
	"vix_percentile",
	"realised_vol",
	"realised_vol_change_5d",
	"vix_to_realised",
}

// BuildFeatures returns one row per date. Every value at date t depends only
// on observations at or before t. Non-finite values are forward-filled and
// any remaining gaps are set to zero.
func BuildFeatures(vix, realised []float64) [][]float64 {
	n := len(vix)
	mean20, std20 := features.RollingMeanStd(vix, 20)
	z := make([]float64, n)
	ratio := make([]float64, n)
	for i := range vix {
		z[i] = (vix[i] - mean20[i]) / std20[i]
		ratio[i] = vix[i] / realised[i]
	}

	level := append([]float64(nil), vix...)
	rv := append([]float64(nil), realised...)
	cols := [][]float64{
		level,
		features.PctChange(vix, 5),
		features.PctChange(vix, 20),
		z,
		features.ExpandingPercentRank(vix),
		rv,
		features.Diff(realised, 5),
		ratio,
	}
	for _, c := range cols {
		features.FillNaN(features.ForwardFill(features.Finite(c)), 0)
	}

	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, len(cols))
		for j, c := range cols {
			row[j] = c[i]
		}
		rows[i] = row
	}
	return rows
}

// ProvisionalLabels thresholds the volatility index: below low is Low, at or
// above high is High, Medium otherwise. Missing values are Medium.
func ProvisionalLabels(vix []float64, low, high float64) []models.Regime {
	out := make([]models.Regime, len(vix))
	for i, v := range vix {
		switch {
		case math.IsNaN(v):
			out[i] = models.RegimeMedium
		case v < low:
			out[i] = models.RegimeLow
		case v >= high:
			out[i] = models.RegimeHigh
		default:
			out[i] = models.RegimeMedium
		}
	}
	return out
}

// HighFlags is 1 where the label is High and 0 elsewhere.
func HighFlags(labels []models.Regime) []float64 {
	out := make([]float64, len(labels))
	for i, l := range labels {
		if l == models.RegimeHigh {
			out[i] = 1
		}
	}
	return out
}

// Discretise maps a probability to a regime: High above high, Low below low.
func Discretise(p, low, high float64) models.Regime {
	switch {
	case p > high:
		return models.RegimeHigh
	case p < low:
		return models.RegimeLow
	default:
		return models.RegimeMedium
	}
}
