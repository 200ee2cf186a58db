package backtest

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"RegimeFlow/internal/domain/models"
)

func undefined() models.Stat { return models.Stat(math.NaN()) }

// SummaryStats computes the return statistics of a daily series. Undefined
// values are NaN; an empty or non-finite series is undefined throughout.
func SummaryStats(returns []float64, periodsPerYear float64) models.Summary {
	s := models.Summary{
		CAGR:             undefined(),
		Sharpe:           undefined(),
		MaxDrawdown:      undefined(),
		AnnualVolatility: undefined(),
		Sortino:          undefined(),
		Calmar:           undefined(),
		TotalReturn:      undefined(),
		AvgTurnover:      undefined(),
		TotalCost:        undefined(),
	}
	n := len(returns)
	if n == 0 {
		return s
	}
	for _, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return s
		}
	}

	growth := 1.0
	peak, worst := 1.0, 0.0
	for _, r := range returns {
		growth *= 1 + r
		peak = math.Max(peak, growth)
		worst = math.Min(worst, growth/peak-1)
	}
	s.MaxDrawdown = models.Stat(worst)
	s.TotalReturn = models.Stat(growth - 1)
	if growth > 0 {
		s.CAGR = models.Stat(math.Pow(growth, periodsPerYear/float64(n)) - 1)
	}

	ann := math.Sqrt(periodsPerYear)
	mean := floats.Sum(returns) / float64(n)
	std := stat.PopStdDev(returns, nil)
	if std > 0 && !math.IsInf(std, 0) {
		s.Sharpe = models.Stat(ann * mean / std)
		s.AnnualVolatility = models.Stat(ann * std)
	} else if std == 0 {
		s.AnnualVolatility = 0
	}

	downside := 0.0
	for _, r := range returns {
		if r < 0 {
			downside += r * r
		}
	}
	if dd := math.Sqrt(downside / float64(n)); dd > 0 {
		s.Sortino = models.Stat(ann * mean / dd)
	}
	if worst < 0 && s.CAGR.Defined() {
		s.Calmar = models.Stat(float64(s.CAGR) / -worst)
	}
	return s
}
