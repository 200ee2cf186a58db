package backtest

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeFlow/internal/domain/models"
)

func prices(rows ...[]float64) *models.Panel {
	dates := make([]time.Time, len(rows))
	for i := range dates {
		dates[i] = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	p := models.NewPanel(dates, []string{"SPY", "TLT"}, 0)
	for i, r := range rows {
		copy(p.Values[i], r)
	}
	return p
}

func TestRunLagsWeightsAndChargesTurnover(t *testing.T) {
	px := prices([]float64{100, 50}, []float64{110, 50}, []float64{99, 55})
	w := models.ZerosLike(px)
	w.Values[0] = []float64{1, 0}
	w.Values[1] = []float64{0.5, 0.5}
	w.Values[2] = []float64{0.5, 0.5}

	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	res, err := e.Run(px, w)
	require.NoError(t, err)

	d := res.Days
	assert.Equal(t, 0.0, d[0].Turnover)
	assert.Equal(t, 0.0, d[0].Net)

	assert.InDelta(t, 0.1, d[1].Gross, 1e-12)
	assert.InDelta(t, 1.0, d[1].Turnover, 1e-12)
	assert.InDelta(t, 0.001, d[1].Cost, 1e-15)
	assert.InDelta(t, 0.099, d[1].Net, 1e-12)

	assert.InDelta(t, 0.5*-0.1+0.5*0.1, d[2].Gross, 1e-12)
	assert.Equal(t, 0.0, d[2].Turnover)
	assert.InDelta(t, 1.099, d[2].Equity, 1e-12)
}

func TestRunZeroWeights(t *testing.T) {
	px := prices([]float64{100, 50}, []float64{101, 49}, []float64{102, 51}, []float64{98, 52})
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)

	res, err := e.Run(px, models.ZerosLike(px))
	require.NoError(t, err)
	s := res.Summary
	assert.Equal(t, models.Stat(0), s.CAGR)
	assert.False(t, s.Sharpe.Defined())
	assert.Equal(t, models.Stat(0), s.MaxDrawdown)
	assert.Equal(t, models.Stat(0), s.TotalCost)
}

func TestRunRejectsShapeMismatch(t *testing.T) {
	px := prices([]float64{100, 50}, []float64{101, 49})
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)

	_, err = e.Run(px, px.Head(1))
	assert.ErrorIs(t, err, models.ErrDataContract)
}

func TestSummaryStats(t *testing.T) {
	r := []float64{0.01, -0.02, 0.015, 0.005}
	s := SummaryStats(r, 252)

	growth := 1.01 * 0.98 * 1.015 * 1.005
	assert.InDelta(t, math.Pow(growth, 63)-1, float64(s.CAGR), 1e-9)
	assert.InDelta(t, growth-1, float64(s.TotalReturn), 1e-12)

	mean := 0.0025
	std := math.Sqrt((0.0075*0.0075 + 0.0225*0.0225 + 0.0125*0.0125 + 0.0025*0.0025) / 4)
	assert.InDelta(t, math.Sqrt(252)*mean/std, float64(s.Sharpe), 1e-9)
	assert.InDelta(t, -0.02, float64(s.MaxDrawdown), 1e-12)
	assert.True(t, s.Calmar.Defined())
	assert.True(t, s.Sortino.Defined())
}

func TestSummaryStatsDegenerate(t *testing.T) {
	empty := SummaryStats(nil, 252)
	assert.False(t, empty.CAGR.Defined())
	assert.False(t, empty.Sharpe.Defined())
	assert.False(t, empty.MaxDrawdown.Defined())

	wiped := SummaryStats([]float64{0.1, -1, 0.2}, 252)
	assert.False(t, wiped.CAGR.Defined())
	assert.LessOrEqual(t, float64(wiped.MaxDrawdown), 0.0)

	bad := SummaryStats([]float64{0.1, math.NaN()}, 252)
	assert.False(t, bad.Sharpe.Defined())

	b, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"cagr":null`)
}

func TestNewEngineRejectsNegativeCost(t *testing.T) {
	_, err := NewEngine(Config{CostRate: -0.1, PeriodsPerYear: 252})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}
