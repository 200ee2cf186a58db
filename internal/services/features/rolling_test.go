package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogReturnsAndPctChange(t *testing.T) {
	x := []float64{100, 110, NaN, 121}

	lr := LogReturns(x)
	assert.True(t, math.IsNaN(lr[0]))
	assert.InDelta(t, math.Log(1.1), lr[1], 1e-15)
	assert.True(t, math.IsNaN(lr[2]))
	assert.True(t, math.IsNaN(lr[3]))

	pc := PctChange([]float64{100, 110, 121}, 2)
	assert.True(t, math.IsNaN(pc[1]))
	assert.InDelta(t, 0.21, pc[2], 1e-12)
}

func TestRollingMeanStd(t *testing.T) {
	x := []float64{1, 2, 3, 4, NaN, 6}
	mean, std := RollingMeanStd(x, 3)

	assert.True(t, math.IsNaN(mean[1]))
	assert.InDelta(t, 2, mean[2], 1e-15)
	assert.InDelta(t, 1, std[2], 1e-15)
	assert.InDelta(t, 3, mean[3], 1e-15)
	// any window touching the gap is undefined
	assert.True(t, math.IsNaN(mean[4]))
	assert.True(t, math.IsNaN(std[5]))

	assert.Equal(t, RollingMean(x, 3)[3], mean[3])
	assert.Equal(t, RollingStd(x, 3)[3], std[3])
}

func TestRollingHedgeRatio(t *testing.T) {
	b := []float64{1, 2, 3, 4, 5}
	a := make([]float64, len(b))
	for i, v := range b {
		a[i] = 2*v + 1
	}
	h := RollingHedgeRatio(a, b, 3)
	assert.True(t, math.IsNaN(h[1]))
	assert.InDelta(t, 2, h[4], 1e-12)

	flat := RollingHedgeRatio(a, []float64{1, 1, 1, 1, 1}, 3)
	assert.True(t, math.IsNaN(flat[4]), "zero variance leg has no hedge ratio")
}

func TestRollingMedianMinPeriods(t *testing.T) {
	x := []float64{5, 1, 3, NaN, 2}
	m := RollingMedian(x, 4, 2)

	assert.True(t, math.IsNaN(m[0]))
	assert.Equal(t, 3.0, m[1])
	assert.Equal(t, 3.0, m[2])
	assert.Equal(t, 3.0, m[3])
	// window {1, 3, NaN, 2}
	assert.Equal(t, 2.0, m[4])
}

func TestExpandingPercentRankUsesOnlyHistory(t *testing.T) {
	x := []float64{10, 20, 15, 20}
	r := ExpandingPercentRank(x)

	assert.Equal(t, 1.0, r[0])
	assert.Equal(t, 1.0, r[1])
	assert.InDelta(t, 2.0/3, r[2], 1e-15)
	assert.InDelta(t, 3.5/4, r[3], 1e-15)

	// appending a larger value never changes earlier ranks
	r2 := ExpandingPercentRank(append(append([]float64(nil), x...), 100))
	assert.Equal(t, r, r2[:4])
}

func TestEWMRecursion(t *testing.T) {
	x := []float64{1, 0, 0}
	e := EWM(x, 3) // alpha = 0.5
	assert.Equal(t, []float64{1, 0.5, 0.25}, e)

	g := EWM([]float64{NaN, 2, NaN, 4}, 3)
	assert.True(t, math.IsNaN(g[0]))
	assert.Equal(t, 2.0, g[2])
	assert.Equal(t, 3.0, g[3])
}

func TestFillHelpers(t *testing.T) {
	x := []float64{NaN, 1, NaN, math.Inf(1), 3}
	Finite(x)
	ForwardFill(x)
	FillNaN(x, 0)
	assert.Equal(t, []float64{0, 1, 1, 1, 3}, x)

	assert.Equal(t, 1.5, Clip(7, 0.3, 1.5))
	assert.True(t, math.IsNaN(Clip(NaN, 0, 1)))
}

func TestRealizedVolatilityAnnualises(t *testing.T) {
	prices := []float64{100}
	for i := 1; i < 30; i++ {
		step := 1.01
		if i%2 == 0 {
			step = 1 / 1.01
		}
		prices = append(prices, prices[i-1]*step)
	}
	rv := RealizedVolatility(prices, 20, 252)
	require.True(t, math.IsNaN(rv[19]))

	lr := LogReturns(prices)
	daily := RollingStd(lr, 20)[29]
	assert.InDelta(t, daily*math.Sqrt(252), rv[29], 1e-15)
}

func TestRowMeanStd(t *testing.T) {
	mean, std, n := RowMeanStd([]float64{1, NaN, 3})
	assert.Equal(t, 2, n)
	assert.Equal(t, 2.0, mean)
	assert.InDelta(t, math.Sqrt2, std, 1e-15)

	_, std, n = RowMeanStd([]float64{NaN, 4})
	assert.Equal(t, 1, n)
	assert.True(t, math.IsNaN(std))
}
