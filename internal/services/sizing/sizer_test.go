package sizing

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeFlow/internal/domain/models"
)

func panel(n int, seed uint64) *models.Panel {
	rng := rand.New(rand.NewPCG(seed, seed))
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = time.Date(2019, 6, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	p := models.NewPanel(dates, []string{"SPY", "TLT"}, 0)
	a, b := 300.0, 120.0
	for i := 0; i < n; i++ {
		a *= 1 + 0.012*rng.NormFloat64()
		b *= 1 + 0.006*rng.NormFloat64()
		p.Values[i][0], p.Values[i][1] = a, b
	}
	return p
}

func constant(like *models.Panel, row ...float64) *models.Panel {
	w := models.ZerosLike(like)
	for i := range w.Values {
		copy(w.Values[i], row)
	}
	return w
}

func TestScaleRespectsCapAndProducesNoNaN(t *testing.T) {
	prices := panel(250, 1)
	s, err := NewSizer(DefaultConfig())
	require.NoError(t, err)

	res, err := s.Scale(constant(prices, 0.3, -0.1), prices)
	require.NoError(t, err)
	assert.False(t, res.Weights.HasNaN())
	for i, k := range res.VolScale {
		assert.LessOrEqual(t, k, 2.7, "row %d", i)
		assert.Greater(t, k, 0.0)
	}
	// warm-up rows have no volatility estimate at all
	assert.Equal(t, 1.0, res.VolScale[0])
	assert.Equal(t, DefaultConfig().VolWindow-1, res.VolScaleDefaults)
}

func TestScaleHitsVolTarget(t *testing.T) {
	prices := panel(120, 2)
	cfg := DefaultConfig()
	cfg.MaxScale = 100
	cfg.DrawdownStart, cfg.DrawdownFloor, cfg.CrashDrawdown = 0, -1, -0.99
	s, err := NewSizer(cfg)
	require.NoError(t, err)

	res, err := s.Scale(constant(prices, 1, 0), prices)
	require.NoError(t, err)

	window := res.Returns[100:120]
	mean := 0.0
	for _, r := range window {
		mean += r
	}
	mean /= 20
	ss := 0.0
	for _, r := range window {
		ss += (r - mean) * (r - mean)
	}
	vol := math.Sqrt(ss/19) * math.Sqrt(252)
	assert.InDelta(t, 0.06/vol, res.VolScale[119], 1e-12)
}

func TestScaleFallsBackToBenchmark(t *testing.T) {
	prices := panel(60, 3)
	s, err := NewSizer(DefaultConfig())
	require.NoError(t, err)

	res, err := s.Scale(models.ZerosLike(prices), prices)
	require.NoError(t, err)
	// flat book has zero volatility, the benchmark stands in
	assert.Equal(t, 60-20+1, res.VolScaleFallbacks)
	assert.Equal(t, 0.0, res.Weights.MaxAbs())
}

func TestScaleMissingBenchmark(t *testing.T) {
	prices := panel(10, 4)
	cfg := DefaultConfig()
	cfg.Benchmark = "QQQ"
	s, err := NewSizer(cfg)
	require.NoError(t, err)

	_, err = s.Scale(models.ZerosLike(prices), prices)
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = s.Scale(models.ZerosLike(prices).Head(5), prices)
	assert.Error(t, err)
}

func TestDrawdown(t *testing.T) {
	dd := Drawdown([]float64{0, 0.1, -0.5, 1, 0.05})
	assert.Equal(t, 0.0, dd[0])
	assert.Equal(t, 0.0, dd[1])
	assert.InDelta(t, -0.5, dd[2], 1e-15)
	assert.Equal(t, 0.0, dd[3])
	for _, d := range dd {
		assert.LessOrEqual(t, d, 0.0)
	}
}

func TestMultipliersCurveAndCooldown(t *testing.T) {
	s, err := NewSizer(DefaultConfig())
	require.NoError(t, err)

	m := s.Multipliers([]float64{0, -0.05, -0.15, -0.25, -0.3, 0})
	assert.InDeltaSlice(t, []float64{1, 1, 0.5, 0, 0, 0}, m, 1e-12)

	crash := []float64{-0.02, -0.13, -0.01, -0.01, -0.01, -0.01, -0.01, -0.01}
	m = s.Multipliers(crash)
	// the breach day follows the curve, then five days flat
	assert.InDelta(t, 0.6, m[1], 1e-12)
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, m[2:7])
	assert.Equal(t, 1.0, m[7])
}

func TestNewSizerRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DrawdownFloor = -0.01
	_, err := NewSizer(cfg)
	assert.ErrorIs(t, err, models.ErrConfiguration)

	cfg = DefaultConfig()
	cfg.Cooldown = -1
	_, err = NewSizer(cfg)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}
