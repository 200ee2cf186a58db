package signals

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeFlow/internal/domain/models"
)

func walk(n int, assets []string, seed uint64) *models.Panel {
	rng := rand.New(rand.NewPCG(seed, 2*seed+1))
	dates := make([]time.Time, n)
	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	p := models.NewPanel(dates, assets, 0)
	for j := range assets {
		px := 50 + 10*float64(j)
		for i := 0; i < n; i++ {
			px *= 1 + 0.0004*float64(j-1) + 0.015*rng.NormFloat64()
			p.Values[i][j] = px
		}
	}
	return p
}

func rowSum(row []float64) (net, long, short float64) {
	for _, v := range row {
		net += v
		if v > 0 {
			long += v
		} else {
			short -= v
		}
	}
	return net, long, short
}

func TestMomentumPositionsAreBalanced(t *testing.T) {
	prices := walk(300, []string{"AAPL", "MSFT", "AMZN", "NVDA", "SPY", "QQQ", "TLT"}, 1)
	m, err := NewMomentum(DefaultMomentumConfig())
	require.NoError(t, err)

	z := m.ZScores(prices)
	pos := m.Positions(z)
	require.Equal(t, prices.Rows(), pos.Rows())
	for i, row := range pos.Values {
		net, long, short := rowSum(row)
		assert.InDelta(t, 0, net, 1e-6, "row %d", i)
		assert.InDelta(t, 0.5, long, 1e-12, "row %d", i)
		assert.InDelta(t, 0.5, short, 1e-12, "row %d", i)
	}
	for _, row := range z.Values {
		for _, v := range row {
			assert.LessOrEqual(t, math.Abs(v), 5.0)
		}
	}
}

func TestMomentumZScoresClipAndDegenerateRows(t *testing.T) {
	dates := []time.Time{time.Unix(0, 0).UTC(), time.Unix(86400, 0).UTC()}
	cfg := DefaultMomentumConfig()
	cfg.Lookback = 1
	cfg.ZClip = 0.5
	m, err := NewMomentum(cfg)
	require.NoError(t, err)

	flat := models.NewPanel(dates, []string{"A", "B", "C"}, 10)
	for _, v := range m.ZScores(flat).Values[1] {
		assert.Equal(t, 0.0, v)
	}

	moved := flat.Clone()
	moved.Values[1] = []float64{11, 10, 9}
	assert.InDeltaSlice(t, []float64{0.5, 0, -0.5}, m.ZScores(moved).Values[1], 1e-12)
}

func TestMomentumTiesFollowColumnOrder(t *testing.T) {
	m, err := NewMomentum(DefaultMomentumConfig())
	require.NoError(t, err)
	z := models.NewPanel([]time.Time{time.Unix(0, 0).UTC()}, []string{"A", "B", "C", "D"}, 0)

	pos := m.Positions(z)
	// k = max(1, floor(0.3 * 4)) = 1
	assert.Equal(t, []float64{0.5, 0, 0, -0.5}, pos.Values[0])
}

func TestMomentumRejectsBadConfig(t *testing.T) {
	_, err := NewMomentum(MomentumConfig{Lookback: 0, Fraction: 0.3, ZClip: 5})
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = NewMomentum(MomentumConfig{Lookback: 5, Fraction: 0.7, ZClip: 5})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestPairsStateMachine(t *testing.T) {
	p, err := NewPairs(DefaultPairsConfig())
	require.NoError(t, err)

	assert.Equal(t, models.PairShortSpread, p.Next(models.PairFlat, 1.6))
	assert.Equal(t, models.PairLongSpread, p.Next(models.PairFlat, -1.6))
	assert.Equal(t, models.PairFlat, p.Next(models.PairFlat, 1.5))
	assert.Equal(t, models.PairLongSpread, p.Next(models.PairLongSpread, 1.0))
	assert.Equal(t, models.PairFlat, p.Next(models.PairLongSpread, 0.1))
	assert.Equal(t, models.PairFlat, p.Next(models.PairShortSpread, -3.1), "stop")
	// a long spread crossing straight to the other side is stopped, never flipped
	assert.Equal(t, models.PairFlat, p.Next(models.PairLongSpread, 3.5))
	assert.Equal(t, models.PairShortSpread, p.Next(models.PairShortSpread, math.NaN()))
}

func TestPairsPositionsAreDollarNeutral(t *testing.T) {
	prices := walk(400, []string{"SPY", "QQQ", "XLE", "USO", "TLT"}, 4)
	cfg := DefaultPairsConfig()
	cfg.Pairs = append(cfg.Pairs, models.Pair{A: "SPY", B: "TLT"}, models.Pair{A: "GLD", B: "TLT"})
	p, err := NewPairs(cfg)
	require.NoError(t, err)

	res, err := p.Positions(prices)
	require.NoError(t, err)
	assert.Equal(t, []models.Pair{{A: "GLD", B: "TLT"}}, res.Skipped)
	require.Len(t, res.States, 3)

	for i, row := range res.Positions.Values {
		net, _, _ := rowSum(row)
		assert.InDelta(t, 0, net, 1e-6, "row %d", i)
	}
	active := 0
	for k, states := range res.States {
		for i := 1; i < len(states); i++ {
			a, b := states[i-1], states[i]
			jumped := (a == models.PairLongSpread && b == models.PairShortSpread) ||
				(a == models.PairShortSpread && b == models.PairLongSpread)
			assert.False(t, jumped, "pair %s at %d", res.Active[k], i)
			if b != models.PairFlat {
				active++
			}
		}
	}
	assert.Greater(t, active, 0)
	// warm-up rows have no hedge ratio
	assert.GreaterOrEqual(t, res.HedgeRatioDefaults, 3*(cfg.Window-1))
}

func TestPairsRejectsSameLeg(t *testing.T) {
	cfg := DefaultPairsConfig()
	cfg.Pairs = []models.Pair{{A: "SPY", B: "SPY"}}
	_, err := NewPairs(cfg)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestPairsSpreadUsesHedgeRatio(t *testing.T) {
	cfg := DefaultPairsConfig()
	cfg.Window = 3
	p, err := NewPairs(cfg)
	require.NoError(t, err)

	b := []float64{10, 11, 13, 12, 15}
	a := make([]float64, len(b))
	for i, v := range b {
		a[i] = 2*v + 5
	}
	spread, z, deg := p.Spread(a, b)
	assert.Equal(t, 2, deg.HedgeRatioDefaults)
	assert.Equal(t, 15.0, spread[0])
	assert.InDelta(t, 5, spread[4], 1e-9)
	assert.True(t, math.IsNaN(z[1]))
}

func TestPairsFlatLegsHaveNoZScore(t *testing.T) {
	cfg := DefaultPairsConfig()
	cfg.Window = 4
	p, err := NewPairs(cfg)
	require.NoError(t, err)

	a := []float64{20, 20, 20, 20, 20, 20}
	b := []float64{10, 10, 10, 10, 10, 10}
	_, z, deg := p.Spread(a, b)
	assert.Equal(t, len(b), deg.HedgeRatioDefaults)
	assert.Equal(t, len(b)-cfg.Window+1, deg.UndefinedZScores)
	for _, v := range z {
		assert.True(t, math.IsNaN(v))
	}
}

func TestTimeSeriesNormalisation(t *testing.T) {
	prices := walk(200, []string{"SPY", "QQQ", "TLT", "GLD"}, 9)
	ts, err := NewTimeSeries(DefaultTimeSeriesConfig())
	require.NoError(t, err)

	res, err := ts.Positions(prices)
	require.NoError(t, err)
	require.Len(t, res.Components, 3)

	c, ok := res.Component(63)
	require.True(t, ok)
	for i, row := range c.Values {
		net, long, short := rowSum(row)
		assert.InDelta(t, 0, net, 1e-12)
		if i < 63 {
			assert.Equal(t, 0.0, long+short)
			continue
		}
		if long+short > 0 {
			assert.InDelta(t, 1, long+short, 1e-12)
		}
	}
	for i, row := range res.Positions.Values {
		for j, v := range row {
			want := 0.0
			for _, comp := range res.Components {
				want += comp.Values[i][j]
			}
			assert.InDelta(t, want/3, v, 1e-15)
		}
	}
}

func TestTimeSeriesEdgeCases(t *testing.T) {
	prices := walk(10, []string{"A", "B"}, 3)

	_, err := NewTimeSeries(TimeSeriesConfig{Lookbacks: []int{5, 0}})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	empty, err := NewTimeSeries(TimeSeriesConfig{})
	require.NoError(t, err)
	res, err := empty.Positions(prices)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Positions.MaxAbs())

	_, err = empty.Component(prices, -1)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestDefensiveOverlay(t *testing.T) {
	d, err := NewDefensive(DefaultDefensiveConfig())
	require.NoError(t, err)

	both := walk(5, []string{"SPY", "TLT", "GLD"}, 1)
	o := d.Overlay(both)
	assert.InDeltaSlice(t, []float64{0, 0.7, 0.3}, o.Values[4], 1e-15)

	onlyGold := walk(5, []string{"SPY", "GLD"}, 1)
	assert.Equal(t, []float64{0, 1}, d.Overlay(onlyGold).Values[0])

	none := walk(5, []string{"SPY", "QQQ"}, 1)
	assert.Equal(t, 0.0, d.Overlay(none).MaxAbs())
	assert.Empty(t, d.Weights(none.Assets))
}

func TestDefensiveRejectsNegativeWeights(t *testing.T) {
	_, err := NewDefensive(DefensiveConfig{Allocation: map[string]float64{"TLT": -1}})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}
