package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeFlow/internal/domain/models"
)

func TestStrategyEndToEnd(t *testing.T) {
	ctx := context.Background()
	prices, vix, err := trendMarket(t, 600).Load(ctx)
	require.NoError(t, err)

	m := newFakeMetrics()
	strat := newStrategy(t, m)
	res, err := strat.Positions(ctx, prices, vix)
	require.NoError(t, err)

	w := res.Weights
	assert.Equal(t, prices.Dates, w.Dates)
	assert.Equal(t, prices.Assets, w.Assets)
	assert.False(t, w.HasNaN())
	assert.Less(t, w.MaxAbs(), 5.0)

	// XLE/USO is configured but absent
	require.Len(t, res.Pairs.Skipped, 1)
	assert.Equal(t, "XLE", res.Pairs.Skipped[0].A)

	for _, stage := range []string{"regime", "momentum", "pairs", "timeseries", "defensive", "blend", "sizing"} {
		assert.Equal(t, 1, m.stages[stage], stage)
	}
	assert.Equal(t, w.MaxAbs(), m.exposure)
	assert.Empty(t, m.errors)

	again, err := strat.Positions(ctx, prices, vix)
	require.NoError(t, err)
	assert.True(t, w.Equal(again.Weights), "reruns must be bit-identical")
	assert.Equal(t, res.Regime.Smoothed, again.Regime.Smoothed)
}

func TestStrategyRejectsContractViolations(t *testing.T) {
	ctx := context.Background()
	prices, vix, err := trendMarket(t, 50).Load(ctx)
	require.NoError(t, err)
	vix = vix.Head(49)

	m := newFakeMetrics()
	_, err = newStrategy(t, m).Positions(ctx, prices, vix)
	assert.ErrorIs(t, err, models.ErrDataContract)
	assert.Equal(t, 1, m.errors["contract"])
}

func TestStrategyCountsMissingDefensiveAssets(t *testing.T) {
	ctx := context.Background()
	feed := trendMarket(t, 200)
	prices, vix, err := feed.Load(ctx)
	require.NoError(t, err)

	// keep SPY and QQQ only
	narrow := models.NewPanel(prices.Dates, []string{"SPY", "QQQ"}, 0)
	for i := range prices.Values {
		copy(narrow.Values[i], prices.Values[i][:2])
	}

	res, err := newStrategy(t, newFakeMetrics()).Positions(ctx, narrow, vix)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Defensive.MaxAbs())
	assert.GreaterOrEqual(t, res.Degeneracy.DefensiveFallbacks, 1)
	assert.False(t, res.Weights.HasNaN())
}
