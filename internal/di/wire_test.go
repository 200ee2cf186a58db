package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeFlow/pkg/config"
)

func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Environment = "test"
	cfg.Logger.Level = "error"
	cfg.Data.PreferDownload = false
	cfg.Data.SyntheticMode = "trend"
	cfg.Data.MaxRows = 400
	cfg.Strategy.Regime.MinTrain = 120
	cfg.Cache.Dir = dir
	cfg.Cache.Memory = true
	cfg.Backtest.EquityCurvePath = filepath.Join(dir, "equity.csv")
	return cfg
}

func TestInitializeAppRunsOffline(t *testing.T) {
	cfg := offlineConfig(t)
	app, err := InitializeApp(cfg)
	require.NoError(t, err)

	res, err := app.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "synthetic", res.Report.Source)
	assert.Equal(t, 400, res.Report.Days)
	assert.Len(t, res.Backtest.Days, 400)

	_, err = os.Stat(cfg.Backtest.EquityCurvePath)
	assert.NoError(t, err)
	// the CSV tier was written back
	_, err = os.Stat(filepath.Join(cfg.Cache.Dir, "prices.csv"))
	assert.NoError(t, err)

	again, err := app.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory", again.Report.Source)
	assert.Equal(t, res.Report.Summary.MaxDrawdown, again.Report.Summary.MaxDrawdown)
	assert.Equal(t, res.Report.Summary.TotalReturn, again.Report.Summary.TotalReturn)

	require.NoError(t, app.Close())
}

func TestInitializeAppRejectsBadStrategy(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Strategy.Momentum.Fraction = 0.9
	_, err := InitializeApp(cfg)
	assert.Error(t, err)
}
