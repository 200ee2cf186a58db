package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeFlow/internal/domain/models"
	drepo "RegimeFlow/internal/domain/repository"
)

func TestCSVStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewCSVStore(filepath.Join(t.TempDir(), "cache"), "")
	prices, vix := samplePanel()

	require.NoError(t, store.Save(ctx, prices, vix))
	gotP, gotV, err := store.Load(ctx)
	require.NoError(t, err)

	assert.True(t, prices.Equal(gotP))
	assert.Equal(t, vix.Values, gotV.Values)
	assert.Equal(t, vix.Dates, gotV.Dates)

	raw, err := os.ReadFile(filepath.Join(store.dir, vixFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "date,^VIX\n")
	assert.Contains(t, string(raw), "2021-03-02,0.3333333333333333\n")
}

func TestCSVStoreAlignsOnCommonDates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, pricesFile),
		[]byte("date,SPY\n2021-03-03,3\n2021-03-01,1\n2021-03-02,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, vixFile),
		[]byte("date,^VIX\n2021-03-01,10\n2021-03-03,30\n2021-03-04,40\n"), 0o644))

	prices, vix, err := NewCSVStore(dir, "").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, prices.Col(0))
	assert.Equal(t, []float64{10, 30}, vix.Values)
	assert.Equal(t, day(2), prices.Dates[1])
}

func TestCSVStoreMissingIsNotFound(t *testing.T) {
	_, _, err := NewCSVStore(t.TempDir(), "").Load(context.Background())
	assert.ErrorIs(t, err, drepo.ErrNotFound)
}

func TestCSVStoreRejectsDuplicateDates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, pricesFile),
		[]byte("date,SPY\n2021-03-01,1\n2021-03-01,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, vixFile),
		[]byte("date,^VIX\n2021-03-01,10\n"), 0o644))

	_, _, err := NewCSVStore(dir, "").Load(context.Background())
	assert.ErrorIs(t, err, models.ErrDataContract)
}

func TestCSVStoreWriteCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "curve.csv")
	days := []models.DailyResult{
		{Date: day(0), Net: 0, Equity: 1},
		{Date: day(1), Net: 0.01, Equity: 1.01},
	}
	require.NoError(t, NewCSVStore(t.TempDir(), "").WriteCurve(context.Background(), path, days))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,equity,net_return\n2021-03-01,1,0\n2021-03-02,1.01,0.01\n", string(raw))
}
