package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeFlow/internal/domain/models"
	drepo "RegimeFlow/internal/domain/repository"
	"RegimeFlow/internal/repository"
)

func newRunner(t *testing.T, feed drepo.PriceFeed, m *fakeMetrics, cfg RunnerConfig) *BacktestRunner {
	t.Helper()
	r := NewBacktestRunner(feed, newStrategy(t, m), newEngine(t), m, cfg)
	r.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600)) }
	return r
}

func TestRunnerTruncatesAndReports(t *testing.T) {
	m := newFakeMetrics()
	chain := repository.NewFeedChain(nil, []drepo.Loader{trendMarket(t, 700)}, false, 0)
	runner := newRunner(t, chain, m, RunnerConfig{MaxRows: 600, EquityCurvePath: "out/curve.csv"})

	pub := &fakePublisher{}
	store := &fakeStore{}
	curve := &fakeCurve{}
	runner.AddPublisher(pub)
	runner.AddPublisher(nil)
	runner.AddStore(store)
	runner.SetCurveWriter(curve)
	assert.Nil(t, runner.Latest())

	res, err := runner.Run(context.Background())
	require.NoError(t, err)

	rep := res.Report
	assert.Equal(t, 600, rep.Days)
	assert.Equal(t, 600, res.Prices.Rows())
	assert.Equal(t, "synthetic", rep.Source)
	assert.Equal(t, []string{"GLD", "QQQ", "SPY", "TLT"}, rep.Assets)
	assert.Equal(t, res.Prices.Dates[0], rep.Start)
	assert.Equal(t, res.Prices.Dates[599], rep.End)
	assert.Equal(t, time.UTC, rep.GeneratedAt.Location())
	assert.NotEmpty(t, rep.RunID)

	total := 0
	for _, n := range rep.RegimeCounts {
		total += n
	}
	assert.Equal(t, 600, total)

	require.Len(t, pub.reports, 1)
	assert.Equal(t, rep.RunID, pub.reports[0].RunID)
	assert.Equal(t, 600, store.days)
	assert.Equal(t, "out/curve.csv", curve.path)
	assert.Equal(t, 600, curve.rows)
	assert.Len(t, res.Backtest.Days, 600)
	assert.Equal(t, 1, m.summaries)
	assert.Same(t, res, runner.Latest())

	err = runner.Close()
	assert.ErrorContains(t, err, "already closed")
	assert.True(t, pub.closed)
	assert.True(t, store.closed)
}

func TestRunnerSinkFailuresAreNotFatal(t *testing.T) {
	m := newFakeMetrics()
	runner := newRunner(t, trendMarket(t, 300), m, RunnerConfig{})
	runner.AddPublisher(&fakePublisher{err: errors.New("broker down")})

	res, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unknown", res.Report.Source)
	assert.Equal(t, 1, m.errors["publish"])
}

func TestRunnerDateWindow(t *testing.T) {
	feed := trendMarket(t, 400)
	prices, _, err := feed.Load(context.Background())
	require.NoError(t, err)

	from, to := prices.Dates[100], prices.Dates[349]
	runner := newRunner(t, feed, newFakeMetrics(), RunnerConfig{Start: from, End: to})
	res, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250, res.Report.Days)
	assert.Equal(t, from, res.Report.Start)
	assert.Equal(t, to, res.Report.End)
}

type failingFeed struct{}

func (failingFeed) Load(context.Context) (*models.Panel, *models.Series, error) {
	return nil, nil, errors.New("no network")
}

func TestRunnerFeedFailure(t *testing.T) {
	m := newFakeMetrics()
	_, err := newRunner(t, failingFeed{}, m, RunnerConfig{}).Run(context.Background())
	assert.ErrorContains(t, err, "no network")
	assert.Equal(t, 1, m.errors["feed"])
}

func TestRunnerEmptyWindow(t *testing.T) {
	feed := trendMarket(t, 50)
	far := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := newRunner(t, feed, newFakeMetrics(), RunnerConfig{Start: far}).Run(context.Background())
	assert.ErrorIs(t, err, models.ErrDataContract)
}
