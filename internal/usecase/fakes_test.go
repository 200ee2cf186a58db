package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/repository"
	"RegimeFlow/internal/services/backtest"
	"RegimeFlow/internal/services/blend"
	"RegimeFlow/internal/services/regime"
	"RegimeFlow/internal/services/signals"
	"RegimeFlow/internal/services/sizing"
)

type fakeMetrics struct {
	mu         sync.Mutex
	stages     map[string]int
	errors     map[string]int
	degeneracy map[string]int
	summaries  int
	exposure   float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{stages: map[string]int{}, errors: map[string]int{}, degeneracy: map[string]int{}}
}

func (m *fakeMetrics) RecordStage(stage string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[stage]++
}

func (m *fakeMetrics) RecordDegeneracy(kind string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degeneracy[kind] += n
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *fakeMetrics) RecordSummary(models.Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries++
}

func (m *fakeMetrics) RecordExposure(maxAbs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exposure = maxAbs
}

type fakePublisher struct {
	err     error
	reports []*models.Report
	closed  bool
}

func (p *fakePublisher) Publish(_ context.Context, r *models.Report) error {
	p.reports = append(p.reports, r)
	return p.err
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

type fakeStore struct {
	days   int
	closed bool
}

func (s *fakeStore) Init(context.Context) error   { return nil }
func (s *fakeStore) Health(context.Context) error { return nil }

func (s *fakeStore) Store(_ context.Context, _ *models.Report, days []models.DailyResult) error {
	s.days = len(days)
	return nil
}

func (s *fakeStore) Close() error {
	s.closed = true
	return errors.New("already closed")
}

type fakeCurve struct {
	path string
	rows int
}

func (c *fakeCurve) WriteCurve(_ context.Context, path string, days []models.DailyResult) error {
	c.path, c.rows = path, len(days)
	return nil
}

// trendMarket is the four-asset synthetic panel used end to end.
func trendMarket(t *testing.T, rows int) *repository.SyntheticFeed {
	t.Helper()
	feed, err := repository.NewSyntheticFeed(repository.SyntheticConfig{
		Mode:    repository.SyntheticTrend,
		Tickers: []string{"SPY", "QQQ", "TLT", "GLD"},
		Rows:    rows,
		Seed:    42,
	})
	require.NoError(t, err)
	return feed
}

func newStrategy(t *testing.T, m *fakeMetrics) *RegimeStrategy {
	t.Helper()
	rcfg := regime.DefaultConfig()
	rcfg.MinTrain = 120
	est, err := regime.NewEstimator(rcfg)
	require.NoError(t, err)
	mom, err := signals.NewMomentum(signals.DefaultMomentumConfig())
	require.NoError(t, err)
	pairs, err := signals.NewPairs(signals.DefaultPairsConfig())
	require.NoError(t, err)
	ts, err := signals.NewTimeSeries(signals.DefaultTimeSeriesConfig())
	require.NoError(t, err)
	def, err := signals.NewDefensive(signals.DefaultDefensiveConfig())
	require.NoError(t, err)
	bl, err := blend.NewBlender(blend.DefaultConfig())
	require.NoError(t, err)
	sz, err := sizing.NewSizer(sizing.DefaultConfig())
	require.NoError(t, err)
	return NewRegimeStrategy(est, mom, pairs, ts, def, bl, sz, m)
}

func newEngine(t *testing.T) *backtest.Engine {
	t.Helper()
	e, err := backtest.NewEngine(backtest.DefaultConfig())
	require.NoError(t, err)
	return e
}
