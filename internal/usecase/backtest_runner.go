package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"RegimeFlow/internal/domain/models"
	drepo "RegimeFlow/internal/domain/repository"
	"RegimeFlow/internal/services/backtest"
	applogger "RegimeFlow/pkg/logger"
)

// RunnerConfig bounds the history a run uses and names its artifacts.
type RunnerConfig struct {
	MaxRows         int
	Start, End      time.Time
	EquityCurvePath string
}

// RunResult is the outcome of one backtest.
type RunResult struct {
	Report   *models.Report
	Prices   *models.Panel
	VIX      *models.Series
	Strategy *StrategyResult
	Backtest *backtest.Result
}

// BacktestRunner loads data, runs the strategy and the engine, and ships the
// report to every configured sink.
type BacktestRunner struct {
	feed       drepo.PriceFeed
	strategy   *RegimeStrategy
	engine     *backtest.Engine
	publishers []drepo.ReportPublisher
	stores     []drepo.ReportStore
	curve      drepo.CurveWriter
	metrics    drepo.Metrics
	cfg        RunnerConfig
	now        func() time.Time
	l          *applogger.Logger

	last atomic.Pointer[RunResult]
}

func NewBacktestRunner(
	feed drepo.PriceFeed,
	strategy *RegimeStrategy,
	engine *backtest.Engine,
	metrics drepo.Metrics,
	cfg RunnerConfig,
) *BacktestRunner {
	return &BacktestRunner{
		feed:     feed,
		strategy: strategy,
		engine:   engine,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
		l:        applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (r *BacktestRunner) SetLogger(l *applogger.Logger) {
	if l != nil {
		r.l = l
	}
}

// AddPublisher registers a report publisher. Nil is ignored.
func (r *BacktestRunner) AddPublisher(p drepo.ReportPublisher) {
	if p != nil {
		r.publishers = append(r.publishers, p)
	}
}

// AddStore registers a report store. Nil is ignored.
func (r *BacktestRunner) AddStore(s drepo.ReportStore) {
	if s != nil {
		r.stores = append(r.stores, s)
	}
}

// SetCurveWriter sets where the equity curve goes when a path is configured.
func (r *BacktestRunner) SetCurveWriter(w drepo.CurveWriter) { r.curve = w }

// Latest returns the most recent successful run, or nil.
func (r *BacktestRunner) Latest() *RunResult { return r.last.Load() }

// Run executes one backtest.
func (r *BacktestRunner) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	prices, vix, err := r.feed.Load(ctx)
	r.metrics.RecordStage("load", time.Since(start).Seconds())
	if err != nil {
		r.metrics.RecordError("feed")
		return nil, fmt.Errorf("load prices: %w", err)
	}
	prices, vix = r.truncate(prices, vix)
	if prices.Rows() == 0 {
		return nil, models.NewContractError("no dates left after truncation")
	}

	strat, err := r.strategy.Positions(ctx, prices, vix)
	if err != nil {
		return nil, err
	}

	t0 := time.Now()
	bt, err := r.engine.Run(prices, strat.Weights)
	r.metrics.RecordStage("backtest", time.Since(t0).Seconds())
	if err != nil {
		r.metrics.RecordError("backtest")
		return nil, fmt.Errorf("backtest: %w", err)
	}

	res := &RunResult{
		Report:   r.report(prices, strat, bt),
		Prices:   prices,
		VIX:      vix,
		Strategy: strat,
		Backtest: bt,
	}
	r.metrics.RecordSummary(bt.Summary)
	r.ship(ctx, res)
	r.last.Store(res)

	r.l.Info("backtest finished",
		applogger.String("run_id", res.Report.RunID),
		applogger.String("source", res.Report.Source),
		applogger.Int("days", res.Report.Days),
		applogger.Float64("cagr", float64(bt.Summary.CAGR)),
		applogger.Float64("sharpe", float64(bt.Summary.Sharpe)),
		applogger.Float64("max_drawdown", float64(bt.Summary.MaxDrawdown)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return res, nil
}

func (r *BacktestRunner) truncate(prices *models.Panel, vix *models.Series) (*models.Panel, *models.Series) {
	if !r.cfg.Start.IsZero() || !r.cfg.End.IsZero() {
		prices = prices.Slice(r.cfg.Start, r.cfg.End)
		vix = vix.Slice(r.cfg.Start, r.cfg.End)
	}
	if r.cfg.MaxRows > 0 && prices.Rows() > r.cfg.MaxRows {
		prices = prices.Head(r.cfg.MaxRows)
		vix = vix.Head(r.cfg.MaxRows)
	}
	return prices, vix
}

func (r *BacktestRunner) report(prices *models.Panel, strat *StrategyResult, bt *backtest.Result) *models.Report {
	counts := make(map[string]int, 3)
	for _, g := range strat.Regime.Regimes {
		counts[g.String()]++
	}
	rep := &models.Report{
		RunID:        uuid.NewString(),
		GeneratedAt:  r.now().UTC(),
		Source:       "unknown",
		Start:        prices.Dates[0],
		End:          prices.Dates[prices.Rows()-1],
		Days:         prices.Rows(),
		Assets:       append([]string(nil), prices.Assets...),
		Strategy:     strat.Regime.Strategy,
		Summary:      bt.Summary,
		RegimeCounts: counts,
		Degeneracy:   strat.Degeneracy,
	}
	if src, ok := r.feed.(interface{ LastSource() string }); ok && src.LastSource() != "" {
		rep.Source = src.LastSource()
	}
	sort.Strings(rep.Assets)
	return rep
}

// ship delivers the run to sinks. Failures are logged and counted, never
// returned.
func (r *BacktestRunner) ship(ctx context.Context, res *RunResult) {
	for _, p := range r.publishers {
		if err := p.Publish(ctx, res.Report); err != nil {
			r.metrics.RecordError("publish")
			r.l.Error("report publish failed", applogger.Error(err))
		}
	}
	for _, s := range r.stores {
		if err := s.Store(ctx, res.Report, res.Backtest.Days); err != nil {
			r.metrics.RecordError("store")
			r.l.Error("report store failed", applogger.Error(err))
		}
	}
	if r.curve != nil && r.cfg.EquityCurvePath != "" {
		if err := r.curve.WriteCurve(ctx, r.cfg.EquityCurvePath, res.Backtest.Days); err != nil {
			r.metrics.RecordError("equity_curve")
			r.l.Error("equity curve export failed",
				applogger.String("path", r.cfg.EquityCurvePath),
				applogger.Error(err),
			)
		}
	}
}

// Close releases every sink.
func (r *BacktestRunner) Close() error {
	var errs []error
	for _, p := range r.publishers {
		errs = append(errs, p.Close())
	}
	for _, s := range r.stores {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
