package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"RegimeFlow/internal/domain/models"
	drepo "RegimeFlow/internal/domain/repository"
	"RegimeFlow/internal/services/blend"
	"RegimeFlow/internal/services/regime"
	"RegimeFlow/internal/services/signals"
	"RegimeFlow/internal/services/sizing"
	applogger "RegimeFlow/pkg/logger"
)

// StrategyResult holds the final weights and every intermediate panel.
type StrategyResult struct {
	Weights    *models.Panel
	Raw        *models.Panel
	Regime     *models.RegimeSeries
	MomentumZ  *models.Panel
	Momentum   *models.Panel
	Pairs      *signals.PairsResult
	TimeSeries *signals.TimeSeriesResult
	Defensive  *models.Panel
	Blend      *blend.Result
	Scale      *sizing.ScaleResult
	Degeneracy models.Degeneracy
}

// RegimeStrategy runs regime estimation, the four sleeves, blending and
// sizing over one price panel.
type RegimeStrategy struct {
	estimator  *regime.Estimator
	momentum   *signals.Momentum
	pairs      *signals.Pairs
	timeseries *signals.TimeSeries
	defensive  *signals.Defensive
	blender    *blend.Blender
	sizer      *sizing.Sizer
	metrics    drepo.Metrics
	l          *applogger.Logger
}

func NewRegimeStrategy(
	estimator *regime.Estimator,
	momentum *signals.Momentum,
	pairs *signals.Pairs,
	timeseries *signals.TimeSeries,
	defensive *signals.Defensive,
	blender *blend.Blender,
	sizer *sizing.Sizer,
	metrics drepo.Metrics,
) *RegimeStrategy {
	return &RegimeStrategy{
		estimator:  estimator,
		momentum:   momentum,
		pairs:      pairs,
		timeseries: timeseries,
		defensive:  defensive,
		blender:    blender,
		sizer:      sizer,
		metrics:    metrics,
		l:          applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (s *RegimeStrategy) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// Positions computes the sized weight panel. The regime estimate and the
// sleeves only read the inputs, so they run concurrently.
func (s *RegimeStrategy) Positions(ctx context.Context, prices *models.Panel, vix *models.Series) (*StrategyResult, error) {
	if err := models.ValidateInputs(prices, vix); err != nil {
		s.metrics.RecordError("contract")
		return nil, err
	}
	res := &StrategyResult{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.stage("regime", func() (err error) {
			res.Regime, err = s.estimator.Estimate(gctx, prices, vix)
			return err
		})
	})
	g.Go(func() error {
		return s.stage("momentum", func() error {
			res.MomentumZ = s.momentum.ZScores(prices)
			res.Momentum = s.momentum.Positions(res.MomentumZ)
			return nil
		})
	})
	g.Go(func() error {
		return s.stage("pairs", func() (err error) {
			res.Pairs, err = s.pairs.Positions(prices)
			return err
		})
	})
	g.Go(func() error {
		return s.stage("timeseries", func() (err error) {
			res.TimeSeries, err = s.timeseries.Positions(prices)
			return err
		})
	})
	g.Go(func() error {
		return s.stage("defensive", func() error {
			res.Defensive = s.defensive.Overlay(prices)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		s.metrics.RecordError("strategy")
		return nil, fmt.Errorf("signals: %w", err)
	}

	if len(res.Pairs.Skipped) > 0 {
		names := make([]string, len(res.Pairs.Skipped))
		for i, p := range res.Pairs.Skipped {
			names[i] = p.String()
		}
		s.l.Warn("pairs skipped, legs not in panel", applogger.Strings("pairs", names))
	}

	err := s.stage("blend", func() (err error) {
		res.Blend, err = s.blender.Blend(res.Regime, blend.Sleeves{
			Momentum:   res.Momentum,
			MomentumZ:  res.MomentumZ,
			Pairs:      res.Pairs.Positions,
			TimeSeries: res.TimeSeries.Positions,
			Defensive:  res.Defensive,
		})
		return err
	})
	if err != nil {
		s.metrics.RecordError("blend")
		return nil, fmt.Errorf("blend: %w", err)
	}
	res.Raw = res.Blend.Weights

	err = s.stage("sizing", func() (err error) {
		res.Scale, err = s.sizer.Scale(res.Raw, prices)
		return err
	})
	if err != nil {
		s.metrics.RecordError("sizing")
		return nil, fmt.Errorf("sizing: %w", err)
	}
	res.Weights = res.Scale.Weights

	res.Degeneracy.Add(res.Regime.Degeneracy)
	res.Degeneracy.Add(res.Pairs.Degeneracy)
	res.Degeneracy.Add(res.Blend.Degeneracy)
	res.Degeneracy.Add(res.Scale.Degeneracy)
	if res.Defensive.MaxAbs() == 0 {
		res.Degeneracy.DefensiveFallbacks++
	}
	for kind, n := range res.Degeneracy.Counts() {
		s.metrics.RecordDegeneracy(kind, n)
	}
	s.metrics.RecordExposure(res.Weights.MaxAbs())

	s.l.Info("strategy positions ready",
		applogger.Int("dates", prices.Rows()),
		applogger.Int("assets", prices.Cols()),
		applogger.String("regime_strategy", res.Regime.Strategy),
		applogger.Float64("max_abs_weight", res.Weights.MaxAbs()),
	)
	return res, nil
}

func (s *RegimeStrategy) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.RecordStage(name, time.Since(start).Seconds())
	if err != nil {
		s.l.Error("strategy stage failed", applogger.String("stage", name), applogger.Error(err))
		return err
	}
	s.l.Debug("strategy stage done",
		applogger.String("stage", name),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}
