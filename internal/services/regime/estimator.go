// Package regime estimates the daily probability of the high-risk regime
// from the volatility index and the benchmark's realised volatility.
package regime

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/services/features"
	applogger "RegimeFlow/pkg/logger"
)

const (
	StrategyWalkForward = "walk_forward"
	StrategyLabel       = "label"
)

// Config parameterises the estimator.
type Config struct {
	Benchmark      string  `yaml:"benchmark" default:"SPY"`
	LowVIX         float64 `yaml:"low_vix" default:"15" validate:"gt=0"`
	HighVIX        float64 `yaml:"high_vix" default:"25" validate:"gtfield=LowVIX"`
	VolWindow      int     `yaml:"vol_window" default:"20" validate:"gte=2"`
	MinTrain       int     `yaml:"min_train" default:"252" validate:"gte=2"`
	EMASpan        int     `yaml:"ema_span" default:"5" validate:"gte=1"`
	HighProb       float64 `yaml:"high_prob" default:"0.6" validate:"gte=0,lte=1"`
	LowProb        float64 `yaml:"low_prob" default:"0.25" validate:"gte=0,lte=1"`
	Classifier     string  `yaml:"classifier" default:"logistic" validate:"oneof=logistic none"`
	C              float64 `yaml:"c" default:"1" validate:"gt=0"`
	MaxIter        int     `yaml:"max_iter" default:"200" validate:"gte=1"`
	Workers        int     `yaml:"workers" default:"4" validate:"gte=1"`
	PeriodsPerYear float64 `yaml:"-"`
}

// DefaultConfig mirrors the yaml defaults.
func DefaultConfig() Config {
	return Config{
		Benchmark:      "SPY",
		LowVIX:         15,
		HighVIX:        25,
		VolWindow:      20,
		MinTrain:       252,
		EMASpan:        5,
		HighProb:       0.6,
		LowProb:        0.25,
		Classifier:     "logistic",
		C:              1,
		MaxIter:        200,
		Workers:        4,
		PeriodsPerYear: 252,
	}
}

func (c Config) Validate() error {
	switch {
	case c.LowVIX <= 0 || c.HighVIX <= c.LowVIX:
		return models.NewConfigError("regime.low_vix/high_vix", "need 0 < low (%v) < high (%v)", c.LowVIX, c.HighVIX)
	case c.VolWindow < 2:
		return models.NewConfigError("regime.vol_window", "must be at least 2, got %d", c.VolWindow)
	case c.MinTrain < 2:
		return models.NewConfigError("regime.min_train", "must be at least 2, got %d", c.MinTrain)
	case c.EMASpan < 1:
		return models.NewConfigError("regime.ema_span", "must be positive, got %d", c.EMASpan)
	case c.LowProb < 0 || c.HighProb > 1 || c.LowProb > c.HighProb:
		return models.NewConfigError("regime.low_prob/high_prob", "need 0 <= low (%v) <= high (%v) <= 1", c.LowProb, c.HighProb)
	case c.PeriodsPerYear <= 0:
		return models.NewConfigError("periods_per_year", "must be positive, got %v", c.PeriodsPerYear)
	case c.Classifier != "logistic" && c.Classifier != "none":
		return models.NewConfigError("regime.classifier", "unknown classifier %q", c.Classifier)
	}
	return nil
}

// Option customises an Estimator.
type Option func(*Estimator)

// WithClassifier overrides the classifier factory. A nil factory selects
// the label strategy.
func WithClassifier(f ClassifierFactory) Option {
	return func(e *Estimator) { e.factory = f }
}

func WithLogger(l *applogger.Logger) Option {
	return func(e *Estimator) { e.l = l }
}

// Estimator produces a RegimeSeries from prices and the volatility index.
type Estimator struct {
	cfg     Config
	factory ClassifierFactory
	l       *applogger.Logger
}

// NewEstimator validates cfg and picks the estimation strategy: walk-forward
// when a classifier is configured, raw labels otherwise.
func NewEstimator(cfg Config, opts ...Option) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Estimator{cfg: cfg, l: applogger.Nop()}
	if cfg.Classifier == "logistic" {
		e.factory = NewLogisticFactory(cfg.C, cfg.MaxIter)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Estimate runs the regime pipeline over the full history.
func (e *Estimator) Estimate(ctx context.Context, prices *models.Panel, vix *models.Series) (*models.RegimeSeries, error) {
	col, err := e.benchmarkColumn(prices)
	if err != nil {
		return nil, err
	}
	n := prices.Rows()
	realised := features.RealizedVolatility(prices.Col(col), e.cfg.VolWindow, e.cfg.PeriodsPerYear)
	X := BuildFeatures(vix.Values, realised)
	labels := ProvisionalLabels(vix.Values, e.cfg.LowVIX, e.cfg.HighVIX)
	flags := HighFlags(labels)

	out := &models.RegimeSeries{
		Dates:   prices.Dates,
		Labels:  labels,
		Raw:     make([]float64, n),
		Sources: make([]models.EstimateSource, n),
	}

	if e.factory == nil || singleClass(flags) {
		out.Strategy = StrategyLabel
		copy(out.Raw, flags)
		for i := range out.Sources {
			out.Sources[i] = models.SourceLabel
		}
		e.l.Debug("regime estimator using label strategy",
			applogger.Bool("classifier", e.factory != nil),
			applogger.Int("dates", n),
		)
	} else {
		out.Strategy = StrategyWalkForward
		if err := e.walkForward(ctx, X, flags, out); err != nil {
			return nil, err
		}
	}

	smooth(out, e.cfg)
	return out, nil
}

func (e *Estimator) benchmarkColumn(prices *models.Panel) (int, error) {
	if e.cfg.Benchmark == "" {
		return 0, nil
	}
	j, ok := prices.Index(e.cfg.Benchmark)
	if !ok {
		return -1, models.NewConfigError("benchmark", "asset %q not in price panel", e.cfg.Benchmark)
	}
	return j, nil
}

// walkForward fills out.Raw. The estimate at pos only reads labels and
// features from rows strictly before pos, plus the features of pos itself
// for scoring.
func (e *Estimator) walkForward(ctx context.Context, X [][]float64, flags []float64, out *models.RegimeSeries) error {
	start := time.Now()
	n := len(flags)
	minTrain := e.cfg.MinTrain
	failed := make([]bool, n)

	sum := 0.0
	for pos := 0; pos < n && pos < minTrain; pos++ {
		out.Sources[pos] = models.SourceBaseline
		if pos == 0 {
			out.Raw[pos] = math.NaN()
		} else {
			out.Raw[pos] = sum / float64(pos)
		}
		sum += flags[pos]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for pos := minTrain; pos < n; pos++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			yTrain := flags[pos-minTrain : pos]
			if singleClass(yTrain) {
				out.Raw[pos] = yTrain[len(yTrain)-1]
				out.Sources[pos] = models.SourceLastLabel
				return nil
			}
			out.Sources[pos] = models.SourceModel
			p, err := fitAndScore(e.factory(), X[pos-minTrain:pos], yTrain, X[pos])
			if err != nil {
				out.Raw[pos] = math.NaN()
				failed[pos] = true
				return nil
			}
			out.Raw[pos] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("walk-forward: %w", err)
	}

	for pos := range failed {
		if failed[pos] {
			out.ClassifierFailures++
		}
		if out.Sources[pos] == models.SourceLastLabel {
			out.SingleClassWindows++
		}
	}
	e.l.Debug("regime walk-forward done",
		applogger.Int("dates", n),
		applogger.Int("fits", n-min(n, minTrain)-out.SingleClassWindows),
		applogger.Int("single_class_windows", out.SingleClassWindows),
		applogger.Int("classifier_failures", out.ClassifierFailures),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// fitAndScore standardises with the training rows only, fits, and scores x.
func fitAndScore(clf Classifier, XTrain [][]float64, yTrain []float64, x []float64) (float64, error) {
	sc := fitScaler(XTrain)
	if err := clf.Fit(sc.transformAll(XTrain), yTrain); err != nil {
		return math.NaN(), err
	}
	p, err := clf.PredictProba(sc.transform(x))
	if err != nil {
		return math.NaN(), err
	}
	if !features.IsFinite(p) {
		return math.NaN(), fmt.Errorf("non-finite probability %v", p)
	}
	return p, nil
}

// smooth forward-fills unresolved estimates, clips, applies the EMA and
// discretises.
func smooth(out *models.RegimeSeries, cfg Config) {
	raw := features.FillNaN(features.ForwardFill(append([]float64(nil), out.Raw...)), 0)
	for i := range raw {
		raw[i] = features.Clip(raw[i], 0, 1)
	}
	out.Smoothed = features.EWM(raw, cfg.EMASpan)
	out.Regimes = make([]models.Regime, len(raw))
	for i, p := range out.Smoothed {
		p = features.Clip(p, 0, 1)
		out.Smoothed[i] = p
		out.Regimes[i] = Discretise(p, cfg.LowProb, cfg.HighProb)
	}
}

func singleClass(y []float64) bool {
	if len(y) == 0 {
		return true
	}
	for _, v := range y[1:] {
		if v != y[0] {
			return false
		}
	}
	return true
}
