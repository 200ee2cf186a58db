// Package sizing scales a raw weight panel to a volatility target and cuts
// risk during drawdowns.
package sizing

import (
	"math"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/services/features"
)

// Config parameterises the sizer. Drawdown levels are negative fractions.
type Config struct {
	Benchmark      string  `yaml:"benchmark" default:"SPY"`
	TargetVol      float64 `yaml:"target_vol" default:"0.06" validate:"gt=0"`
	VolWindow      int     `yaml:"vol_window" default:"20" validate:"gte=2"`
	MaxScale       float64 `yaml:"max_scale" default:"2.7" validate:"gt=0"`
	DrawdownStart  float64 `yaml:"drawdown_start" default:"-0.05" validate:"lte=0"`
	DrawdownFloor  float64 `yaml:"drawdown_floor" default:"-0.25" validate:"ltfield=DrawdownStart"`
	CrashDrawdown  float64 `yaml:"crash_drawdown" default:"-0.12" validate:"lt=0"`
	Cooldown       int     `yaml:"cooldown" default:"5" validate:"gte=0"`
	PeriodsPerYear float64 `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Benchmark:      "SPY",
		TargetVol:      0.06,
		VolWindow:      20,
		MaxScale:       2.7,
		DrawdownStart:  -0.05,
		DrawdownFloor:  -0.25,
		CrashDrawdown:  -0.12,
		Cooldown:       5,
		PeriodsPerYear: 252,
	}
}

func (c Config) Validate() error {
	switch {
	case c.TargetVol <= 0:
		return models.NewConfigError("sizing.target_vol", "must be positive, got %v", c.TargetVol)
	case c.VolWindow < 2:
		return models.NewConfigError("sizing.vol_window", "must be at least 2, got %d", c.VolWindow)
	case c.MaxScale <= 0:
		return models.NewConfigError("sizing.max_scale", "must be positive, got %v", c.MaxScale)
	case c.DrawdownStart > 0 || c.DrawdownFloor >= c.DrawdownStart:
		return models.NewConfigError("sizing.drawdown_start/drawdown_floor",
			"need floor (%v) < start (%v) <= 0", c.DrawdownFloor, c.DrawdownStart)
	case c.CrashDrawdown >= 0:
		return models.NewConfigError("sizing.crash_drawdown", "must be negative, got %v", c.CrashDrawdown)
	case c.Cooldown < 0:
		return models.NewConfigError("sizing.cooldown", "must not be negative, got %d", c.Cooldown)
	case c.PeriodsPerYear <= 0:
		return models.NewConfigError("periods_per_year", "must be positive, got %v", c.PeriodsPerYear)
	}
	return nil
}

// ScaleResult is the sized panel with the per-date factors that produced it.
type ScaleResult struct {
	Weights    *models.Panel
	Returns    []float64
	VolScale   []float64
	Drawdown   []float64
	Multiplier []float64
	models.Degeneracy
}

// Sizer applies volatility targeting and drawdown de-risking.
type Sizer struct {
	cfg Config
}

func NewSizer(cfg Config) (*Sizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sizer{cfg: cfg}, nil
}

// Scale sizes raw against prices. Both panels must share a shape.
func (s *Sizer) Scale(raw, prices *models.Panel) (*ScaleResult, error) {
	if raw.Rows() != prices.Rows() || raw.Cols() != prices.Cols() {
		return nil, models.NewContractError("weights are %dx%d, prices are %dx%d",
			raw.Rows(), raw.Cols(), prices.Rows(), prices.Cols())
	}
	bench := 0
	if s.cfg.Benchmark != "" {
		j, ok := prices.Index(s.cfg.Benchmark)
		if !ok {
			return nil, models.NewConfigError("sizing.benchmark", "asset %q not in price panel", s.cfg.Benchmark)
		}
		bench = j
	}

	res := &ScaleResult{Returns: LaggedReturns(raw, prices)}
	res.VolScale = s.volScale(res.Returns, prices.Col(bench), &res.Degeneracy)
	res.Drawdown = Drawdown(res.Returns)
	res.Multiplier = s.Multipliers(res.Drawdown)

	res.Weights = models.ZerosLike(raw)
	for i, row := range raw.Values {
		k := res.VolScale[i] * res.Multiplier[i]
		for j, w := range row {
			res.Weights.Values[i][j] = w * k
		}
	}
	return res, nil
}

// LaggedReturns is the portfolio return earned at t by holding the weights
// of t-1. Missing asset returns contribute nothing.
func LaggedReturns(w, prices *models.Panel) []float64 {
	out := make([]float64, prices.Rows())
	for i := 1; i < prices.Rows(); i++ {
		prev, cur := prices.Values[i-1], prices.Values[i]
		for j := range cur {
			r := cur[j]/prev[j] - 1
			if x := w.Values[i-1][j] * r; !math.IsNaN(x) {
				out[i] += x
			}
		}
	}
	return out
}

func (s *Sizer) volScale(port, bench []float64, deg *models.Degeneracy) []float64 {
	ann := math.Sqrt(s.cfg.PeriodsPerYear)
	pv := features.RollingStd(port, s.cfg.VolWindow)

	br := features.FillNaN(features.PctChange(bench, 1), 0)
	bv := features.RollingStd(br, s.cfg.VolWindow)

	out := make([]float64, len(port))
	for i := range port {
		vol := pv[i] * ann
		if !(vol > 0) || math.IsInf(vol, 0) {
			vol = bv[i] * ann
			if vol > 0 && !math.IsInf(vol, 0) {
				deg.VolScaleFallbacks++
			}
		}
		if !(vol > 0) || math.IsInf(vol, 0) {
			out[i] = 1
			deg.VolScaleDefaults++
			continue
		}
		out[i] = math.Min(s.cfg.TargetVol/vol, s.cfg.MaxScale)
	}
	return out
}

// Drawdown of the compounded return series against its running peak.
func Drawdown(returns []float64) []float64 {
	out := make([]float64, len(returns))
	equity, peak := 1.0, 1.0
	for i, r := range returns {
		equity *= 1 + r
		peak = math.Max(peak, equity)
		out[i] = math.Min(0, equity/peak-1)
	}
	return out
}

// Multipliers maps drawdowns to the de-risking curve: 1 above the start
// level, linear down to 0 at the floor, and 0 for the cooldown days after
// any crash breach.
func (s *Sizer) Multipliers(dd []float64) []float64 {
	out := make([]float64, len(dd))
	cool := 0
	for i, d := range dd {
		switch {
		case cool > 0:
			out[i] = 0
			cool--
		case d >= s.cfg.DrawdownStart:
			out[i] = 1
		case d <= s.cfg.DrawdownFloor:
			out[i] = 0
		default:
			out[i] = (d - s.cfg.DrawdownFloor) / (s.cfg.DrawdownStart - s.cfg.DrawdownFloor)
		}
		if d <= s.cfg.CrashDrawdown {
			cool = s.cfg.Cooldown
		}
	}
	return out
}
