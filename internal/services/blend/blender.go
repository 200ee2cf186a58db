// Package blend combines the signal sleeves into one weight panel according
// to the regime probability and each sleeve's recent activity.
package blend

import (
	"math"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/services/features"
)

// Sleeves are the inputs to Blend. All panels share the price panel's shape.
type Sleeves struct {
	Momentum   *models.Panel
	MomentumZ  *models.Panel
	Pairs      *models.Panel
	TimeSeries *models.Panel
	Defensive  *models.Panel
}

func (s Sleeves) check(n, m int) error {
	for name, p := range map[string]*models.Panel{
		"momentum":   s.Momentum,
		"momentum_z": s.MomentumZ,
		"pairs":      s.Pairs,
		"timeseries": s.TimeSeries,
		"defensive":  s.Defensive,
	} {
		if p == nil {
			return models.NewContractError("sleeve %s is missing", name)
		}
		if p.Rows() != n || p.Cols() != m {
			return models.NewContractError("sleeve %s is %dx%d, want %dx%d", name, p.Rows(), p.Cols(), n, m)
		}
	}
	return nil
}

// Contributions are the scaled sleeve panels before the transition scaler.
type Contributions struct {
	Momentum   *models.Panel
	Pairs      *models.Panel
	TimeSeries *models.Panel
	Defensive  *models.Panel
}

// Scalers are the per-date sleeve intensity multipliers.
type Scalers struct {
	Momentum   []float64
	Pairs      []float64
	TimeSeries []float64
	Defensive  []float64
}

// Result is the blended panel with its diagnostics.
type Result struct {
	Weights       *models.Panel
	Mix           []Mix
	Confidence    []float64
	Transition    []float64
	Scalers       Scalers
	Contributions Contributions
	models.Degeneracy
}

// Blender weights sleeves by regime.
type Blender struct {
	cfg Config
}

func NewBlender(cfg Config) (*Blender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Blender{cfg: cfg}, nil
}

// Mix returns the normalised sleeve shares for one date. The second result
// is false when the adjusted shares collapsed to zero and everything went
// to the defensive sleeve.
func (b *Blender) Mix(r models.Regime, p, confidence float64) (Mix, bool) {
	m := b.cfg.Base.For(r)
	uncertainty := 1 - confidence

	m.Defensive += 0.25*uncertainty + 0.35*p
	m.Momentum *= math.Max(0, 1-0.7*p)

	switch r {
	case models.RegimeMedium:
		m.Defensive += 0.1
		m.Momentum *= 0.5 + 0.5*confidence
		m.Pairs *= 0.7 + 0.3*p
	case models.RegimeHigh:
		m.Momentum = 0
		m.Pairs *= 0.8 + 0.4*p
		m.TimeSeries *= 0.6 + 0.4*confidence
	default:
		m.Defensive += 0.05 * uncertainty
		m.Pairs *= 0.5 + 0.5*p
		m.TimeSeries *= 0.8 + 0.2*confidence
	}

	m.Momentum = math.Max(0, m.Momentum)
	m.Pairs = math.Max(0, m.Pairs)
	m.TimeSeries = math.Max(0, m.TimeSeries)
	m.Defensive = math.Max(0, m.Defensive)

	total := m.Sum()
	if !(total > 0) {
		return Mix{Defensive: 1}, false
	}
	return Mix{
		Momentum:   m.Momentum / total,
		Pairs:      m.Pairs / total,
		TimeSeries: m.TimeSeries / total,
		Defensive:  m.Defensive / total,
	}, true
}

// IntensityScaler divides x by its trailing median and clips the ratio to
// band. Undefined ratios are 1; the count of those past warm-up is returned.
func (b *Blender) IntensityScaler(x []float64, band Band) ([]float64, int) {
	med := features.RollingMedian(x, b.cfg.IntensityWindow, b.cfg.IntensityMinPeriods)
	out := make([]float64, len(x))
	defaults := 0
	for i := range x {
		r := features.Clip(x[i]/med[i], band.Lo, band.Hi)
		if math.IsNaN(r) {
			r = 1
			if i >= b.cfg.IntensityMinPeriods-1 {
				defaults++
			}
		}
		out[i] = r
	}
	return out, defaults
}

// DefensiveScaler grows the defensive sleeve with the regime probability.
func (b *Blender) DefensiveScaler(p float64) float64 {
	return features.Clip(b.cfg.DefensiveBase+b.cfg.DefensiveSlope*p, b.cfg.DefensiveBand.Lo, b.cfg.DefensiveBand.Hi)
}

// Blend produces the raw weight panel.
func (b *Blender) Blend(regime *models.RegimeSeries, s Sleeves) (*Result, error) {
	if regime == nil || len(regime.Smoothed) != len(regime.Regimes) {
		return nil, models.NewContractError("regime series is missing or incomplete")
	}
	n := len(regime.Smoothed)
	if s.Momentum == nil {
		return nil, models.NewContractError("sleeve momentum is missing")
	}
	m := s.Momentum.Cols()
	if err := s.check(n, m); err != nil {
		return nil, err
	}

	res := &Result{
		Weights:    models.ZerosLike(s.Momentum),
		Mix:        make([]Mix, n),
		Confidence: make([]float64, n),
		Transition: make([]float64, n),
		Contributions: Contributions{
			Momentum:   models.ZerosLike(s.Momentum),
			Pairs:      models.ZerosLike(s.Momentum),
			TimeSeries: models.ZerosLike(s.Momentum),
			Defensive:  models.ZerosLike(s.Momentum),
		},
	}

	var d1, d2, d3 int
	res.Scalers.Momentum, d1 = b.IntensityScaler(meanAbs(s.MomentumZ), b.cfg.MomentumBand)
	res.Scalers.Pairs, d2 = b.IntensityScaler(grossAbs(s.Pairs), b.cfg.PairsBand)
	res.Scalers.TimeSeries, d3 = b.IntensityScaler(grossAbs(s.TimeSeries), b.cfg.TimeSeriesBand)
	res.Scalers.Defensive = make([]float64, n)
	res.IntensityDefaults = d1 + d2 + d3

	c := res.Contributions
	for i := 0; i < n; i++ {
		p := regime.Smoothed[i]
		conf := math.Abs(p-0.5) * 2
		res.Confidence[i] = conf
		res.Transition[i] = math.Max(conf, b.cfg.TransitionFloor)
		res.Scalers.Defensive[i] = b.DefensiveScaler(p)

		mix, ok := b.Mix(regime.Regimes[i], p, conf)
		if !ok {
			res.DefensiveFallbacks++
		}
		res.Mix[i] = mix

		km := mix.Momentum * res.Scalers.Momentum[i]
		kp := mix.Pairs * res.Scalers.Pairs[i]
		kt := mix.TimeSeries * res.Scalers.TimeSeries[i]
		kd := mix.Defensive * res.Scalers.Defensive[i]
		for j := 0; j < m; j++ {
			c.Momentum.Values[i][j] = km * s.Momentum.Values[i][j]
			c.Pairs.Values[i][j] = kp * s.Pairs.Values[i][j]
			c.TimeSeries.Values[i][j] = kt * s.TimeSeries.Values[i][j]
			c.Defensive.Values[i][j] = kd * s.Defensive.Values[i][j]
			sum := c.Momentum.Values[i][j] + c.Pairs.Values[i][j] + c.TimeSeries.Values[i][j] + c.Defensive.Values[i][j]
			res.Weights.Values[i][j] = res.Transition[i] * sum
		}
	}
	return res, nil
}

func meanAbs(p *models.Panel) []float64 {
	out := make([]float64, p.Rows())
	for i, row := range p.Values {
		sum, k := 0.0, 0
		for _, v := range row {
			if !math.IsNaN(v) {
				sum += math.Abs(v)
				k++
			}
		}
		out[i] = math.NaN()
		if k > 0 {
			out[i] = sum / float64(k)
		}
	}
	return out
}

func grossAbs(p *models.Panel) []float64 {
	out := make([]float64, p.Rows())
	for i, row := range p.Values {
		for _, v := range row {
			if !math.IsNaN(v) {
				out[i] += math.Abs(v)
			}
		}
	}
	return out
}
