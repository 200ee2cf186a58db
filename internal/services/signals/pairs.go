package signals

import (
	"math"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/services/features"
)

// PairsConfig parameterises the pairs mean-reversion sleeve.
type PairsConfig struct {
	Pairs     []models.Pair `yaml:"pairs" validate:"dive"`
	Window    int           `yaml:"window" default:"63" validate:"gte=2"`
	Entry     float64       `yaml:"entry" default:"1.5" validate:"gt=0"`
	Exit      float64       `yaml:"exit" default:"0.25" validate:"gte=0"`
	Stop      float64       `yaml:"stop" default:"3" validate:"gt=0"`
	LegWeight float64       `yaml:"leg_weight" default:"0.35" validate:"gt=0"`
}

func DefaultPairsConfig() PairsConfig {
	return PairsConfig{
		Pairs:     []models.Pair{{A: "SPY", B: "QQQ"}, {A: "XLE", B: "USO"}},
		Window:    63,
		Entry:     1.5,
		Exit:      0.25,
		Stop:      3,
		LegWeight: 0.35,
	}
}

func (c PairsConfig) Validate() error {
	switch {
	case c.Window < 2:
		return models.NewConfigError("pairs.window", "must be at least 2, got %d", c.Window)
	case c.Exit < 0 || c.Exit >= c.Entry || c.Entry >= c.Stop:
		return models.NewConfigError("pairs.exit/entry/stop", "need 0 <= exit (%v) < entry (%v) < stop (%v)", c.Exit, c.Entry, c.Stop)
	case c.LegWeight <= 0:
		return models.NewConfigError("pairs.leg_weight", "must be positive, got %v", c.LegWeight)
	}
	for _, p := range c.Pairs {
		if p.A == "" || p.B == "" {
			return models.NewConfigError("pairs.pairs", "pair %q has an empty leg", p.String())
		}
		if p.A == p.B {
			return models.NewConfigError("pairs.pairs", "pair %q uses the same asset on both legs", p.String())
		}
	}
	return nil
}

// PairsResult is the summed pair positions with the per-pair state history.
// States[k] belongs to Active[k].
type PairsResult struct {
	Positions *models.Panel
	Active    []models.Pair
	States    [][]models.PairState
	Skipped   []models.Pair
	models.Degeneracy
}

// Pairs trades the z-score of a hedged spread with an entry/exit/stop
// state machine per pair.
type Pairs struct {
	cfg PairsConfig
}

func NewPairs(cfg PairsConfig) (*Pairs, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pairs{cfg: cfg}, nil
}

// Next advances one pair by one date. A missing z-score holds the state.
func (p *Pairs) Next(state models.PairState, z float64) models.PairState {
	if math.IsNaN(z) {
		return state
	}
	switch state {
	case models.PairFlat:
		if z > p.cfg.Entry {
			return models.PairShortSpread
		}
		if z < -p.cfg.Entry {
			return models.PairLongSpread
		}
	case models.PairLongSpread, models.PairShortSpread:
		if a := math.Abs(z); a < p.cfg.Exit || a > p.cfg.Stop {
			return models.PairFlat
		}
	}
	return state
}

// Spread returns the hedged spread A - beta*B and its rolling z-score.
// Undefined hedge ratios default to 1.
func (p *Pairs) Spread(a, b []float64) (spread, z []float64, deg models.Degeneracy) {
	w := p.cfg.Window
	beta := features.RollingHedgeRatio(a, b, w)
	spread = make([]float64, len(a))
	for i := range a {
		if math.IsNaN(beta[i]) {
			beta[i] = 1
			deg.HedgeRatioDefaults++
		}
		spread[i] = a[i] - beta[i]*b[i]
	}

	mean, std := features.RollingMeanStd(spread, w)
	z = make([]float64, len(a))
	for i := range spread {
		z[i] = (spread[i] - mean[i]) / std[i]
		if !features.IsFinite(z[i]) {
			if !math.IsNaN(mean[i]) {
				deg.UndefinedZScores++
			}
			z[i] = math.NaN()
		}
	}
	return spread, z, deg
}

// Positions runs every configured pair over the panel in date order and
// sums the leg weights. Pairs with a leg missing from the panel are skipped.
func (p *Pairs) Positions(prices *models.Panel) (*PairsResult, error) {
	res := &PairsResult{Positions: models.ZerosLike(prices)}
	n := prices.Rows()

	type legs struct{ a, b int }
	var cols []legs
	for _, pair := range p.cfg.Pairs {
		ja, okA := prices.Index(pair.A)
		jb, okB := prices.Index(pair.B)
		if !okA || !okB {
			res.Skipped = append(res.Skipped, pair)
			continue
		}
		res.Active = append(res.Active, pair)
		cols = append(cols, legs{ja, jb})
	}

	zs := make([][]float64, len(cols))
	for k, c := range cols {
		_, z, deg := p.Spread(prices.Col(c.a), prices.Col(c.b))
		zs[k] = z
		res.Degeneracy.Add(deg)
	}

	res.States = make([][]models.PairState, len(cols))
	for k := range res.States {
		res.States[k] = make([]models.PairState, n)
	}
	w := p.cfg.LegWeight
	for i := 0; i < n; i++ {
		row := res.Positions.Values[i]
		for k, c := range cols {
			prev := models.PairFlat
			if i > 0 {
				prev = res.States[k][i-1]
			}
			s := p.Next(prev, zs[k][i])
			res.States[k][i] = s
			switch s {
			case models.PairLongSpread:
				row[c.a] += w
				row[c.b] -= w
			case models.PairShortSpread:
				row[c.a] -= w
				row[c.b] += w
			}
		}
	}
	return res, nil
}
