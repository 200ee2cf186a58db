// Package signals builds the four position sleeves blended by the regime
// layer: cross-sectional momentum, pairs mean reversion, time-series
// momentum and the defensive overlay.
package signals

import (
	"math"
	"sort"

	"RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/services/features"
)

// MomentumConfig parameterises the cross-sectional momentum sleeve.
type MomentumConfig struct {
	Lookback int     `yaml:"lookback" default:"126" validate:"gte=1"`
	Fraction float64 `yaml:"fraction" default:"0.3" validate:"gt=0,lte=0.5"`
	ZClip    float64 `yaml:"z_clip" default:"5" validate:"gt=0"`
}

func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{Lookback: 126, Fraction: 0.3, ZClip: 5}
}

func (c MomentumConfig) Validate() error {
	switch {
	case c.Lookback <= 0:
		return models.NewConfigError("momentum.lookback", "must be positive, got %d", c.Lookback)
	case c.Fraction <= 0 || c.Fraction > 0.5:
		return models.NewConfigError("momentum.fraction", "must be in (0, 0.5], got %v", c.Fraction)
	case c.ZClip <= 0:
		return models.NewConfigError("momentum.z_clip", "must be positive, got %v", c.ZClip)
	}
	return nil
}

// Momentum ranks assets by trailing return.
type Momentum struct {
	cfg MomentumConfig
}

func NewMomentum(cfg MomentumConfig) (*Momentum, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Momentum{cfg: cfg}, nil
}

// ZScores returns the per-date cross-sectional z-score of each asset's
// lookback return. Undefined scores are 0, all scores are clipped.
func (m *Momentum) ZScores(prices *models.Panel) *models.Panel {
	z := models.ZerosLike(prices)
	rets := make([][]float64, prices.Cols())
	for j := range prices.Assets {
		rets[j] = features.PctChange(prices.Col(j), m.cfg.Lookback)
	}

	row := make([]float64, prices.Cols())
	for i := range prices.Dates {
		for j := range rets {
			row[j] = rets[j][i]
		}
		mean, std, _ := features.RowMeanStd(row)
		if std == 0 || math.IsNaN(std) {
			continue
		}
		for j, r := range row {
			v := (r - mean) / std
			if math.IsNaN(v) {
				continue
			}
			z.Values[i][j] = features.Clip(v, -m.cfg.ZClip, m.cfg.ZClip)
		}
	}
	return z
}

// Positions goes long the top k and short the bottom k assets by z-score,
// k = max(1, floor(fraction * n)), with ties broken by column order. Gross
// long and gross short are 0.5 each.
func (m *Momentum) Positions(z *models.Panel) *models.Panel {
	pos := models.ZerosLike(z)
	n := z.Cols()
	if n == 0 {
		return pos
	}
	k := max(1, int(m.cfg.Fraction*float64(n)))
	wLong, wShort := 0.5/float64(k), -0.5/float64(k)

	order := make([]int, n)
	for i, row := range z.Values {
		for j := range order {
			order[j] = j
		}
		sort.SliceStable(order, func(a, b int) bool { return row[order[a]] > row[order[b]] })
		for rank, j := range order {
			// rank is 0-based; both masks apply when n == 1
			if rank < k {
				pos.Values[i][j] += wLong
			}
			if rank >= n-k {
				pos.Values[i][j] += wShort
			}
		}
	}
	return pos
}
