package signals

import (
	"sort"

	"RegimeFlow/internal/domain/models"
)

// DefensiveConfig maps defensive assets to their target share.
type DefensiveConfig struct {
	Allocation map[string]float64 `yaml:"allocation"`
}

func DefaultDefensiveConfig() DefensiveConfig {
	return DefensiveConfig{Allocation: map[string]float64{"TLT": 0.7, "GLD": 0.3}}
}

func (c DefensiveConfig) Validate() error {
	for a, w := range c.Allocation {
		if a == "" {
			return models.NewConfigError("defensive.allocation", "empty asset name")
		}
		if w < 0 {
			return models.NewConfigError("defensive.allocation", "weight for %s is negative (%v)", a, w)
		}
	}
	return nil
}

// Defensive is a static long-only allocation.
type Defensive struct {
	cfg DefensiveConfig
}

func NewDefensive(cfg DefensiveConfig) (*Defensive, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Defensive{cfg: cfg}, nil
}

// Weights filters the allocation to the assets in the panel and renormalises
// it to sum to 1. The result is empty when no target asset is present.
func (d *Defensive) Weights(assets []string) map[string]float64 {
	present := make(map[string]bool, len(assets))
	for _, a := range assets {
		present[a] = true
	}
	keys := make([]string, 0, len(d.cfg.Allocation))
	for a, w := range d.cfg.Allocation {
		if present[a] && w > 0 {
			keys = append(keys, a)
		}
	}
	sort.Strings(keys)

	total := 0.0
	for _, a := range keys {
		total += d.cfg.Allocation[a]
	}
	out := make(map[string]float64, len(keys))
	if total <= 0 {
		return out
	}
	for _, a := range keys {
		out[a] = d.cfg.Allocation[a] / total
	}
	return out
}

// Overlay broadcasts Weights over every date.
func (d *Defensive) Overlay(prices *models.Panel) *models.Panel {
	out := models.ZerosLike(prices)
	w := d.Weights(prices.Assets)
	for j, a := range prices.Assets {
		v, ok := w[a]
		if !ok {
			continue
		}
		for i := range out.Values {
			out.Values[i][j] = v
		}
	}
	return out
}
