package blend

import (
	"RegimeFlow/internal/domain/models"
)

// Mix is the share of risk given to each sleeve on one date.
type Mix struct {
	Momentum   float64 `yaml:"momentum" json:"momentum"`
	Pairs      float64 `yaml:"pairs" json:"pairs"`
	TimeSeries float64 `yaml:"timeseries" json:"timeseries"`
	Defensive  float64 `yaml:"defensive" json:"defensive"`
}

// Sum of the four shares.
func (m Mix) Sum() float64 { return m.Momentum + m.Pairs + m.TimeSeries + m.Defensive }

// BaseMix is the starting mix for each discretised regime.
type BaseMix struct {
	Low    Mix `yaml:"low"`
	Medium Mix `yaml:"medium"`
	High   Mix `yaml:"high"`
}

func (b BaseMix) For(r models.Regime) Mix {
	switch r {
	case models.RegimeLow:
		return b.Low
	case models.RegimeHigh:
		return b.High
	default:
		return b.Medium
	}
}

// Band bounds an intensity ratio.
type Band struct {
	Lo float64 `yaml:"lo"`
	Hi float64 `yaml:"hi"`
}

// Config parameterises the blender.
type Config struct {
	Base BaseMix `yaml:"base"`

	IntensityWindow     int  `yaml:"intensity_window" default:"252" validate:"gte=1"`
	IntensityMinPeriods int  `yaml:"intensity_min_periods" default:"21" validate:"gte=1"`
	MomentumBand        Band `yaml:"momentum_band"`
	PairsBand           Band `yaml:"pairs_band"`
	TimeSeriesBand      Band `yaml:"timeseries_band"`

	DefensiveBase  float64 `yaml:"defensive_base" default:"0.85"`
	DefensiveSlope float64 `yaml:"defensive_slope" default:"0.6"`
	DefensiveBand  Band    `yaml:"defensive_band"`

	TransitionFloor float64 `yaml:"transition_floor" default:"0.2" validate:"gte=0,lte=1"`
}

func DefaultConfig() Config {
	var c Config
	c.IntensityWindow = 252
	c.IntensityMinPeriods = 21
	c.DefensiveBase = 0.85
	c.DefensiveSlope = 0.6
	c.TransitionFloor = 0.2
	c.SetDefaults()
	return c
}

// SetDefaults fills the tables that struct tags cannot express. It is
// called by creasty/defaults after the tagged fields are set.
func (c *Config) SetDefaults() {
	if c.Base == (BaseMix{}) {
		c.Base = BaseMix{
			Low:    Mix{Momentum: 0.55, Pairs: 0.15, TimeSeries: 0.20, Defensive: 0.10},
			Medium: Mix{Momentum: 0.30, Pairs: 0.20, TimeSeries: 0.25, Defensive: 0.25},
			High:   Mix{Momentum: 0.05, Pairs: 0.20, TimeSeries: 0.15, Defensive: 0.60},
		}
	}
	if c.MomentumBand == (Band{}) {
		c.MomentumBand = Band{Lo: 0.3, Hi: 1.5}
	}
	if c.PairsBand == (Band{}) {
		c.PairsBand = Band{Lo: 0.3, Hi: 1.6}
	}
	if c.TimeSeriesBand == (Band{}) {
		c.TimeSeriesBand = Band{Lo: 0.4, Hi: 1.4}
	}
	if c.DefensiveBand == (Band{}) {
		c.DefensiveBand = Band{Lo: 0.5, Hi: 1.6}
	}
}

func (c Config) Validate() error {
	for name, m := range map[string]Mix{"low": c.Base.Low, "medium": c.Base.Medium, "high": c.Base.High} {
		if m.Momentum < 0 || m.Pairs < 0 || m.TimeSeries < 0 || m.Defensive < 0 {
			return models.NewConfigError("blend.base."+name, "mix shares must be non-negative")
		}
	}
	for name, b := range map[string]Band{
		"momentum_band":   c.MomentumBand,
		"pairs_band":      c.PairsBand,
		"timeseries_band": c.TimeSeriesBand,
		"defensive_band":  c.DefensiveBand,
	} {
		if b.Lo < 0 || b.Hi < b.Lo {
			return models.NewConfigError("blend."+name, "need 0 <= lo (%v) <= hi (%v)", b.Lo, b.Hi)
		}
	}
	switch {
	case c.IntensityWindow < 1 || c.IntensityMinPeriods < 1 || c.IntensityMinPeriods > c.IntensityWindow:
		return models.NewConfigError("blend.intensity_window", "need 1 <= min periods (%d) <= window (%d)",
			c.IntensityMinPeriods, c.IntensityWindow)
	case c.TransitionFloor < 0 || c.TransitionFloor > 1:
		return models.NewConfigError("blend.transition_floor", "must be in [0, 1], got %v", c.TransitionFloor)
	}
	return nil
}
