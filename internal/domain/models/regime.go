package models

import "time"

// Regime is the discrete market risk state.
type Regime int

const (
	RegimeLow Regime = iota
	RegimeMedium
	RegimeHigh
)

func (r Regime) String() string {
	switch r {
	case RegimeLow:
		return "low_vol"
	case RegimeHigh:
		return "high_vol"
	default:
		return "medium_vol"
	}
}

func (r Regime) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// EstimateSource tells where a walk-forward probability came from.
type EstimateSource int

const (
	SourceBaseline EstimateSource = iota // trailing label mean during warm-up
	SourceModel                          // classifier fitted on the trailing window
	SourceLastLabel                      // single-class window
	SourceLabel                          // label strategy, no classifier
)

func (s EstimateSource) String() string {
	switch s {
	case SourceModel:
		return "model"
	case SourceLastLabel:
		return "last_label"
	case SourceLabel:
		return "label"
	default:
		return "baseline"
	}
}

// RegimeSeries is the output of the regime estimator, one entry per date.
type RegimeSeries struct {
	Dates []time.Time
	// Labels are the provisional volatility-index labels.
	Labels []Regime
	// Raw is the walk-forward probability of the high-risk regime before
	// smoothing. Smoothed is the EMA of Raw, clipped to [0, 1].
	Raw      []float64
	Smoothed []float64
	// Regimes discretise Smoothed.
	Regimes  []Regime
	Sources  []EstimateSource
	Strategy string
	Degeneracy
}

// Probability returns the smoothed probability as a series.
func (r *RegimeSeries) Probability() *Series {
	return &Series{Dates: r.Dates, Values: r.Smoothed}
}

// PairState is the per-pair position state.
type PairState int

const (
	PairFlat PairState = iota
	PairLongSpread
	PairShortSpread
)

func (s PairState) String() string {
	switch s {
	case PairLongSpread:
		return "long_spread"
	case PairShortSpread:
		return "short_spread"
	default:
		return "flat"
	}
}

// Pair names two assets traded as a spread A - h*B.
type Pair struct {
	A string `yaml:"a" json:"a" validate:"required"`
	B string `yaml:"b" json:"b" validate:"required"`
}

func (p Pair) String() string { return p.A + "/" + p.B }
