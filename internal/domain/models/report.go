package models

import (
	"math"
	"strconv"
	"time"
)

// Stat is a statistic that may be undefined. Undefined values are NaN in
// memory and null on the wire.
type Stat float64

func (s Stat) Defined() bool {
	f := float64(s)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (s Stat) MarshalJSON() ([]byte, error) {
	if !s.Defined() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(s), 'g', -1, 64), nil
}

func (s *Stat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = Stat(math.NaN())
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*s = Stat(f)
	return nil
}

// Summary holds the headline performance statistics of a return series.
type Summary struct {
	CAGR        Stat `json:"cagr"`
	Sharpe      Stat `json:"sharpe"`
	MaxDrawdown Stat `json:"max_drawdown"`

	AnnualVolatility Stat `json:"annual_volatility"`
	Sortino          Stat `json:"sortino"`
	Calmar           Stat `json:"calmar"`
	TotalReturn      Stat `json:"total_return"`
	AvgTurnover      Stat `json:"avg_turnover"`
	TotalCost        Stat `json:"total_cost"`
}

// DailyResult is one row of the simulated P&L.
type DailyResult struct {
	Date     time.Time `json:"date"`
	Gross    float64   `json:"gross"`
	Cost     float64   `json:"cost"`
	Turnover float64   `json:"turnover"`
	Net      float64   `json:"net"`
	Equity   float64   `json:"equity"`
}

// Report is the published record of one backtest run.
type Report struct {
	RunID        string         `json:"run_id"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Source       string         `json:"source"`
	Start        time.Time      `json:"start"`
	End          time.Time      `json:"end"`
	Days         int            `json:"days"`
	Assets       []string       `json:"assets"`
	Strategy     string         `json:"regime_strategy"`
	Summary      Summary        `json:"summary"`
	RegimeCounts map[string]int `json:"regime_counts"`
	Degeneracy   Degeneracy     `json:"degeneracy"`
}
