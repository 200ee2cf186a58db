// Package backtest simulates daily P&L of a weight panel net of turnover
// costs and summarises it.
package backtest

import (
	"math"

	"RegimeFlow/internal/domain/models"
)

// Config parameterises the engine.
type Config struct {
	CostRate       float64 `yaml:"cost_rate" default:"0.001" validate:"gte=0"`
	PeriodsPerYear float64 `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{CostRate: 0.001, PeriodsPerYear: 252}
}

func (c Config) Validate() error {
	if c.CostRate < 0 {
		return models.NewConfigError("backtest.cost_rate", "must not be negative, got %v", c.CostRate)
	}
	if c.PeriodsPerYear <= 0 {
		return models.NewConfigError("periods_per_year", "must be positive, got %v", c.PeriodsPerYear)
	}
	return nil
}

// Result is the simulated daily P&L and its summary.
type Result struct {
	Days    []models.DailyResult
	Summary models.Summary
}

// Net returns the daily net returns.
func (r *Result) Net() []float64 {
	out := make([]float64, len(r.Days))
	for i, d := range r.Days {
		out[i] = d.Net
	}
	return out
}

// Engine runs the vectorised daily simulation.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Run earns w[t-1] against the simple returns of t and charges turnover at
// the cost rate. Missing returns count as 0.
func (e *Engine) Run(prices, weights *models.Panel) (*Result, error) {
	if prices.Rows() != weights.Rows() || prices.Cols() != weights.Cols() {
		return nil, models.NewContractError("weights are %dx%d, prices are %dx%d",
			weights.Rows(), weights.Cols(), prices.Rows(), prices.Cols())
	}
	n := prices.Rows()
	res := &Result{Days: make([]models.DailyResult, n)}

	equity := 1.0
	for i := 0; i < n; i++ {
		d := models.DailyResult{Date: prices.Dates[i]}
		if i > 0 {
			prev, cur := prices.Values[i-1], prices.Values[i]
			for j := range cur {
				r := cur[j]/prev[j] - 1
				if math.IsNaN(r) || math.IsInf(r, 0) {
					r = 0
				}
				d.Gross += weights.Values[i-1][j] * r
				d.Turnover += math.Abs(weights.Values[i][j] - weights.Values[i-1][j])
			}
		}
		d.Cost = d.Turnover * e.cfg.CostRate
		d.Net = d.Gross - d.Cost
		equity *= 1 + d.Net
		d.Equity = equity
		res.Days[i] = d
	}

	res.Summary = e.Summarise(res.Days)
	return res, nil
}

// Summarise extends SummaryStats with the turnover and cost totals.
func (e *Engine) Summarise(days []models.DailyResult) models.Summary {
	net := make([]float64, len(days))
	for i, d := range days {
		net[i] = d.Net
	}
	s := SummaryStats(net, e.cfg.PeriodsPerYear)
	if len(days) == 0 {
		return s
	}
	var turnover, cost float64
	for _, d := range days {
		turnover += d.Turnover
		cost += d.Cost
	}
	s.AvgTurnover = models.Stat(turnover / float64(len(days)))
	s.TotalCost = models.Stat(cost)
	return s
}
