package metrics

import (
	"errors"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"RegimeFlow/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	reg *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	degeneracy    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	summary       *prometheus.GaugeVec
	exposure      prometheus.Gauge
}

// New creates a recorder on a fresh registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a recorder that registers on reg.
func NewWithRegistry(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		reg: reg,
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regimeflow_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		degeneracy: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimeflow_numeric_substitutions_total",
				Help: "Numeric degeneracies resolved by substitution",
			},
			[]string{"kind"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regimeflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		summary: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regimeflow_backtest_summary",
				Help: "Summary statistics of the last backtest run",
			},
			[]string{"stat"},
		),
		exposure: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "regimeflow_max_abs_weight",
				Help: "Largest absolute final weight of the last run",
			},
		),
	}
	r.stageDuration = Register(reg, r.stageDuration)
	r.degeneracy = Register(reg, r.degeneracy)
	r.errorsTotal = Register(reg, r.errorsTotal)
	r.summary = Register(reg, r.summary)
	r.exposure = Register(reg, r.exposure)
	return r
}

// Registry exposes the underlying registry for /metrics and pushes.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// RecordStage records stage latency in seconds.
func (r *Recorder) RecordStage(stage string, seconds float64) {
	r.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordDegeneracy adds n substitutions of the given kind.
func (r *Recorder) RecordDegeneracy(kind string, n int) {
	if n <= 0 {
		return
	}
	r.degeneracy.WithLabelValues(kind).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordSummary publishes the headline statistics. Undefined values are
// exported as NaN.
func (r *Recorder) RecordSummary(s models.Summary) {
	set := func(name string, v models.Stat) {
		f := float64(v)
		if !v.Defined() {
			f = math.NaN()
		}
		r.summary.WithLabelValues(name).Set(f)
	}
	set("cagr", s.CAGR)
	set("sharpe", s.Sharpe)
	set("max_drawdown", s.MaxDrawdown)
	set("annual_volatility", s.AnnualVolatility)
	set("total_return", s.TotalReturn)
	set("avg_turnover", s.AvgTurnover)
}

// RecordExposure records the largest absolute final weight.
func (r *Recorder) RecordExposure(maxAbs float64) {
	r.exposure.Set(maxAbs)
}

// Push sends the registry to a Prometheus Pushgateway.
func (r *Recorder) Push(url, job string) error {
	return push.New(url, job).Gatherer(r.reg).Push()
}

// Register registers c on reg, returning the already registered collector
// when an identical one exists.
func Register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}
