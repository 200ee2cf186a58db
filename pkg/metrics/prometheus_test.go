package metrics

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"RegimeFlow/internal/domain/models"
)

func TestRecorderSummaryAndDegeneracy(t *testing.T) {
	r := New()

	r.RecordSummary(models.Summary{
		CAGR:        0.12,
		Sharpe:      models.Stat(math.NaN()),
		MaxDrawdown: -0.2,
	})
	assert.InDelta(t, 0.12, testutil.ToFloat64(r.summary.WithLabelValues("cagr")), 1e-12)
	assert.True(t, math.IsNaN(testutil.ToFloat64(r.summary.WithLabelValues("sharpe"))))

	r.RecordDegeneracy("hedge_ratio_default", 3)
	r.RecordDegeneracy("hedge_ratio_default", 0)
	assert.Equal(t, 3.0, testutil.ToFloat64(r.degeneracy.WithLabelValues("hedge_ratio_default")))

	r.RecordError("feed")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("feed")))
}

func TestRegisterReturnsExistingCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	opts := prometheus.CounterOpts{Name: "regimeflow_test_total", Help: "test"}

	first := Register(reg, prometheus.NewCounter(opts))
	second := Register(reg, prometheus.NewCounter(opts))
	first.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(second))
}

func TestRecordersShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewWithRegistry(reg)
	b := NewWithRegistry(reg)

	a.RecordStage("regime", 0.5)
	b.RecordStage("regime", 0.25)

	assert.Same(t, a.stageDuration, b.stageDuration)
	assert.Equal(t, 1, testutil.CollectAndCount(a.stageDuration))
}
