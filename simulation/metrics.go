package simulation

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Metrics holds the collectors a Runner reports to.
type Metrics struct {
	swapsTotal   *prometheus.CounterVec
	slippage     *prometheus.HistogramVec
	runDuration  *prometheus.HistogramVec
	curvePoints  prometheus.Counter
	kGrowthRatio prometheus.Histogram
}

// NewMetrics creates the simulation collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		swapsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "constantproduct",
			Subsystem: "simulation",
			Name:      "swaps_total",
			Help:      "Swaps priced by the simulation, by direction and outcome.",
		}, []string{"direction", "outcome"}),
		slippage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "constantproduct",
			Subsystem: "simulation",
			Name:      "slippage_percent",
			Help:      "Slippage of successful swaps in percentage points.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 35, 50, 75, 100},
		}, []string{"direction"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "constantproduct",
			Subsystem: "simulation",
			Name:      "run_duration_seconds",
			Help:      "Wall time of simulation runs, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		curvePoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "constantproduct",
			Subsystem: "simulation",
			Name:      "curve_points_total",
			Help:      "Points produced by slippage sweeps.",
		}),
		kGrowthRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "constantproduct",
			Subsystem: "simulation",
			Name:      "k_growth_ratio",
			Help:      "Relative growth of the reserve product over sequential runs.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 7),
		}),
	}

	for _, c := range []prometheus.Collector{m.swapsTotal, m.slippage, m.runDuration, m.curvePoints, m.kGrowthRatio} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeSwap(dir string, slippage float64, err error) {
	if err != nil {
		m.swapsTotal.WithLabelValues(dir, outcomeError).Inc()
		return
	}
	m.swapsTotal.WithLabelValues(dir, outcomeOK).Inc()
	m.slippage.WithLabelValues(dir).Observe(slippage)
}
