package bench

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsPrefix = "ringbench_"

// Metrics exports what the coordinator measures. A nil *Metrics records
// nothing.
type Metrics struct {
	trip      *prometheus.HistogramVec
	trials    prometheus.Counter
	overhead  prometheus.Gauge
	latency   prometheus.Gauge
	bandwidth prometheus.Gauge
}

// NewMetrics registers the benchmark metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		trip: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricsPrefix + "trip_seconds",
				Help:    "Overhead corrected time for a message to travel once around the ring",
				Buckets: prometheus.ExponentialBuckets(1e-6, 2, 24),
			},
			[]string{"bytes"},
		),
		trials: factory.NewCounter(prometheus.CounterOpts{
			Name: MetricsPrefix + "trials_total",
			Help: "Number of timed ring exchanges",
		}),
		overhead: factory.NewGauge(prometheus.GaugeOpts{
			Name: MetricsPrefix + "timer_overhead_seconds",
			Help: "Calibrated cost of reading the clock",
		}),
		latency: factory.NewGauge(prometheus.GaugeOpts{
			Name: MetricsPrefix + "latency_seconds",
			Help: "Fitted ring latency",
		}),
		bandwidth: factory.NewGauge(prometheus.GaugeOpts{
			Name: MetricsPrefix + "bandwidth_bytes_per_second",
			Help: "Fitted ring bandwidth",
		}),
	}
}

// RecordTrip observes one timed trip of a bytes sized message.
func (m *Metrics) RecordTrip(bytes int, seconds float64) {
	if m == nil {
		return
	}
	m.trip.WithLabelValues(strconv.Itoa(bytes)).Observe(seconds)
	m.trials.Inc()
}

// RecordOverhead sets the calibrated timer overhead.
func (m *Metrics) RecordOverhead(seconds float64) {
	if m == nil {
		return
	}
	m.overhead.Set(seconds)
}

// RecordFit sets the fitted latency and bandwidth.
func (m *Metrics) RecordFit(latency, bandwidth float64) {
	if m == nil {
		return
	}
	m.latency.Set(latency)
	m.bandwidth.Set(bandwidth)
}
