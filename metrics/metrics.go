package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "infopercept"

// Metrics holds the exported collectors. It is the production pipelines.Sink
// and service.Observer.
type Metrics struct {
	LogCount      *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
	BytesRead     *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	TrackedFiles  prometheus.Gauge
}

// NewMetrics creates the collectors; constLabels are attached to each of them.
func NewMetrics(constLabels prometheus.Labels) *Metrics {
	return &Metrics{
		LogCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "log_count",
				Help:        "Number of log entries",
				ConstLabels: constLabels,
			},
			[]string{"log_type", "severity"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "log_errors_total",
				Help:        "Diagnostics raised while polling log sources, by kind",
				ConstLabels: constLabels,
			},
			[]string{"log_type", "kind"},
		),

		BytesRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "log_bytes_read_total",
				Help:        "Bytes of complete lines consumed per source",
				ConstLabels: constLabels,
			},
			[]string{"log_type"},
		),

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "log_cycle_duration_seconds",
				Help:        "Duration of one poll cycle over all sources",
				ConstLabels: constLabels,
				Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),

		TrackedFiles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "log_tracked_files",
				Help:        "Number of files with a stored read offset",
				ConstLabels: constLabels,
			},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.LogCount, m.ErrorsTotal, m.BytesRead, m.CycleDuration, m.TrackedFiles} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return nil
}

func (m *Metrics) Increment(source, severity string) {
	m.LogCount.WithLabelValues(source, severity).Inc()
}

func (m *Metrics) SourceError(source, kind string) {
	m.ErrorsTotal.WithLabelValues(source, kind).Inc()
}

func (m *Metrics) BytesConsumed(source string, n uint64) {
	if n > 0 {
		m.BytesRead.WithLabelValues(source).Add(float64(n))
	}
}

func (m *Metrics) CycleDone(d time.Duration, trackedFiles int) {
	m.CycleDuration.Observe(d.Seconds())
	m.TrackedFiles.Set(float64(trackedFiles))
}
