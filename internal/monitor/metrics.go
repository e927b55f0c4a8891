// Package monitor exposes bridge activity as Prometheus metrics.
package monitor

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamzrod/tenma-bridge/internal/poller"
	"github.com/tamzrod/tenma-bridge/internal/transport"
)

const namespace = "tenma"

// Metrics implements serializer.Observer and records cycle outcomes.
type Metrics struct {
	captures        *prometheus.CounterVec
	captureErrors   *prometheus.CounterVec
	captureBytes    prometheus.Counter
	captureDuration prometheus.Histogram
	queueDepth      prometheus.Gauge

	cycleDuration   prometheus.Histogram
	cycleStepErrors prometheus.Counter
	outputEnabled   prometheus.Gauge
	onDuration      prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Commands sent to the supply.",
		}, []string{"command"}),
		captureErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Commands that failed at the transport.",
		}, []string{"command"}),
		captureBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_bytes_total",
			Help:      "Response bytes collected.",
		}),
		captureDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_duration_seconds",
			Help:      "Time spent per capture, dwell included.",
			Buckets:   []float64{.01, .025, .05, .075, .1, .25, .5, 1},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Requests waiting for the serial line.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time per maintenance cycle.",
			Buckets:   []float64{.1, .25, .5, .75, 1, 2.5, 5},
		}),
		cycleStepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_step_errors_total",
			Help:      "Maintenance steps skipped because of an error.",
		}),
		outputEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "output_enabled",
			Help:      "1 when the supply output is on.",
		}),
		onDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "on_duration_seconds",
			Help:      "Reported on-duration of the output.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.captures,
		m.captureErrors,
		m.captureBytes,
		m.captureDuration,
		m.queueDepth,
		m.cycleDuration,
		m.cycleStepErrors,
		m.outputEnabled,
		m.onDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveCapture records one serial capture.
func (m *Metrics) ObserveCapture(command string, resp transport.Response, err error, took time.Duration) {
	label := CommandLabel(command)
	m.captures.WithLabelValues(label).Inc()
	m.captureDuration.Observe(took.Seconds())
	if err != nil {
		m.captureErrors.WithLabelValues(label).Inc()
		return
	}
	m.captureBytes.Add(float64(len(resp.Raw)))
}

// ObserveQueueDepth records the number of pending requests.
func (m *Metrics) ObserveQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// ObserveCycle records one maintenance cycle.
func (m *Metrics) ObserveCycle(res poller.PollResult) {
	m.cycleDuration.Observe(res.Took.Seconds())
	m.cycleStepErrors.Add(float64(len(res.Errs)))

	if res.OutputEnabled() {
		m.outputEnabled.Set(1)
	} else {
		m.outputEnabled.Set(0)
	}
	m.onDuration.Set(float64(res.OnDurationMs) / 1000)
}

// CommandLabel drops set values so "VSET1:05.00" is counted as "VSET1:".
func CommandLabel(command string) string {
	if i := strings.IndexByte(command, ':'); i >= 0 {
		return command[:i+1]
	}
	return command
}
