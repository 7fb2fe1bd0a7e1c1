// Package metrics exposes prometheus instrumentation for categorization and
// category administration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "msgsort"

// Recorder holds the collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	categorized     *prometheus.CounterVec
	duration        prometheus.Histogram
	confidence      prometheus.Histogram
	recoveredPanics prometheus.Counter
	categories      prometheus.Gauge
	adminCommands   *prometheus.CounterVec
	tasksEnqueued   *prometheus.CounterVec
}

// New registers every collector on reg. Passing nil creates a private registry.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		categorized: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_categorized_total",
				Help:      "Messages categorized, by assigned category and matching stage",
			},
			[]string{"category", "method"},
		),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "categorization_duration_seconds",
			Help:      "Time spent classifying one message",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		}),
		confidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "categorization_confidence",
			Help:      "Confidence of assigned categories",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		recoveredPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "categorization_failures_total",
			Help:      "Scoring failures turned into the default category",
		}),
		categories: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "categories",
			Help:      "Number of configured categories",
		}),
		adminCommands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admin_commands_total",
				Help:      "Admin commands handled, by command and outcome",
			},
			[]string{"command", "status"},
		),
		tasksEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_enqueued_total",
				Help:      "Asynchronous categorization tasks submitted",
			},
			[]string{"status"},
		),
	}
}

func (r *Recorder) ObserveCategorization(category, method string, confidence float64, elapsed time.Duration, failed bool) {
	if r == nil {
		return
	}
	r.categorized.WithLabelValues(category, method).Inc()
	r.duration.Observe(elapsed.Seconds())
	r.confidence.Observe(confidence)
	if failed {
		r.recoveredPanics.Inc()
	}
}

func (r *Recorder) SetCategories(n int) {
	if r == nil {
		return
	}
	r.categories.Set(float64(n))
}

func (r *Recorder) ObserveAdminCommand(command string, err error) {
	if r == nil {
		return
	}
	r.adminCommands.WithLabelValues(command, status(err)).Inc()
}

func (r *Recorder) ObserveEnqueue(err error) {
	if r == nil {
		return
	}
	r.tasksEnqueued.WithLabelValues(status(err)).Inc()
}

// Handler serves the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
