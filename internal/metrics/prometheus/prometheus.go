package prometheus

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/slok/jobwatch/internal/metrics"
	"github.com/slok/jobwatch/internal/model"
)

const namespace = "jobwatch"

// RecorderConfig is the configuration of the Prometheus recorder.
type RecorderConfig struct {
	// Registerer is where the metrics are registered, by default the Prometheus default registry.
	Registerer prometheus.Registerer
}

func (c *RecorderConfig) defaults() error {
	if c.Registerer == nil {
		c.Registerer = prometheus.DefaultRegisterer
	}
	return nil
}

// Recorder implements metrics.Recorder using Prometheus.
type Recorder struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	pollsTotal       *prometheus.CounterVec
	transientsTotal  prometheus.Counter
	outcomesTotal    *prometheus.CounterVec
	outcomeDurations *prometheus.HistogramVec
}

var _ metrics.Recorder = &Recorder{}

// NewRecorder returns a new Prometheus recorder.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	f := promauto.With(cfg.Registerer)
	return &Recorder{
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_requests_total",
			Help:      "Total number of analysis service requests by operation and status.",
		}, []string{"op", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "service_request_duration_seconds",
			Help:      "Duration of the analysis service requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		pollsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Total number of task polls by observed status.",
		}, []string{"status"}),
		transientsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_transient_failures_total",
			Help:      "Total number of poll failures absorbed by the polling loop.",
		}),
		outcomesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_outcomes_total",
			Help:      "Total number of polling loops by outcome.",
		}, []string{"outcome"}),
		outcomeDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of the polling loops by outcome.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"outcome"}),
	}, nil
}

func (r *Recorder) ObserveRequest(op string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	r.requestsTotal.WithLabelValues(op, status).Inc()
	r.requestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (r *Recorder) ObservePoll(status model.TaskStatus) {
	r.pollsTotal.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) IncTransientFailure() {
	r.transientsTotal.Inc()
}

func (r *Recorder) ObserveOutcome(outcome metrics.Outcome, duration time.Duration) {
	r.outcomesTotal.WithLabelValues(string(outcome)).Inc()
	r.outcomeDurations.WithLabelValues(string(outcome)).Observe(duration.Seconds())
}
