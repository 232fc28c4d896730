package prometheus_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/jobwatch/internal/metrics"
	metricsprometheus "github.com/slok/jobwatch/internal/metrics/prometheus"
	"github.com/slok/jobwatch/internal/model"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metricsprometheus.NewRecorder(metricsprometheus.RecorderConfig{Registerer: reg})
	require.NoError(t, err)

	rec.ObserveRequest("submit", true, 200*time.Millisecond)
	rec.ObserveRequest("get", false, time.Second)
	rec.ObserveRequest("get", true, time.Second)
	rec.ObservePoll(model.TaskStatusProcessing)
	rec.ObservePoll(model.TaskStatusProcessing)
	rec.ObservePoll(model.TaskStatusCompleted)
	rec.IncTransientFailure()
	rec.ObserveOutcome(metrics.OutcomeCompleted, 42*time.Second)

	expected := `
# HELP jobwatch_polls_total Total number of task polls by observed status.
# TYPE jobwatch_polls_total counter
jobwatch_polls_total{status="completed"} 1
jobwatch_polls_total{status="processing"} 2
# HELP jobwatch_poll_transient_failures_total Total number of poll failures absorbed by the polling loop.
# TYPE jobwatch_poll_transient_failures_total counter
jobwatch_poll_transient_failures_total 1
# HELP jobwatch_poll_outcomes_total Total number of polling loops by outcome.
# TYPE jobwatch_poll_outcomes_total counter
jobwatch_poll_outcomes_total{outcome="completed"} 1
# HELP jobwatch_service_requests_total Total number of analysis service requests by operation and status.
# TYPE jobwatch_service_requests_total counter
jobwatch_service_requests_total{op="get",status="error"} 1
jobwatch_service_requests_total{op="get",status="success"} 1
jobwatch_service_requests_total{op="submit",status="success"} 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"jobwatch_polls_total",
		"jobwatch_poll_transient_failures_total",
		"jobwatch_poll_outcomes_total",
		"jobwatch_service_requests_total",
	)
	assert.NoError(t, err)
}

func TestRecorderDuplicatedRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metricsprometheus.NewRecorder(metricsprometheus.RecorderConfig{Registerer: reg})
	require.NoError(t, err)

	assert.Panics(t, func() {
		_, _ = metricsprometheus.NewRecorder(metricsprometheus.RecorderConfig{Registerer: reg})
	})
}
