package metrics

import (
	"time"

	"github.com/slok/jobwatch/internal/model"
)

// Outcome is how a polling loop finished.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeFailed     Outcome = "failed"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeError      Outcome = "error"
	OutcomeSuperseded Outcome = "superseded"
)

// Recorder records the analysis job metrics.
type Recorder interface {
	// ObserveRequest records a call to the analysis service.
	ObserveRequest(op string, success bool, duration time.Duration)
	// ObservePoll records a successful poll with the observed task status.
	ObservePoll(status model.TaskStatus)
	// IncTransientFailure counts a poll failure that was absorbed by the loop.
	IncTransientFailure()
	// ObserveOutcome records the end of a polling loop.
	ObserveOutcome(outcome Outcome, duration time.Duration)
}

// Noop is a recorder that doesn't record anything.
var Noop Recorder = noop(0)

type noop int

func (noop) ObserveRequest(_ string, _ bool, _ time.Duration) {}
func (noop) ObservePoll(_ model.TaskStatus)                   {}
func (noop) IncTransientFailure()                             {}
func (noop) ObserveOutcome(_ Outcome, _ time.Duration)        {}
