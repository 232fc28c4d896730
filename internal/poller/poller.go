package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slok/jobwatch/internal/analysis"
	"github.com/slok/jobwatch/internal/clock"
	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/metrics"
	"github.com/slok/jobwatch/internal/model"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxDuration = 10 * time.Minute
)

// ErrSuperseded is the cause used to stop a polling loop when a new submission or loop starts.
var ErrSuperseded = errors.New("superseded by a newer analysis")

// ProgressFunc is called with every observed task.
type ProgressFunc func(task model.AnalysisTask)

// PollOptions are the options of a polling loop.
type PollOptions struct {
	Interval    time.Duration
	MaxDuration time.Duration
}

func (o *PollOptions) defaults() error {
	if o.Interval == 0 {
		o.Interval = DefaultInterval
	}
	if o.MaxDuration == 0 {
		o.MaxDuration = DefaultMaxDuration
	}
	if o.Interval < 0 || o.MaxDuration < 0 {
		return fmt.Errorf("interval and max duration can't be negative: %w", model.ErrNotValid)
	}
	return nil
}

// CoordinatorConfig is the configuration of the coordinator.
type CoordinatorConfig struct {
	Service analysis.Service
	Clock   clock.Clock
	Metrics metrics.Recorder
	Logger  log.Logger
}

func (c *CoordinatorConfig) defaults() error {
	if c.Service == nil {
		return fmt.Errorf("analysis service is required")
	}

	if c.Clock == nil {
		c.Clock = clock.Real
	}

	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "poller.Coordinator"})

	return nil
}

// Coordinator submits analysis tasks and polls them until they finish.
// At most one polling loop runs at the same time, starting a new one stops the previous.
type Coordinator struct {
	svc     analysis.Service
	clock   clock.Clock
	metrics metrics.Recorder
	logger  log.Logger

	mu         sync.Mutex
	loopID     uint64
	loopTaskID string
	stopLoop   context.CancelCauseFunc
	cancelled  map[string]struct{}
}

// NewCoordinator returns a new coordinator.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Coordinator{
		svc:       cfg.Service,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		cancelled: map[string]struct{}{},
	}, nil
}

// Submit stops any running loop and submits a new analysis task.
func (c *Coordinator) Submit(ctx context.Context, bg model.UserBackground) (*model.AnalysisTask, error) {
	c.mu.Lock()
	c.stopCurrentLoop(ErrSuperseded)
	clear(c.cancelled)
	c.mu.Unlock()

	start := c.clock.Now()
	task, err := c.svc.Submit(ctx, bg)
	c.metrics.ObserveRequest("submit", err == nil, c.clock.Since(start))
	if err != nil {
		return nil, fmt.Errorf("could not submit analysis task: %w", err)
	}

	c.logger.Infof("Analysis task %s submitted", task.ID)
	return task, nil
}

// PollUntilComplete polls the task until it reaches a terminal status and returns its report.
//
// - Failed tasks return a *model.TaskFailedError.
// - Cancelled tasks return model.ErrCancelled.
// - Exceeding the max duration returns model.ErrTimeout.
// - Transport errors and retryable service errors are absorbed until the max duration.
func (c *Coordinator) PollUntilComplete(ctx context.Context, taskID string, onProgress ProgressFunc, opts PollOptions) (*model.AnalysisReport, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}
	if err := opts.defaults(); err != nil {
		return nil, fmt.Errorf("invalid poll options: %w", err)
	}

	loopCtx, id, err := c.startLoop(ctx, taskID)
	if err != nil {
		return nil, err
	}
	defer c.endLoop(id)

	logger := c.logger.WithValues(log.Kv{"task-id": taskID})
	start := c.clock.Now()

	report, outcome, err := c.poll(loopCtx, taskID, onProgress, opts, start, logger)
	c.metrics.ObserveOutcome(outcome, c.clock.Since(start))
	if err != nil {
		logger.Debugf("Polling finished with %s: %s", outcome, err)
		return nil, err
	}

	logger.Infof("Analysis task completed")
	return report, nil
}

func (c *Coordinator) poll(ctx context.Context, taskID string, onProgress ProgressFunc, opts PollOptions, start time.Time, logger log.Logger) (*model.AnalysisReport, metrics.Outcome, error) {
	for {
		if ctx.Err() != nil {
			return c.stopped(ctx, taskID)
		}

		if elapsed := c.clock.Since(start); elapsed > opts.MaxDuration {
			return nil, metrics.OutcomeTimeout, fmt.Errorf("analysis task %s did not finish in %s: %w", taskID, opts.MaxDuration, model.ErrTimeout)
		}

		reqStart := c.clock.Now()
		task, err := c.svc.Get(ctx, taskID)
		c.metrics.ObserveRequest("get", err == nil, c.clock.Since(reqStart))
		switch {
		case err != nil && ctx.Err() != nil:
			return c.stopped(ctx, taskID)
		case err != nil && IsTransient(err):
			c.metrics.IncTransientFailure()
			logger.Warningf("Transient error polling the analysis task, retrying: %s", err)
		case err != nil:
			return nil, metrics.OutcomeError, fmt.Errorf("could not get analysis task: %w", err)
		default:
			// A cancel could have happened while the request was in flight.
			if c.isCancelled(taskID) {
				return nil, metrics.OutcomeCancelled, fmt.Errorf("analysis task %s: %w", taskID, model.ErrCancelled)
			}

			c.metrics.ObservePoll(task.Status)
			if onProgress != nil {
				onProgress(*task)
			}

			switch task.Status {
			case model.TaskStatusCompleted:
				if task.Result == nil {
					return nil, metrics.OutcomeError, fmt.Errorf("analysis task %s: %w", taskID, &model.APIError{
						HTTPStatus: 200,
						Message:    "completed task is missing its result",
					})
				}
				return task.Result, metrics.OutcomeCompleted, nil
			case model.TaskStatusFailed:
				return nil, metrics.OutcomeFailed, &model.TaskFailedError{TaskID: taskID, Reason: task.Error}
			case model.TaskStatusCancelled:
				return nil, metrics.OutcomeCancelled, fmt.Errorf("analysis task %s: %w", taskID, model.ErrCancelled)
			}
		}

		if err := c.clock.Sleep(ctx, opts.Interval); err != nil {
			return c.stopped(ctx, taskID)
		}
	}
}

func (c *Coordinator) stopped(ctx context.Context, taskID string) (*model.AnalysisReport, metrics.Outcome, error) {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, model.ErrCancelled):
		return nil, metrics.OutcomeCancelled, fmt.Errorf("analysis task %s: %w", taskID, model.ErrCancelled)
	case errors.Is(cause, ErrSuperseded):
		return nil, metrics.OutcomeSuperseded, fmt.Errorf("stopped polling analysis task %s: %w", taskID, ErrSuperseded)
	default:
		return nil, metrics.OutcomeCancelled, fmt.Errorf("stopped polling analysis task %s: %w", taskID, cause)
	}
}

// Cancel stops the polling of the task and requests its cancellation to the analysis service.
func (c *Coordinator) Cancel(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	c.mu.Lock()
	c.cancelled[taskID] = struct{}{}
	if c.loopTaskID == taskID {
		c.stopCurrentLoop(model.ErrCancelled)
	}
	c.mu.Unlock()

	start := c.clock.Now()
	err := c.svc.Cancel(ctx, taskID)
	c.metrics.ObserveRequest("cancel", err == nil, c.clock.Since(start))
	if err != nil {
		return fmt.Errorf("could not cancel analysis task: %w", err)
	}

	c.logger.Infof("Analysis task %s cancelled", taskID)
	return nil
}

// Stop stops the running loop, if any, without cancelling the remote task.
func (c *Coordinator) Stop(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCurrentLoop(cause)
}

// Active returns true while a polling loop is running.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLoop != nil
}

func (c *Coordinator) startLoop(ctx context.Context, taskID string) (context.Context, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cancelled[taskID]; ok {
		return nil, 0, fmt.Errorf("analysis task %s: %w", taskID, model.ErrCancelled)
	}

	c.stopCurrentLoop(ErrSuperseded)

	loopCtx, cancel := context.WithCancelCause(ctx)
	c.loopID++
	c.loopTaskID = taskID
	c.stopLoop = cancel

	return loopCtx, c.loopID, nil
}

func (c *Coordinator) endLoop(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loopID != id || c.stopLoop == nil {
		return
	}
	c.stopLoop(nil)
	c.stopLoop = nil
	c.loopTaskID = ""
}

// stopCurrentLoop must be called with the lock held.
func (c *Coordinator) stopCurrentLoop(cause error) {
	if c.stopLoop == nil {
		return
	}
	c.stopLoop(cause)
	c.stopLoop = nil
	c.loopTaskID = ""
}

func (c *Coordinator) isCancelled(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cancelled[taskID]
	return ok
}

// IsTransient returns true for the errors that the polling loop retries.
func IsTransient(err error) bool {
	if errors.Is(err, model.ErrTransport) {
		return true
	}

	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.IsRetryable()
}
