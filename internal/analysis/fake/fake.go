package fake

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/jobwatch/internal/clock"
	"github.com/slok/jobwatch/internal/errclass"
	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
	"github.com/slok/jobwatch/internal/storage"
	"github.com/slok/jobwatch/internal/storage/memory"
)

// ServiceConfig is the configuration of the fake analysis service.
type ServiceConfig struct {
	Clock clock.Clock
	// Repository is where the tasks are stored, by default in memory.
	Repository storage.TaskRepository
	// QueueDuration is the time a task stays pending.
	QueueDuration time.Duration
	// JobDuration is the time a task stays processing.
	JobDuration time.Duration
	// FailWith makes the tasks fail with this reason instead of completing.
	FailWith string
	// DisableProgress hides the progress percentage on the processing tasks.
	DisableProgress bool
	// Report is the report returned on completed tasks, by default one is made from the background.
	Report *model.AnalysisReport
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Clock == nil {
		c.Clock = clock.Real
	}

	if c.QueueDuration == 0 {
		c.QueueDuration = 2 * time.Second
	}
	if c.JobDuration == 0 {
		c.JobDuration = 30 * time.Second
	}
	if c.QueueDuration < 0 || c.JobDuration < 0 {
		return fmt.Errorf("durations can't be negative")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "analysis.Fake"})

	if c.Repository == nil {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create memory repository: %w", err)
		}
		c.Repository = repo
	}

	return nil
}

// Service is a fake implementation of analysis.Service. The task status moves
// with the clock: pending, then processing and finally completed (or failed).
type Service struct {
	clock           clock.Clock
	repo            storage.TaskRepository
	queue           time.Duration
	job             time.Duration
	failWith        string
	disableProgress bool
	report          *model.AnalysisReport
	logger          log.Logger
}

// NewService returns a new fake analysis service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		clock:           cfg.Clock,
		repo:            cfg.Repository,
		queue:           cfg.QueueDuration,
		job:             cfg.JobDuration,
		failWith:        cfg.FailWith,
		disableProgress: cfg.DisableProgress,
		report:          cfg.Report,
		logger:          cfg.Logger,
	}, nil
}

// Submit creates a new task.
func (s *Service) Submit(ctx context.Context, bg model.UserBackground) (*model.AnalysisTask, error) {
	if err := bg.Validate(); err != nil {
		return nil, &model.APIError{
			Code:       errclass.ServiceCodeInvalidInput,
			HTTPStatus: http.StatusUnprocessableEntity,
			Message:    err.Error(),
		}
	}

	now := s.clock.Now().UTC()
	rec := model.TaskRecord{
		ID:         ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Background: bg.Copy(),
		FailReason: s.failWith,
		CreatedAt:  now,
	}
	if err := s.repo.CreateTask(ctx, rec); err != nil {
		return nil, fmt.Errorf("could not store task: %w", err)
	}

	s.logger.Infof("Created fake analysis task: %s", rec.ID)

	return &model.AnalysisTask{
		ID:            rec.ID,
		Status:        model.TaskStatusPending,
		Message:       "Analysis task created",
		EstimatedTime: formatDuration(s.queue + s.job),
	}, nil
}

// Get returns the state of the task at the current time.
func (s *Service) Get(ctx context.Context, taskID string) (*model.AnalysisTask, error) {
	rec, err := s.getRecord(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return s.taskAt(*rec, s.clock.Now()), nil
}

// Cancel cancels a task, cancelling a finished task is a no-op.
func (s *Service) Cancel(ctx context.Context, taskID string) error {
	rec, err := s.getRecord(ctx, taskID)
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	if s.taskAt(*rec, now).Status.IsTerminal() {
		s.logger.Debugf("Task %s already finished, ignoring cancel", taskID)
		return nil
	}

	rec.CancelledAt = &now
	if err := s.repo.UpdateTask(ctx, *rec); err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	s.logger.Infof("Cancelled fake analysis task: %s", taskID)
	return nil
}

func (s *Service) getRecord(ctx context.Context, taskID string) (*model.TaskRecord, error) {
	rec, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, &model.APIError{
				Code:       errclass.ServiceCodeNotFound,
				HTTPStatus: http.StatusNotFound,
				Message:    fmt.Sprintf("task %s not found", taskID),
			}
		}
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	return rec, nil
}

func (s *Service) taskAt(rec model.TaskRecord, now time.Time) *model.AnalysisTask {
	at := now
	if rec.CancelledAt != nil {
		at = *rec.CancelledAt
	}
	elapsed := at.Sub(rec.CreatedAt)

	task := &model.AnalysisTask{ID: rec.ID}
	switch {
	case rec.CancelledAt != nil:
		task.Status = model.TaskStatusCancelled
		task.Message = "Analysis task was cancelled"
		task.Progress = s.progressPtr(s.percentage(elapsed))
	case elapsed < s.queue:
		task.Status = model.TaskStatusPending
		task.Message = "Waiting in the analysis queue"
		task.Progress = s.progressPtr(0)
		task.EstimatedTime = formatDuration(s.queue + s.job - elapsed)
	case elapsed < s.queue+s.job:
		task.Status = model.TaskStatusProcessing
		task.Message = "Analyzing the application background"
		task.Progress = s.progressPtr(s.percentage(elapsed))
		task.EstimatedTime = formatDuration(s.queue + s.job - elapsed)
	case rec.FailReason != "":
		task.Status = model.TaskStatusFailed
		task.Message = "Analysis failed"
		task.Error = rec.FailReason
	default:
		task.Status = model.TaskStatusCompleted
		task.Message = "Analysis completed"
		task.Progress = s.progressPtr(100)
		task.Result = s.reportFor(rec.Background)
	}

	return task
}

func (s *Service) percentage(elapsed time.Duration) int {
	if elapsed < s.queue {
		return 0
	}
	if s.job == 0 {
		return 100
	}
	p := int(float64(elapsed-s.queue) / float64(s.job) * 100)
	if p > 99 {
		p = 99
	}
	return p
}

func (s *Service) progressPtr(p int) *int {
	if s.disableProgress {
		return nil
	}
	return &p
}

func (s *Service) reportFor(bg model.UserBackground) *model.AnalysisReport {
	if s.report != nil {
		r := *s.report
		return &r
	}
	return DefaultReport(bg)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}
