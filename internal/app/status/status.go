package status

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slok/jobwatch/internal/analysis"
	"github.com/slok/jobwatch/internal/errclass"
	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
)

// ServiceConfig is the configuration for the status service.
type ServiceConfig struct {
	Analysis analysis.Service
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Analysis == nil {
		return fmt.Errorf("analysis service is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "status.Service"})

	return nil
}

// Service retrieves the status of an analysis task.
type Service struct {
	analysis analysis.Service
	logger   log.Logger
}

// NewService creates a new status service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		analysis: cfg.Analysis,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the status request parameters.
type Request struct {
	TaskID string
}

// Run makes a single status request of the task, it doesn't poll.
func (s *Service) Run(ctx context.Context, req Request) (*model.AnalysisTask, error) {
	if err := ValidateTaskID(req.TaskID); err != nil {
		return nil, err
	}

	s.logger.Debugf("getting status for analysis task: %s", req.TaskID)

	task, err := s.analysis.Get(ctx, req.TaskID)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == errclass.ServiceCodeNotFound {
			return nil, fmt.Errorf("analysis task not found: %s: %w", req.TaskID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get analysis task status: %w", err)
	}

	return task, nil
}

// ValidateTaskID checks the task id can be used as a path segment of the service API.
func ValidateTaskID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}
	if strings.ContainsAny(id, "/?# ") {
		return fmt.Errorf("invalid task id %q: %w", id, model.ErrNotValid)
	}
	return nil
}
