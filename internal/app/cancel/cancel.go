package cancel

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/jobwatch/internal/analysis"
	"github.com/slok/jobwatch/internal/app/status"
	"github.com/slok/jobwatch/internal/errclass"
	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
)

// ServiceConfig is the configuration for the cancel service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "cancel.Service"})

	return nil
}

// Service cancels an analysis task on the analysis service.
type Service struct {
	analysis analysis.Service
	logger   log.Logger
}

// NewService creates a new cancel service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		analysis: cfg.Analysis,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the cancel request parameters.
type Request struct {
	TaskID string
}

// Run cancels the task with a single request.
func (s *Service) Run(ctx context.Context, req Request) error {
	if err := status.ValidateTaskID(req.TaskID); err != nil {
		return err
	}

	s.logger.Debugf("cancelling analysis task: %s", req.TaskID)

	if err := s.analysis.Cancel(ctx, req.TaskID); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == errclass.ServiceCodeNotFound {
			return fmt.Errorf("analysis task not found: %s: %w", req.TaskID, model.ErrNotFound)
		}
		return fmt.Errorf("could not cancel analysis task: %w", err)
	}

	s.logger.Infof("Analysis task %s cancelled", req.TaskID)

	return nil
}
