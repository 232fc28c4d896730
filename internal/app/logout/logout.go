package logout

import (
	"context"
	"fmt"

	"github.com/slok/jobwatch/internal/log"
)

// SessionClearer is the part of the session the logout needs.
type SessionClearer interface {
	IsAuthenticated() bool
	Clear(ctx context.Context) error
}

// ServiceConfig is the configuration for the logout service.
type ServiceConfig struct {
	Session SessionClearer
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Session == nil {
		return fmt.Errorf("session is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "logout.Service"})

	return nil
}

// Service removes the user session.
type Service struct {
	session SessionClearer
	logger  log.Logger
}

// NewService creates a new logout service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		session: cfg.Session,
		logger:  cfg.Logger,
	}, nil
}

// Run clears the session, logging out without a session is not an error.
// It returns true when there was an authenticated session.
func (s *Service) Run(ctx context.Context) (bool, error) {
	wasAuthenticated := s.session.IsAuthenticated()

	if err := s.session.Clear(ctx); err != nil {
		return false, fmt.Errorf("could not logout: %w", err)
	}

	if !wasAuthenticated {
		s.logger.Debugf("there was no session to logout from")
	}

	return wasAuthenticated, nil
}
