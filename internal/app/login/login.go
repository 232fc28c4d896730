package login

import (
	"context"
	"fmt"
	"strings"

	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
)

// SessionWriter is the part of the session the login needs.
type SessionWriter interface {
	SetToken(ctx context.Context, token string) error
	GetAuthState() model.AuthState
}

// ServiceConfig is the configuration for the login service.
type ServiceConfig struct {
	Session SessionWriter
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Session == nil {
		return fmt.Errorf("session is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "login.Service"})

	return nil
}

// Service stores an access token as the user session.
type Service struct {
	session SessionWriter
	logger  log.Logger
}

// NewService creates a new login service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		session: cfg.Session,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the login request parameters.
type Request struct {
	// Token is the access token, a leading `Bearer ` is removed.
	Token string
}

// Run sets the token and returns the resulting auth state.
func (s *Service) Run(ctx context.Context, req Request) (*model.AuthState, error) {
	token := strings.TrimSpace(req.Token)
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))

	if err := s.session.SetToken(ctx, token); err != nil {
		return nil, fmt.Errorf("could not login: %w", err)
	}

	st := s.session.GetAuthState()
	s.logger.Debugf("logged in as %q", st.Subject)

	return &st, nil
}
