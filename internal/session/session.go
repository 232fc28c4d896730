package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/slok/jobwatch/internal/clock"
	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
	"github.com/slok/jobwatch/internal/storage"
)

// Listener is called with the new auth state every time it changes.
type Listener func(state model.AuthState)

// SessionConfig is the configuration of the session.
type SessionConfig struct {
	// Repository is optional, when set the session is loaded from and persisted to it.
	Repository storage.SessionRepository
	Clock      clock.Clock
	Logger     log.Logger
}

func (c *SessionConfig) defaults() error {
	if c.Clock == nil {
		c.Clock = clock.Real
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "session.Session"})

	return nil
}

// Session holds the authentication state of the user. The analysis core only
// reads it and subscribes to its changes, the composition root owns it.
type Session struct {
	repo   storage.SessionRepository
	clock  clock.Clock
	logger log.Logger

	mu        sync.Mutex
	token     string
	subject   string
	expiresAt *time.Time
	listeners map[uint64]Listener
	nextID    uint64
}

// New returns a new session, the stored session is loaded when a repository is set.
func New(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Session{
		repo:      cfg.Repository,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		listeners: map[uint64]Listener{},
	}

	if s.repo == nil {
		return s, nil
	}

	stored, err := s.repo.GetSession(ctx)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("could not load stored session: %w", err)
	}

	s.token = stored.Token
	s.subject = stored.Subject
	s.expiresAt = stored.ExpiresAt
	s.logger.Debugf("Stored session loaded")

	return s, nil
}

// IsAuthenticated returns true when there is a token that has not expired.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated()
}

func (s *Session) authenticated() bool {
	if s.token == "" {
		return false
	}
	return s.expiresAt == nil || s.clock.Now().Before(*s.expiresAt)
}

// GetAuthState returns the current auth state.
func (s *Session) GetAuthState() model.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() model.AuthState {
	st := model.AuthState{
		IsAuthenticated: s.authenticated(),
		Subject:         s.subject,
		Token:           s.token,
	}
	if s.expiresAt != nil {
		t := *s.expiresAt
		st.ExpiresAt = &t
	}
	return st
}

// Subscribe registers a listener for auth state changes, the returned func removes it.
func (s *Session) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// SetToken sets a new access token. JWT tokens have their `sub` and `exp` claims
// read without verification, the signature is the service's concern. Opaque
// tokens are accepted as they are and don't expire.
func (s *Session) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("token is required: %w", model.ErrNotValid)
	}

	subject, expiresAt := parseClaims(token, s.logger)
	if expiresAt != nil && !s.clock.Now().Before(*expiresAt) {
		return fmt.Errorf("token expired at %s: %w", expiresAt.Format(time.RFC3339), model.ErrNotValid)
	}

	if s.repo != nil {
		err := s.repo.SaveSession(ctx, model.StoredSession{
			Token:     token,
			Subject:   subject,
			ExpiresAt: expiresAt,
			CreatedAt: s.clock.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("could not store session: %w", err)
		}
	}

	s.mu.Lock()
	s.token = token
	s.subject = subject
	s.expiresAt = expiresAt
	st, listeners := s.state(), s.listenersSnapshot()
	s.mu.Unlock()

	s.logger.Infof("Session authenticated")
	notify(listeners, st)

	return nil
}

// Clear removes the session.
func (s *Session) Clear(ctx context.Context) error {
	if s.repo != nil {
		if err := s.repo.DeleteSession(ctx); err != nil {
			return fmt.Errorf("could not delete stored session: %w", err)
		}
	}

	s.mu.Lock()
	s.token = ""
	s.subject = ""
	s.expiresAt = nil
	st, listeners := s.state(), s.listenersSnapshot()
	s.mu.Unlock()

	s.logger.Infof("Session cleared")
	notify(listeners, st)

	return nil
}

// TokenSource returns an oauth2 token source with the session token. It fails
// with model.ErrNotAuthenticated when the session is not authenticated.
func (s *Session) TokenSource() oauth2.TokenSource {
	return tokenSource{s: s}
}

type tokenSource struct{ s *Session }

func (t tokenSource) Token() (*oauth2.Token, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if !t.s.authenticated() {
		return nil, model.ErrNotAuthenticated
	}

	tk := &oauth2.Token{AccessToken: t.s.token, TokenType: "Bearer"}
	if t.s.expiresAt != nil {
		tk.Expiry = *t.s.expiresAt
	}
	return tk, nil
}

// listenersSnapshot must be called with the lock held, listeners are returned
// in subscription order.
func (s *Session) listenersSnapshot() []Listener {
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, s.listeners[id])
	}
	return ls
}

func notify(listeners []Listener, st model.AuthState) {
	for _, l := range listeners {
		l(st)
	}
}

func parseClaims(token string, logger log.Logger) (subject string, expiresAt *time.Time) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		logger.Debugf("Token is not a JWT, using it as opaque token: %s", err)
		return "", nil
	}

	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time.UTC()
		expiresAt = &t
	}

	return claims.Subject, expiresAt
}
