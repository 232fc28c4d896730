package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.SessionRepository and storage.TaskRepository.
type Repository struct {
	session *model.StoredSession
	tasks   map[string]model.TaskRecord
	mu      sync.RWMutex
	logger  log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		tasks:  make(map[string]model.TaskRecord),
		logger: cfg.Logger,
	}, nil
}

// GetSession returns the stored session.
func (r *Repository) GetSession(ctx context.Context) (*model.StoredSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.session == nil {
		return nil, fmt.Errorf("session: %w", model.ErrNotFound)
	}

	s := copySession(*r.session)
	return &s, nil
}

// SaveSession stores the session replacing the previous one.
func (r *Repository) SaveSession(ctx context.Context, s model.StoredSession) error {
	if s.Token == "" {
		return fmt.Errorf("session token is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := copySession(s)
	r.session = &c
	r.logger.Debugf("Saved session in repository")

	return nil
}

// DeleteSession removes the stored session.
func (r *Repository) DeleteSession(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.session = nil
	r.logger.Debugf("Deleted session from repository")

	return nil
}

// CreateTask stores a new task.
func (r *Repository) CreateTask(ctx context.Context, t model.TaskRecord) error {
	if t.ID == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return fmt.Errorf("task with id %s: %w", t.ID, model.ErrAlreadyExists)
	}

	r.tasks[t.ID] = copyTask(t)
	r.logger.Debugf("Created task in repository: %s", t.ID)

	return nil
}

// GetTask returns a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.TaskRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	c := copyTask(t)
	return &c, nil
}

// UpdateTask updates an existing task.
func (r *Repository) UpdateTask(ctx context.Context, t model.TaskRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; !ok {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrNotFound)
	}

	r.tasks[t.ID] = copyTask(t)
	r.logger.Debugf("Updated task in repository: %s", t.ID)

	return nil
}

func copySession(s model.StoredSession) model.StoredSession {
	c := s
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	return c
}

func copyTask(t model.TaskRecord) model.TaskRecord {
	c := t
	c.Background = t.Background.Copy()
	if t.CancelledAt != nil {
		ts := *t.CancelledAt
		c.CancelledAt = &ts
	}
	return c
}
