package storage

import (
	"context"

	"github.com/slok/jobwatch/internal/model"
)

// SessionRepository persists the single local session.
type SessionRepository interface {
	// GetSession returns the stored session or model.ErrNotFound.
	GetSession(ctx context.Context) (*model.StoredSession, error)
	// SaveSession creates or replaces the stored session.
	SaveSession(ctx context.Context, s model.StoredSession) error
	// DeleteSession removes the stored session, deleting a missing session is not an error.
	DeleteSession(ctx context.Context) error
}

// TaskRepository persists the tasks of the analysis service.
type TaskRepository interface {
	CreateTask(ctx context.Context, t model.TaskRecord) error
	GetTask(ctx context.Context, id string) (*model.TaskRecord, error)
	UpdateTask(ctx context.Context, t model.TaskRecord) error
}
