package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
)

// TaskRepositoryConfig is the configuration for the SQLite task repository.
type TaskRepositoryConfig struct {
	DB     *sql.DB
	Logger log.Logger
}

func (c *TaskRepositoryConfig) defaults() error {
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.TaskRepository"})
	return nil
}

// TaskRepository is a SQLite implementation of storage.TaskRepository.
type TaskRepository struct {
	db     *sql.DB
	logger log.Logger
}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(cfg TaskRepositoryConfig) (*TaskRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &TaskRepository{
		db:     cfg.DB,
		logger: cfg.Logger,
	}, nil
}

// CreateTask stores a new task.
func (r *TaskRepository) CreateTask(ctx context.Context, t model.TaskRecord) error {
	if t.ID == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	bg, err := json.Marshal(t.Background)
	if err != nil {
		return fmt.Errorf("could not encode background: %w", err)
	}

	query := `
		INSERT INTO analysis_tasks (id, background, fail_reason, created_at, cancelled_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, t.ID, string(bg), t.FailReason, t.CreatedAt.UnixMilli(), unixMilliOrNil(t))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: analysis_tasks.") {
			return fmt.Errorf("task already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Created task in repository: %s", t.ID)
	return nil
}

// GetTask returns a task by ID.
func (r *TaskRepository) GetTask(ctx context.Context, id string) (*model.TaskRecord, error) {
	query := `
		SELECT id, background, fail_reason, created_at, cancelled_at
		FROM analysis_tasks
		WHERE id = ?
	`

	var (
		t           model.TaskRecord
		bg          string
		createdAt   int64
		cancelledAt sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &bg, &t.FailReason, &createdAt, &cancelledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}

	if err := json.Unmarshal([]byte(bg), &t.Background); err != nil {
		return nil, fmt.Errorf("could not decode background: %w", err)
	}
	t.CreatedAt = timeFromUnixMilli(createdAt)
	if cancelledAt.Valid {
		ts := timeFromUnixMilli(cancelledAt.Int64)
		t.CancelledAt = &ts
	}

	return &t, nil
}

// UpdateTask updates an existing task.
func (r *TaskRepository) UpdateTask(ctx context.Context, t model.TaskRecord) error {
	bg, err := json.Marshal(t.Background)
	if err != nil {
		return fmt.Errorf("could not encode background: %w", err)
	}

	query := `
		UPDATE analysis_tasks
		SET background = ?, fail_reason = ?, created_at = ?, cancelled_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, string(bg), t.FailReason, t.CreatedAt.UnixMilli(), unixMilliOrNil(t), t.ID)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated task in repository: %s", t.ID)
	return nil
}

func unixMilliOrNil(t model.TaskRecord) *int64 {
	if t.CancelledAt == nil {
		return nil
	}
	u := t.CancelledAt.UnixMilli()
	return &u
}
