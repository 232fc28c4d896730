package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
	"github.com/slok/jobwatch/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.SessionRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository opens (creating it if required) the database and applies the migrations.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(migrations.MigratorConfig{DB: db, Logger: cfg.Logger})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, err
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// DB returns the underlying database so other repositories can share it.
func (r *Repository) DB() *sql.DB { return r.db }

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// GetSession returns the stored session.
func (r *Repository) GetSession(ctx context.Context) (*model.StoredSession, error) {
	query := `SELECT token, subject, expires_at, created_at FROM sessions WHERE id = 1`

	var (
		s         model.StoredSession
		expiresAt sql.NullInt64
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, query).Scan(&s.Token, &s.Subject, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query session: %w", err)
	}

	s.CreatedAt = timeFromUnixMilli(createdAt)
	if expiresAt.Valid {
		t := timeFromUnixMilli(expiresAt.Int64)
		s.ExpiresAt = &t
	}

	return &s, nil
}

// SaveSession stores the session replacing the previous one.
func (r *Repository) SaveSession(ctx context.Context, s model.StoredSession) error {
	if s.Token == "" {
		return fmt.Errorf("session token is required: %w", model.ErrNotValid)
	}

	var expiresAt *int64
	if s.ExpiresAt != nil {
		u := s.ExpiresAt.UnixMilli()
		expiresAt = &u
	}

	query := `
		INSERT INTO sessions (id, token, subject, expires_at, created_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			subject = excluded.subject,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`
	_, err := r.db.ExecContext(ctx, query, s.Token, s.Subject, expiresAt, s.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("could not save session: %w", err)
	}

	r.logger.Debugf("Saved session in repository")
	return nil
}

// DeleteSession removes the stored session.
func (r *Repository) DeleteSession(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = 1`); err != nil {
		return fmt.Errorf("could not delete session: %w", err)
	}

	r.logger.Debugf("Deleted session from repository")
	return nil
}

func timeFromUnixMilli(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
