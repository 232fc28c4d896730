package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/slok/jobwatch/internal/log"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// MigratorConfig is the configuration of the migrator.
type MigratorConfig struct {
	DB     *sql.DB
	Logger log.Logger
}

func (c *MigratorConfig) defaults() error {
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Migrator"})

	return nil
}

// Migrator applies the embedded schema migrations to a SQLite database.
type Migrator struct {
	db     *sql.DB
	logger log.Logger
}

// NewMigrator returns a new migrator.
func NewMigrator(cfg MigratorConfig) (*Migrator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Migrator{
		db:     cfg.DB,
		logger: cfg.Logger,
	}, nil
}

// Up applies all the pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	return m.run(ctx, "up", func(inst *migrate.Migrate) error { return inst.Up() })
}

// Down reverts all the migrations.
func (m *Migrator) Down(ctx context.Context) error {
	return m.run(ctx, "down", func(inst *migrate.Migrate) error { return inst.Down() })
}

// Version returns the current schema version, 0 when no migration was applied.
func (m *Migrator) Version(ctx context.Context) (uint, error) {
	var version uint
	err := m.withInstance(ctx, func(inst *migrate.Migrate) error {
		v, dirty, err := inst.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return err
		}
		if dirty {
			return fmt.Errorf("schema version %d is dirty", v)
		}
		version = v
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("could not get schema version: %w", err)
	}

	return version, nil
}

func (m *Migrator) run(ctx context.Context, direction string, fn func(*migrate.Migrate) error) error {
	err := m.withInstance(ctx, func(inst *migrate.Migrate) error {
		err := fn(inst)
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Debugf("Schema already %s to date", direction)
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("could not run %s migrations: %w", direction, err)
	}

	m.logger.Debugf("Migrations %s applied", direction)
	return nil
}

func (m *Migrator) withInstance(ctx context.Context, fn func(*migrate.Migrate) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return fmt.Errorf("could not create migrations source: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			m.logger.Errorf("could not close migrations source: %s", err)
		}
	}()

	driver, err := migratesqlite.WithInstance(m.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create driver: %w", err)
	}

	inst, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	return fn(inst)
}
