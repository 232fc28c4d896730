package lib

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/jobwatch/internal/analysis"
	"github.com/slok/jobwatch/internal/analysis/fake"
	"github.com/slok/jobwatch/internal/analysis/remote"
	"github.com/slok/jobwatch/internal/app/cancel"
	"github.com/slok/jobwatch/internal/app/status"
	"github.com/slok/jobwatch/internal/conventions"
	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
	"github.com/slok/jobwatch/internal/poller"
	"github.com/slok/jobwatch/internal/session"
	"github.com/slok/jobwatch/internal/storage/sqlite"
)

// ServiceType is the analysis service the client talks to.
type ServiceType string

const (
	// ServiceHTTP is the remote analysis service.
	ServiceHTTP ServiceType = "http"
	// ServiceFake is an in-memory fake analysis service.
	ServiceFake ServiceType = "fake"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} uses ~/.jobwatch/jobwatch.db for
// the session and the remote service on the default address.
type Config struct {
	// DBPath is the SQLite database path where the session is stored.
	// Default: ~/.jobwatch/jobwatch.db.
	DBPath string

	// APIURL is the base URL of the remote analysis service.
	// Only used with [ServiceHTTP].
	APIURL string

	// Token is stored as the session token when set. When empty the stored
	// session is used.
	Token string

	// Service selects the analysis service.
	// Default: [ServiceHTTP].
	Service ServiceType

	// FakeQueueDuration and FakeJobDuration are the pending and processing
	// times of the [ServiceFake] tasks.
	FakeQueueDuration time.Duration
	FakeJobDuration   time.Duration

	// FakeFailWith makes the [ServiceFake] tasks fail with this reason.
	FakeFailWith string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.DBPath == "" {
		c.DBPath = conventions.DBPath()
	}

	if c.APIURL == "" {
		c.APIURL = remote.DefaultBaseURL
	}

	if c.Service == "" {
		c.Service = ServiceHTTP
	}
	if c.Service != ServiceHTTP && c.Service != ServiceFake {
		return fmt.Errorf("unknown service type %q: %w", c.Service, ErrNotValid)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point to run analysis jobs.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	svc     analysis.Service
	session *session.Session
	status  *status.Service
	cancel  *cancel.Service
	logger  log.Logger
	closeFn func() error
}

// New creates a new SDK client, the session is loaded from the SQLite database.
//
// The caller must call [Client.Close] when done to release the database
// connection.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	c, err := newClient(ctx, cfg, repo)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	c.closeFn = repo.Close

	return c, nil
}

func newClient(ctx context.Context, cfg Config, repo *sqlite.Repository) (*Client, error) {
	sess, err := session.New(ctx, session.SessionConfig{
		Repository: repo,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not load session: %w", err)
	}

	if cfg.Token != "" {
		if err := sess.SetToken(ctx, cfg.Token); err != nil {
			return nil, mapError(fmt.Errorf("could not set token: %w", err))
		}
	}

	var svc analysis.Service
	switch cfg.Service {
	case ServiceFake:
		svc, err = fake.NewService(fake.ServiceConfig{
			QueueDuration: cfg.FakeQueueDuration,
			JobDuration:   cfg.FakeJobDuration,
			FailWith:      cfg.FakeFailWith,
			Logger:        cfg.Logger,
		})
	default:
		svc, err = remote.NewClient(remote.ClientConfig{
			BaseURL:     cfg.APIURL,
			TokenSource: sess.TokenSource(),
			Logger:      cfg.Logger,
		})
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create analysis service: %w", err))
	}

	statusSvc, err := status.NewService(status.ServiceConfig{Analysis: svc, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create status service: %w", err)
	}

	cancelSvc, err := cancel.NewService(cancel.ServiceConfig{Analysis: svc, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create cancel service: %w", err)
	}

	return &Client{
		svc:     svc,
		session: sess,
		status:  statusSvc,
		cancel:  cancelSvc,
		logger:  cfg.Logger,
	}, nil
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// Authenticated returns true when the client has a session that has not expired.
func (c *Client) Authenticated() bool {
	return c.session.IsAuthenticated()
}

// AnalyzeOpts are the options of [Client.Analyze].
type AnalyzeOpts struct {
	// PollInterval is the time between task status checks.
	// Default: 5s.
	PollInterval time.Duration

	// MaxDuration is the time budget of the analysis.
	// Default: 10m.
	MaxDuration time.Duration

	// OnProgress is called with every observed task state.
	OnProgress func(Task)
}

// Analyze submits the background and blocks until the task finishes, returning its report.
//
// Cancelling the context cancels the task on the service.
func (c *Client) Analyze(ctx context.Context, bg Background, opts *AnalyzeOpts) (*Report, error) {
	if opts == nil {
		opts = &AnalyzeOpts{}
	}

	if err := bg.Validate(); err != nil {
		return nil, mapError(err)
	}

	coord, err := poller.NewCoordinator(poller.CoordinatorConfig{
		Service: c.svc,
		Logger:  c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create coordinator: %w", err)
	}

	task, err := coord.Submit(ctx, bg)
	if err != nil {
		return nil, mapError(err)
	}

	var onProgress poller.ProgressFunc
	if opts.OnProgress != nil {
		onProgress = func(t model.AnalysisTask) { opts.OnProgress(t) }
	}

	report, err := coord.PollUntilComplete(ctx, task.ID, onProgress, poller.PollOptions{
		Interval:    opts.PollInterval,
		MaxDuration: opts.MaxDuration,
	})
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, model.ErrCancelled) {
			if cerr := coord.Cancel(context.WithoutCancel(ctx), task.ID); cerr != nil {
				c.logger.Warningf("Could not cancel analysis task %s: %s", task.ID, cerr)
			}
		}
		return nil, mapError(err)
	}

	return report, nil
}

// Status returns the current state of a task.
func (c *Client) Status(ctx context.Context, taskID string) (*Task, error) {
	task, err := c.status.Run(ctx, status.Request{TaskID: taskID})
	if err != nil {
		return nil, mapError(err)
	}
	return task, nil
}

// Cancel cancels a task. Cancelling a finished task is a no-op on the services
// that allow it.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	return mapError(c.cancel.Run(ctx, cancel.Request{TaskID: taskID}))
}
