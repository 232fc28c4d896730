package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/jobwatch/internal/analysis"
	"github.com/slok/jobwatch/internal/analysis/fake"
	"github.com/slok/jobwatch/internal/analysis/remote"
	"github.com/slok/jobwatch/internal/conventions"
	"github.com/slok/jobwatch/internal/errclass"
	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/metrics"
	"github.com/slok/jobwatch/internal/session"
	"github.com/slok/jobwatch/internal/storage/sqlite"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	// ServiceTypeHTTP uses the remote analysis service.
	ServiceTypeHTTP = "http"
	// ServiceTypeFake uses an in-process fake analysis service that stores its tasks in the local database.
	ServiceTypeFake = "fake"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug                bool
	NoLog                bool
	NoColor              bool
	LoggerType           string
	DBPath               string
	APIURL               string
	Locale               string
	MetricsListenAddress string

	// Global instances.
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  log.Logger
	Metrics metrics.Recorder
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("db-path", "Path to the SQLite database file.").Envar("JOBWATCH_DB_PATH").Default(conventions.DBPath()).StringVar(&c.DBPath)
	app.Flag("api-url", "Base URL of the analysis service.").Envar("JOBWATCH_API_URL").Default(remote.DefaultBaseURL).StringVar(&c.APIURL)
	app.Flag("locale", "Locale of the error messages (en, zh), by default from the environment.").Envar("JOBWATCH_LOCALE").StringVar(&c.Locale)
	app.Flag("metrics-listen-address", "Address where the Prometheus metrics are served, disabled when empty.").StringVar(&c.MetricsListenAddress)

	return c
}

// ErrorLocale returns the locale used on the user facing errors.
func (r RootCommand) ErrorLocale() errclass.Locale {
	if r.Locale == "" {
		return errclass.DefaultLocale()
	}
	return errclass.ParseLocale(r.Locale)
}

// localState is the state a command opens from the local database.
type localState struct {
	repo    *sqlite.Repository
	session *session.Session
}

func (l localState) Close() error { return l.repo.Close() }

// openLocalState opens the local database and loads the stored session.
func (r RootCommand) openLocalState(ctx context.Context) (*localState, error) {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: r.DBPath,
		Logger: r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	sess, err := session.New(ctx, session.SessionConfig{
		Repository: repo,
		Logger:     r.Logger,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("could not load session: %w", err)
	}

	return &localState{repo: repo, session: sess}, nil
}

// fakeServiceOptions are the options of the in-process fake analysis service.
type fakeServiceOptions struct {
	queueDuration time.Duration
	jobDuration   time.Duration
	failWith      string
}

// newAnalysisService returns the analysis service client for a service type.
func (r RootCommand) newAnalysisService(st *localState, serviceType string, fakeOpts fakeServiceOptions) (analysis.Service, error) {
	switch serviceType {
	case ServiceTypeFake:
		tasks, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{
			DB:     st.repo.DB(),
			Logger: r.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create task repository: %w", err)
		}

		svc, err := fake.NewService(fake.ServiceConfig{
			Repository:    tasks,
			QueueDuration: fakeOpts.queueDuration,
			JobDuration:   fakeOpts.jobDuration,
			FailWith:      fakeOpts.failWith,
			Logger:        r.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create fake analysis service: %w", err)
		}
		return svc, nil
	default:
		client, err := remote.NewClient(remote.ClientConfig{
			BaseURL:     r.APIURL,
			TokenSource: st.session.TokenSource(),
			Logger:      r.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create analysis service client: %w", err)
		}
		return client, nil
	}
}

func registerServiceFlags(cmd *kingpin.CmdClause, serviceType *string, fakeOpts *fakeServiceOptions) {
	cmd.Flag("service", "Analysis service type (http, fake).").Default(ServiceTypeHTTP).EnumVar(serviceType, ServiceTypeHTTP, ServiceTypeFake)
	cmd.Flag("fake-queue-duration", "Queue duration of the fake analysis service jobs.").Default("2s").DurationVar(&fakeOpts.queueDuration)
	cmd.Flag("fake-job-duration", "Processing duration of the fake analysis service jobs.").Default("30s").DurationVar(&fakeOpts.jobDuration)
	cmd.Flag("fake-fail-with", "Makes the fake analysis service jobs fail with this reason.").StringVar(&fakeOpts.failWith)
}
