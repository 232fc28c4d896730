package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/jobwatch/internal/analysis/fake"
	"github.com/slok/jobwatch/internal/analysis/server"
	"github.com/slok/jobwatch/internal/conventions"
	"github.com/slok/jobwatch/internal/storage"
	"github.com/slok/jobwatch/internal/storage/sqlite"
)

type FakeServerCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	listenAddress   string
	queueDuration   time.Duration
	jobDuration     time.Duration
	failWith        string
	disableProgress bool
	noAuth          bool
	persist         bool
}

// NewFakeServerCommand returns the fake-server command.
func NewFakeServerCommand(rootCmd *RootCommand, app *kingpin.Application) *FakeServerCommand {
	c := &FakeServerCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("fake-server", "Serve a fake analysis service over HTTP.")
	c.Cmd.Flag("listen-address", "Address where the fake service listens.").Default(conventions.DefaultFakeServerAddress).StringVar(&c.listenAddress)
	c.Cmd.Flag("queue-duration", "Time the tasks stay pending.").Default("2s").DurationVar(&c.queueDuration)
	c.Cmd.Flag("job-duration", "Time the tasks stay processing.").Default("30s").DurationVar(&c.jobDuration)
	c.Cmd.Flag("fail-with", "Makes every task fail with this reason.").StringVar(&c.failWith)
	c.Cmd.Flag("disable-progress", "Don't report progress on the processing tasks.").BoolVar(&c.disableProgress)
	c.Cmd.Flag("no-auth", "Don't require a bearer token.").BoolVar(&c.noAuth)
	c.Cmd.Flag("persist", "Store the tasks in the SQLite database instead of memory.").BoolVar(&c.persist)

	return c
}

func (c FakeServerCommand) Name() string { return c.Cmd.FullCommand() }

func (c FakeServerCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	var tasks storage.TaskRepository
	if c.persist {
		repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: c.rootCmd.DBPath,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("could not create repository: %w", err)
		}
		defer repo.Close()

		tasks, err = sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{DB: repo.DB(), Logger: logger})
		if err != nil {
			return fmt.Errorf("could not create task repository: %w", err)
		}
	}

	svc, err := fake.NewService(fake.ServiceConfig{
		Repository:      tasks,
		QueueDuration:   c.queueDuration,
		JobDuration:     c.jobDuration,
		FailWith:        c.failWith,
		DisableProgress: c.disableProgress,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("could not create fake service: %w", err)
	}

	handler, err := server.NewHandler(server.HandlerConfig{
		Service:     svc,
		RequireAuth: !c.noAuth,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create handler: %w", err)
	}

	srv := &http.Server{
		Addr:              c.listenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		logger.Infof("Fake analysis service listening on %s", c.listenAddress)
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("fake analysis server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not shutdown fake analysis server: %w", err)
	}
	logger.Infof("Fake analysis service stopped")

	return nil
}
