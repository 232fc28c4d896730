package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/slok/jobwatch/cmd/jobwatch/commands"
	"github.com/slok/jobwatch/internal/conventions"
	"github.com/slok/jobwatch/internal/log"
	loglogrus "github.com/slok/jobwatch/internal/log/logrus"
	"github.com/slok/jobwatch/internal/metrics"
	metricsprometheus "github.com/slok/jobwatch/internal/metrics/prometheus"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	app := kingpin.New("jobwatch", "Background analysis job runner and watcher.")
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	// Setup commands (registers flags).
	analyzeCmd := commands.NewAnalyzeCommand(rootCmd, app)
	statusCmd := commands.NewStatusCommand(rootCmd, app)
	cancelCmd := commands.NewCancelCommand(rootCmd, app)
	loginCmd := commands.NewLoginCommand(rootCmd, app)
	logoutCmd := commands.NewLogoutCommand(rootCmd, app)
	whoamiCmd := commands.NewWhoamiCommand(rootCmd, app)
	fakeServerCmd := commands.NewFakeServerCommand(rootCmd, app)

	cmds := map[string]commands.Command{
		analyzeCmd.Name():    analyzeCmd,
		statusCmd.Name():     statusCmd,
		cancelCmd.Name():     cancelCmd,
		loginCmd.Name():      loginCmd,
		logoutCmd.Name():     logoutCmd,
		whoamiCmd.Name():     whoamiCmd,
		fakeServerCmd.Name(): fakeServerCmd,
	}

	// Parse command.
	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Set standard input/output.
	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Auto-suppress logging for commands that produce structured output (table/JSON)
	// to prevent log noise from mixing with printer output in the terminal.
	// Users can still enable logging with --debug.
	printerCommands := map[string]bool{
		"status": true,
		"whoami": true,
	}
	if printerCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}

	// Set logger.
	rootCmd.Logger = getLogger(ctx, *rootCmd)

	var g run.Group

	// Metrics.
	rootCmd.Metrics = metrics.Noop
	if rootCmd.MetricsListenAddress != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		rec, err := metricsprometheus.NewRecorder(metricsprometheus.RecorderConfig{Registerer: reg})
		if err != nil {
			return fmt.Errorf("could not create metrics recorder: %w", err)
		}
		rootCmd.Metrics = rec

		mux := http.NewServeMux()
		mux.Handle(conventions.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{
			Addr:              rootCmd.MetricsListenAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Add(
			func() error {
				rootCmd.Logger.Infof("Metrics listening on %s%s", rootCmd.MetricsListenAddress, conventions.MetricsPath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("metrics server failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			},
		)
	}

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				rootCmd.Logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				err := cmds[cmdName].Run(ctx)
				if err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger.
func getLogger(ctx context.Context, config commands.RootCommand) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	// If logger not disabled use logrus logger.
	logrusLog := logrus.New()
	logrusLog.Out = config.Stderr // By default logger goes to stderr (so it can split stdout prints).
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	// Log format.
	switch config.LoggerType {
	case commands.LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor,
			DisableColors: config.NoColor,
		})
	case commands.LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
