package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/jobwatch/internal/app/analyze"
	"github.com/slok/jobwatch/internal/app/login"
	"github.com/slok/jobwatch/internal/errclass"
	"github.com/slok/jobwatch/internal/model"
	"github.com/slok/jobwatch/internal/poller"
	"github.com/slok/jobwatch/internal/printer"
	"github.com/slok/jobwatch/internal/progress"
	storageio "github.com/slok/jobwatch/internal/storage/io"
)

type AnalyzeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	input            string
	verify           bool
	token            string
	serviceType      string
	fakeOpts         fakeServiceOptions
	pollInterval     time.Duration
	maxDuration      time.Duration
	progressSource   string
	easing           string
	expectedDuration time.Duration
	progressInterval time.Duration
	autoRetry        int
	format           string
}

// NewAnalyzeCommand returns the analyze command.
func NewAnalyzeCommand(rootCmd *RootCommand, app *kingpin.Application) *AnalyzeCommand {
	c := &AnalyzeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("analyze", "Submit a background analysis and wait for its report.")
	c.Cmd.Flag("input", "Path to the user background file (YAML or JSON).").Short('i').Required().StringVar(&c.input)
	c.Cmd.Flag("verify", "Ask for confirmation before starting the analysis.").BoolVar(&c.verify)
	c.Cmd.Flag("token", "Access token used to login when there is no session.").Envar("JOBWATCH_TOKEN").StringVar(&c.token)
	registerServiceFlags(c.Cmd, &c.serviceType, &c.fakeOpts)
	c.Cmd.Flag("poll-interval", "Interval between task status polls.").Default(poller.DefaultInterval.String()).DurationVar(&c.pollInterval)
	c.Cmd.Flag("max-duration", "Maximum time waiting for the analysis.").Default(poller.DefaultMaxDuration.String()).DurationVar(&c.maxDuration)
	c.Cmd.Flag("progress-source", "Source of the shown progress (auto, simulated, service).").Default(string(analyze.ProgressSourceAuto)).EnumVar(&c.progressSource,
		string(analyze.ProgressSourceAuto), string(analyze.ProgressSourceSimulated), string(analyze.ProgressSourceService))
	c.Cmd.Flag("easing", "Easing of the simulated progress (linear, quad, cubic).").Default(string(progress.EasingCubic)).EnumVar(&c.easing,
		string(progress.EasingLinear), string(progress.EasingQuad), string(progress.EasingCubic))
	c.Cmd.Flag("expected-duration", "Expected analysis duration used by the simulated progress.").Default("10m").DurationVar(&c.expectedDuration)
	c.Cmd.Flag("progress-interval", "Interval between progress updates.").Default("1s").DurationVar(&c.progressInterval)
	c.Cmd.Flag("auto-retry", "Times the analysis is retried when the error is retryable.").Default("0").IntVar(&c.autoRetry)
	c.Cmd.Flag("format", "Output format (table, json).").Default(printer.FormatTable).EnumVar(&c.format, printer.FormatTable, printer.FormatJSON)

	return c
}

func (c AnalyzeCommand) Name() string { return c.Cmd.FullCommand() }

func (c AnalyzeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	bg, err := loadBackground(ctx, c.input)
	if err != nil {
		return err
	}

	st, err := c.rootCmd.openLocalState(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	analysisSvc, err := c.rootCmd.newAnalysisService(st, c.serviceType, c.fakeOpts)
	if err != nil {
		return err
	}

	coord, err := poller.NewCoordinator(poller.CoordinatorConfig{
		Service: analysisSvc,
		Metrics: c.rootCmd.Metrics,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create poller: %w", err)
	}

	engine, err := progress.NewEngine(progress.EngineConfig{
		TotalDuration: c.expectedDuration,
		Interval:      c.progressInterval,
		Easing:        progress.Easing(c.easing),
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("could not create progress engine: %w", err)
	}

	// The in-process fake service doesn't authenticate.
	var sess analyze.Session = st.session
	if c.serviceType == ServiceTypeFake {
		sess = nil
	}

	ctrl, err := analyze.NewController(analyze.ControllerConfig{
		Coordinator:             coord,
		Progress:                engine,
		Session:                 sess,
		Locale:                  c.rootCmd.ErrorLocale(),
		DisableVerificationStep: !c.verify,
		ProgressSource:          analyze.ProgressSource(c.progressSource),
		PollInterval:            c.pollInterval,
		MaxDuration:             c.maxDuration,
		Logger:                  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create controller: %w", err)
	}
	defer ctrl.Close()

	out := printer.New(c.format, c.rootCmd.Stdout)
	progressOut := printer.New(c.format, c.rootCmd.Stderr)

	terminal := make(chan analyze.State, 1)
	var mu sync.Mutex
	lastTaskID := ""
	ctrl.Subscribe(func(s analyze.State) {
		mu.Lock()
		if s.Task != nil && s.Task.ID != lastTaskID {
			lastTaskID = s.Task.ID
			logger.Infof("Analysis task %s submitted", s.Task.ID)
		}
		mu.Unlock()

		if s.CurrentStep == analyze.StepReport || s.CurrentStep == analyze.StepError {
			select {
			case terminal <- s:
			default:
			}
		}
	})
	ctrl.SubscribeProgress(func(snap progress.Snapshot) {
		_ = progressOut.PrintProgress(snap)
	})

	// The analysis outlives the command context so it can be cancelled on the service.
	runCtx := context.WithoutCancel(ctx)

	if err := ctrl.SubmitBackground(runCtx, &bg); err != nil {
		return fmt.Errorf("could not submit background: %w", err)
	}

	if ctrl.State().CurrentStep == analyze.StepVerification {
		if err := c.passVerification(runCtx, ctrl, st, bg); err != nil {
			return err
		}
		if ctrl.State().CurrentStep == analyze.StepForm {
			return out.PrintMessage("Analysis aborted.")
		}
	}

	retries := c.autoRetry
	done := ctx.Done()
	for {
		select {
		case s := <-terminal:
			if s.CurrentStep == analyze.StepReport {
				return out.PrintReport(*s.AnalysisReport)
			}

			if s.Failure != nil {
				if err := out.PrintError(*s.Failure); err != nil {
					return fmt.Errorf("could not print error: %w", err)
				}

				if s.Failure.Action == errclass.RecoveryActionRetry && retries > 0 && done != nil {
					retries--
					logger.Infof("Retrying the analysis (%d retries left)", retries)
					if err := ctrl.Retry(runCtx); err != nil {
						return fmt.Errorf("could not retry the analysis: %w", err)
					}
					continue
				}
			}

			return fmt.Errorf("analysis failed: %s", s.ErrorMessage)

		case <-done:
			done = nil
			logger.Infof("Cancelling the analysis")

			cancelCtx, cancel := context.WithTimeout(runCtx, 10*time.Second)
			err := ctrl.Cancel(cancelCtx)
			cancel()
			if err != nil {
				logger.Warningf("Could not cancel the analysis: %s", err)
				ctrl.ReturnToForm(runCtx)
				return ctx.Err()
			}
		}
	}
}

// passVerification confirms the submission and logs in when required. After it the
// analysis is running, or the workflow is back in the form step when the user refused.
func (c AnalyzeCommand) passVerification(ctx context.Context, ctrl *analyze.Controller, st *localState, bg model.UserBackground) error {
	if c.verify {
		ok, err := confirm(c.rootCmd, bg)
		if err != nil {
			return err
		}
		if !ok {
			ctrl.ReturnToForm(ctx)
			return nil
		}
	}

	if !ctrl.State().AwaitingAuth {
		if err := ctrl.ConfirmVerification(ctx); err != nil {
			return fmt.Errorf("could not start the analysis: %w", err)
		}
		return nil
	}

	if c.token == "" {
		return fmt.Errorf("not logged in, use the login command or the --token flag: %w", model.ErrNotAuthenticated)
	}

	svc, err := login.NewService(login.ServiceConfig{Session: st.session, Logger: c.rootCmd.Logger})
	if err != nil {
		return fmt.Errorf("could not create login service: %w", err)
	}

	// The controller starts the awaiting analysis once the session is authenticated.
	if _, err := svc.Run(ctx, login.Request{Token: c.token}); err != nil {
		return err
	}

	return nil
}

func loadBackground(ctx context.Context, path string) (model.UserBackground, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return model.UserBackground{}, fmt.Errorf("invalid input path: %w", err)
	}

	repo := storageio.NewBackgroundRepository(os.DirFS(filepath.Dir(abs)))
	bg, err := repo.GetBackground(ctx, filepath.Base(abs))
	if err != nil {
		return model.UserBackground{}, fmt.Errorf("could not load background: %w", err)
	}

	return bg, nil
}

func confirm(rootCmd *RootCommand, bg model.UserBackground) (bool, error) {
	w := rootCmd.Stderr
	fmt.Fprintln(w, "Background to analyze:")
	fmt.Fprintf(w, "  University:  %s (%s)\n", bg.UndergraduateUniversity, bg.UndergraduateMajor)
	fmt.Fprintf(w, "  GPA:         %.2f/%s\n", bg.GPA, bg.GPAScale)
	fmt.Fprintf(w, "  Targets:     %s in %s (%s)\n", strings.Join(bg.TargetMajors, ", "), strings.Join(bg.TargetCountries, ", "), bg.TargetDegreeType)
	fmt.Fprint(w, "Start the analysis? [y/N]: ")

	sc := bufio.NewScanner(rootCmd.Stdin)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return false, fmt.Errorf("could not read confirmation: %w", err)
		}
		return false, nil
	}

	answer := strings.ToLower(strings.TrimSpace(sc.Text()))
	return answer == "y" || answer == "yes", nil
}
