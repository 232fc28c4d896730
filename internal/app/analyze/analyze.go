package analyze

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/slok/jobwatch/internal/errclass"
	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
	"github.com/slok/jobwatch/internal/poller"
	"github.com/slok/jobwatch/internal/progress"
	"github.com/slok/jobwatch/internal/session"
)

// Coordinator submits and polls the analysis tasks.
type Coordinator interface {
	Submit(ctx context.Context, bg model.UserBackground) (*model.AnalysisTask, error)
	PollUntilComplete(ctx context.Context, taskID string, onProgress poller.ProgressFunc, opts poller.PollOptions) (*model.AnalysisReport, error)
	Cancel(ctx context.Context, taskID string) error
}

// Session is the read only view of the user session.
type Session interface {
	IsAuthenticated() bool
	Subscribe(l session.Listener) (unsubscribe func())
}

// ControllerConfig is the configuration of the controller.
type ControllerConfig struct {
	Coordinator Coordinator
	Progress    *progress.Engine
	// Session is optional, without session the user is always authenticated.
	Session    Session
	Classifier *errclass.Classifier
	Locale     errclass.Locale
	// DisableVerificationStep starts the analysis on submission, without asking the user to confirm it.
	DisableVerificationStep bool
	ProgressSource          ProgressSource
	PollInterval            time.Duration
	MaxDuration             time.Duration
	Logger                  log.Logger
}

func (c *ControllerConfig) defaults() error {
	if c.Coordinator == nil {
		return fmt.Errorf("coordinator is required")
	}

	if c.Progress == nil {
		return fmt.Errorf("progress engine is required")
	}

	if c.Classifier == nil {
		c.Classifier = errclass.Default
	}

	if c.ProgressSource == "" {
		c.ProgressSource = ProgressSourceAuto
	}
	if !c.ProgressSource.Valid() {
		return fmt.Errorf("unknown progress source %q", c.ProgressSource)
	}

	if c.PollInterval == 0 {
		c.PollInterval = poller.DefaultInterval
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = poller.DefaultMaxDuration
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "analyze.Controller"})

	return nil
}

// Controller is the analysis workflow state machine:
//
//	form -> verification -> progress -> report | error
//	report -> form
//	error -> form | progress
type Controller struct {
	coord      Coordinator
	engine     *progress.Engine
	session    Session
	classifier *errclass.Classifier
	locale     errclass.Locale
	verify     bool
	source     ProgressSource
	pollOpts   poller.PollOptions
	logger     log.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	unsubAuth  func()
	runs       sync.WaitGroup

	// opMu serializes the state transitions together with their engine and run side effects.
	// runID is only written under opMu, deliveries read it without opMu to know if the run was dropped.
	opMu      sync.Mutex
	runID     atomic.Uint64
	runCancel context.CancelCauseFunc
	runTaskID string
	closed    bool

	// deliverMu is taken before releasing opMu so the notes reach the listeners in
	// the order they were written. Listeners must not call the controller transitions.
	deliverMu sync.Mutex
	delivered uint64

	mu             sync.Mutex
	state          State
	gen            uint64
	nextListenerID uint64
	listeners      map[uint64]func(State)
	progListeners  map[uint64]func(progress.Snapshot)
}

// NewController returns a new controller in the form step.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		coord:      cfg.Coordinator,
		engine:     cfg.Progress,
		session:    cfg.Session,
		classifier: cfg.Classifier,
		locale:     cfg.Locale,
		verify:     !cfg.DisableVerificationStep,
		source:     cfg.ProgressSource,
		pollOpts: poller.PollOptions{
			Interval:    cfg.PollInterval,
			MaxDuration: cfg.MaxDuration,
		},
		logger:        cfg.Logger,
		baseCtx:       ctx,
		baseCancel:    cancel,
		state:         initialState(),
		listeners:     map[uint64]func(State){},
		progListeners: map[uint64]func(progress.Snapshot){},
	}

	c.engine.OnProgress(c.onEngineProgress)
	if c.session != nil {
		c.unsubAuth = c.session.Subscribe(c.onAuthChange)
	}

	return c, nil
}

// SubmitBackground stores the background and moves to the verification step.
// When there is no verification step and the user is authenticated the analysis starts right away.
func (c *Controller) SubmitBackground(ctx context.Context, bg *model.UserBackground) error {
	if bg == nil {
		c.logger.Errorf("Background submitted without data, ignoring")
		return fmt.Errorf("background is required: %w", model.ErrNotValid)
	}

	c.opMu.Lock()
	var notes []stateNote
	defer func() { c.unlockAndNotify(notes...) }()

	if err := c.checkUsableLocked(); err != nil {
		return err
	}

	current := c.State()
	if current.CurrentStep != StepForm && current.CurrentStep != StepVerification {
		return fmt.Errorf("can't submit a background in the %s step: %w", current.CurrentStep, model.ErrStateInconsistency)
	}

	bgCopy := bg.Copy()
	authenticated := c.authenticated()
	if !authenticated || c.verify {
		notes = append(notes, c.update(func(s *State) {
			s.CurrentStep = StepVerification
			s.UserBackground = &bgCopy
			s.AwaitingAuth = !authenticated
			s.ErrorMessage = ""
			s.Failure = nil
		}))
		return nil
	}

	notes = append(notes, c.update(func(s *State) { s.UserBackground = &bgCopy }))
	notes = append(notes, c.startRunLocked(ctx))
	return nil
}

// ConfirmVerification starts the analysis of the stored background.
func (c *Controller) ConfirmVerification(ctx context.Context) error {
	c.opMu.Lock()
	var notes []stateNote
	defer func() { c.unlockAndNotify(notes...) }()

	if err := c.checkUsableLocked(); err != nil {
		return err
	}

	if c.State().CurrentStep != StepVerification {
		c.logger.Debugf("Confirmation outside the verification step, ignoring")
		return fmt.Errorf("nothing to confirm: %w", model.ErrStateInconsistency)
	}

	n, err := c.confirmLocked(ctx)
	if err != nil {
		return err
	}
	notes = append(notes, n...)
	return nil
}

// Retry starts again the analysis of the stored background after an error.
func (c *Controller) Retry(ctx context.Context) error {
	c.opMu.Lock()
	var notes []stateNote
	defer func() { c.unlockAndNotify(notes...) }()

	if err := c.checkUsableLocked(); err != nil {
		return err
	}

	if step := c.State().CurrentStep; step != StepError {
		c.logger.Debugf("Retry requested in the %s step, ignoring", step)
		return fmt.Errorf("retry is only possible after an error: %w", model.ErrStateInconsistency)
	}

	n, err := c.confirmLocked(ctx)
	if err != nil {
		return err
	}
	notes = append(notes, n...)
	return nil
}

func (c *Controller) confirmLocked(ctx context.Context) ([]stateNote, error) {
	if c.State().UserBackground == nil {
		c.logger.Warningf("There is no background to analyze")
		return nil, fmt.Errorf("there is no background to analyze: %w", model.ErrStateInconsistency)
	}

	if !c.authenticated() {
		c.logger.Infof("Analysis waiting for the user to authenticate")
		return []stateNote{c.update(func(s *State) { s.AwaitingAuth = true })}, fmt.Errorf("analysis requires a session: %w", model.ErrNotAuthenticated)
	}

	return []stateNote{c.startRunLocked(ctx)}, nil
}

// Cancel cancels the running analysis, the workflow ends in the error step as interrupted.
func (c *Controller) Cancel(ctx context.Context) error {
	c.opMu.Lock()
	if c.runCancel == nil {
		c.opMu.Unlock()
		return fmt.Errorf("there is no analysis running: %w", model.ErrStateInconsistency)
	}
	taskID := c.runTaskID
	if taskID == "" {
		// Still submitting, abort the submission.
		c.runCancel(model.ErrCancelled)
		c.opMu.Unlock()
		c.logger.Infof("Analysis submission cancelled")
		return nil
	}
	c.opMu.Unlock()

	if err := c.coord.Cancel(ctx, taskID); err != nil {
		return fmt.Errorf("could not cancel analysis task: %w", err)
	}

	c.logger.Infof("Analysis task %s cancelled", taskID)
	return nil
}

// ReturnToForm drops everything and goes back to the initial form step. It waits for
// the note being delivered, once it returns no state or progress from a previous
// analysis is notified.
func (c *Controller) ReturnToForm(ctx context.Context) {
	c.opMu.Lock()
	c.unlockAndNotify(c.resetLocked())
}

func (c *Controller) resetLocked() stateNote {
	c.dropRunLocked(poller.ErrSuperseded)
	c.engine.Reset()
	return c.update(func(s *State) { *s = initialState() })
}

// OnTaskComplete moves to the report step. It's ignored when already there.
func (c *Controller) OnTaskComplete(report *model.AnalysisReport) {
	c.opMu.Lock()
	n, ok := c.completeLocked(report)
	if !ok {
		c.unlockAndNotify()
		return
	}
	c.unlockAndNotify(n)
}

func (c *Controller) completeLocked(report *model.AnalysisReport) (stateNote, bool) {
	if c.State().CurrentStep == StepReport {
		c.logger.Debugf("Already in the report step, ignoring completion")
		return stateNote{}, false
	}
	if report == nil {
		return c.failLocked(fmt.Errorf("analysis completed without a report: %w", model.ErrStateInconsistency)), true
	}

	c.dropRunLocked(nil)
	n := c.update(func(s *State) {
		s.CurrentStep = StepReport
		s.AnalysisReport = report
		s.IsLoading = false
		s.IsProgressActive = false
		s.ErrorMessage = ""
		s.Failure = nil
	})
	c.engine.Complete()

	c.logger.Infof("Analysis completed")
	return n, true
}

// OnTaskFailure moves to the error step with the classified error.
func (c *Controller) OnTaskFailure(err error) {
	c.opMu.Lock()
	c.unlockAndNotify(c.failLocked(err))
}

func (c *Controller) failLocked(err error) stateNote {
	ufe := c.classifier.BuildUserFacingError(err, errclass.Context{Component: "analyze", Action: "poll"}, c.locale)
	msg := ufe.Info.Message
	if strings.TrimSpace(msg) == "" {
		msg = ufe.Message.Description
	}

	c.dropRunLocked(nil)
	n := c.update(func(s *State) {
		s.CurrentStep = StepError
		s.IsLoading = false
		s.IsProgressActive = false
		s.ErrorMessage = msg
		s.Failure = &ufe
	})
	c.engine.Stop()

	c.logger.Warningf("Analysis failed (%s): %s", ufe.Info.Code, msg)
	return n
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.copy()
}

// Progress returns the progress to show, from the simulation or the service reported one.
// While the analysis runs the service progress is used even after the simulation finished.
func (c *Controller) Progress() progress.Snapshot {
	c.mu.Lock()
	running := c.state.CurrentStep == StepProgress
	pct, reported := 0, c.state.ReportedProgress != nil
	if reported {
		pct = *c.state.ReportedProgress
	}
	estimated := ""
	if c.state.Task != nil {
		estimated = c.state.Task.EstimatedTime
	}
	c.mu.Unlock()

	snap := c.engine.State()
	if !running || !c.usesReported(reported) {
		return snap
	}

	merged := progress.FromPercentage(float64(pct), snap.Steps)
	merged.IsActive = true
	merged.Elapsed = snap.Elapsed
	merged.EstimatedRemaining = snap.EstimatedRemaining
	merged.EstimatedTime = snap.EstimatedTime
	if estimated != "" {
		merged.EstimatedTime = estimated
	}
	return merged
}

func (c *Controller) usesReported(reported bool) bool {
	return c.source == ProgressSourceService || (c.source == ProgressSourceAuto && reported)
}

// Subscribe registers a listener called with every new state, in order. Listeners
// are called synchronously and must not call the controller transitions.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextListenerID
	c.nextListenerID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// SubscribeProgress registers a listener called on every progress change.
func (c *Controller) SubscribeProgress(fn func(progress.Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextListenerID
	c.nextListenerID++
	c.progListeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.progListeners, id)
	}
}

// Wait blocks until the running analysis, if any, finishes.
func (c *Controller) Wait() {
	c.runs.Wait()
}

// Close drops the running analysis and releases the controller resources.
func (c *Controller) Close() {
	c.opMu.Lock()
	if c.closed {
		c.opMu.Unlock()
		return
	}
	c.closed = true
	n := c.resetLocked()
	if c.unsubAuth != nil {
		c.unsubAuth()
	}
	c.baseCancel()
	c.engine.Destroy()
	c.unlockAndNotify(n)

	c.runs.Wait()
}

func (c *Controller) checkUsableLocked() error {
	if c.closed {
		return fmt.Errorf("controller is closed: %w", model.ErrStateInconsistency)
	}
	return nil
}

func (c *Controller) authenticated() bool {
	return c.session == nil || c.session.IsAuthenticated()
}

func (c *Controller) onAuthChange(st model.AuthState) {
	if !st.IsAuthenticated {
		return
	}

	c.opMu.Lock()
	var notes []stateNote
	defer func() { c.unlockAndNotify(notes...) }()

	if c.closed {
		return
	}
	s := c.State()
	if !s.AwaitingAuth || s.UserBackground == nil || s.CurrentStep != StepVerification {
		return
	}

	c.logger.Infof("User authenticated, starting the analysis")
	notes = append(notes, c.startRunLocked(c.baseCtx))
}

// startRunLocked must be called with opMu held.
func (c *Controller) startRunLocked(ctx context.Context) stateNote {
	c.dropRunLocked(poller.ErrSuperseded)

	id := c.runID.Add(1)
	runCtx, cancel := context.WithCancelCause(ctx)
	c.runCancel = cancel
	c.runTaskID = ""

	n := c.update(func(s *State) {
		s.CurrentStep = StepProgress
		s.IsLoading = true
		s.IsProgressActive = true
		s.AwaitingAuth = false
		s.AnalysisReport = nil
		s.ErrorMessage = ""
		s.Failure = nil
		s.Task = nil
		s.ReportedProgress = nil
	})
	bg := n.state.UserBackground.Copy()

	c.engine.Reset()
	c.engine.Start()

	c.runs.Add(1)
	go c.run(runCtx, id, bg)

	return n
}

// dropRunLocked stops the current run, if any, and makes its late results to be ignored.
// It must be called with opMu held.
func (c *Controller) dropRunLocked(cause error) {
	c.runID.Add(1)
	if c.runCancel != nil {
		c.runCancel(cause)
	}
	c.runCancel = nil
	c.runTaskID = ""
}

func (c *Controller) run(ctx context.Context, id uint64, bg model.UserBackground) {
	defer c.runs.Done()

	logger := c.logger.WithValues(log.Kv{"run": id})

	task, err := c.coord.Submit(ctx, bg)
	if err != nil {
		c.finish(id, nil, err)
		return
	}

	if errors.Is(context.Cause(ctx), model.ErrCancelled) {
		// Cancelled while the submission was in flight.
		if err := c.coord.Cancel(context.WithoutCancel(ctx), task.ID); err != nil {
			logger.Warningf("Could not cancel analysis task %s: %s", task.ID, err)
		}
	}

	if !c.setRunTask(id, task) {
		logger.Debugf("Run was dropped while submitting")
		return
	}

	report, err := c.coord.PollUntilComplete(ctx, task.ID, func(t model.AnalysisTask) { c.onPoll(id, t) }, c.pollOpts)
	c.finish(id, report, err)
}

func (c *Controller) setRunTask(id uint64, task *model.AnalysisTask) bool {
	c.opMu.Lock()
	if c.runID.Load() != id {
		c.opMu.Unlock()
		return false
	}
	c.runTaskID = task.ID
	t := *task
	c.unlockAndNotify(c.update(func(s *State) { s.Task = &t }))
	return true
}

func (c *Controller) onPoll(id uint64, task model.AnalysisTask) {
	c.opMu.Lock()
	if c.runID.Load() != id {
		c.opMu.Unlock()
		return
	}
	pct, reported := task.ReportedProgress()
	n := c.update(func(s *State) {
		s.Task = &task
		if reported {
			s.ReportedProgress = &pct
		}
	})

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	c.opMu.Unlock()
	c.deliverLocked([]stateNote{n})

	// The listeners could have been running while the run was dropped.
	if c.runID.Load() != id {
		return
	}
	if c.usesReported(n.state.ReportedProgress != nil) {
		c.emitProgressLocked(c.Progress())
	}
}

func (c *Controller) finish(id uint64, report *model.AnalysisReport, err error) {
	c.opMu.Lock()
	if c.runID.Load() != id {
		c.opMu.Unlock()
		c.logger.Debugf("Ignoring the result of a dropped analysis run")
		return
	}

	if err != nil {
		c.unlockAndNotify(c.failLocked(err))
		return
	}
	n, ok := c.completeLocked(report)
	if !ok {
		c.unlockAndNotify()
		return
	}
	c.unlockAndNotify(n)
}

func (c *Controller) onEngineProgress(snap progress.Snapshot) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	active := c.state.CurrentStep == StepProgress
	reported := c.state.ReportedProgress != nil
	c.mu.Unlock()

	if !active {
		return
	}
	if c.usesReported(reported) {
		// The service progress is emitted on every poll, ticks only refresh the timings.
		c.emitProgressLocked(c.Progress())
		return
	}
	c.emitProgressLocked(snap)
}

// stateNote is a state change waiting to be delivered to the listeners.
type stateNote struct {
	gen   uint64
	state State
}

// update replaces the state and returns the note of the change.
func (c *Controller) update(fn func(s *State)) stateNote {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state.copy()
	fn(&s)
	for _, v := range s.violations() {
		c.logger.Warningf("Inconsistent state: %s", v)
	}
	c.state = s
	c.gen++

	return stateNote{gen: c.gen, state: s.copy()}
}

// unlockAndNotify releases opMu and delivers the notes in order. It must be called with opMu held.
func (c *Controller) unlockAndNotify(notes ...stateNote) {
	if len(notes) == 0 {
		c.opMu.Unlock()
		return
	}

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	c.opMu.Unlock()

	c.deliverLocked(notes)
}

// deliverLocked must be called with deliverMu held. Notes older than the last delivered one are dropped.
func (c *Controller) deliverLocked(notes []stateNote) {
	c.mu.Lock()
	ls := sortedListeners(c.listeners)
	c.mu.Unlock()

	for _, n := range notes {
		if n.gen < c.delivered {
			c.logger.Debugf("Dropping stale state note %d", n.gen)
			continue
		}
		c.delivered = n.gen
		for _, l := range ls {
			l(n.state.copy())
		}
	}
}

// emitProgressLocked must be called with deliverMu held.
func (c *Controller) emitProgressLocked(snap progress.Snapshot) {
	c.mu.Lock()
	ls := sortedListeners(c.progListeners)
	c.mu.Unlock()

	for _, l := range ls {
		l(snap)
	}
}

func sortedListeners[T any](m map[uint64]T) []T {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	res := make([]T, 0, len(ids))
	for _, id := range ids {
		res = append(res, m[id])
	}
	return res
}
