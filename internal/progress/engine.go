package progress

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/slok/jobwatch/internal/clock"
	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
)

const (
	// MinInterval is the minimum tick interval accepted by the engine.
	MinInterval = 16 * time.Millisecond

	completedTitle = "Analysis complete"
	almostDone     = "almost done"
)

// Snapshot is an immutable view of the engine state.
type Snapshot struct {
	// Percentage is the eased percentage in [0,100] rounded to 2 decimals.
	Percentage         float64
	CurrentStep        int
	StepTitle          string
	EstimatedTime      string
	EstimatedRemaining time.Duration
	Elapsed            time.Duration
	IsActive           bool
	IsCompleted        bool
	Steps              []Step
}

// EngineConfig is the configuration of the progress engine.
type EngineConfig struct {
	Clock         clock.Clock
	TotalDuration time.Duration
	Interval      time.Duration
	Easing        Easing
	Steps         []Step
	Logger        log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Clock == nil {
		c.Clock = clock.Real
	}

	if c.TotalDuration == 0 {
		c.TotalDuration = 600 * time.Second
	}
	if c.TotalDuration < 0 {
		return fmt.Errorf("total duration can't be negative")
	}

	if c.Interval == 0 {
		c.Interval = 100 * time.Millisecond
	}
	if c.Interval < MinInterval {
		return fmt.Errorf("interval must be at least %s", MinInterval)
	}

	if c.Easing == "" {
		c.Easing = EasingCubic
	}
	if !c.Easing.Valid() {
		return fmt.Errorf("unknown easing %q", c.Easing)
	}

	if c.Steps == nil {
		c.Steps = DefaultSteps()
	}
	if len(c.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "progress.Engine"})

	return nil
}

// Engine simulates the progress of a long running analysis over a fixed set of steps.
// All the methods are safe to be used concurrently, callbacks are called without
// holding the engine lock so they can call back into the engine.
type Engine struct {
	clock  clock.Clock
	total  time.Duration
	logger log.Logger
	tpl    []Step

	mu            sync.Mutex
	interval      time.Duration
	easing        Easing
	steps         []Step
	current       int
	running       bool
	completed     bool
	stopped       bool
	startedAt     time.Time
	frozenAt      time.Time
	paused        time.Duration
	lastEmit      time.Time
	stopTick      func()
	gen           uint64
	completeFired bool
	lastErr       error
	onProgress    func(Snapshot)
	onComplete    func()
	onError       func(error)
}

// NewEngine returns a new progress engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tpl := copySteps(cfg.Steps)
	return &Engine{
		clock:    cfg.Clock,
		total:    cfg.TotalDuration,
		logger:   cfg.Logger,
		tpl:      tpl,
		interval: cfg.Interval,
		easing:   cfg.Easing,
		steps:    pristineSteps(tpl),
	}, nil
}

// OnProgress sets the callback called on every (throttled) progress tick.
func (e *Engine) OnProgress(fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onProgress = fn
}

// OnComplete sets the callback called once when the engine completes.
func (e *Engine) OnComplete(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onComplete = fn
}

// OnError sets the callback called when the engine catches an error.
func (e *Engine) OnError(fn func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = fn
}

// SetEasing changes the easing, only allowed while the engine is not running.
func (e *Engine) SetEasing(easing Easing) error {
	if !easing.Valid() {
		return fmt.Errorf("unknown easing %q: %w", easing, model.ErrNotValid)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("can't change easing while running: %w", model.ErrNotValid)
	}
	e.easing = easing
	return nil
}

// SetInterval changes the tick interval, only allowed while the engine is not running.
func (e *Engine) SetInterval(d time.Duration) error {
	if d < MinInterval {
		return fmt.Errorf("interval must be at least %s: %w", MinInterval, model.ErrNotValid)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("can't change interval while running: %w", model.ErrNotValid)
	}
	e.interval = d
	return nil
}

// Start starts a new simulation from zero. If the engine is running or completed it's a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		e.logger.Debugf("engine already running, ignoring start")
		return
	}
	if e.completed {
		e.logger.Debugf("engine already completed, ignoring start")
		return
	}

	e.cancelTickLocked()
	now := e.clock.Now()
	e.steps = pristineSteps(e.tpl)
	e.current = 0
	e.running = true
	e.stopped = false
	e.startedAt = now
	e.frozenAt = time.Time{}
	e.paused = 0
	e.lastEmit = time.Time{}
	e.steps[0].start(now, e.tpl[0].Message)
	e.scheduleTickLocked()

	e.logger.Debugf("engine started")
}

// Stop stops the engine marking the step in progress as interrupted.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.startedAt.IsZero() || e.completed || e.stopped {
		return
	}

	now := e.clock.Now()
	e.cancelTickLocked()
	if e.running {
		e.frozenAt = now
	}
	e.running = false
	e.stopped = true

	if s := &e.steps[e.current]; s.Status == StepStatusInProgress {
		s.finish(now, StepStatusError, interruptedMessage(*s))
	}

	e.logger.Debugf("engine stopped")
}

// Pause stops the ticks keeping the accumulated progress.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	e.cancelTickLocked()
	e.running = false
	e.frozenAt = e.clock.Now()

	e.logger.Debugf("engine paused")
}

// Resume continues a paused engine, the paused time is not accounted as elapsed time.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running || e.completed || e.stopped || e.startedAt.IsZero() {
		return
	}
	e.paused += e.clock.Since(e.frozenAt)
	e.frozenAt = time.Time{}
	e.running = true
	e.scheduleTickLocked()

	e.logger.Debugf("engine resumed")
}

// Complete sets the progress to 100% and all the pending steps as completed.
func (e *Engine) Complete() {
	e.mu.Lock()
	if e.completed {
		e.mu.Unlock()
		return
	}

	now := e.clock.Now()
	e.cancelTickLocked()
	if e.startedAt.IsZero() {
		e.startedAt = now
	}
	if e.frozenAt.IsZero() {
		e.frozenAt = now
	}
	e.running = false
	e.completed = true
	for i := range e.steps {
		s := &e.steps[i]
		if s.Status.IsTerminal() {
			continue
		}
		s.finish(now, StepStatusCompleted, completedMessage(*s))
	}
	e.current = len(e.steps) - 1
	snap := e.snapshotLocked(now)
	onProgress := e.onProgress

	var onComplete func()
	if !e.completeFired {
		e.completeFired = true
		onComplete = e.onComplete
	}
	e.mu.Unlock()

	e.logger.Debugf("engine completed")
	// The last tick could be below 100%, progress listeners get the final state too.
	if onProgress != nil {
		e.emit(onProgress, snap)
	}
	if onComplete != nil {
		onComplete()
	}
}

// Reset returns the engine to the state it had when created, callbacks are kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelTickLocked()
	e.steps = pristineSteps(e.tpl)
	e.current = 0
	e.running = false
	e.completed = false
	e.stopped = false
	e.startedAt = time.Time{}
	e.frozenAt = time.Time{}
	e.paused = 0
	e.lastEmit = time.Time{}
	e.completeFired = false
	e.lastErr = nil
}

// Destroy stops the engine and removes all the callbacks.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	e.cancelTickLocked()
	e.onProgress = nil
	e.onComplete = nil
	e.onError = nil
}

// State returns the current snapshot of the engine.
func (e *Engine) State() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.clock.Now())
}

// IsActive returns true while the engine is running.
func (e *Engine) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// IsFinished returns true when the engine has completed.
func (e *Engine) IsFinished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completed
}

// StepInfo returns a copy of the step at index i.
func (e *Engine) StepInfo(i int) (Step, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.steps) {
		return Step{}, false
	}
	return e.steps[i].copy(), true
}

// Statistics returns the step counts per status.
func (e *Engine) Statistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return statistics(e.steps)
}

// LastError returns the last error caught by the engine.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Engine) scheduleTickLocked() {
	e.gen++
	gen := e.gen
	e.stopTick = e.clock.Every(e.interval, func() { e.tick(gen) })
}

func (e *Engine) cancelTickLocked() {
	e.gen++
	if e.stopTick != nil {
		e.stopTick()
		e.stopTick = nil
	}
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || !e.running {
		e.mu.Unlock()
		return
	}

	now := e.clock.Now()
	if !e.lastEmit.IsZero() && now.Sub(e.lastEmit) < e.interval {
		e.mu.Unlock()
		return
	}

	eased := e.easedLocked(now)
	e.advanceStepLocked(eased, now)
	snap := e.snapshotLocked(now)
	e.lastEmit = now
	onProgress := e.onProgress
	e.mu.Unlock()

	if onProgress != nil {
		e.emit(onProgress, snap)
	}

	if eased >= 100 {
		e.Complete()
	}
}

func (e *Engine) emit(fn func(Snapshot), snap Snapshot) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		err := fmt.Errorf("progress callback panicked: %v", r)
		e.logger.Errorf("%s", err)

		e.mu.Lock()
		e.lastErr = err
		onError := e.onError
		e.mu.Unlock()
		if onError != nil {
			onError(err)
		}
	}()

	fn(snap)
}

func (e *Engine) advanceStepLocked(eased float64, now time.Time) {
	idx := stepIndex(eased, len(e.steps))
	if idx == e.current || idx >= len(e.steps) {
		return
	}

	if s := &e.steps[e.current]; s.Status == StepStatusInProgress {
		s.finish(now, StepStatusCompleted, completedMessage(*s))
	}
	// Jumping over steps (e.g big intervals) marks the skipped ones as completed too.
	for i := e.current + 1; i < idx; i++ {
		e.steps[i].start(now, e.tpl[i].Message)
		e.steps[i].finish(now, StepStatusCompleted, completedMessage(e.steps[i]))
	}
	e.current = idx
	e.steps[idx].start(now, e.tpl[idx].Message)
}

func (e *Engine) elapsedLocked(now time.Time) time.Duration {
	if e.startedAt.IsZero() {
		return 0
	}
	end := now
	if !e.frozenAt.IsZero() {
		end = e.frozenAt
	}
	elapsed := end.Sub(e.startedAt) - e.paused
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (e *Engine) easedLocked(now time.Time) float64 {
	if e.total == 0 {
		return 100
	}
	raw := clamp(float64(e.elapsedLocked(now))/float64(e.total)*100, 0, 100)
	return e.easing.Apply(raw/100) * 100
}

func (e *Engine) snapshotLocked(now time.Time) Snapshot {
	elapsed := e.elapsedLocked(now)
	snap := Snapshot{
		CurrentStep: e.current,
		Elapsed:     elapsed,
		IsActive:    e.running,
		IsCompleted: e.completed,
		Steps:       copySteps(e.steps),
	}

	switch {
	case e.completed:
		snap.Percentage = 100
		snap.StepTitle = completedTitle
		snap.EstimatedTime = almostDone
	case e.startedAt.IsZero():
		snap.StepTitle = e.steps[0].Title
		snap.EstimatedRemaining = e.total
		snap.EstimatedTime = "about " + formatRemaining(e.total)
	default:
		snap.Percentage = round2(e.easedLocked(now))
		snap.StepTitle = e.steps[e.current].Title
		remaining := e.total - elapsed
		if remaining < 0 {
			remaining = 0
		}
		snap.EstimatedRemaining = remaining
		snap.EstimatedTime = almostDone
		if e.running && remaining > 0 {
			snap.EstimatedTime = formatRemaining(remaining)
		}
	}

	return snap
}

func formatRemaining(d time.Duration) string {
	secs := d.Seconds()
	switch {
	case secs < 60:
		return plural(int(math.Ceil(secs)), "second")
	case secs < 3600:
		return plural(int(math.Ceil(secs/60)), "minute")
	default:
		return plural(int(math.Ceil(secs/3600)), "hour")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
