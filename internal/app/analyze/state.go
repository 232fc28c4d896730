package analyze

import (
	"github.com/slok/jobwatch/internal/errclass"
	"github.com/slok/jobwatch/internal/model"
)

// Step is the step of the analysis workflow the application is in.
type Step string

const (
	StepForm         Step = "form"
	StepVerification Step = "verification"
	StepProgress     Step = "progress"
	StepReport       Step = "report"
	StepError        Step = "error"
)

// State is the application state. It's replaced as a whole on every change.
type State struct {
	CurrentStep      Step
	UserBackground   *model.UserBackground
	AnalysisReport   *model.AnalysisReport
	IsLoading        bool
	IsProgressActive bool
	ErrorMessage     string
	// Failure is the classified error of the error step.
	Failure *errclass.UserFacingError
	// Task is the last observed analysis task.
	Task *model.AnalysisTask
	// ReportedProgress is the last progress reported by the service for the running task,
	// polls without progress keep the previous one.
	ReportedProgress *int
	// AwaitingAuth is set when the analysis is waiting for the user to authenticate.
	AwaitingAuth bool
}

func initialState() State {
	return State{CurrentStep: StepForm}
}

func (s State) copy() State {
	c := s
	if s.UserBackground != nil {
		bg := s.UserBackground.Copy()
		c.UserBackground = &bg
	}
	if s.Task != nil {
		t := *s.Task
		c.Task = &t
	}
	if s.ReportedProgress != nil {
		p := *s.ReportedProgress
		c.ReportedProgress = &p
	}
	if s.Failure != nil {
		f := *s.Failure
		f.Secondary = append([]errclass.RecoveryAction(nil), s.Failure.Secondary...)
		c.Failure = &f
	}
	return c
}

// violations returns the broken state invariants.
func (s State) violations() []string {
	var v []string
	if s.CurrentStep == StepProgress && !s.IsProgressActive {
		v = append(v, "progress step without active progress")
	}
	if s.CurrentStep == StepError && s.ErrorMessage == "" {
		v = append(v, "error step without error message")
	}
	if s.CurrentStep == StepReport && s.AnalysisReport == nil {
		v = append(v, "report step without report")
	}
	return v
}

// ProgressSource is where the shown progress comes from.
type ProgressSource string

const (
	// ProgressSourceAuto uses the service reported progress when there is one, the simulation otherwise.
	ProgressSourceAuto      ProgressSource = "auto"
	ProgressSourceSimulated ProgressSource = "simulated"
	ProgressSourceService   ProgressSource = "service"
)

// Valid returns true for known progress sources.
func (p ProgressSource) Valid() bool {
	switch p {
	case ProgressSourceAuto, ProgressSourceSimulated, ProgressSourceService:
		return true
	default:
		return false
	}
}
