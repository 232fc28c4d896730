package progress

import (
	"fmt"
	"math"
	"time"
)

// StepStatus is the status of a single analysis step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusError      StepStatus = "error"
)

// IsTerminal returns true when the step will not change anymore.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusError
}

// Step is one of the named phases the progress is divided in.
type Step struct {
	ID        string
	Title     string
	Status    StepStatus
	Message   string
	StartTime *time.Time
	EndTime   *time.Time
	Duration  time.Duration
}

func (s Step) copy() Step {
	c := s
	if s.StartTime != nil {
		t := *s.StartTime
		c.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	return c
}

func (s *Step) start(now time.Time, message string) {
	s.Status = StepStatusInProgress
	s.StartTime = &now
	s.EndTime = nil
	s.Duration = 0
	s.Message = message
}

func (s *Step) finish(now time.Time, status StepStatus, message string) {
	if s.StartTime == nil {
		s.StartTime = &now
	}
	s.Status = status
	s.EndTime = &now
	s.Duration = now.Sub(*s.StartTime)
	s.Message = message
}

// DefaultSteps returns the six analysis steps.
func DefaultSteps() []Step {
	return []Step{
		{ID: "step1", Title: "Finding similar cases", Message: "Analyzing historical application cases with a similar background..."},
		{ID: "step2", Title: "Analyzing competitiveness", Message: "Evaluating strengths and weaknesses of the application..."},
		{ID: "step3", Title: "Matching target schools", Message: "Matching and filtering the best fitting schools..."},
		{ID: "step4", Title: "Building application strategy", Message: "Building a personalized application strategy..."},
		{ID: "step5", Title: "Optimizing application materials", Message: "Preparing suggestions to improve the application materials..."},
		{ID: "step6", Title: "Generating analysis report", Message: "Putting together the complete analysis report..."},
	}
}

func copySteps(steps []Step) []Step {
	res := make([]Step, 0, len(steps))
	for _, s := range steps {
		res = append(res, s.copy())
	}
	return res
}

// pristineSteps returns the steps ready for a new run, all pending and without timing.
func pristineSteps(tpl []Step) []Step {
	res := make([]Step, 0, len(tpl))
	for _, s := range tpl {
		res = append(res, Step{
			ID:      s.ID,
			Title:   s.Title,
			Status:  StepStatusPending,
			Message: s.Message,
		})
	}
	return res
}

func stepIndex(percentage float64, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(percentage / (100 / float64(total))))
}

func interruptedMessage(s Step) string { return fmt.Sprintf("%s interrupted", s.Title) }
func completedMessage(s Step) string   { return fmt.Sprintf("%s completed", s.Title) }

// Statistics are the step counts per status.
type Statistics struct {
	Total      int
	Completed  int
	InProgress int
	Pending    int
	Error      int
}

func statistics(steps []Step) Statistics {
	stats := Statistics{Total: len(steps)}
	for _, s := range steps {
		switch s.Status {
		case StepStatusCompleted:
			stats.Completed++
		case StepStatusInProgress:
			stats.InProgress++
		case StepStatusPending:
			stats.Pending++
		case StepStatusError:
			stats.Error++
		}
	}
	return stats
}
