package lib

import (
	"errors"

	"github.com/slok/jobwatch/internal/model"
)

// Background is the user background submitted for analysis.
type Background = model.UserBackground

// Report is the result of a completed analysis.
type Report = model.AnalysisReport

// Task is the state of an analysis task on the service.
type Task = model.AnalysisTask

// TaskStatus is the status of an analysis task.
type TaskStatus = model.TaskStatus

const (
	TaskStatusPending    = model.TaskStatusPending
	TaskStatusProcessing = model.TaskStatusProcessing
	TaskStatusCompleted  = model.TaskStatusCompleted
	TaskStatusFailed     = model.TaskStatusFailed
	TaskStatusCancelled  = model.TaskStatusCancelled
)

var (
	// ErrNotFound is returned when a task does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when the input is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrNotAuthenticated is returned when the operation requires a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrTaskFailed is returned when the service reports the task as failed.
	ErrTaskFailed = errors.New("analysis failed")
	// ErrCancelled is returned when the task was cancelled.
	ErrCancelled = errors.New("analysis cancelled")
	// ErrTimeout is returned when the task did not finish in time.
	ErrTimeout = errors.New("timeout")
)

var errorMappings = []struct {
	internal error
	public   error
}{
	{model.ErrNotFound, ErrNotFound},
	{model.ErrNotValid, ErrNotValid},
	{model.ErrNotAuthenticated, ErrNotAuthenticated},
	{model.ErrTaskFailed, ErrTaskFailed},
	{model.ErrCancelled, ErrCancelled},
	{model.ErrTimeout, ErrTimeout},
}

// mapError maps internal sentinel errors to the SDK ones, the original error
// is kept in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.internal) {
			return &mappedError{original: err, sentinel: m.public}
		}
	}

	return err
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool { return target == e.sentinel }

func (e *mappedError) Unwrap() error { return e.original }
