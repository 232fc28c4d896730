package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrTimeout is returned when an operation exceeds its time budget.
	ErrTimeout = errors.New("timeout")
	// ErrCancelled is returned when an analysis task has been cancelled.
	ErrCancelled = errors.New("analysis task was cancelled")
	// ErrTaskFailed is returned when the remote service reports a failed task.
	ErrTaskFailed = errors.New("analysis failed")
	// ErrTransport is returned when a request could not reach the remote service.
	ErrTransport = errors.New("network error")
	// ErrStateInconsistency is returned when the workflow state is inconsistent.
	ErrStateInconsistency = errors.New("state inconsistency")
	// ErrCacheMiss is returned when cached data is missing or expired.
	ErrCacheMiss = errors.New("cache miss")
	// ErrNotAuthenticated is returned when an operation requires a session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// TaskFailedError is the error for tasks that the remote service reported as failed.
// The message is the reason given by the service.
type TaskFailedError struct {
	TaskID string
	Reason string
}

func (e *TaskFailedError) Error() string {
	if e.Reason == "" {
		return ErrTaskFailed.Error()
	}
	return e.Reason
}

func (e *TaskFailedError) Unwrap() error { return ErrTaskFailed }

// APIError is the structured error object returned by the analysis service.
type APIError struct {
	Code       string `json:"code"`
	HTTPStatus int    `json:"httpStatus"`
	Message    string `json:"message"`
	Reason     string `json:"reason,omitempty"`
	Retryable  *bool  `json:"retryable,omitempty"`
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("api error %s (%d): %s", e.Code, e.HTTPStatus, e.Message)
	case e.Message != "":
		return fmt.Sprintf("api error (%d): %s", e.HTTPStatus, e.Message)
	default:
		return fmt.Sprintf("api error (%d)", e.HTTPStatus)
	}
}

// IsRetryable returns true when the service explicitly marked the error as retryable.
func (e *APIError) IsRetryable() bool {
	return e.Retryable != nil && *e.Retryable
}
