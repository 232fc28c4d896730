package model

import "time"

// TaskRecord is a submitted analysis task as stored by the analysis service.
// The task status is derived from the record and the time passed since creation.
type TaskRecord struct {
	ID          string
	Background  UserBackground
	FailReason  string
	CreatedAt   time.Time
	CancelledAt *time.Time
}
