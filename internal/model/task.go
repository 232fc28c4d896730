package model

// TaskStatus represents the state of a remote analysis task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal returns true when the status will not change anymore.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Valid returns true for known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// AnalysisTask is the server tracked unit of work created by a submission.
// It is only mutated by the remote service and observed by polling.
type AnalysisTask struct {
	ID            string          `json:"task_id"`
	Status        TaskStatus      `json:"status"`
	Progress      *int            `json:"progress,omitempty"`
	Message       string          `json:"message,omitempty"`
	EstimatedTime string          `json:"estimated_time,omitempty"`
	Result        *AnalysisReport `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// ReportedProgress returns the service reported progress clamped to [0, 100].
func (t AnalysisTask) ReportedProgress() (int, bool) {
	if t.Progress == nil {
		return 0, false
	}

	p := *t.Progress
	switch {
	case p < 0:
		p = 0
	case p > 100:
		p = 100
	}

	return p, true
}
