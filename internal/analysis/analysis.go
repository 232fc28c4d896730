package analysis

import (
	"context"

	"github.com/slok/jobwatch/internal/model"
)

// Service is the remote analysis service. A submission creates a task that is
// only observable by polling it.
type Service interface {
	// Submit creates a new analysis task for the background.
	Submit(ctx context.Context, bg model.UserBackground) (*model.AnalysisTask, error)
	// Get returns the current state of a task.
	Get(ctx context.Context, taskID string) (*model.AnalysisTask, error)
	// Cancel requests the cancellation of a task.
	Cancel(ctx context.Context, taskID string) error
}
