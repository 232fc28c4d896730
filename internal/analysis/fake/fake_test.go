package fake_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/jobwatch/internal/analysis/fake"
	clockfake "github.com/slok/jobwatch/internal/clock/fake"
	"github.com/slok/jobwatch/internal/model"
)

func validBackground() model.UserBackground {
	return model.UserBackground{
		UndergraduateUniversity: "Tsinghua University",
		UndergraduateMajor:      "Computer Science",
		GPA:                     3.7,
		GPAScale:                "4.0",
		GraduationYear:          2025,
		TargetCountries:         []string{"US"},
		TargetMajors:            []string{"Computer Science"},
		TargetDegreeType:        "Master",
	}
}

func TestServiceLifecycle(t *testing.T) {
	tests := map[string]struct {
		cfg     func(cfg *fake.ServiceConfig)
		advance time.Duration
		check   func(t *testing.T, task *model.AnalysisTask)
	}{
		"Right after submitting the task should be pending.": {
			advance: time.Second,
			check: func(t *testing.T, task *model.AnalysisTask) {
				assert.Equal(t, model.TaskStatusPending, task.Status)
				p, ok := task.ReportedProgress()
				assert.True(t, ok)
				assert.Equal(t, 0, p)
				assert.Equal(t, "11s", task.EstimatedTime)
			},
		},
		"In the middle of the job the task should be processing with progress.": {
			advance: 7 * time.Second,
			check: func(t *testing.T, task *model.AnalysisTask) {
				assert.Equal(t, model.TaskStatusProcessing, task.Status)
				p, ok := task.ReportedProgress()
				assert.True(t, ok)
				assert.Equal(t, 50, p)
				assert.Equal(t, "5s", task.EstimatedTime)
			},
		},
		"Without progress reporting the processing task should not have progress.": {
			cfg:     func(cfg *fake.ServiceConfig) { cfg.DisableProgress = true },
			advance: 7 * time.Second,
			check: func(t *testing.T, task *model.AnalysisTask) {
				assert.Equal(t, model.TaskStatusProcessing, task.Status)
				assert.Nil(t, task.Progress)
			},
		},
		"After the job the task should be completed with a report.": {
			advance: 12 * time.Second,
			check: func(t *testing.T, task *model.AnalysisTask) {
				assert.Equal(t, model.TaskStatusCompleted, task.Status)
				require.NotNil(t, task.Result)
				assert.Len(t, task.Result.RadarScores, 5)
				assert.NotEmpty(t, task.Result.SchoolRecommendations.Recommendations)
			},
		},
		"A custom report should be returned on completion.": {
			cfg: func(cfg *fake.ServiceConfig) {
				cfg.Report = &model.AnalysisReport{RadarScores: []float64{1, 2, 3, 4, 5}, Degraded: true}
			},
			advance: 12 * time.Second,
			check: func(t *testing.T, task *model.AnalysisTask) {
				assert.Equal(t, model.TaskStatusCompleted, task.Status)
				require.NotNil(t, task.Result)
				assert.True(t, task.Result.Degraded)
			},
		},
		"A failing job should end failed with the reason.": {
			cfg:     func(cfg *fake.ServiceConfig) { cfg.FailWith = "model overloaded" },
			advance: 12 * time.Second,
			check: func(t *testing.T, task *model.AnalysisTask) {
				assert.Equal(t, model.TaskStatusFailed, task.Status)
				assert.Equal(t, "model overloaded", task.Error)
				assert.Nil(t, task.Result)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			clk := clockfake.NewClock(time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC))
			cfg := fake.ServiceConfig{
				Clock:         clk,
				QueueDuration: 2 * time.Second,
				JobDuration:   10 * time.Second,
			}
			if test.cfg != nil {
				test.cfg(&cfg)
			}
			svc, err := fake.NewService(cfg)
			require.NoError(t, err)

			ctx := context.Background()
			created, err := svc.Submit(ctx, validBackground())
			require.NoError(t, err)
			assert.NotEmpty(t, created.ID)
			assert.Equal(t, model.TaskStatusPending, created.Status)

			clk.Advance(test.advance)

			task, err := svc.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, created.ID, task.ID)
			test.check(t, task)
		})
	}
}

func TestServiceSubmitInvalid(t *testing.T) {
	svc, err := fake.NewService(fake.ServiceConfig{})
	require.NoError(t, err)

	bg := validBackground()
	bg.TargetCountries = nil
	_, err = svc.Submit(context.Background(), bg)

	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "INVALID_INPUT", apiErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.HTTPStatus)
}

func TestServiceNotFound(t *testing.T) {
	svc, err := fake.NewService(fake.ServiceConfig{})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "missing")
	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus)

	err = svc.Cancel(context.Background(), "missing")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestServiceCancel(t *testing.T) {
	ctx := context.Background()
	clk := clockfake.NewClock(time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC))
	svc, err := fake.NewService(fake.ServiceConfig{
		Clock:         clk,
		QueueDuration: time.Second,
		JobDuration:   10 * time.Second,
	})
	require.NoError(t, err)

	created, err := svc.Submit(ctx, validBackground())
	require.NoError(t, err)

	clk.Advance(6 * time.Second)
	require.NoError(t, svc.Cancel(ctx, created.ID))

	// The task stays cancelled with the progress it had when cancelled.
	clk.Advance(time.Minute)
	task, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, task.Status)
	p, _ := task.ReportedProgress()
	assert.Equal(t, 50, p)

	// Cancelling again is a no-op.
	require.NoError(t, svc.Cancel(ctx, created.ID))
}

func TestServiceCancelFinishedTask(t *testing.T) {
	ctx := context.Background()
	clk := clockfake.NewClock(time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC))
	svc, err := fake.NewService(fake.ServiceConfig{Clock: clk, QueueDuration: time.Second, JobDuration: time.Second})
	require.NoError(t, err)

	created, err := svc.Submit(ctx, validBackground())
	require.NoError(t, err)

	clk.Advance(3 * time.Second)
	require.NoError(t, svc.Cancel(ctx, created.ID))

	task, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, task.Status)
}

func TestNewServiceConfig(t *testing.T) {
	_, err := fake.NewService(fake.ServiceConfig{JobDuration: -time.Second})
	assert.Error(t, err)
}
