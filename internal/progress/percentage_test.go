package progress_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/jobwatch/internal/progress"
)

func TestFromPercentage(t *testing.T) {
	tests := map[string]struct {
		percentage float64
		expStep    int
		expPct     float64
		expStats   progress.Statistics
		expDone    bool
	}{
		"zero should start the first step": {
			percentage: 0,
			expStep:    0,
			expPct:     0,
			expStats:   progress.Statistics{Total: 6, InProgress: 1, Pending: 5},
		},
		"half should be on the fourth step": {
			percentage: 55,
			expStep:    3,
			expPct:     55,
			expStats:   progress.Statistics{Total: 6, Completed: 3, InProgress: 1, Pending: 2},
		},
		"negative values should be clamped": {
			percentage: -20,
			expStep:    0,
			expPct:     0,
			expStats:   progress.Statistics{Total: 6, InProgress: 1, Pending: 5},
		},
		"a hundred should complete all the steps": {
			percentage: 100,
			expStep:    5,
			expPct:     100,
			expStats:   progress.Statistics{Total: 6, Completed: 6},
			expDone:    true,
		},
		"more than a hundred should be clamped": {
			percentage: 250,
			expStep:    5,
			expPct:     100,
			expStats:   progress.Statistics{Total: 6, Completed: 6},
			expDone:    true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			s := progress.FromPercentage(test.percentage, progress.DefaultSteps())

			assert.Equal(test.expStep, s.CurrentStep)
			assert.Equal(test.expPct, s.Percentage)
			assert.Equal(test.expDone, s.IsCompleted)

			stats := progress.Statistics{Total: len(s.Steps)}
			for _, st := range s.Steps {
				switch st.Status {
				case progress.StepStatusCompleted:
					stats.Completed++
				case progress.StepStatusInProgress:
					stats.InProgress++
				case progress.StepStatusPending:
					stats.Pending++
				case progress.StepStatusError:
					stats.Error++
				}
			}
			assert.Equal(test.expStats, stats)
		})
	}
}

func TestEasingIsMonotonic(t *testing.T) {
	for _, easing := range []progress.Easing{progress.EasingLinear, progress.EasingQuad, progress.EasingCubic} {
		t.Run(string(easing), func(t *testing.T) {
			assert := assert.New(t)

			assert.Equal(0.0, easing.Apply(0))
			assert.Equal(1.0, easing.Apply(1))
			assert.Equal(0.0, easing.Apply(-1))
			assert.Equal(1.0, easing.Apply(2))

			prev := 0.0
			for i := 0; i <= 1000; i++ {
				v := easing.Apply(float64(i) / 1000)
				assert.GreaterOrEqual(v, prev)
				prev = v
			}
		})
	}
}

func TestParseEasing(t *testing.T) {
	e, err := progress.ParseEasing("quad")
	assert.NoError(t, err)
	assert.Equal(t, progress.EasingQuad, e)

	_, err = progress.ParseEasing("bounce")
	assert.Error(t, err)
}
