package progress

// FromPercentage maps a progress percentage reported by the analysis service
// into the steps, the steps before the current one are completed and the ones
// after it are pending.
func FromPercentage(percentage float64, steps []Step) Snapshot {
	if len(steps) == 0 {
		steps = DefaultSteps()
	}
	percentage = clamp(percentage, 0, 100)

	res := pristineSteps(steps)
	if percentage >= 100 {
		for i := range res {
			res[i].Status = StepStatusCompleted
			res[i].Message = completedMessage(res[i])
		}
		return Snapshot{
			Percentage:    100,
			CurrentStep:   len(res) - 1,
			StepTitle:     completedTitle,
			EstimatedTime: almostDone,
			IsCompleted:   true,
			Steps:         res,
		}
	}

	idx := stepIndex(percentage, len(res))
	for i := 0; i < idx; i++ {
		res[i].Status = StepStatusCompleted
		res[i].Message = completedMessage(res[i])
	}
	res[idx].Status = StepStatusInProgress

	return Snapshot{
		Percentage:  round2(percentage),
		CurrentStep: idx,
		StepTitle:   res[idx].Title,
		IsActive:    true,
		Steps:       res,
	}
}
