package errclass

// RecoveryAction is the recommended next action after an error.
type RecoveryAction string

const (
	RecoveryActionRetry         RecoveryAction = "retry"
	RecoveryActionReload        RecoveryAction = "reload"
	RecoveryActionResetProgress RecoveryAction = "resetProgress"
	RecoveryActionReturnToForm  RecoveryAction = "returnToForm"
	RecoveryActionNone          RecoveryAction = "none"
)

// Recovery returns the recommended recovery action for a classified error.
func Recovery(info Info) RecoveryAction {
	switch info.Code {
	case CodeCacheMiss, CodeFileNotFound:
		return RecoveryActionReload
	case CodeNetworkError, CodeAPIError, CodeTimeout:
		return RecoveryActionRetry
	case CodeInterrupted:
		return RecoveryActionResetProgress
	case CodeStateInconsistency:
		return RecoveryActionReturnToForm
	default:
		return RecoveryActionNone
	}
}

var fallbackActions = []RecoveryAction{
	RecoveryActionRetry,
	RecoveryActionReturnToForm,
	RecoveryActionReload,
}

// SecondaryActions returns the fallback actions offered together with the primary one.
func SecondaryActions(primary RecoveryAction) []RecoveryAction {
	res := make([]RecoveryAction, 0, len(fallbackActions))
	for _, a := range fallbackActions {
		if a != primary {
			res = append(res, a)
		}
	}
	return res
}

// UserFacingError is a classified error ready to be shown to the user.
type UserFacingError struct {
	Info      Info
	Message   LocalizedMessage
	Action    RecoveryAction
	Secondary []RecoveryAction
}

// BuildUserFacingError classifies, localizes and adds the recovery actions of an error.
func (c *Classifier) BuildUserFacingError(raw any, ctx Context, locale Locale) UserFacingError {
	info := c.Classify(raw, ctx)
	action := Recovery(info)

	return UserFacingError{
		Info:      info,
		Message:   c.Localize(info, locale),
		Action:    action,
		Secondary: SecondaryActions(action),
	}
}

// BuildUserFacingError builds the error using the default classifier.
func BuildUserFacingError(raw any, ctx Context, locale Locale) UserFacingError {
	return Default.BuildUserFacingError(raw, ctx, locale)
}
