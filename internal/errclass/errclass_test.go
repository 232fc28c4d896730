package errclass_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/jobwatch/internal/clock/fake"
	"github.com/slok/jobwatch/internal/errclass"
	"github.com/slok/jobwatch/internal/model"
)

func boolPtr(b bool) *bool { return &b }

func TestClassify(t *testing.T) {
	var jsonErr error
	{
		var v map[string]any
		jsonErr = json.Unmarshal([]byte("{"), &v)
	}
	_, notExistErr := os.Open("/this/does/not/exist")

	tests := map[string]struct {
		raw          any
		expCode      errclass.Code
		expRetryable bool
		expMessage   string
	}{
		"a network message should be a retryable network error": {
			raw:          errors.New("Network error occurred"),
			expCode:      errclass.CodeNetworkError,
			expRetryable: true,
			expMessage:   "Network error occurred",
		},
		"a plain string should be normalized": {
			raw:          "Request timeout",
			expCode:      errclass.CodeTimeout,
			expRetryable: true,
			expMessage:   "Request timeout",
		},
		"a state inconsistency message should not be retryable": {
			raw:     errors.New("state inconsistency detected"),
			expCode: errclass.CodeStateInconsistency,
		},
		"an enoent message should be a not found error": {
			raw:          "ENOENT: no such file",
			expCode:      errclass.CodeFileNotFound,
			expRetryable: true,
		},
		"an unknown message should be unknown": {
			raw:     errors.New("boom"),
			expCode: errclass.CodeUnknown,
		},
		"a nil value should be unknown": {
			raw:        nil,
			expCode:    errclass.CodeUnknown,
			expMessage: "unknown error",
		},
		"any other value should be encoded as JSON": {
			raw:        map[string]int{"a": 1},
			expCode:    errclass.CodeUnknown,
			expMessage: `{"a":1}`,
		},
		"an invalid input service error should be a validation error": {
			raw:     &model.APIError{Code: "INVALID_INPUT", HTTPStatus: 422, Message: "bad gpa"},
			expCode: errclass.CodeValidationError,
		},
		"a rate limited service error should be a retryable api error": {
			raw:          &model.APIError{Code: "RATE_LIMITED", HTTPStatus: 429, Message: "slow down"},
			expCode:      errclass.CodeAPIError,
			expRetryable: true,
		},
		"a not found service error should be a not found error": {
			raw:          &model.APIError{Code: "NOT_FOUND", HTTPStatus: 404, Message: "no task"},
			expCode:      errclass.CodeFileNotFound,
			expRetryable: true,
		},
		"an unknown service code should be an api error": {
			raw:          &model.APIError{Code: "TEAPOT", HTTPStatus: 418, Message: "network"},
			expCode:      errclass.CodeAPIError,
			expRetryable: true,
		},
		"a taxonomy code from the service should be kept": {
			raw:          &model.APIError{Code: "CACHE_MISS", HTTPStatus: 500},
			expCode:      errclass.CodeCacheMiss,
			expRetryable: true,
		},
		"an explicit retryable flag should win": {
			raw:     fmt.Errorf("could not get task: %w", &model.APIError{Code: "INTERNAL_ERROR", HTTPStatus: 500, Retryable: boolPtr(false)}),
			expCode: errclass.CodeAPIError,
		},
		"a service error without code should use the message": {
			raw:          &model.APIError{HTTPStatus: 500, Message: "something timeout"},
			expCode:      errclass.CodeTimeout,
			expRetryable: true,
		},
		"a wrapped timeout should be a timeout": {
			raw:          fmt.Errorf("polling exceeded 10m: %w", model.ErrTimeout),
			expCode:      errclass.CodeTimeout,
			expRetryable: true,
		},
		"a context deadline should be a timeout": {
			raw:          context.DeadlineExceeded,
			expCode:      errclass.CodeTimeout,
			expRetryable: true,
		},
		"a cancelled task should be interrupted": {
			raw:     model.ErrCancelled,
			expCode: errclass.CodeInterrupted,
		},
		"a transport error should be a network error": {
			raw:          fmt.Errorf("could not submit: %w: dial refused", model.ErrTransport),
			expCode:      errclass.CodeNetworkError,
			expRetryable: true,
		},
		"a net error should be a network error": {
			raw:          &net.OpError{Op: "dial", Err: errors.New("refused")},
			expCode:      errclass.CodeNetworkError,
			expRetryable: true,
		},
		"a failed task without keywords should be an api error": {
			raw:          &model.TaskFailedError{TaskID: "t1", Reason: "X"},
			expCode:      errclass.CodeAPIError,
			expRetryable: true,
			expMessage:   "X",
		},
		"a failed task should use its reason keywords": {
			raw:     &model.TaskFailedError{TaskID: "t1", Reason: "model validation rejected"},
			expCode: errclass.CodeValidationError,
		},
		"a JSON error should be a parse error": {
			raw:     fmt.Errorf("could not decode: %w", jsonErr),
			expCode: errclass.CodeParseError,
		},
		"a missing file should be a not found error": {
			raw:          notExistErr,
			expCode:      errclass.CodeFileNotFound,
			expRetryable: true,
		},
		"an invalid model should be a validation error": {
			raw:     fmt.Errorf("invalid user background: %w", model.ErrNotValid),
			expCode: errclass.CodeValidationError,
		},
		"a state inconsistency sentinel should be detected": {
			raw:     fmt.Errorf("progress without active engine: %w", model.ErrStateInconsistency),
			expCode: errclass.CodeStateInconsistency,
		},
		"a cache miss sentinel should be detected": {
			raw:          model.ErrCacheMiss,
			expCode:      errclass.CodeCacheMiss,
			expRetryable: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			info := errclass.Classify(test.raw, errclass.Context{Component: "test", Action: "run"})

			assert.Equal(test.expCode, info.Code)
			assert.Equal(test.expRetryable, info.Retryable)
			assert.Equal(errclass.Context{Component: "test", Action: "run"}, info.Context)
			assert.Error(info.Cause)
			if test.expMessage != "" {
				assert.Equal(test.expMessage, info.Message)
			}
		})
	}
}

func TestClassifierUsesClock(t *testing.T) {
	now := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	c, err := errclass.NewClassifier(errclass.ClassifierConfig{Clock: fake.NewClock(now), Locale: errclass.LocaleEN})
	require.NoError(t, err)

	info := c.Classify("boom", errclass.Context{})
	assert.Equal(t, now, info.Timestamp)
}

func TestNewClassifierInvalidLocale(t *testing.T) {
	_, err := errclass.NewClassifier(errclass.ClassifierConfig{Locale: "fr"})
	assert.Error(t, err)
}

func TestRecovery(t *testing.T) {
	tests := map[errclass.Code]errclass.RecoveryAction{
		errclass.CodeNetworkError:       errclass.RecoveryActionRetry,
		errclass.CodeAPIError:           errclass.RecoveryActionRetry,
		errclass.CodeTimeout:            errclass.RecoveryActionRetry,
		errclass.CodeCacheMiss:          errclass.RecoveryActionReload,
		errclass.CodeFileNotFound:       errclass.RecoveryActionReload,
		errclass.CodeInterrupted:        errclass.RecoveryActionResetProgress,
		errclass.CodeStateInconsistency: errclass.RecoveryActionReturnToForm,
		errclass.CodeParseError:         errclass.RecoveryActionNone,
		errclass.CodeValidationError:    errclass.RecoveryActionNone,
		errclass.CodeUnknown:            errclass.RecoveryActionNone,
	}

	for code, exp := range tests {
		t.Run(string(code), func(t *testing.T) {
			assert.Equal(t, exp, errclass.Recovery(errclass.Info{Code: code}))
		})
	}
}

func TestStateInconsistencyMessageReturnsToForm(t *testing.T) {
	info := errclass.Classify(errors.New("state inconsistency detected"), errclass.Context{})
	assert.Equal(t, errclass.RecoveryActionReturnToForm, errclass.Recovery(info))
}

func TestSecondaryActions(t *testing.T) {
	tests := map[string]struct {
		primary errclass.RecoveryAction
		exp     []errclass.RecoveryAction
	}{
		"retry primary": {
			primary: errclass.RecoveryActionRetry,
			exp:     []errclass.RecoveryAction{errclass.RecoveryActionReturnToForm, errclass.RecoveryActionReload},
		},
		"reload primary": {
			primary: errclass.RecoveryActionReload,
			exp:     []errclass.RecoveryAction{errclass.RecoveryActionRetry, errclass.RecoveryActionReturnToForm},
		},
		"no primary": {
			primary: errclass.RecoveryActionNone,
			exp:     []errclass.RecoveryAction{errclass.RecoveryActionRetry, errclass.RecoveryActionReturnToForm, errclass.RecoveryActionReload},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, errclass.SecondaryActions(test.primary))
		})
	}
}

func TestLocalize(t *testing.T) {
	c, err := errclass.NewClassifier(errclass.ClassifierConfig{Locale: errclass.LocaleEN})
	require.NoError(t, err)

	info := errclass.Info{Code: errclass.CodeTimeout}
	assert.Equal(t, "Analysis timeout", c.Localize(info, errclass.LocaleEN).Title)
	assert.Equal(t, "分析超时", c.Localize(info, errclass.LocaleZH).Title)
	// Unsupported locales use the classifier locale.
	assert.Equal(t, "Analysis timeout", c.Localize(info, "fr").Title)
	// Unknown codes use the unknown messages.
	assert.Equal(t, "Unknown error", c.Localize(errclass.Info{Code: "NOPE"}, errclass.LocaleEN).Title)
}

func TestLocalizeCoversAllCodes(t *testing.T) {
	for _, code := range errclass.Codes {
		for _, locale := range []errclass.Locale{errclass.LocaleZH, errclass.LocaleEN} {
			msg := errclass.Localize(errclass.Info{Code: code}, locale)
			assert.NotEmpty(t, msg.Title, "%s/%s", code, locale)
			assert.NotEmpty(t, msg.Description, "%s/%s", code, locale)
			assert.NotEmpty(t, msg.Suggestion, "%s/%s", code, locale)
		}
	}
}

func TestParseLocale(t *testing.T) {
	tests := map[string]errclass.Locale{
		"en":          errclass.LocaleEN,
		"en-GB":       errclass.LocaleEN,
		"en_US.UTF-8": errclass.LocaleEN,
		"zh-CN":       errclass.LocaleZH,
		"zh_TW.UTF-8": errclass.LocaleZH,
		"es_ES":       errclass.LocaleZH,
		"":            errclass.LocaleZH,
	}

	for in, exp := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, exp, errclass.ParseLocale(in))
		})
	}
}

func TestDefaultLocale(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "en_US.UTF-8")
	assert.Equal(t, errclass.LocaleEN, errclass.DefaultLocale())

	t.Setenv("LC_ALL", "zh_CN.UTF-8")
	assert.Equal(t, errclass.LocaleZH, errclass.DefaultLocale())
}

func TestBuildUserFacingError(t *testing.T) {
	assert := assert.New(t)

	c, err := errclass.NewClassifier(errclass.ClassifierConfig{Locale: errclass.LocaleEN})
	require.NoError(t, err)

	ufe := c.BuildUserFacingError(fmt.Errorf("poll: %w", model.ErrCancelled), errclass.Context{Component: "analyze", Action: "poll"}, errclass.LocaleEN)

	assert.Equal(errclass.CodeInterrupted, ufe.Info.Code)
	assert.Equal("Analysis interrupted", ufe.Message.Title)
	assert.Equal(errclass.RecoveryActionResetProgress, ufe.Action)
	assert.Equal([]errclass.RecoveryAction{errclass.RecoveryActionRetry, errclass.RecoveryActionReturnToForm, errclass.RecoveryActionReload}, ufe.Secondary)
}
