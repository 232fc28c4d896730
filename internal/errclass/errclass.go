package errclass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/slok/jobwatch/internal/clock"
	"github.com/slok/jobwatch/internal/model"
)

// Code is the error taxonomy code.
type Code string

const (
	CodeNetworkError       Code = "NETWORK_ERROR"
	CodeTimeout            Code = "TIMEOUT"
	CodeAPIError           Code = "API_ERROR"
	CodeCacheMiss          Code = "CACHE_MISS"
	CodeFileNotFound       Code = "FILE_NOT_FOUND"
	CodeParseError         Code = "PARSE_ERROR"
	CodeValidationError    Code = "VALIDATION_ERROR"
	CodeInterrupted        Code = "INTERRUPTED"
	CodeStateInconsistency Code = "STATE_INCONSISTENCY"
	CodeUnknown            Code = "UNKNOWN"
)

// Codes are all the taxonomy codes.
var Codes = []Code{
	CodeNetworkError,
	CodeTimeout,
	CodeAPIError,
	CodeCacheMiss,
	CodeFileNotFound,
	CodeParseError,
	CodeValidationError,
	CodeInterrupted,
	CodeStateInconsistency,
	CodeUnknown,
}

// Valid returns true if the code is part of the taxonomy.
func (c Code) Valid() bool {
	for _, code := range Codes {
		if c == code {
			return true
		}
	}
	return false
}

// Retryable returns the default retryable value of the code.
func (c Code) Retryable() bool {
	switch c {
	case CodeCacheMiss, CodeFileNotFound, CodeNetworkError, CodeTimeout, CodeAPIError:
		return true
	default:
		return false
	}
}

// Codes used by the analysis service on its structured errors.
const (
	ServiceCodeInvalidInput          = "INVALID_INPUT"
	ServiceCodeNotFound              = "NOT_FOUND"
	ServiceCodeRateLimited           = "RATE_LIMITED"
	ServiceCodeTimeout               = "TIMEOUT"
	ServiceCodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
	ServiceCodeInternalError         = "INTERNAL_ERROR"
)

// FromServiceCode maps an analysis service error code into the taxonomy.
func FromServiceCode(code string) Code {
	switch code {
	case ServiceCodeInvalidInput:
		return CodeValidationError
	case ServiceCodeNotFound:
		return CodeFileNotFound
	case ServiceCodeTimeout:
		return CodeTimeout
	case ServiceCodeRateLimited, ServiceCodeDependencyUnavailable, ServiceCodeInternalError:
		return CodeAPIError
	}

	if c := Code(code); c.Valid() {
		return c
	}
	return CodeAPIError
}

// Context is where the error happened.
type Context struct {
	Component string
	Action    string
}

// Info is a classified error.
type Info struct {
	Code      Code
	Message   string
	Timestamp time.Time
	Retryable bool
	Context   Context
	// Cause is the normalized original error.
	Cause error
}

// ClassifierConfig is the configuration of the classifier.
type ClassifierConfig struct {
	Clock  clock.Clock
	Locale Locale
}

func (c *ClassifierConfig) defaults() error {
	if c.Clock == nil {
		c.Clock = clock.Real
	}

	if c.Locale == "" {
		c.Locale = DefaultLocale()
	}
	if !c.Locale.Valid() {
		return fmt.Errorf("unknown locale %q", c.Locale)
	}

	return nil
}

// Classifier classifies errors and gives localized messages and recovery advice.
type Classifier struct {
	clock  clock.Clock
	locale Locale
}

// NewClassifier returns a new classifier.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Classifier{
		clock:  cfg.Clock,
		locale: cfg.Locale,
	}, nil
}

// Default is a classifier that uses the wall clock and the environment locale.
var Default = &Classifier{clock: clock.Real, locale: DefaultLocale()}

// Classify normalizes any value into an error and infers its taxonomy code.
// Structured errors (service codes, sentinels and typed errors) take precedence
// over the message keyword inference.
func (c *Classifier) Classify(raw any, ctx Context) Info {
	err := toError(raw)
	code, retryable := inferCode(err)

	msg := err.Error()
	if msg == "" {
		msg = "Unknown error"
	}

	return Info{
		Code:      code,
		Message:   msg,
		Timestamp: c.clock.Now(),
		Retryable: retryable,
		Context:   ctx,
		Cause:     err,
	}
}

// Classify classifies using the default classifier.
func Classify(raw any, ctx Context) Info { return Default.Classify(raw, ctx) }

func toError(raw any) error {
	switch v := raw.(type) {
	case nil:
		return errors.New("unknown error")
	case error:
		return v
	case string:
		return errors.New(v)
	case fmt.Stringer:
		return errors.New(v.String())
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return errors.New("unknown error")
	}
	return errors.New(string(b))
}

func inferCode(err error) (Code, bool) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		code := FromServiceCode(apiErr.Code)
		if apiErr.Retryable != nil {
			return code, *apiErr.Retryable
		}
		return code, code.Retryable()
	}

	code := inferStructuredCode(err)
	if code == "" {
		var taskErr *model.TaskFailedError
		code = inferKeywordCode(err)
		if errors.As(err, &taskErr) && code == CodeUnknown {
			code = CodeAPIError
		}
	}

	return code, code.Retryable()
}

func inferStructuredCode(err error) Code {
	var (
		netErr       net.Error
		valErrs      validator.ValidationErrors
		syntaxErr    *json.SyntaxError
		unmarshalErr *json.UnmarshalTypeError
		yamlErr      *yaml.TypeError
	)

	switch {
	case errors.Is(err, model.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, model.ErrCancelled), errors.Is(err, context.Canceled):
		return CodeInterrupted
	case errors.Is(err, model.ErrTransport), errors.As(err, &netErr):
		return CodeNetworkError
	case errors.Is(err, model.ErrNotValid), errors.As(err, &valErrs):
		return CodeValidationError
	case errors.Is(err, model.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return CodeFileNotFound
	case errors.As(err, &syntaxErr), errors.As(err, &unmarshalErr), errors.As(err, &yamlErr):
		return CodeParseError
	case errors.Is(err, model.ErrStateInconsistency):
		return CodeStateInconsistency
	case errors.Is(err, model.ErrCacheMiss):
		return CodeCacheMiss
	}

	return ""
}

func inferKeywordCode(err error) Code {
	msg := strings.ToLower(err.Error())
	name := strings.ToLower(fmt.Sprintf("%T", err))

	switch {
	case strings.Contains(msg, "network") || strings.Contains(name, "network"):
		return CodeNetworkError
	case strings.Contains(msg, "timeout"):
		return CodeTimeout
	case strings.Contains(msg, "not found") || strings.Contains(msg, "enoent"):
		return CodeFileNotFound
	case strings.Contains(msg, "parse") || strings.Contains(msg, "json"):
		return CodeParseError
	case strings.Contains(msg, "validation"):
		return CodeValidationError
	case strings.Contains(msg, "interrupted") || strings.Contains(msg, "cancel"):
		return CodeInterrupted
	case strings.Contains(msg, "api"):
		return CodeAPIError
	case strings.Contains(msg, "state inconsistency") || strings.Contains(msg, "inconsist"):
		return CodeStateInconsistency
	}

	return CodeUnknown
}
