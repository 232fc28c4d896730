package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
)

const (
	// DefaultBaseURL is the default analysis service address.
	DefaultBaseURL = "http://localhost:8000"

	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 10 << 20
)

// ClientConfig is the configuration of the analysis service HTTP client.
type ClientConfig struct {
	BaseURL string
	// TokenSource is optional, when set every request is sent with its bearer token.
	TokenSource oauth2.TokenSource
	// HTTPClient is optional, its transport is used as the base transport.
	HTTPClient *http.Client
	// Timeout is the timeout of each request.
	Timeout time.Duration
	Logger  log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url scheme must be http or https")
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")

	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}

	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "analysis.Remote"})

	return nil
}

// Client is the HTTP implementation of analysis.Service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  log.Logger
}

// NewClient returns a new analysis service HTTP client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	base := cfg.HTTPClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	var transport http.RoundTripper = base
	if cfg.TokenSource != nil {
		transport = &oauth2.Transport{Source: cfg.TokenSource, Base: base}
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Transport:     transport,
			CheckRedirect: cfg.HTTPClient.CheckRedirect,
			Jar:           cfg.HTTPClient.Jar,
			Timeout:       cfg.Timeout,
		},
		logger: cfg.Logger,
	}, nil
}

// Submit creates a new analysis task.
func (c *Client) Submit(ctx context.Context, bg model.UserBackground) (*model.AnalysisTask, error) {
	var task model.AnalysisTask
	if err := c.do(ctx, http.MethodPost, "/api/analyze", bg, &task); err != nil {
		return nil, fmt.Errorf("could not submit analysis: %w", err)
	}

	if task.ID == "" {
		return nil, fmt.Errorf("could not submit analysis: %w", &model.APIError{
			HTTPStatus: http.StatusOK,
			Message:    "submit response is missing the task id",
		})
	}
	if task.Status == "" {
		task.Status = model.TaskStatusPending
	}

	return &task, nil
}

// Get returns the current state of the task.
func (c *Client) Get(ctx context.Context, taskID string) (*model.AnalysisTask, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	var task model.AnalysisTask
	if err := c.do(ctx, http.MethodGet, "/api/analyze/"+url.PathEscape(taskID), nil, &task); err != nil {
		return nil, fmt.Errorf("could not get analysis task %s: %w", taskID, err)
	}
	if task.ID == "" {
		task.ID = taskID
	}

	return &task, nil
}

// Cancel requests the cancellation of the task.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	var resp struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/analyze/"+url.PathEscape(taskID), nil, &resp); err != nil {
		return fmt.Errorf("could not cancel analysis task %s: %w", taskID, err)
	}

	c.logger.Debugf("analysis task %s cancelled: %s", taskID, resp.Message)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := c.logger.WithValues(log.Kv{"request-id": reqID})
	logger.Debugf("%s %s", method, path)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("request aborted: %w", context.Cause(ctx))
		}
		if errors.Is(err, model.ErrNotAuthenticated) {
			return fmt.Errorf("could not authenticate request: %w", model.ErrNotAuthenticated)
		}
		return fmt.Errorf("%w: could not reach the analysis service: %w", model.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: could not read response: %w", model.ErrTransport, err)
	}
	logger.Debugf("%s %s: %d", method, path, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}

	return nil
}

// decodeAPIError decodes the structured service error, it falls back to the
// `{"detail": ...}` format used by FastAPI.
func decodeAPIError(status int, data []byte) *model.APIError {
	var body struct {
		model.APIError
		Detail json.RawMessage `json:"detail"`
	}
	_ = json.Unmarshal(data, &body)

	apiErr := body.APIError
	apiErr.HTTPStatus = status

	if apiErr.Code == "" && apiErr.Message == "" && len(body.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(body.Detail, &detail); err == nil {
			apiErr.Message = detail
		} else {
			apiErr.Message = string(body.Detail)
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	return &apiErr
}
