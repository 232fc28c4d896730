package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/slok/jobwatch/internal/analysis/fake"
	"github.com/slok/jobwatch/internal/analysis/remote"
	"github.com/slok/jobwatch/internal/analysis/server"
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

func newFakeServer(t *testing.T, clk *clockfake.Clock, requireAuth bool) *httptest.Server {
	t.Helper()

	svc, err := fake.NewService(fake.ServiceConfig{
		Clock:         clk,
		QueueDuration: time.Second,
		JobDuration:   10 * time.Second,
	})
	require.NoError(t, err)

	h, err := server.NewHandler(server.HandlerConfig{Service: svc, RequireAuth: requireAuth})
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientAgainstFakeServer(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	clk := clockfake.NewClock(time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC))
	srv := newFakeServer(t, clk, true)

	client, err := remote.NewClient(remote.ClientConfig{
		BaseURL:     srv.URL + "/",
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tk"}),
	})
	require.NoError(err)

	task, err := client.Submit(ctx, validBackground())
	require.NoError(err)
	assert.NotEmpty(task.ID)
	assert.Equal(model.TaskStatusPending, task.Status)

	clk.Advance(6 * time.Second)
	got, err := client.Get(ctx, task.ID)
	require.NoError(err)
	assert.Equal(model.TaskStatusProcessing, got.Status)
	p, ok := got.ReportedProgress()
	assert.True(ok)
	assert.Equal(50, p)

	clk.Advance(10 * time.Second)
	got, err = client.Get(ctx, task.ID)
	require.NoError(err)
	assert.Equal(model.TaskStatusCompleted, got.Status)
	require.NotNil(got.Result)
	assert.Len(got.Result.RadarScores, 5)

	// Unknown tasks return the structured service error.
	_, err = client.Get(ctx, "missing")
	var apiErr *model.APIError
	require.True(errors.As(err, &apiErr))
	assert.Equal("NOT_FOUND", apiErr.Code)
	assert.Equal(http.StatusNotFound, apiErr.HTTPStatus)
}

func TestClientCancel(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	clk := clockfake.NewClock(time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC))
	srv := newFakeServer(t, clk, false)

	client, err := remote.NewClient(remote.ClientConfig{BaseURL: srv.URL})
	require.NoError(err)

	task, err := client.Submit(ctx, validBackground())
	require.NoError(err)
	require.NoError(client.Cancel(ctx, task.ID))

	got, err := client.Get(ctx, task.ID)
	require.NoError(err)
	assert.Equal(t, model.TaskStatusCancelled, got.Status)
}

func TestClientWithoutTokenIsRejected(t *testing.T) {
	clk := clockfake.NewClock(time.Now())
	srv := newFakeServer(t, clk, true)

	client, err := remote.NewClient(remote.ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "t1")
	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatus)
}

func TestClientTokenSourceError(t *testing.T) {
	clk := clockfake.NewClock(time.Now())
	srv := newFakeServer(t, clk, true)

	client, err := remote.NewClient(remote.ClientConfig{
		BaseURL:     srv.URL,
		TokenSource: failingTokenSource{},
	})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "t1")
	assert.True(t, errors.Is(err, model.ErrNotAuthenticated))
}

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, model.ErrNotAuthenticated
}

func TestClientErrorDecoding(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
		expErr *model.APIError
	}{
		"A structured error should be decoded.": {
			status: http.StatusTooManyRequests,
			body:   `{"code":"RATE_LIMITED","httpStatus":429,"message":"slow down","retryable":true}`,
			expErr: &model.APIError{Code: "RATE_LIMITED", HTTPStatus: 429, Message: "slow down", Retryable: boolPtr(true)},
		},
		"A FastAPI detail string should be used as message.": {
			status: http.StatusUnprocessableEntity,
			body:   `{"detail":"gpa is required"}`,
			expErr: &model.APIError{HTTPStatus: 422, Message: "gpa is required"},
		},
		"A FastAPI detail object should be used raw as message.": {
			status: http.StatusUnprocessableEntity,
			body:   `{"detail":[{"loc":["gpa"]}]}`,
			expErr: &model.APIError{HTTPStatus: 422, Message: `[{"loc":["gpa"]}]`},
		},
		"A non JSON body should use the status text.": {
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			expErr: &model.APIError{HTTPStatus: 502, Message: "Bad Gateway"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
				w.WriteHeader(test.status)
				_, _ = w.Write([]byte(test.body))
			}))
			defer srv.Close()

			client, err := remote.NewClient(remote.ClientConfig{BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = client.Get(context.Background(), "t1")
			var apiErr *model.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, test.expErr, apiErr)
		})
	}
}

func TestClientSubmitMissingTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	client, err := remote.NewClient(remote.ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Submit(context.Background(), validBackground())
	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.HTTPStatus)
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := remote.NewClient(remote.ClientConfig{BaseURL: url})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "t1")
	assert.True(t, errors.Is(err, model.ErrTransport))
}

func TestClientContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client, err := remote.NewClient(remote.ClientConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	cause := errors.New("superseded")
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(cause)

	_, err = client.Get(ctx, "t1")
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, model.ErrTransport))
}

func TestNewClientConfig(t *testing.T) {
	tests := map[string]struct {
		cfg    remote.ClientConfig
		expErr bool
	}{
		"Default config should be valid.": {
			cfg: remote.ClientConfig{},
		},
		"An https URL should be valid.": {
			cfg: remote.ClientConfig{BaseURL: "https://api.example.com"},
		},
		"A non HTTP scheme should fail.": {
			cfg:    remote.ClientConfig{BaseURL: "ftp://api.example.com"},
			expErr: true,
		},
		"A malformed URL should fail.": {
			cfg:    remote.ClientConfig{BaseURL: "http://[::1"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := remote.NewClient(test.cfg)
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func boolPtr(b bool) *bool { return &b }
