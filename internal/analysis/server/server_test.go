package server_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/jobwatch/internal/analysis/analysismock"
	"github.com/slok/jobwatch/internal/analysis/server"
	"github.com/slok/jobwatch/internal/model"
)

const validBody = `{
  "undergraduate_university": "Fudan University",
  "undergraduate_major": "Finance",
  "gpa": 88,
  "gpa_scale": "100",
  "graduation_year": 2024,
  "target_countries": ["HK"],
  "target_majors": ["Finance"],
  "target_degree_type": "Master"
}`

func TestHandler(t *testing.T) {
	progress := 40

	tests := map[string]struct {
		mock        func(m *analysismock.MockService)
		requireAuth bool
		req         func() *http.Request
		expStatus   int
		expBody     string
	}{
		"Submitting a valid background should return the created task.": {
			mock: func(m *analysismock.MockService) {
				m.On("Submit", mock.Anything, mock.MatchedBy(func(bg model.UserBackground) bool {
					return bg.UndergraduateUniversity == "Fudan University"
				})).Once().Return(&model.AnalysisTask{ID: "t1", Status: model.TaskStatusPending, Message: "created"}, nil)
			},
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(validBody))
			},
			expStatus: http.StatusOK,
			expBody:   `{"task_id":"t1","status":"pending","message":"created"}`,
		},
		"Submitting an invalid background should fail with an input error.": {
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"gpa": 3}`))
			},
			expStatus: http.StatusUnprocessableEntity,
		},
		"Submitting a malformed body should fail with a bad request.": {
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"gpa": `))
			},
			expStatus: http.StatusBadRequest,
		},
		"Getting a task should return the task.": {
			mock: func(m *analysismock.MockService) {
				m.On("Get", mock.Anything, "t1").Once().Return(&model.AnalysisTask{ID: "t1", Status: model.TaskStatusProcessing, Progress: &progress}, nil)
			},
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/analyze/t1", nil)
			},
			expStatus: http.StatusOK,
			expBody:   `{"task_id":"t1","status":"processing","progress":40}`,
		},
		"Service API errors should be returned as they are.": {
			mock: func(m *analysismock.MockService) {
				m.On("Get", mock.Anything, "t1").Once().Return(nil, &model.APIError{Code: "NOT_FOUND", HTTPStatus: http.StatusNotFound, Message: "task t1 not found"})
			},
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/analyze/t1", nil)
			},
			expStatus: http.StatusNotFound,
			expBody:   `{"code":"NOT_FOUND","httpStatus":404,"message":"task t1 not found"}`,
		},
		"Unknown service errors should be internal retryable errors.": {
			mock: func(m *analysismock.MockService) {
				m.On("Get", mock.Anything, "t1").Once().Return(nil, errors.New("something"))
			},
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/analyze/t1", nil)
			},
			expStatus: http.StatusInternalServerError,
			expBody:   `{"code":"INTERNAL_ERROR","httpStatus":500,"message":"internal error","retryable":true}`,
		},
		"Cancelling a task should return a message.": {
			mock: func(m *analysismock.MockService) {
				m.On("Cancel", mock.Anything, "t1").Once().Return(nil)
			},
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodDelete, "/api/analyze/t1", nil)
			},
			expStatus: http.StatusOK,
			expBody:   `{"message":"task t1 cancelled"}`,
		},
		"Requests without token should be rejected when auth is required.": {
			requireAuth: true,
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/analyze/t1", nil)
			},
			expStatus: http.StatusUnauthorized,
			expBody:   `{"code":"UNAUTHORIZED","httpStatus":401,"message":"authentication required"}`,
		},
		"Requests with token should be accepted when auth is required.": {
			requireAuth: true,
			mock: func(m *analysismock.MockService) {
				m.On("Cancel", mock.Anything, "t1").Once().Return(nil)
			},
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodDelete, "/api/analyze/t1", nil)
				r.Header.Set("Authorization", "Bearer tk")
				return r
			},
			expStatus: http.StatusOK,
		},
		"Health should be public.": {
			requireAuth: true,
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/health", nil)
			},
			expStatus: http.StatusOK,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			msvc := analysismock.NewMockService(t)
			if test.mock != nil {
				test.mock(msvc)
			}

			h, err := server.NewHandler(server.HandlerConfig{Service: msvc, RequireAuth: test.requireAuth})
			require.NoError(err)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, test.req())

			assert.Equal(test.expStatus, rec.Code)
			if test.expBody != "" {
				body, err := io.ReadAll(rec.Body)
				require.NoError(err)
				assert.JSONEq(test.expBody, string(body))
			}
			if test.expBody == "" && rec.Code != http.StatusOK {
				var apiErr model.APIError
				require.NoError(json.Unmarshal(rec.Body.Bytes(), &apiErr))
				assert.Equal(test.expStatus, apiErr.HTTPStatus)
				assert.Equal("INVALID_INPUT", apiErr.Code)
			}
		})
	}
}

func TestNewHandlerRequiresService(t *testing.T) {
	_, err := server.NewHandler(server.HandlerConfig{})
	assert.Error(t, err)
}
