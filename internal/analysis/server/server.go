package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/slok/jobwatch/internal/analysis"
	"github.com/slok/jobwatch/internal/errclass"
	"github.com/slok/jobwatch/internal/log"
	"github.com/slok/jobwatch/internal/model"
	storageio "github.com/slok/jobwatch/internal/storage/io"
)

// HandlerConfig is the configuration of the analysis service HTTP handler.
type HandlerConfig struct {
	Service analysis.Service
	// RequireAuth rejects the requests without a bearer token.
	RequireAuth bool
	Logger      log.Logger
}

func (c *HandlerConfig) defaults() error {
	if c.Service == nil {
		return fmt.Errorf("service is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "analysis.Server"})

	return nil
}

type handler struct {
	svc         analysis.Service
	requireAuth bool
	logger      log.Logger
}

// NewHandler returns an HTTP handler that exposes an analysis service with the
// same API as the remote analysis service.
func NewHandler(cfg HandlerConfig) (http.Handler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	h := handler{
		svc:         cfg.Service,
		requireAuth: cfg.RequireAuth,
		logger:      cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/analyze", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/", h.submit)
		r.Get("/{taskID}", h.get)
		r.Delete("/{taskID}", h.cancel)
	})

	return r, nil
}

func (h handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.requireAuth {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			h.writeJSON(w, r, http.StatusUnauthorized, model.APIError{
				Code:       "UNAUTHORIZED",
				HTTPStatus: http.StatusUnauthorized,
				Message:    "authentication required",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h handler) submit(w http.ResponseWriter, r *http.Request) {
	bg, err := storageio.DecodeBackground(r.Body, storageio.FormatJSON)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	task, err := h.svc.Submit(r.Context(), bg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, task)
}

func (h handler) get(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.Get(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, task)
}

func (h handler) cancel(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if err := h.svc.Cancel(r.Context(), taskID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]string{"message": fmt.Sprintf("task %s cancelled", taskID)})
}

func (h handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	if apiErr.HTTPStatus >= 500 {
		h.logger.Errorf("%s %s failed: %s", r.Method, r.URL.Path, err)
	} else {
		h.logger.Debugf("%s %s rejected: %s", r.Method, r.URL.Path, err)
	}

	h.writeJSON(w, r, apiErr.HTTPStatus, apiErr)
}

func (h handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	if id := middleware.GetReqID(r.Context()); id != "" {
		w.Header().Set("X-Request-ID", id)
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warningf("could not write response: %s", err)
	}
}

func toAPIError(err error) model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		e := *apiErr
		if e.HTTPStatus == 0 {
			e.HTTPStatus = http.StatusInternalServerError
		}
		return e
	}

	switch {
	case errors.Is(err, model.ErrNotValid):
		return model.APIError{Code: errclass.ServiceCodeInvalidInput, HTTPStatus: http.StatusUnprocessableEntity, Message: err.Error()}
	case errors.Is(err, model.ErrNotFound):
		return model.APIError{Code: errclass.ServiceCodeNotFound, HTTPStatus: http.StatusNotFound, Message: err.Error()}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		strings.Contains(err.Error(), "unknown field") {
		return model.APIError{Code: errclass.ServiceCodeInvalidInput, HTTPStatus: http.StatusBadRequest, Message: err.Error()}
	}

	retryable := true
	return model.APIError{
		Code:       errclass.ServiceCodeInternalError,
		HTTPStatus: http.StatusInternalServerError,
		Message:    "internal error",
		Retryable:  &retryable,
	}
}
