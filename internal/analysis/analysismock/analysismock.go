package analysismock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/jobwatch/internal/model"
)

// MockService is a mock type for the analysis.Service type.
type MockService struct {
	mock.Mock
}

// Submit provides a mock function with given fields: ctx, bg
func (_m *MockService) Submit(ctx context.Context, bg model.UserBackground) (*model.AnalysisTask, error) {
	ret := _m.Called(ctx, bg)

	if len(ret) == 0 {
		panic("no return value specified for Submit")
	}

	var r0 *model.AnalysisTask
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, model.UserBackground) (*model.AnalysisTask, error)); ok {
		return rf(ctx, bg)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.AnalysisTask)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// Get provides a mock function with given fields: ctx, taskID
func (_m *MockService) Get(ctx context.Context, taskID string) (*model.AnalysisTask, error) {
	ret := _m.Called(ctx, taskID)

	if len(ret) == 0 {
		panic("no return value specified for Get")
	}

	var r0 *model.AnalysisTask
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.AnalysisTask, error)); ok {
		return rf(ctx, taskID)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.AnalysisTask)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// Cancel provides a mock function with given fields: ctx, taskID
func (_m *MockService) Cancel(ctx context.Context, taskID string) error {
	ret := _m.Called(ctx, taskID)

	if len(ret) == 0 {
		panic("no return value specified for Cancel")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		return rf(ctx, taskID)
	}
	return ret.Error(0)
}

// NewMockService creates a new instance of MockService. It also registers a testing
// interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockService {
	m := &MockService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
