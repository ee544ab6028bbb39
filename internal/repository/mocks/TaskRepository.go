package mocks

import (
	"context"

	"task-duel/internal/domain"

	"github.com/stretchr/testify/mock"
)

// TaskRepository is a mock type for the TaskRepository type
type TaskRepository struct {
	mock.Mock
}

// FindByID provides a mock function with given fields: ctx, id
func (_m *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	ret := _m.Called(ctx, id)

	var r0 *domain.Task
	if v := ret.Get(0); v != nil {
		r0 = v.(*domain.Task)
	}
	return r0, ret.Error(1)
}

// FindByRoom provides a mock function with given fields: ctx, roomID
func (_m *TaskRepository) FindByRoom(ctx context.Context, roomID string) ([]domain.Task, error) {
	ret := _m.Called(ctx, roomID)

	var r0 []domain.Task
	if v := ret.Get(0); v != nil {
		r0 = v.([]domain.Task)
	}
	return r0, ret.Error(1)
}

// CountByRoom provides a mock function with given fields: ctx, roomID
func (_m *TaskRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	ret := _m.Called(ctx, roomID)

	var r0 int64
	if v := ret.Get(0); v != nil {
		r0 = v.(int64)
	}
	return r0, ret.Error(1)
}

// Save provides a mock function with given fields: ctx, task
func (_m *TaskRepository) Save(ctx context.Context, task *domain.Task) error {
	ret := _m.Called(ctx, task)
	return ret.Error(0)
}

// Delete provides a mock function with given fields: ctx, id
func (_m *TaskRepository) Delete(ctx context.Context, id string) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

// NewTaskRepository creates a new instance of TaskRepository and registers
// a cleanup function to assert the mocks expectations.
func NewTaskRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *TaskRepository {
	m := &TaskRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
