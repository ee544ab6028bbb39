package mocks

import (
	"context"

	"task-duel/internal/domain"

	"github.com/stretchr/testify/mock"
)

// SubtaskRepository is a mock type for the SubtaskRepository type
type SubtaskRepository struct {
	mock.Mock
}

// FindByID provides a mock function with given fields: ctx, id
func (_m *SubtaskRepository) FindByID(ctx context.Context, id string) (*domain.Subtask, error) {
	ret := _m.Called(ctx, id)

	var r0 *domain.Subtask
	if v := ret.Get(0); v != nil {
		r0 = v.(*domain.Subtask)
	}
	return r0, ret.Error(1)
}

// FindByTask provides a mock function with given fields: ctx, taskID
func (_m *SubtaskRepository) FindByTask(ctx context.Context, taskID string) ([]domain.Subtask, error) {
	ret := _m.Called(ctx, taskID)

	var r0 []domain.Subtask
	if v := ret.Get(0); v != nil {
		r0 = v.([]domain.Subtask)
	}
	return r0, ret.Error(1)
}

// CreateBatch provides a mock function with given fields: ctx, subtasks
func (_m *SubtaskRepository) CreateBatch(ctx context.Context, subtasks []domain.Subtask) error {
	ret := _m.Called(ctx, subtasks)
	return ret.Error(0)
}

// Save provides a mock function with given fields: ctx, subtask
func (_m *SubtaskRepository) Save(ctx context.Context, subtask *domain.Subtask) error {
	ret := _m.Called(ctx, subtask)
	return ret.Error(0)
}

// Delete provides a mock function with given fields: ctx, id
func (_m *SubtaskRepository) Delete(ctx context.Context, id string) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

// NewSubtaskRepository creates a new instance of SubtaskRepository and registers
// a cleanup function to assert the mocks expectations.
func NewSubtaskRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *SubtaskRepository {
	m := &SubtaskRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
