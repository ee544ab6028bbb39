package mocks

import (
	"context"

	"task-duel/internal/domain"

	"github.com/stretchr/testify/mock"
)

// CompletionRepository is a mock type for the CompletionRepository type
type CompletionRepository struct {
	mock.Mock
}

func completionOrNil(v interface{}) *domain.Completion {
	if v == nil {
		return nil
	}
	return v.(*domain.Completion)
}

func completionsOrNil(v interface{}) []domain.Completion {
	if v == nil {
		return nil
	}
	return v.([]domain.Completion)
}

// FindByID provides a mock function with given fields: ctx, id
func (_m *CompletionRepository) FindByID(ctx context.Context, id string) (*domain.Completion, error) {
	ret := _m.Called(ctx, id)
	return completionOrNil(ret.Get(0)), ret.Error(1)
}

// FindByUserAndSubtask provides a mock function with given fields: ctx, userID, subtaskID
func (_m *CompletionRepository) FindByUserAndSubtask(ctx context.Context, userID string, subtaskID string) (*domain.Completion, error) {
	ret := _m.Called(ctx, userID, subtaskID)
	return completionOrNil(ret.Get(0)), ret.Error(1)
}

// FindByUser provides a mock function with given fields: ctx, userID
func (_m *CompletionRepository) FindByUser(ctx context.Context, userID string) ([]domain.Completion, error) {
	ret := _m.Called(ctx, userID)
	return completionsOrNil(ret.Get(0)), ret.Error(1)
}

// FindBySubtask provides a mock function with given fields: ctx, subtaskID
func (_m *CompletionRepository) FindBySubtask(ctx context.Context, subtaskID string) ([]domain.Completion, error) {
	ret := _m.Called(ctx, subtaskID)
	return completionsOrNil(ret.Get(0)), ret.Error(1)
}

// FindByUserAndSubtasks provides a mock function with given fields: ctx, userID, subtaskIDs
func (_m *CompletionRepository) FindByUserAndSubtasks(ctx context.Context, userID string, subtaskIDs []string) ([]domain.Completion, error) {
	ret := _m.Called(ctx, userID, subtaskIDs)
	return completionsOrNil(ret.Get(0)), ret.Error(1)
}

// FindByRoom provides a mock function with given fields: ctx, roomID
func (_m *CompletionRepository) FindByRoom(ctx context.Context, roomID string) ([]domain.Completion, error) {
	ret := _m.Called(ctx, roomID)
	return completionsOrNil(ret.Get(0)), ret.Error(1)
}

// Save provides a mock function with given fields: ctx, completion
func (_m *CompletionRepository) Save(ctx context.Context, completion *domain.Completion) error {
	ret := _m.Called(ctx, completion)
	return ret.Error(0)
}

// NewCompletionRepository creates a new instance of CompletionRepository and registers
// a cleanup function to assert the mocks expectations.
func NewCompletionRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *CompletionRepository {
	m := &CompletionRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
