package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// StateRepository is a mock type for the StateRepository type
type StateRepository struct {
	mock.Mock
}

// ReserveJoinCode provides a mock function with given fields: ctx, code, roomID
func (_m *StateRepository) ReserveJoinCode(ctx context.Context, code string, roomID string) (bool, error) {
	ret := _m.Called(ctx, code, roomID)
	return ret.Bool(0), ret.Error(1)
}

// BindJoinCode provides a mock function with given fields: ctx, code, roomID
func (_m *StateRepository) BindJoinCode(ctx context.Context, code string, roomID string) error {
	ret := _m.Called(ctx, code, roomID)
	return ret.Error(0)
}

// ReleaseJoinCode provides a mock function with given fields: ctx, code
func (_m *StateRepository) ReleaseJoinCode(ctx context.Context, code string) error {
	ret := _m.Called(ctx, code)
	return ret.Error(0)
}

// CheckRateLimit provides a mock function with given fields: ctx, key, limit, window
func (_m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ret := _m.Called(ctx, key, limit, window)
	return ret.Bool(0), ret.Error(1)
}

// NewStateRepository creates a new instance of StateRepository and registers
// a cleanup function to assert the mocks expectations.
func NewStateRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *StateRepository {
	m := &StateRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
