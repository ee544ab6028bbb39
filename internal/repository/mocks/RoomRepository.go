package mocks

import (
	"context"

	"task-duel/internal/domain"

	"github.com/stretchr/testify/mock"
)

// RoomRepository is a mock type for the RoomRepository type
type RoomRepository struct {
	mock.Mock
}

// FindByID provides a mock function with given fields: ctx, id
func (_m *RoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	ret := _m.Called(ctx, id)

	var r0 *domain.Room
	if v := ret.Get(0); v != nil {
		r0 = v.(*domain.Room)
	}
	return r0, ret.Error(1)
}

// FindByCode provides a mock function with given fields: ctx, code
func (_m *RoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	ret := _m.Called(ctx, code)

	var r0 *domain.Room
	if v := ret.Get(0); v != nil {
		r0 = v.(*domain.Room)
	}
	return r0, ret.Error(1)
}

// FindByParticipant provides a mock function with given fields: ctx, userID
func (_m *RoomRepository) FindByParticipant(ctx context.Context, userID string) ([]domain.Room, error) {
	ret := _m.Called(ctx, userID)

	var r0 []domain.Room
	if v := ret.Get(0); v != nil {
		r0 = v.([]domain.Room)
	}
	return r0, ret.Error(1)
}

// Create provides a mock function with given fields: ctx, room
func (_m *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	ret := _m.Called(ctx, room)
	return ret.Error(0)
}

// Delete provides a mock function with given fields: ctx, id
func (_m *RoomRepository) Delete(ctx context.Context, id string) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

// IsCodeExists provides a mock function with given fields: ctx, code
func (_m *RoomRepository) IsCodeExists(ctx context.Context, code string) (bool, error) {
	ret := _m.Called(ctx, code)
	return ret.Bool(0), ret.Error(1)
}

// AddParticipant provides a mock function with given fields: ctx, roomID, userID
func (_m *RoomRepository) AddParticipant(ctx context.Context, roomID string, userID string) (bool, error) {
	ret := _m.Called(ctx, roomID, userID)
	return ret.Bool(0), ret.Error(1)
}

// RemoveParticipant provides a mock function with given fields: ctx, roomID, userID
func (_m *RoomRepository) RemoveParticipant(ctx context.Context, roomID string, userID string) (bool, error) {
	ret := _m.Called(ctx, roomID, userID)
	return ret.Bool(0), ret.Error(1)
}

// NewRoomRepository creates a new instance of RoomRepository and registers
// a cleanup function to assert the mocks expectations.
func NewRoomRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *RoomRepository {
	m := &RoomRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
