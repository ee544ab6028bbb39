package repository

import (
	"context"

	"task-duel/internal/domain"
)

// RoomRepository 定义了房间与参与者关系的存储操作。
// 返回的 Room 都已填充 Participants。
type RoomRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Room, error)
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// FindByParticipant 返回用户参与的所有房间。
	FindByParticipant(ctx context.Context, userID string) ([]domain.Room, error)

	// Create 在同一事务中创建房间并把房主加入参与者。
	Create(ctx context.Context, room *domain.Room) error

	// Delete 删除房间及其参与者关系，不级联删除任务。
	Delete(ctx context.Context, id string) error

	IsCodeExists(ctx context.Context, code string) (bool, error)

	// AddParticipant 原子地加入成员，已是成员时 added 为 false。
	AddParticipant(ctx context.Context, roomID, userID string) (added bool, err error)

	// RemoveParticipant 原子地移除成员，本就不是成员时 removed 为 false。
	RemoveParticipant(ctx context.Context, roomID, userID string) (removed bool, err error)
}
