package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-duel/internal/domain"
	"task-duel/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID 根据房间 ID 查找房间，并填充参与者
func (r *GormRoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %s: %w", id, err)
	}
	if err := r.loadParticipants(ctx, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// FindByCode 根据加入码查找房间
func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code '%s': %w", code, err)
	}
	if err := r.loadParticipants(ctx, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// FindByParticipant 返回用户参与的房间，最新创建的在前
func (r *GormRoomRepository) FindByParticipant(ctx context.Context, userID string) ([]domain.Room, error) {
	rooms := []domain.Room{}
	err := r.db.WithContext(ctx).
		Select("rooms.*").
		Joins("JOIN room_participants ON room_participants.room_id = rooms.id").
		Where("room_participants.user_id = ?", userID).
		Order("rooms.created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find rooms by participant %s: %w", userID, err)
	}
	ptrs := make([]*domain.Room, len(rooms))
	for i := range rooms {
		ptrs[i] = &rooms[i]
	}
	if err := r.loadParticipants(ctx, ptrs...); err != nil {
		return nil, err
	}
	return rooms, nil
}

// Create 在一个事务里插入房间和房主的成员关系
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		return tx.Create(&domain.RoomParticipant{RoomID: room.ID, UserID: room.OwnerID}).Error
	})
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room (code: %s): %w", room.Code, err)
	}
	return r.loadParticipants(ctx, room)
}

// Delete 删除房间及成员关系；任务保持不变
func (r *GormRoomRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&domain.RoomParticipant{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Room{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrRoomNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("gorm: delete room %s: %w", id, err)
	}
	return nil
}

// IsCodeExists 检查加入码是否已被现有房间使用
func (r *GormRoomRepository) IsCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by code '%s': %w", code, err)
	}
	return count > 0, nil
}

// AddParticipant 插入成员关系，冲突时什么也不做
func (r *GormRoomRepository) AddParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.RoomParticipant{RoomID: roomID, UserID: userID})
	if res.Error != nil {
		return false, fmt.Errorf("gorm: add participant %s to room %s: %w", userID, roomID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RemoveParticipant 按主键删除成员关系
func (r *GormRoomRepository) RemoveParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&domain.RoomParticipant{})
	if res.Error != nil {
		return false, fmt.Errorf("gorm: remove participant %s from room %s: %w", userID, roomID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// loadParticipants 为一批房间填充参与者，按加入时间排序
func (r *GormRoomRepository) loadParticipants(ctx context.Context, rooms ...*domain.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	roomIDs := make([]string, 0, len(rooms))
	for _, room := range rooms {
		room.Participants = []domain.User{}
		roomIDs = append(roomIDs, room.ID)
	}

	var links []domain.RoomParticipant
	err := r.db.WithContext(ctx).
		Where("room_id IN ?", roomIDs).
		Order("joined_at ASC").Order("user_id ASC").
		Find(&links).Error
	if err != nil {
		return fmt.Errorf("gorm: load room participants: %w", err)
	}
	if len(links) == 0 {
		return nil
	}

	userIDs := make([]string, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, l := range links {
		if !seen[l.UserID] {
			seen[l.UserID] = true
			userIDs = append(userIDs, l.UserID)
		}
	}
	var users []domain.User
	if err := r.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return fmt.Errorf("gorm: load participant users: %w", err)
	}
	byID := make(map[string]domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	byRoom := make(map[string]*domain.Room, len(rooms))
	for _, room := range rooms {
		byRoom[room.ID] = room
	}
	for _, l := range links {
		u, ok := byID[l.UserID]
		if !ok {
			continue // 用户已被删除
		}
		if room, ok := byRoom[l.RoomID]; ok {
			room.Participants = append(room.Participants, u)
		}
	}
	return nil
}
