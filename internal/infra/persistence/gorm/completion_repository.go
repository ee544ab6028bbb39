package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"task-duel/internal/domain"
	"task-duel/internal/repository"
)

// GormCompletionRepository 是 CompletionRepository 接口的 GORM 实现
type GormCompletionRepository struct {
	db *gorm.DB
}

// NewGormCompletionRepository 创建 GormCompletionRepository 实例
func NewGormCompletionRepository(db *gorm.DB) *GormCompletionRepository {
	if db == nil {
		panic("database connection cannot be nil for GormCompletionRepository")
	}
	return &GormCompletionRepository{db: db}
}

func (r *GormCompletionRepository) FindByID(ctx context.Context, id string) (*domain.Completion, error) {
	var c domain.Completion
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCompletionNotFound
		}
		return nil, fmt.Errorf("gorm: find completion by id %s: %w", id, err)
	}
	return &c, nil
}

func (r *GormCompletionRepository) FindByUserAndSubtask(ctx context.Context, userID, subtaskID string) (*domain.Completion, error) {
	var c domain.Completion
	err := r.db.WithContext(ctx).Where("user_id = ? AND subtask_id = ?", userID, subtaskID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCompletionNotFound
		}
		return nil, fmt.Errorf("gorm: find completion (user %s, subtask %s): %w", userID, subtaskID, err)
	}
	return &c, nil
}

func (r *GormCompletionRepository) FindByUser(ctx context.Context, userID string) ([]domain.Completion, error) {
	list := []domain.Completion{}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("gorm: find completions by user %s: %w", userID, err)
	}
	return list, nil
}

func (r *GormCompletionRepository) FindBySubtask(ctx context.Context, subtaskID string) ([]domain.Completion, error) {
	list := []domain.Completion{}
	if err := r.db.WithContext(ctx).Where("subtask_id = ?", subtaskID).Order("created_at ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("gorm: find completions by subtask %s: %w", subtaskID, err)
	}
	return list, nil
}

func (r *GormCompletionRepository) FindByUserAndSubtasks(ctx context.Context, userID string, subtaskIDs []string) ([]domain.Completion, error) {
	list := []domain.Completion{}
	if len(subtaskIDs) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).Where("user_id = ? AND subtask_id IN ?", userID, subtaskIDs).Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find completions (user %s) for %d subtasks: %w", userID, len(subtaskIDs), err)
	}
	return list, nil
}

// FindByRoom 通过 subtasks -> tasks 关联取出房间内全部完成记录
func (r *GormCompletionRepository) FindByRoom(ctx context.Context, roomID string) ([]domain.Completion, error) {
	list := []domain.Completion{}
	err := r.db.WithContext(ctx).
		Select("completions.*").
		Joins("JOIN subtasks ON subtasks.id = completions.subtask_id").
		Joins("JOIN tasks ON tasks.id = subtasks.task_id").
		Where("tasks.room_id = ?", roomID).
		Order("completions.created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find completions by room %s: %w", roomID, err)
	}
	return list, nil
}

// Save 创建或更新；(用户, 子任务) 唯一索引冲突时返回 ErrDuplicateEntry
func (r *GormCompletionRepository) Save(ctx context.Context, c *domain.Completion) error {
	if err := r.db.WithContext(ctx).Save(c).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save completion (user %s, subtask %s): %w", c.UserID, c.SubtaskID, err)
	}
	return nil
}
