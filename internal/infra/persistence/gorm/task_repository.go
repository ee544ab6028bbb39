package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"task-duel/internal/domain"
	"task-duel/internal/repository"
)

// GormTaskRepository 是 TaskRepository 接口的 GORM 实现
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository 创建 GormTaskRepository 实例
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	if db == nil {
		panic("database connection cannot be nil for GormTaskRepository")
	}
	return &GormTaskRepository{db: db}
}

func (r *GormTaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrTaskNotFound
		}
		return nil, fmt.Errorf("gorm: find task by id %s: %w", id, err)
	}
	return &task, nil
}

// FindByRoom 按创建时间升序返回房间内的任务
func (r *GormTaskRepository) FindByRoom(ctx context.Context, roomID string) ([]domain.Task, error) {
	tasks := []domain.Task{}
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("created_at ASC").Order("id ASC").Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find tasks by room %s: %w", roomID, err)
	}
	return tasks, nil
}

func (r *GormTaskRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Task{}).Where("room_id = ?", roomID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("gorm: count tasks by room %s: %w", roomID, err)
	}
	return count, nil
}

func (r *GormTaskRepository) Save(ctx context.Context, task *domain.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("gorm: save task (id: %s, room: %s): %w", task.ID, task.RoomID, err)
	}
	return nil
}

// Delete 级联删除子任务与完成记录
func (r *GormTaskRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subtaskIDs []string
		if err := tx.Model(&domain.Subtask{}).Where("task_id = ?", id).Pluck("id", &subtaskIDs).Error; err != nil {
			return err
		}
		if len(subtaskIDs) > 0 {
			if err := tx.Where("subtask_id IN ?", subtaskIDs).Delete(&domain.Completion{}).Error; err != nil {
				return err
			}
			if err := tx.Where("task_id = ?", id).Delete(&domain.Subtask{}).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", id).Delete(&domain.Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrTaskNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("gorm: delete task %s: %w", id, err)
	}
	return nil
}
