package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"task-duel/internal/domain"
	"task-duel/internal/repository"
)

// GormSubtaskRepository 是 SubtaskRepository 接口的 GORM 实现
type GormSubtaskRepository struct {
	db *gorm.DB
}

// NewGormSubtaskRepository 创建 GormSubtaskRepository 实例
func NewGormSubtaskRepository(db *gorm.DB) *GormSubtaskRepository {
	if db == nil {
		panic("database connection cannot be nil for GormSubtaskRepository")
	}
	return &GormSubtaskRepository{db: db}
}

func (r *GormSubtaskRepository) FindByID(ctx context.Context, id string) (*domain.Subtask, error) {
	var subtask domain.Subtask
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&subtask).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSubtaskNotFound
		}
		return nil, fmt.Errorf("gorm: find subtask by id %s: %w", id, err)
	}
	return &subtask, nil
}

// FindByTask 按 order 排序，相同 order 按创建时间
func (r *GormSubtaskRepository) FindByTask(ctx context.Context, taskID string) ([]domain.Subtask, error) {
	subtasks := []domain.Subtask{}
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("sort_order ASC").Order("created_at ASC").
		Find(&subtasks).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find subtasks by task %s: %w", taskID, err)
	}
	return subtasks, nil
}

// CreateBatch 一次插入整批子任务
func (r *GormSubtaskRepository) CreateBatch(ctx context.Context, subtasks []domain.Subtask) error {
	if len(subtasks) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&subtasks, 200).Error
	})
	if err != nil {
		return fmt.Errorf("gorm: create %d subtasks: %w", len(subtasks), err)
	}
	return nil
}

func (r *GormSubtaskRepository) Save(ctx context.Context, subtask *domain.Subtask) error {
	if err := r.db.WithContext(ctx).Save(subtask).Error; err != nil {
		return fmt.Errorf("gorm: save subtask (id: %s): %w", subtask.ID, err)
	}
	return nil
}

// Delete 连同完成记录一起删除
func (r *GormSubtaskRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subtask_id = ?", id).Delete(&domain.Completion{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Subtask{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrSubtaskNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return fmt.Errorf("gorm: delete subtask %s: %w", id, err)
	}
	return nil
}
