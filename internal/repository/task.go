package repository

import (
	"context"

	"task-duel/internal/domain"
)

// TaskRepository 定义了任务的存储操作。
type TaskRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Task, error)
	FindByRoom(ctx context.Context, roomID string) ([]domain.Task, error)
	CountByRoom(ctx context.Context, roomID string) (int64, error)
	Save(ctx context.Context, task *domain.Task) error

	// Delete 删除任务及其子任务和完成记录。
	Delete(ctx context.Context, id string) error
}

// SubtaskRepository 定义了子任务的存储操作。
type SubtaskRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Subtask, error)

	// FindByTask 按 order、创建时间排序返回。
	FindByTask(ctx context.Context, taskID string) ([]domain.Subtask, error)

	// CreateBatch 在一个事务中插入全部子任务。
	CreateBatch(ctx context.Context, subtasks []domain.Subtask) error
	Save(ctx context.Context, subtask *domain.Subtask) error

	// Delete 删除子任务及其完成记录。
	Delete(ctx context.Context, id string) error
}

// CompletionRepository 定义了完成记录的存储操作。
type CompletionRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Completion, error)

	// FindByUserAndSubtask 查找 (用户, 子任务) 唯一的记录，不存在时返回 ErrNotFound。
	FindByUserAndSubtask(ctx context.Context, userID, subtaskID string) (*domain.Completion, error)
	FindByUser(ctx context.Context, userID string) ([]domain.Completion, error)
	FindBySubtask(ctx context.Context, subtaskID string) ([]domain.Completion, error)
	FindByUserAndSubtasks(ctx context.Context, userID string, subtaskIDs []string) ([]domain.Completion, error)

	// FindByRoom 返回房间内所有任务下所有子任务的完成记录。
	FindByRoom(ctx context.Context, roomID string) ([]domain.Completion, error)

	// Save 创建或更新。(用户, 子任务) 冲突时返回 ErrDuplicateEntry。
	Save(ctx context.Context, completion *domain.Completion) error
}
