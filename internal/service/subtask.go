package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"task-duel/internal/domain"
	"task-duel/internal/repository"
)

// SubtaskService 负责子任务的批量创建与维护。
type SubtaskService struct {
	subtaskRepo repository.SubtaskRepository
	taskRepo    repository.TaskRepository
	notifier    *Notifier
}

func NewSubtaskService(subtaskRepo repository.SubtaskRepository, taskRepo repository.TaskRepository, notifier *Notifier) *SubtaskService {
	if subtaskRepo == nil {
		panic("SubtaskRepository cannot be nil for SubtaskService")
	}
	if taskRepo == nil {
		panic("TaskRepository cannot be nil for SubtaskService")
	}
	return &SubtaskService{subtaskRepo: subtaskRepo, taskRepo: taskRepo, notifier: notifier}
}

// CreateBatch 按批量语法展开输入并一次性创建，成功后广播 subtask_created。
// 展开结果为空时什么也不创建，也不广播。
func (s *SubtaskService) CreateBatch(ctx context.Context, taskID string, inputs []string) ([]domain.Subtask, error) {
	logCtx := logrus.WithField("task_id", taskID)

	drafts, err := domain.ParseSubtaskBatch(inputs)
	if err != nil {
		if errors.Is(err, domain.ErrBatchTooLarge) {
			return nil, domain.ErrBatchTooLarge
		}
		return nil, ErrInvalidInput
	}
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, mapTaskError(err, logCtx)
	}
	if len(drafts) == 0 {
		return []domain.Subtask{}, nil
	}

	subtasks := make([]domain.Subtask, len(drafts))
	for i, d := range drafts {
		subtasks[i] = domain.Subtask{Title: d.Title, TaskID: taskID, Order: d.Order}
	}
	if err := s.subtaskRepo.CreateBatch(ctx, subtasks); err != nil {
		logCtx.WithError(err).Error("CreateBatch: failed to save subtasks")
		return nil, ErrInternalServer
	}
	logCtx.WithField("count", len(subtasks)).Info("Subtasks created")
	s.notifier.SubtaskCreated(task.RoomID, taskID, len(subtasks))
	return subtasks, nil
}

func (s *SubtaskService) ListTaskSubtasks(ctx context.Context, taskID string) ([]domain.Subtask, error) {
	subtasks, err := s.subtaskRepo.FindByTask(ctx, taskID)
	if err != nil {
		logrus.WithField("task_id", taskID).WithError(err).Error("ListTaskSubtasks: repository error")
		return nil, ErrInternalServer
	}
	return subtasks, nil
}

func (s *SubtaskService) GetSubtask(ctx context.Context, id string) (*domain.Subtask, error) {
	subtask, err := s.subtaskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, mapSubtaskError(err, logrus.WithField("subtask_id", id))
	}
	return subtask, nil
}

// UpdateSubtask 更新标题和/或顺序，nil 表示不修改
func (s *SubtaskService) UpdateSubtask(ctx context.Context, id string, title *string, order *int) (*domain.Subtask, error) {
	subtask, err := s.GetSubtask(ctx, id)
	if err != nil {
		return nil, err
	}
	if title != nil {
		t := strings.TrimSpace(*title)
		if t == "" {
			return nil, ErrEmptyTitle
		}
		subtask.Title = t
	}
	if order != nil {
		if *order < 0 {
			return nil, ErrInvalidInput
		}
		subtask.Order = *order
	}
	if err := s.subtaskRepo.Save(ctx, subtask); err != nil {
		logrus.WithField("subtask_id", id).WithError(err).Error("UpdateSubtask: failed to save subtask")
		return nil, ErrInternalServer
	}
	return subtask, nil
}

// DeleteSubtask 删除子任务及其完成记录
func (s *SubtaskService) DeleteSubtask(ctx context.Context, id string) error {
	if err := s.subtaskRepo.Delete(ctx, id); err != nil {
		return mapSubtaskError(err, logrus.WithField("subtask_id", id))
	}
	return nil
}

func mapSubtaskError(err error, logCtx *logrus.Entry) error {
	if errors.Is(err, repository.ErrSubtaskNotFound) {
		return ErrSubtaskNotFound
	}
	logCtx.WithError(err).Error("subtask repository error")
	return ErrInternalServer
}
