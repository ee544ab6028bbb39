package service

import (
	"context"
	"errors"
	"math"

	"github.com/sirupsen/logrus"

	"task-duel/internal/domain"
	"task-duel/internal/repository"
)

// CompletionService 负责完成进度的记录、查询与聚合。
type CompletionService struct {
	completionRepo repository.CompletionRepository
	subtaskRepo    repository.SubtaskRepository
	taskRepo       repository.TaskRepository
	userRepo       repository.UserRepository
	notifier       *Notifier
}

func NewCompletionService(completionRepo repository.CompletionRepository, subtaskRepo repository.SubtaskRepository,
	taskRepo repository.TaskRepository, userRepo repository.UserRepository, notifier *Notifier) *CompletionService {
	if completionRepo == nil || subtaskRepo == nil || taskRepo == nil || userRepo == nil {
		panic("repositories cannot be nil for CompletionService")
	}
	return &CompletionService{
		completionRepo: completionRepo,
		subtaskRepo:    subtaskRepo,
		taskRepo:       taskRepo,
		userRepo:       userRepo,
		notifier:       notifier,
	}
}

// CompleteSubtask 把 (用户, 子任务) 的进度置为 1。
// 已有记录时更新；并发插入撞上唯一索引时回退为更新已有记录。
func (s *CompletionService) CompleteSubtask(ctx context.Context, subtaskID, userID string) (*domain.Completion, error) {
	logCtx := logrus.WithFields(logrus.Fields{"subtask_id": subtaskID, "user_id": userID})

	subtask, err := s.subtaskRepo.FindByID(ctx, subtaskID)
	if err != nil {
		return nil, mapSubtaskError(err, logCtx)
	}

	completion, err := s.upsertFull(ctx, subtaskID, userID)
	if err != nil {
		logCtx.WithError(err).Error("CompleteSubtask: failed to save completion")
		return nil, ErrInternalServer
	}
	logCtx.WithField("completion_id", completion.ID).Info("Subtask completed")
	s.emitProgress(ctx, subtask, completion)
	return completion, nil
}

func (s *CompletionService) upsertFull(ctx context.Context, subtaskID, userID string) (*domain.Completion, error) {
	existing, err := s.completionRepo.FindByUserAndSubtask(ctx, userID, subtaskID)
	switch {
	case err == nil:
		existing.Progress = 1
		if err := s.completionRepo.Save(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case !errors.Is(err, repository.ErrCompletionNotFound):
		return nil, err
	}

	completion := &domain.Completion{UserID: userID, SubtaskID: subtaskID, Progress: 1}
	err = s.completionRepo.Save(ctx, completion)
	if err == nil {
		return completion, nil
	}
	if !errors.Is(err, repository.ErrDuplicateEntry) {
		return nil, err
	}
	// 另一个请求先插入了同一行
	existing, err = s.completionRepo.FindByUserAndSubtask(ctx, userID, subtaskID)
	if err != nil {
		return nil, err
	}
	existing.Progress = 1
	if err := s.completionRepo.Save(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// UpdateProgress 修改已有完成记录的进度，取值必须在 [0,1]。
func (s *CompletionService) UpdateProgress(ctx context.Context, completionID string, progress float64) (*domain.Completion, error) {
	logCtx := logrus.WithField("completion_id", completionID)
	if !domain.ValidProgress(progress) {
		return nil, ErrInvalidProgress
	}
	completion, err := s.completionRepo.FindByID(ctx, completionID)
	if err != nil {
		if errors.Is(err, repository.ErrCompletionNotFound) {
			return nil, ErrCompletionNotFound
		}
		logCtx.WithError(err).Error("UpdateProgress: repository error")
		return nil, ErrInternalServer
	}
	completion.Progress = progress
	if err := s.completionRepo.Save(ctx, completion); err != nil {
		logCtx.WithError(err).Error("UpdateProgress: failed to save completion")
		return nil, ErrInternalServer
	}

	if subtask, err := s.subtaskRepo.FindByID(ctx, completion.SubtaskID); err == nil {
		s.emitProgress(ctx, subtask, completion)
	} else {
		logCtx.WithError(err).Warn("UpdateProgress: subtask lookup failed, event skipped")
	}
	return completion, nil
}

// GetUserCompletions 返回用户的完成记录，subtaskID 非空时只返回该子任务的记录。
func (s *CompletionService) GetUserCompletions(ctx context.Context, userID, subtaskID string) ([]domain.Completion, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "subtask_id": subtaskID})
	if subtaskID != "" {
		c, err := s.completionRepo.FindByUserAndSubtask(ctx, userID, subtaskID)
		if err != nil {
			if errors.Is(err, repository.ErrCompletionNotFound) {
				return []domain.Completion{}, nil
			}
			logCtx.WithError(err).Error("GetUserCompletions: repository error")
			return nil, ErrInternalServer
		}
		return []domain.Completion{*c}, nil
	}
	list, err := s.completionRepo.FindByUser(ctx, userID)
	if err != nil {
		logCtx.WithError(err).Error("GetUserCompletions: repository error")
		return nil, ErrInternalServer
	}
	return list, nil
}

func (s *CompletionService) GetSubtaskCompletions(ctx context.Context, subtaskID string) ([]domain.Completion, error) {
	list, err := s.completionRepo.FindBySubtask(ctx, subtaskID)
	if err != nil {
		logrus.WithField("subtask_id", subtaskID).WithError(err).Error("GetSubtaskCompletions: repository error")
		return nil, ErrInternalServer
	}
	return list, nil
}

// GetUserTaskProgress 返回用户在任务上的整体进度 (0-100)。
// 缺失的记录按 0 计算，没有子任务的任务为 0。
func (s *CompletionService) GetUserTaskProgress(ctx context.Context, userID, taskID string) (int, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "task_id": taskID})
	if _, err := s.taskRepo.FindByID(ctx, taskID); err != nil {
		return 0, mapTaskError(err, logCtx)
	}
	subtasks, err := s.subtaskRepo.FindByTask(ctx, taskID)
	if err != nil {
		logCtx.WithError(err).Error("GetUserTaskProgress: failed to list subtasks")
		return 0, ErrInternalServer
	}
	if len(subtasks) == 0 {
		return 0, nil
	}
	ids := make([]string, len(subtasks))
	for i, st := range subtasks {
		ids[i] = st.ID
	}
	completions, err := s.completionRepo.FindByUserAndSubtasks(ctx, userID, ids)
	if err != nil {
		logCtx.WithError(err).Error("GetUserTaskProgress: failed to list completions")
		return 0, ErrInternalServer
	}
	return TaskProgressPercent(len(subtasks), completions), nil
}

// TaskProgressPercent 计算 round(100 * sum(progress) / subtaskCount)，四舍五入远离零。
func TaskProgressPercent(subtaskCount int, completions []domain.Completion) int {
	if subtaskCount <= 0 {
		return 0
	}
	var sum float64
	for _, c := range completions {
		sum += c.Progress
	}
	return int(math.Round(100 * sum / float64(subtaskCount)))
}

// GetRoomCompletions 返回房间内所有完成记录。任何错误都返回空列表。
func (s *CompletionService) GetRoomCompletions(ctx context.Context, roomID string) []domain.Completion {
	list, err := s.completionRepo.FindByRoom(ctx, roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("GetRoomCompletions: returning empty list")
		return []domain.Completion{}
	}
	return list
}

// emitProgress 通过 子任务 -> 任务 找到房间后广播 subtask_progress_updated
func (s *CompletionService) emitProgress(ctx context.Context, subtask *domain.Subtask, c *domain.Completion) {
	task, err := s.taskRepo.FindByID(ctx, subtask.TaskID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"subtask_id": subtask.ID, "task_id": subtask.TaskID}).
			WithError(err).Warn("Task lookup failed, progress event skipped")
		return
	}
	s.notifier.SubtaskProgressUpdated(task.RoomID, subtask.ID, c.UserID, userName(ctx, s.userRepo, c.UserID), c.Progress)
}
