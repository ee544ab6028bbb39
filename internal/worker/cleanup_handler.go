package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"task-duel/internal/repository"
	"task-duel/internal/tasks"
)

// RoomCleanupHandler 处理房间删除后的收尾：释放加入码，记录遗留的任务数
type RoomCleanupHandler struct {
	stateRepo repository.StateRepository
	taskRepo  repository.TaskRepository
}

func NewRoomCleanupHandler(stateRepo repository.StateRepository, taskRepo repository.TaskRepository) *RoomCleanupHandler {
	return &RoomCleanupHandler{stateRepo: stateRepo, taskRepo: taskRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *RoomCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	payload, err := tasks.ParseRoomCleanupPayload(t)
	if err != nil {
		logCtx.WithError(err).Error("Failed to parse room cleanup payload")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithField("room_id", payload.RoomID)

	if payload.Code != "" && h.stateRepo != nil {
		if err := h.stateRepo.ReleaseJoinCode(ctx, payload.Code); err != nil {
			logCtx.WithError(err).Warn("Failed to release join code, will retry")
			return fmt.Errorf("release join code %s: %w", payload.Code, err)
		}
	}

	// 任务不随房间级联删除，这里只记录
	if h.taskRepo != nil {
		orphaned, err := h.taskRepo.CountByRoom(ctx, payload.RoomID)
		if err != nil {
			logCtx.WithError(err).Warn("Failed to count tasks of deleted room")
		} else if orphaned > 0 {
			logCtx.WithField("orphaned_tasks", orphaned).Info("Deleted room still owns tasks")
		}
	}

	logCtx.Info("Room cleanup task processed successfully")
	return nil
}
