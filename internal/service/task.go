package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"task-duel/internal/domain"
	"task-duel/internal/repository"
)

// TaskService 负责房间内任务的增删改查。
type TaskService struct {
	taskRepo repository.TaskRepository
	roomRepo repository.RoomRepository
	notifier *Notifier
}

func NewTaskService(taskRepo repository.TaskRepository, roomRepo repository.RoomRepository, notifier *Notifier) *TaskService {
	if taskRepo == nil {
		panic("TaskRepository cannot be nil for TaskService")
	}
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for TaskService")
	}
	return &TaskService{taskRepo: taskRepo, roomRepo: roomRepo, notifier: notifier}
}

// CreateTask 在房间中创建任务，提交后广播 task_created。
func (s *TaskService) CreateTask(ctx context.Context, roomID, title string) (*domain.Task, error) {
	title = strings.TrimSpace(title)
	logCtx := logrus.WithField("room_id", roomID)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if _, err := s.roomRepo.FindByID(ctx, roomID); err != nil {
		return nil, mapRoomError(err, logCtx)
	}

	task := &domain.Task{Title: title, RoomID: roomID}
	if err := s.taskRepo.Save(ctx, task); err != nil {
		logCtx.WithError(err).Error("CreateTask: failed to save task")
		return nil, ErrInternalServer
	}
	logCtx.WithField("task_id", task.ID).Info("Task created")
	s.notifier.TaskCreated(roomID, task.ID, task.Title)
	return task, nil
}

func (s *TaskService) ListRoomTasks(ctx context.Context, roomID string) ([]domain.Task, error) {
	tasks, err := s.taskRepo.FindByRoom(ctx, roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("ListRoomTasks: repository error")
		return nil, ErrInternalServer
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, mapTaskError(err, logrus.WithField("task_id", id))
	}
	return task, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, id, title string) (*domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Title = title
	if err := s.taskRepo.Save(ctx, task); err != nil {
		logrus.WithField("task_id", id).WithError(err).Error("UpdateTask: failed to save task")
		return nil, ErrInternalServer
	}
	return task, nil
}

// DeleteTask 删除任务及其子任务和完成记录
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	if err := s.taskRepo.Delete(ctx, id); err != nil {
		return mapTaskError(err, logrus.WithField("task_id", id))
	}
	logrus.WithField("task_id", id).Info("Task deleted")
	return nil
}

func mapTaskError(err error, logCtx *logrus.Entry) error {
	if errors.Is(err, repository.ErrTaskNotFound) {
		return ErrTaskNotFound
	}
	logCtx.WithError(err).Error("task repository error")
	return ErrInternalServer
}
