package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"task-duel/internal/domain"
	"task-duel/internal/repository"
	"task-duel/internal/tasks"
)

// TaskEnqueuer 是后台任务的入队出口，*asynq.Client 实现了它。
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RoomService 负责房间与成员管理。
type RoomService struct {
	roomRepo  repository.RoomRepository
	userRepo  repository.UserRepository
	stateRepo repository.StateRepository
	notifier  *Notifier
	enqueuer  TaskEnqueuer
}

// NewRoomService 创建 RoomService 实例。stateRepo 与 enqueuer 可以为 nil。
func NewRoomService(roomRepo repository.RoomRepository, userRepo repository.UserRepository,
	stateRepo repository.StateRepository, notifier *Notifier, enqueuer TaskEnqueuer) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if userRepo == nil {
		panic("UserRepository cannot be nil for RoomService")
	}
	return &RoomService{
		roomRepo:  roomRepo,
		userRepo:  userRepo,
		stateRepo: stateRepo,
		notifier:  notifier,
		enqueuer:  enqueuer,
	}
}

// CreateRoom 创建房间，房主自动成为参与者。
func (s *RoomService) CreateRoom(ctx context.Context, ownerID, name string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	logCtx := logrus.WithField("owner_id", ownerID)
	if name == "" {
		return nil, ErrEmptyName
	}

	room := &domain.Room{ID: uuid.NewString(), Name: name, OwnerID: ownerID}
	code, err := s.generateUniqueJoinCode(ctx, room.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate unique join code")
		return nil, ErrInternalServer
	}
	room.Code = code
	logCtx = logCtx.WithFields(logrus.Fields{"room_id": room.ID, "code": code})

	if err := s.roomRepo.Create(ctx, room); err != nil {
		s.releaseJoinCode(ctx, code)
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Error("Failed to save new room due to duplicate join code")
		} else {
			logCtx.WithError(err).Error("Failed to save new room to database")
		}
		return nil, ErrInternalServer
	}

	if s.stateRepo != nil {
		if err := s.stateRepo.BindJoinCode(ctx, code, room.ID); err != nil {
			// 数据库唯一索引仍然兜底
			logCtx.WithError(err).Warn("Failed to bind join code in Redis")
		}
	}
	logCtx.Info("Room created successfully")
	return room, nil
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, mapRoomError(err, logrus.WithField("room_id", roomID))
	}
	return room, nil
}

func (s *RoomService) GetRoomByCode(ctx context.Context, code string) (*domain.Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, mapRoomError(err, logrus.WithField("code", code))
	}
	return room, nil
}

// ListUserRooms 返回用户参与的房间
func (s *RoomService) ListUserRooms(ctx context.Context, userID string) ([]domain.Room, error) {
	rooms, err := s.roomRepo.FindByParticipant(ctx, userID)
	if err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("ListUserRooms: repository error")
		return nil, ErrInternalServer
	}
	return rooms, nil
}

// AddParticipant 把用户加入房间，只有真正新加入时才广播 user_joined。
func (s *RoomService) AddParticipant(ctx context.Context, roomID, userID string) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		logCtx.WithError(err).Error("AddParticipant: failed to load user")
		return nil, ErrInternalServer
	}

	added, err := s.roomRepo.AddParticipant(ctx, roomID, userID)
	if err != nil {
		logCtx.WithError(err).Error("AddParticipant: repository error")
		return nil, ErrInternalServer
	}
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if added {
		logCtx.Info("User joined room")
		s.notifier.UserJoined(roomID, userID, user.Name)
	}
	return room, nil
}

// RemoveParticipant 把用户移出房间。房主不能被移除。
func (s *RoomService) RemoveParticipant(ctx context.Context, roomID, userID string) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID == userID {
		return nil, ErrCannotRemoveOwner
	}

	removed, err := s.roomRepo.RemoveParticipant(ctx, roomID, userID)
	if err != nil {
		logCtx.WithError(err).Error("RemoveParticipant: repository error")
		return nil, ErrInternalServer
	}
	room, err = s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if removed {
		logCtx.Info("User left room")
		s.notifier.UserLeft(roomID, userID, userName(ctx, s.userRepo, userID))
	}
	return room, nil
}

// DeleteRoom 删除房间 (仅房主)，关闭在线事件流并提交清理任务。
func (s *RoomService) DeleteRoom(ctx context.Context, roomID, requesterID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": requesterID})
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != requesterID {
		return ErrNotRoomOwner
	}
	if err := s.roomRepo.Delete(ctx, roomID); err != nil {
		return mapRoomError(err, logCtx)
	}
	closed := s.notifier.RoomClosed(roomID)
	logCtx.WithField("closed_streams", closed).Info("Room deleted")

	if s.enqueuer != nil {
		task, err := tasks.NewRoomCleanupTask(room.ID, room.Code)
		if err == nil {
			_, err = s.enqueuer.Enqueue(task, asynq.Queue("low"))
		}
		if err != nil {
			logCtx.WithError(err).Warn("Failed to enqueue room cleanup task")
		}
	}
	return nil
}

func mapRoomError(err error, logCtx *logrus.Entry) error {
	if errors.Is(err, repository.ErrRoomNotFound) {
		return ErrRoomNotFound
	}
	logCtx.WithError(err).Error("room repository error")
	return ErrInternalServer
}

func (s *RoomService) releaseJoinCode(ctx context.Context, code string) {
	if s.stateRepo == nil {
		return
	}
	if err := s.stateRepo.ReleaseJoinCode(ctx, code); err != nil {
		logrus.WithField("code", code).WithError(err).Warn("Failed to release join code")
	}
}

// generateUniqueJoinCode 生成 6 位加入码：先查数据库，再在 Redis 中原子占用
func (s *RoomService) generateUniqueJoinCode(ctx context.Context, roomID string) (string, error) {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const codeLength = 6
	const maxAttempts = 10

	b := make([]byte, codeLength)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for i := range b {
			b[i] = letters[int(b[i])%len(letters)]
		}
		code := string(b)

		exists, err := s.roomRepo.IsCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("database error checking join code: %w", err)
		}
		if exists {
			logrus.WithField("code", code).Warnf("Generated join code already exists, retrying (attempt %d)...", attempt+1)
			continue
		}
		if s.stateRepo != nil {
			reserved, err := s.stateRepo.ReserveJoinCode(ctx, code, roomID)
			if err != nil {
				return "", fmt.Errorf("redis error reserving join code: %w", err)
			}
			if !reserved {
				logrus.WithField("code", code).Warnf("Join code reserved concurrently, retrying (attempt %d)...", attempt+1)
				continue
			}
		}
		return code, nil
	}
	return "", fmt.Errorf("failed to generate a unique join code after %d attempts", maxAttempts)
}
