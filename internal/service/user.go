package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"

	"task-duel/internal/domain"
	"task-duel/internal/repository"
)

// UserService 提供用户资料的读取与更新。
type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	if userRepo == nil {
		panic("UserRepository cannot be nil for UserService")
	}
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		logrus.WithField("user_id", id).WithError(err).Error("GetUser: repository error")
		return nil, ErrInternalServer
	}
	return user, nil
}

// GetUsers 批量获取，不存在的 ID 被忽略
func (s *UserService) GetUsers(ctx context.Context, ids []string) ([]domain.User, error) {
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		logrus.WithField("count", len(ids)).WithError(err).Error("GetUsers: repository error")
		return nil, ErrInternalServer
	}
	return users, nil
}

// UpdateUser 更新名称和/或邮箱，nil 表示不修改
func (s *UserService) UpdateUser(ctx context.Context, id string, name, email *string) (*domain.User, error) {
	logCtx := logrus.WithField("user_id", id)
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, ErrEmptyName
		}
		user.Name = n
	}
	if email != nil {
		e := normalizeEmail(*email)
		if _, err := mail.ParseAddress(e); err != nil {
			return nil, ErrInvalidInput
		}
		user.Email = e
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, ErrEmailTaken
		}
		logCtx.WithError(err).Error("UpdateUser: failed to save user")
		return nil, ErrInternalServer
	}
	logCtx.Info("User profile updated")
	return user, nil
}

// userName 返回用户名称，查找失败时返回空字符串
func userName(ctx context.Context, repo repository.UserRepository, userID string) string {
	user, err := repo.FindByID(ctx, userID)
	if err != nil || user == nil {
		logrus.WithField("user_id", userID).WithError(err).Debug("user lookup for event payload failed")
		return ""
	}
	return user.Name
}
