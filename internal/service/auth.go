package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"task-duel/internal/domain"
	"task-duel/internal/repository"
)

// guestEmailDomain 是游客账号使用的保留邮箱域名
const guestEmailDomain = "guest.task-duel.local"

// AuthResult 是注册、登录、游客创建的返回值。
// Password 只在创建游客时填写，且只返回这一次。
type AuthResult struct {
	User     *domain.User
	Token    string
	Password string
}

// AuthService 负责用户认证相关的业务逻辑。
type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	jwtExpiry time.Duration
}

// NewAuthService 创建 AuthService 实例。
// jwtExpiryHours 定义 token 过期的小时数，<=0 时取 24。
func NewAuthService(userRepo repository.UserRepository, jwtSecretKey string, jwtExpiryHours int) (*AuthService, error) {
	if userRepo == nil {
		panic("UserRepository cannot be nil for AuthService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecretKey),
		jwtExpiry: time.Duration(jwtExpiryHours) * time.Hour,
	}, nil
}

// Register 处理用户注册。
func (s *AuthService) Register(ctx context.Context, email, name, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	logCtx := logrus.WithFields(logrus.Fields{"email": email})

	if _, err := mail.ParseAddress(email); err != nil || password == "" {
		return nil, ErrInvalidInput
	}
	if name == "" {
		return nil, ErrEmptyName
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		logCtx.Warn("Registration failed: email already exists")
		return nil, ErrEmailTaken
	}
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		logCtx.WithError(err).Error("Database error checking email")
		return nil, ErrInternalServer
	}

	user, err := s.createUser(ctx, logCtx, email, name, password, false)
	if err != nil {
		return nil, err
	}
	token, err := s.generateJWT(user.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token after registration")
		return nil, ErrInternalServer
	}
	logCtx.WithField("user_id", user.ID).Info("User registered successfully")
	return &AuthResult{User: user, Token: token}, nil
}

// CreateGuest 创建一个随机邮箱和密码的游客账号，密码随结果返回一次。
func (s *AuthService) CreateGuest(ctx context.Context, name string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Guest"
	}
	email := fmt.Sprintf("guest-%s@%s", uuid.NewString(), guestEmailDomain)
	logCtx := logrus.WithFields(logrus.Fields{"email": email})

	password, err := randomPassword()
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate guest password")
		return nil, ErrInternalServer
	}
	user, err := s.createUser(ctx, logCtx, email, name, password, true)
	if err != nil {
		return nil, err
	}
	token, err := s.generateJWT(user.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token for guest")
		return nil, ErrInternalServer
	}
	logCtx.WithField("user_id", user.ID).Info("Guest user created")
	return &AuthResult{User: user, Token: token, Password: password}, nil
}

// Login 处理用户登录。
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	logCtx := logrus.WithField("email", email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logCtx.Warn("Login attempt failed: User not found")
		} else {
			logCtx.WithError(err).Warn("Login attempt failed: Error finding user")
		}
		return nil, ErrAuthenticationFailed
	}
	if user == nil {
		return nil, ErrAuthenticationFailed
	}

	if !checkPassword(password, user.Password) {
		logCtx.Warn("Login attempt failed: Invalid password")
		return nil, ErrAuthenticationFailed
	}

	token, err := s.generateJWT(user.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token during login")
		return nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User logged in successfully")
	user.Password = ""
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) createUser(ctx context.Context, logCtx *logrus.Entry, email, name, password string, guest bool) (*domain.User, error) {
	hashedPassword, err := hashPassword(password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password")
		return nil, ErrInternalServer
	}
	user := &domain.User{
		Email:    email,
		Name:     name,
		Password: hashedPassword,
		IsGuest:  guest,
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("Registration failed: email already exists (repo error)")
			return nil, ErrEmailTaken
		}
		logCtx.WithError(err).Error("Database error during user creation")
		return nil, ErrInternalServer
	}
	user.Password = ""
	return user, nil
}

// --- 私有辅助函数 ---

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// hashPassword 使用 bcrypt 对密码进行哈希处理
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

// checkPassword 验证提供的密码是否与存储的哈希匹配
func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func randomPassword() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// generateJWT 为指定用户 ID 生成 JWT Token
func (s *AuthService) generateJWT(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(s.jwtExpiry).Unix(),
		"iat":     now.Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
