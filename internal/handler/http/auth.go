package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-duel/internal/service"
)

// AuthHandler 封装了与用户认证相关的 HTTP 处理逻辑
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,max=100"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type GuestRequest struct {
	Name string `json:"name" binding:"max=100"`
}

// AuthResponse 是注册、登录、游客创建的统一响应。Password 只有游客才会返回。
type AuthResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsGuest  bool   `json:"isGuest"`
	Token    string `json:"token"`
	Password string `json:"password,omitempty"`
}

func newAuthResponse(res *service.AuthResult) AuthResponse {
	return AuthResponse{
		ID:       res.User.ID,
		Email:    res.User.Email,
		Name:     res.User.Name,
		IsGuest:  res.User.IsGuest,
		Token:    res.Token,
		Password: res.Password,
	}
}

// Register 处理用户注册请求
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}

	res, err := h.authService.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithField("user_id", res.User.ID).Info("Handler.Register: User registered successfully")
	SuccessResponse(c, http.StatusCreated, newAuthResponse(res))
}

// Login 处理用户登录请求
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, newAuthResponse(res))
}

// Guest 创建一个游客账号，请求体可以为空
func (h *AuthHandler) Guest(c *gin.Context) {
	var req GuestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BindError(c, err)
			return
		}
	}

	res, err := h.authService.CreateGuest(c.Request.Context(), req.Name)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithField("user_id", res.User.ID).Info("Handler.Guest: Guest account created")
	SuccessResponse(c, http.StatusCreated, newAuthResponse(res))
}
