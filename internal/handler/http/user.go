package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-duel/internal/middleware"
	"task-duel/internal/service"
	"task-duel/pkg/apierrors"
)

// UserHandler 处理用户资料的读取与修改
type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type UpdateUserRequest struct {
	Name  *string `json:"name" binding:"omitempty,max=100"`
	Email *string `json:"email" binding:"omitempty,email"`
}

type BatchUsersRequest struct {
	IDs []string `json:"ids" binding:"required,max=1000"`
}

// GetUser GET /users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, user)
}

// UpdateUser PUT /users/:id，只能修改自己的资料
func (h *UserHandler) UpdateUser(c *gin.Context) {
	callerID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID := c.Param("id")
	if callerID != targetID {
		logrus.WithFields(logrus.Fields{"user_id": callerID, "target_id": targetID}).Warn("Handler.UpdateUser: Attempt to update another user")
		ErrorResponse(c, http.StatusForbidden, apierrors.MsgForbidden, middleware.GetLang(c))
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	user, err := h.userService.UpdateUser(c.Request.Context(), targetID, req.Name, req.Email)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, user)
}

// GetUsers POST /users/batch，未知 ID 被忽略
func (h *UserHandler) GetUsers(c *gin.Context) {
	var req BatchUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	users, err := h.userService.GetUsers(c.Request.Context(), req.IDs)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, users)
}
