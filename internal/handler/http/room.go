package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-duel/internal/service"
)

// RoomHandler 封装了与房间管理相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// AddParticipantRequest 中 UserID 为空时加入的是调用者自己
type AddParticipantRequest struct {
	UserID string `json:"userId"`
}

// CreateRoom 处理创建新房间的请求，创建者成为房主和第一个参与者
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), userID, req.Name)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": room.ID, "code": room.Code}).Info("Handler.CreateRoom: Room created successfully")
	SuccessResponse(c, http.StatusCreated, room)
}

// GetRoom GET /rooms/:id
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// GetRoomByCode GET /rooms/code/:code
func (h *RoomHandler) GetRoomByCode(c *gin.Context) {
	room, err := h.roomService.GetRoomByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// ListUserRooms GET /rooms/user/:userId
func (h *RoomHandler) ListUserRooms(c *gin.Context) {
	rooms, err := h.roomService.ListUserRooms(c.Request.Context(), c.Param("userId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, rooms)
}

// DeleteRoom DELETE /rooms/:id，只有房主可以删除
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID := c.Param("id")
	if err := h.roomService.DeleteRoom(c.Request.Context(), roomID, userID); err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID}).Info("Handler.DeleteRoom: Room deleted")
	c.Status(http.StatusNoContent)
}

// AddParticipant POST /rooms/:id/participants
func (h *RoomHandler) AddParticipant(c *gin.Context) {
	callerID, ok := currentUser(c)
	if !ok {
		return
	}
	var req AddParticipantRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BindError(c, err)
			return
		}
	}
	if req.UserID == "" {
		req.UserID = callerID
	}

	room, err := h.roomService.AddParticipant(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// RemoveParticipant DELETE /rooms/:id/participants/:userId
func (h *RoomHandler) RemoveParticipant(c *gin.Context) {
	room, err := h.roomService.RemoveParticipant(c.Request.Context(), c.Param("id"), c.Param("userId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}
