package stream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"task-duel/internal/domain"
	"task-duel/internal/hub"
	"task-duel/internal/middleware"
	"task-duel/internal/service"
	"task-duel/pkg/apierrors"
)

// RoomFinder 用于在订阅前确认房间存在，*service.RoomService 实现了它
type RoomFinder interface {
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
}

// StreamHandler 负责把 HTTP 请求变成房间事件订阅 (SSE 或 WebSocket)
type StreamHandler struct {
	upgrader     websocket.Upgrader
	hub          *hub.Hub
	rooms        RoomFinder
	writeTimeout time.Duration
}

// NewStreamHandler 创建 StreamHandler 实例。writeTimeout 为每帧的写入截止时间，<=0 表示不设置。
func NewStreamHandler(h *hub.Hub, rooms RoomFinder, writeTimeout time.Duration) *StreamHandler {
	if h == nil {
		panic("Hub cannot be nil for StreamHandler")
	}
	if rooms == nil {
		panic("RoomFinder cannot be nil for StreamHandler")
	}
	return &StreamHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 来源由 CORS 中间件与 JWT 控制
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hub:          h,
		rooms:        rooms,
		writeTimeout: writeTimeout,
	}
}

// ServeSSE 处理 GET /api/events/:roomId。
// 订阅一直保持到客户端断开或订阅被 Hub 移除。
func (h *StreamHandler) ServeSSE(c *gin.Context) {
	logCtx, roomID, ok := h.prepare(c)
	if !ok {
		return
	}

	s, err := hub.NewSSEStream(c.Writer, h.writeTimeout)
	if err != nil {
		logCtx.WithError(err).Error("SSE Handler: Response writer cannot stream")
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			apierrors.CreateError(http.StatusInternalServerError, apierrors.MsgStreamUnavailable, middleware.GetLang(c)))
		return
	}
	sub, err := h.hub.Subscribe(roomID, s)
	if err != nil {
		// 响应头已经写出，只能记录日志
		logCtx.WithError(err).Warn("SSE Handler: Subscribe failed")
		return
	}
	defer h.hub.Unsubscribe(sub)
	logCtx.Info("SSE Handler: Stream opened")

	select {
	case <-c.Request.Context().Done():
		logCtx.Debug("SSE Handler: Client disconnected")
	case <-sub.Done():
		logCtx.Debug("SSE Handler: Subscription closed by hub")
	}
}

// ServeWS 处理 GET /ws/room/:roomId，事件以 {"event","data"} 文本消息推送。
func (h *StreamHandler) ServeWS(c *gin.Context) {
	logCtx, roomID, ok := h.prepare(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写出了 HTTP 错误响应
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	ws := hub.NewWSStream(conn, roomID, userID)
	sub, err := h.hub.Subscribe(roomID, ws)
	if err != nil {
		logCtx.WithError(err).Warn("WS Handler: Subscribe failed")
		_ = ws.Close()
		return
	}
	logCtx.Info("WS Handler: Connection upgraded and subscribed")

	ws.ReadPump()
	h.hub.Unsubscribe(sub)
}

// prepare 检查登录状态和房间是否存在，失败时已写出错误响应
func (h *StreamHandler) prepare(c *gin.Context) (*logrus.Entry, string, bool) {
	lang := middleware.GetLang(c)
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, apierrors.CreateError(http.StatusUnauthorized, apierrors.MsgUnauthorized, lang))
		return nil, "", false
	}
	roomID := c.Param("roomId")
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	if _, err := h.rooms.GetRoom(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			logCtx.Warn("Stream Handler: Room not found")
			c.AbortWithStatusJSON(http.StatusNotFound, apierrors.CreateError(http.StatusNotFound, apierrors.MsgRoomNotFound, lang))
		} else {
			logCtx.WithError(err).Error("Stream Handler: Error checking room existence")
			c.AbortWithStatusJSON(http.StatusInternalServerError, apierrors.CreateError(http.StatusInternalServerError, apierrors.MsgInternalError, lang))
		}
		return nil, "", false
	}
	return logCtx, roomID, true
}
