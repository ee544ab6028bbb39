package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// 写入超时
	writeWait = 10 * time.Second
	// 等待 Pong 的最长时间，需大于心跳间隔
	pongWait = 60 * time.Second
	// 客户端只发控制帧，限制入站消息大小
	maxMessageSize = 512
)

// wsFrame 是 WebSocket 上的事件消息格式。
type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSStream 代表一个通过 WebSocket 订阅房间事件的客户端。
type WSStream struct {
	conn      *websocket.Conn
	roomID    string
	userID    string
	closeOnce sync.Once
}

// NewWSStream 包装已升级的连接。
func NewWSStream(conn *websocket.Conn, roomID, userID string) *WSStream {
	return &WSStream{conn: conn, roomID: roomID, userID: userID}
}

// WriteEvent 把事件编码为一条文本消息。
func (c *WSStream) WriteEvent(event string, data []byte) error {
	msg, err := json.Marshal(wsFrame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("hub: marshal ws frame: %w", err)
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("hub: write ws message: %w", err)
	}
	_ = c.conn.SetWriteDeadline(time.Time{})
	return nil
}

// Ping 发送 Ping 控制帧以检测断开。
func (c *WSStream) Ping() error {
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("hub: write ws ping: %w", err)
	}
	return nil
}

// Close 尝试发送关闭帧后关闭连接。
func (c *WSStream) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		err = c.conn.Close()
	})
	return err
}

// ReadPump 读取并丢弃客户端消息，只为处理 Pong 与关闭。
// 连接断开时返回，调用方随后应退订。
func (c *WSStream) ReadPump() {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID})

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			return
		}
	}
}
