package service

import (
	"time"

	"github.com/sirupsen/logrus"

	"task-duel/internal/domain"
)

// Broadcaster 是事件广播的出口，*hub.Hub 实现了它。
type Broadcaster interface {
	Broadcast(roomID, eventType string, payload any) int
	CloseRoom(roomID string) int
}

// Notifier 把已提交的变更包装成 RoomEvent 推送给房间订阅者。
// 推送失败只记录日志，不影响调用方。
type Notifier struct {
	hub Broadcaster
	now func() time.Time
}

// NewNotifier 创建 Notifier。hub 为 nil 时所有通知都被丢弃。
func NewNotifier(hub Broadcaster) *Notifier {
	return &Notifier{hub: hub, now: time.Now}
}

// WithClock 替换时钟，用于测试
func (n *Notifier) WithClock(now func() time.Time) *Notifier {
	n.now = now
	return n
}

func (n *Notifier) emit(roomID, eventType string, data any) {
	if n == nil || n.hub == nil || roomID == "" {
		return
	}
	ev := domain.RoomEvent{Type: eventType, Data: data, Timestamp: n.now().UnixMilli()}
	delivered := n.hub.Broadcast(roomID, eventType, ev)
	logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"event":     eventType,
		"delivered": delivered,
	}).Debug("Notifier: event emitted")
}

func (n *Notifier) SubtaskProgressUpdated(roomID, subtaskID, userID, userName string, progress float64) {
	n.emit(roomID, domain.EventSubtaskProgressUpdated, domain.SubtaskProgressPayload{
		SubtaskID: subtaskID,
		UserID:    userID,
		UserName:  userName,
		Progress:  progress,
	})
}

func (n *Notifier) UserJoined(roomID, userID, userName string) {
	n.emit(roomID, domain.EventUserJoined, domain.ParticipantPayload{UserID: userID, UserName: userName})
}

func (n *Notifier) UserLeft(roomID, userID, userName string) {
	n.emit(roomID, domain.EventUserLeft, domain.ParticipantPayload{UserID: userID, UserName: userName})
}

func (n *Notifier) TaskCreated(roomID, taskID, taskTitle string) {
	n.emit(roomID, domain.EventTaskCreated, domain.TaskCreatedPayload{TaskID: taskID, TaskTitle: taskTitle})
}

func (n *Notifier) SubtaskCreated(roomID, taskID string, count int) {
	n.emit(roomID, domain.EventSubtaskCreated, domain.SubtaskCreatedPayload{TaskID: taskID, SubtasksCount: count})
}

// RoomClosed 关闭房间的所有在线事件流
func (n *Notifier) RoomClosed(roomID string) int {
	if n == nil || n.hub == nil {
		return 0
	}
	return n.hub.CloseRoom(roomID)
}
