package domain

// 房间事件类型
const (
	EventConnected              = "connected"
	EventSubtaskProgressUpdated = "subtask_progress_updated"
	EventUserJoined             = "user_joined"
	EventUserLeft               = "user_left"
	EventTaskCreated            = "task_created"
	EventSubtaskCreated         = "subtask_created"
)

// RoomEvent 是推送给房间订阅者的通知，只存在于线路上，不落库。
// Timestamp 为 Unix 毫秒。
type RoomEvent struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// ConnectedMessage 是订阅建立后的第一帧。
type ConnectedMessage struct {
	Message string `json:"message"`
}

type SubtaskProgressPayload struct {
	SubtaskID string  `json:"subtaskId"`
	UserID    string  `json:"userId"`
	UserName  string  `json:"userName"`
	Progress  float64 `json:"progress"`
}

// ParticipantPayload 用于 user_joined 与 user_left。
type ParticipantPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type TaskCreatedPayload struct {
	TaskID    string `json:"taskId"`
	TaskTitle string `json:"taskTitle"`
}

type SubtaskCreatedPayload struct {
	TaskID        string `json:"taskId"`
	SubtasksCount int    `json:"subtasksCount"`
}
