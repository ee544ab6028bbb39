package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量
const (
	TypeRoomCleanup  = "room:cleanup"  // 房间删除后的收尾工作
	TypeHubHeartbeat = "hub:heartbeat" // 周期性的事件流保活
)

// RoomCleanupPayload 是房间清理任务的数据
type RoomCleanupPayload struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

// NewRoomCleanupTask 创建一个房间清理任务
func NewRoomCleanupTask(roomID, code string) (*asynq.Task, error) {
	payload, err := json.Marshal(RoomCleanupPayload{RoomID: roomID, Code: code})
	if err != nil {
		return nil, fmt.Errorf("marshal room cleanup payload: %w", err)
	}
	return asynq.NewTask(TypeRoomCleanup, payload, asynq.MaxRetry(5)), nil
}

// ParseRoomCleanupPayload 解析清理任务的数据
func ParseRoomCleanupPayload(t *asynq.Task) (RoomCleanupPayload, error) {
	var p RoomCleanupPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("unmarshal room cleanup payload: %w", err)
	}
	if p.RoomID == "" {
		return p, fmt.Errorf("room cleanup payload missing roomId")
	}
	return p, nil
}

// NewHubHeartbeatTask 创建保活任务，没有数据
func NewHubHeartbeatTask() *asynq.Task {
	return asynq.NewTask(TypeHubHeartbeat, nil, asynq.MaxRetry(0))
}
