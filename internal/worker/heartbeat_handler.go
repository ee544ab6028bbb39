package worker

import (
	"context"

	"github.com/hibiken/asynq"
)

// Heartbeater 向所有在线事件流写保活帧，返回被移除的失效订阅数。*hub.Hub 实现了它。
type Heartbeater interface {
	Heartbeat() int
}

// HeartbeatHandler 处理调度器周期投递的保活任务
type HeartbeatHandler struct {
	streams Heartbeater
}

func NewHeartbeatHandler(streams Heartbeater) *HeartbeatHandler {
	return &HeartbeatHandler{streams: streams}
}

func (h *HeartbeatHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if h.streams == nil {
		return nil
	}
	removed := h.streams.Heartbeat()
	taskLogger(ctx, t).WithField("removed", removed).Debug("Heartbeat task processed")
	return nil
}
