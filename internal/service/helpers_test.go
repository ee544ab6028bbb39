package service_test

import (
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"task-duel/internal/domain"
)

// recordedEvent 是 fakeBroadcaster 记录的一次广播
type recordedEvent struct {
	roomID    string
	eventType string
	event     domain.RoomEvent
}

// fakeBroadcaster 记录所有广播与关闭的房间
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
	closed []string
}

func (f *fakeBroadcaster) Broadcast(roomID, eventType string, payload any) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, _ := payload.(domain.RoomEvent)
	f.events = append(f.events, recordedEvent{roomID: roomID, eventType: eventType, event: ev})
	return 1
}

func (f *fakeBroadcaster) CloseRoom(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, roomID)
	return 2
}

func (f *fakeBroadcaster) all() []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedEvent(nil), f.events...)
}

var fixedNow = time.UnixMilli(1700000000000)

func fixedClock() time.Time { return fixedNow }

// fakeEnqueuer 记录入队的后台任务
type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Payload: task.Payload()}, nil
}
