// Package reconciler 订阅房间事件流，并按事件类型重新拉取或局部修补客户端缓存。
// 事件只被当作"有东西变了"的通知，数据以 REST 接口的返回为准。
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"task-duel/internal/domain"
)

// State 是订阅的连接状态
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	// StateClosed 表示调用方主动断开，对外报告为 disconnected
	StateClosed State = "closed"
)

// Options 控制重连与拉取行为，零值字段取默认值
type Options struct {
	// 第 n 次重连前等待 InitialBackoff * 2^(n-1)，不超过 MaxBackoff
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// MaxAttempts 为连续失败的重连次数上限，0 表示不限
	MaxAttempts int
	// FetchTimeout 是每次重新拉取的超时，拉取不随订阅取消
	FetchTimeout time.Duration
	Logger       *logrus.Entry
}

func (o Options) withDefaults() Options {
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.MaxAttempts < 0 {
		o.MaxAttempts = 0
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return o
}

// Reconciler 同一时刻最多订阅一个房间
type Reconciler struct {
	api   *APIClient
	store *Store
	opts  Options

	mu     sync.Mutex
	state  State
	roomID string
	active *subscription
}

// subscription 是一次 Connect 启动的后台订阅
type subscription struct {
	roomID string
	cancel context.CancelFunc
}

func New(api *APIClient, store *Store, opts Options) *Reconciler {
	return &Reconciler{
		api:   api,
		store: store,
		opts:  opts.withDefaults(),
		state: StateDisconnected,
	}
}

// State 返回当前状态。主动断开后报告 disconnected。
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateClosed {
		return StateDisconnected
	}
	return r.state
}

// RoomID 返回当前 (或最近一次) 订阅的房间
func (r *Reconciler) RoomID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomID
}

// Connect 关闭已有订阅，再在后台打开 roomID 的事件流。
// ctx 取消时订阅结束。并发调用时只有最后一个订阅保留。
func (r *Reconciler) Connect(ctx context.Context, roomID string) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{roomID: roomID, cancel: cancel}

	r.mu.Lock()
	if r.active != nil {
		r.active.cancel()
	}
	r.active = sub
	r.roomID = roomID
	r.state = StateConnecting
	r.mu.Unlock()

	go r.run(subCtx, sub)
}

// Disconnect 立即关闭当前订阅，不等待后台 goroutine 或进行中的拉取。可重复调用。
func (r *Reconciler) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return
	}
	r.active.cancel()
	r.active = nil
	r.state = StateClosed
}

// setState 只接受当前订阅的状态变化，已被替换或关闭的订阅被忽略
func (r *Reconciler) setState(sub *subscription, s State) {
	r.mu.Lock()
	if r.active == sub {
		r.state = s
	}
	r.mu.Unlock()
}

func (r *Reconciler) run(ctx context.Context, sub *subscription) {
	roomID := sub.roomID
	logCtx := r.opts.Logger.WithField("room_id", roomID)

	attempt := 0
	opened := false
	for {
		stream, err := r.open(ctx, roomID)
		if err == nil {
			r.setState(sub, StateConnected)
			logCtx.WithField("ack", stream.Ack).Info("Event stream connected")
			if opened {
				if err := r.Resync(roomID); err != nil {
					logCtx.WithError(err).Warn("Resync after reconnect failed")
				}
			}
			opened = true
			attempt = 0

			err = r.consume(ctx, stream, roomID)
			_ = stream.Close()
		}
		if ctx.Err() != nil {
			return
		}

		attempt++
		if r.opts.MaxAttempts > 0 && attempt > r.opts.MaxAttempts {
			logCtx.WithError(err).WithField("attempts", attempt-1).Error("Giving up on event stream")
			r.setState(sub, StateDisconnected)
			return
		}
		r.setState(sub, StateConnecting)
		wait := r.backoff(attempt)
		logCtx.WithError(err).WithFields(logrus.Fields{"attempt": attempt, "backoff": wait}).Warn("Event stream lost, reconnecting")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// backoff 返回第 attempt 次重连前的等待时间
func (r *Reconciler) backoff(attempt int) time.Duration {
	d := r.opts.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.opts.MaxBackoff {
			return r.opts.MaxBackoff
		}
	}
	if d > r.opts.MaxBackoff {
		return r.opts.MaxBackoff
	}
	return d
}

func (r *Reconciler) open(ctx context.Context, roomID string) (*EventStream, error) {
	req, err := r.api.NewStreamRequest(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return OpenEventStream(ctx, r.api.HTTPClient(), req)
}

// consume 逐个处理事件直到流结束
func (r *Reconciler) consume(ctx context.Context, stream *EventStream, roomID string) error {
	for {
		ev, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.Handle(roomID, ev)
	}
}

type envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Handle 按事件类型更新 Store。只处理 Store 当前房间的事件。
func (r *Reconciler) Handle(roomID string, ev SSEEvent) {
	logCtx := r.opts.Logger.WithFields(logrus.Fields{"room_id": roomID, "event": ev.Type})

	if ev.Type == domain.EventConnected {
		return
	}
	if r.store.CurrentRoomID() != roomID {
		logCtx.Debug("Event for a room that is not current, ignored")
		return
	}

	var env envelope
	if err := json.Unmarshal([]byte(ev.Data), &env); err != nil {
		logCtx.WithError(err).Warn("Malformed event data")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.FetchTimeout)
	defer cancel()

	var err error
	switch ev.Type {
	case domain.EventSubtaskProgressUpdated:
		var p domain.SubtaskProgressPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			err = r.onProgress(ctx, p)
		}
	case domain.EventUserJoined:
		var p domain.ParticipantPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			r.onUserJoined(ctx, logCtx, p)
		}
	case domain.EventUserLeft:
		var p domain.ParticipantPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			r.store.RemoveParticipant(p.UserID)
		}
	case domain.EventTaskCreated:
		var tasks []domain.Task
		if tasks, err = r.api.GetRoomTasks(ctx, roomID); err == nil {
			r.store.SetTasks(tasks)
		}
	case domain.EventSubtaskCreated:
		var p domain.SubtaskCreatedPayload
		if err = json.Unmarshal(env.Data, &p); err == nil {
			var subtasks []domain.Subtask
			if subtasks, err = r.api.GetTaskSubtasks(ctx, p.TaskID); err == nil {
				r.store.SetSubtasks(p.TaskID, subtasks)
			}
		}
	default:
		logCtx.Warn("Unknown event type, ignored")
		return
	}
	if err != nil {
		logCtx.WithError(err).Warn("Failed to reconcile event")
	}
}

func (r *Reconciler) onProgress(ctx context.Context, p domain.SubtaskProgressPayload) error {
	list, err := r.api.GetUserCompletions(ctx, p.UserID, p.SubtaskID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}
	c := list[0]
	c.Progress = p.Progress
	c.UpdatedAt = time.Now()
	r.store.UpsertCompletion(c)
	return nil
}

func (r *Reconciler) onUserJoined(ctx context.Context, logCtx *logrus.Entry, p domain.ParticipantPayload) {
	user := domain.User{ID: p.UserID, Name: p.UserName}
	fetched, err := r.api.GetUser(ctx, p.UserID)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to fetch joined user profile")
	} else {
		user = *fetched
		r.store.SetUser(user)
	}
	r.store.AddParticipant(user)
}

// Resync 重新拉取整个房间：房间与参与者、任务、每个任务的子任务、房间的完成记录。
func (r *Reconciler) Resync(roomID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.FetchTimeout)
	defer cancel()

	room, err := r.api.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	tasks, err := r.api.GetRoomTasks(ctx, roomID)
	if err != nil {
		return err
	}
	subtasks := make(map[string][]domain.Subtask, len(tasks))
	for _, t := range tasks {
		list, err := r.api.GetTaskSubtasks(ctx, t.ID)
		if err != nil {
			return err
		}
		subtasks[t.ID] = list
	}
	completions, err := r.api.GetRoomCompletions(ctx, roomID)
	if err != nil {
		return err
	}

	r.store.SetCurrentRoom(*room)
	r.store.SetTasks(tasks)
	for _, t := range tasks {
		r.store.SetSubtasks(t.ID, subtasks[t.ID])
	}
	r.store.SetCompletions(completions)
	r.opts.Logger.WithFields(logrus.Fields{"room_id": roomID, "tasks": len(tasks), "completions": len(completions)}).Info("Room resynced")
	return nil
}
