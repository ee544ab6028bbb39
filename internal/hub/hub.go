package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"task-duel/internal/domain"

	"github.com/sirupsen/logrus"
)

// ErrSubscriptionClosed 表示订阅已被移除，不能再写入。
var ErrSubscriptionClosed = errors.New("hub: subscription closed")

// Stream 是一个单向的出站事件流 (SSE 响应或 WebSocket 连接)。
// Hub 保证对同一个 Stream 的调用是串行的。
type Stream interface {
	// WriteEvent 写入一帧事件，data 为已序列化的 JSON。
	WriteEvent(event string, data []byte) error
	// Ping 写入保活帧，用于探测失效连接。
	Ping() error
	// Close 释放底层连接。可能被调用多次。
	Close() error
}

// Subscription 是 Hub 中的一个订阅句柄。
type Subscription struct {
	id     uint64
	roomID string
	stream Stream

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// RoomID 返回订阅所属的房间。
func (s *Subscription) RoomID() string { return s.roomID }

// Done 在订阅被移除 (主动退订、写失败、房间关闭) 后关闭。
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) write(event string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSubscriptionClosed
	}
	return s.stream.WriteEvent(event, data)
}

func (s *Subscription) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSubscriptionClosed
	}
	return s.stream.Ping()
}

// close 标记订阅关闭，返回是否是第一次关闭。
func (s *Subscription) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.done)
	if err := s.stream.Close(); err != nil {
		logrus.WithFields(logrus.Fields{"room_id": s.roomID, "subscription_id": s.id}).WithError(err).Debug("Hub: stream close error")
	}
	return true
}

// room 保存一个房间的订阅，按订阅顺序排列。
// mu 只保护 subs；pub 串行化对该房间的广播与保活写入，
// 保证每个订阅者收到的顺序与 Broadcast 调用顺序一致。
// 写流时只持有 pub 和订阅自己的锁，不持有 mu 或 Hub.mu。
type room struct {
	pub  sync.Mutex
	mu   sync.Mutex
	subs []*Subscription
}

func (r *room) snapshot() []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Subscription(nil), r.subs...)
}

func (r *room) remove(sub *Subscription) (removed, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.subs) - 1; i >= 0; i-- {
		if r.subs[i] == sub {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			removed = true
			break
		}
	}
	return removed, len(r.subs) == 0
}

// Hub 是房间级的广播注册表：roomID -> 当前在线的事件流。
// 锁顺序为 Hub.mu -> room.mu，两者都只在修改或读取订阅列表时短暂持有。
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	nextID uint64
	log    *logrus.Entry
}

// NewHub 创建一个空的注册表。
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		rooms: make(map[string]*room),
		log:   logger.WithField("component", "hub"),
	}
}

// Subscribe 把 stream 注册到 roomID 下，并立即写出 connected 确认帧。
// 确认帧写入失败时订阅被移除并返回错误。
func (h *Hub) Subscribe(roomID string, stream Stream) (*Subscription, error) {
	ack, err := json.Marshal(domain.ConnectedMessage{Message: "Connected to room " + roomID})
	if err != nil {
		return nil, fmt.Errorf("hub: marshal connected message: %w", err)
	}

	sub := &Subscription{
		roomID: roomID,
		stream: stream,
		done:   make(chan struct{}),
	}
	// 注册前先锁住订阅，广播要等确认帧写完才能写到它
	sub.mu.Lock()

	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{}
		h.rooms[roomID] = r
	}
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	count := len(r.subs)
	r.mu.Unlock()
	h.mu.Unlock()

	err = stream.WriteEvent(domain.EventConnected, ack)
	sub.mu.Unlock()

	logCtx := h.log.WithFields(logrus.Fields{"room_id": roomID, "subscription_id": sub.id})
	if err != nil {
		logCtx.WithError(err).Warn("Hub: failed to write connected event, dropping subscription")
		h.Unsubscribe(sub)
		return nil, fmt.Errorf("hub: write connected event: %w", err)
	}
	logCtx.WithField("subscribers", count).Info("Hub: subscription registered")
	return sub, nil
}

// Unsubscribe 移除订阅；房间为空时删除房间条目。可重复调用。
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.close()

	h.mu.RLock()
	r, ok := h.rooms[sub.roomID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	removed, empty := r.remove(sub)
	if empty {
		h.dropIfEmpty(sub.roomID, r)
	}
	if removed {
		h.log.WithFields(logrus.Fields{"room_id": sub.roomID, "subscription_id": sub.id}).Info("Hub: subscription removed")
	}
}

// dropIfEmpty 在房间条目仍是 r 且没有订阅时删除它
func (h *Hub) dropIfEmpty(roomID string, r *room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] != r {
		return
	}
	r.mu.Lock()
	empty := len(r.subs) == 0
	r.mu.Unlock()
	if empty {
		delete(h.rooms, roomID)
	}
}

// Broadcast 把事件写给房间内调用时刻的每一个订阅者，返回成功写入的数量。
// 倒序遍历；写失败的订阅在遍历结束后移除。房间没有订阅者时什么也不做。
// 错误从不返回给调用方。慢订阅者只会拖慢同一房间的广播。
func (h *Hub) Broadcast(roomID, eventType string, payload any) int {
	logCtx := h.log.WithFields(logrus.Fields{"room_id": roomID, "event": eventType})

	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		logCtx.Debug("Hub: no subscribers, event dropped")
		return 0
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logCtx.WithError(err).Error("Hub: failed to marshal event payload")
		return 0
	}

	r.pub.Lock()
	subs := r.snapshot()
	var failed []*Subscription
	delivered := 0
	for i := len(subs) - 1; i >= 0; i-- {
		sub := subs[i]
		if err := sub.write(eventType, data); err != nil {
			if errors.Is(err, ErrSubscriptionClosed) {
				// 快照之后被退订
				continue
			}
			logCtx.WithField("subscription_id", sub.id).WithError(err).Warn("Hub: write failed, removing subscription")
			failed = append(failed, sub)
			continue
		}
		delivered++
	}
	r.pub.Unlock()

	for _, sub := range failed {
		h.Unsubscribe(sub)
	}
	logCtx.WithFields(logrus.Fields{"delivered": delivered, "failed": len(failed)}).Debug("Hub: event broadcast")
	return delivered
}

// CloseRoom 关闭并移除房间内的全部订阅，返回关闭的数量。
func (h *Hub) CloseRoom(roomID string) int {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	delete(h.rooms, roomID)
	h.mu.Unlock()
	if !ok {
		return 0
	}

	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	h.log.WithFields(logrus.Fields{"room_id": roomID, "closed": len(subs)}).Info("Hub: room closed")
	return len(subs)
}

// Heartbeat 向所有订阅写入保活帧，移除写失败的订阅，返回移除的数量。
func (h *Hub) Heartbeat() int {
	h.mu.RLock()
	rooms := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	var failed []*Subscription
	for _, r := range rooms {
		r.pub.Lock()
		subs := r.snapshot()
		for i := len(subs) - 1; i >= 0; i-- {
			if err := subs[i].ping(); err != nil && !errors.Is(err, ErrSubscriptionClosed) {
				failed = append(failed, subs[i])
			}
		}
		r.pub.Unlock()
	}
	for _, sub := range failed {
		h.Unsubscribe(sub)
	}
	if len(failed) > 0 {
		h.log.WithField("removed", len(failed)).Info("Hub: heartbeat removed dead subscriptions")
	}
	return len(failed)
}

// ActiveRooms 返回当前有订阅者的房间 ID (已排序)。
func (h *Hub) ActiveRooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SubscriberCount 返回房间当前的订阅数量。
func (h *Hub) SubscriberCount(roomID string) int {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
