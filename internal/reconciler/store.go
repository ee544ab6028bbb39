package reconciler

import (
	"sort"
	"sync"

	"task-duel/internal/domain"
)

// ChangeKind 标识 Store 中哪一部分发生了变化
type ChangeKind string

const (
	ChangeRoom         ChangeKind = "room"
	ChangeParticipants ChangeKind = "participants"
	ChangeTasks        ChangeKind = "tasks"
	ChangeSubtasks     ChangeKind = "subtasks"
	ChangeCompletions  ChangeKind = "completions"
	ChangeUser         ChangeKind = "user"
	ChangeCleared      ChangeKind = "cleared"
)

// Change 描述一次变更。ID 是相关对象的 ID (任务、完成记录、用户)，可以为空。
type Change struct {
	Kind ChangeKind
	ID   string
}

// Store 是客户端缓存的房间视图。所有读取都返回副本。
type Store struct {
	mu          sync.RWMutex
	selfID      string
	room        *domain.Room
	tasks       []domain.Task
	subtasks    map[string][]domain.Subtask
	completions []domain.Completion
	users       map[string]domain.User
	onChange    func(Change)
}

// NewStore 创建空的 Store。selfID 是当前用户，设置房间时排在参与者首位。
func NewStore(selfID string) *Store {
	return &Store{
		selfID:   selfID,
		subtasks: make(map[string][]domain.Subtask),
		users:    make(map[string]domain.User),
	}
}

// OnChange 设置变更回调。回调在锁外同步调用。
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn(c)
	}
}

// SetCurrentRoom 替换当前房间
func (s *Store) SetCurrentRoom(room domain.Room) {
	room.Participants = append([]domain.User(nil), room.Participants...)
	sort.SliceStable(room.Participants, func(i, j int) bool {
		return room.Participants[i].ID == s.selfID && room.Participants[j].ID != s.selfID
	})

	s.mu.Lock()
	s.room = &room
	for _, p := range room.Participants {
		s.users[p.ID] = p
	}
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeRoom, ID: room.ID})
}

// ClearCurrentRoom 清空房间及其任务、子任务和完成记录
func (s *Store) ClearCurrentRoom() {
	s.mu.Lock()
	s.room = nil
	s.tasks = nil
	s.subtasks = make(map[string][]domain.Subtask)
	s.completions = nil
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeCleared})
}

// CurrentRoomID 没有房间时返回空串
func (s *Store) CurrentRoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.room == nil {
		return ""
	}
	return s.room.ID
}

func (s *Store) Room() (domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.room == nil {
		return domain.Room{}, false
	}
	r := *s.room
	r.Participants = append([]domain.User(nil), s.room.Participants...)
	return r, true
}

// AddParticipant 在用户不在列表中时追加，返回是否追加
func (s *Store) AddParticipant(user domain.User) bool {
	s.mu.Lock()
	if s.room == nil || s.room.HasParticipant(user.ID) {
		s.mu.Unlock()
		return false
	}
	s.room.Participants = append(s.room.Participants, user)
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeParticipants, ID: user.ID})
	return true
}

// RemoveParticipant 返回是否真的移除了
func (s *Store) RemoveParticipant(userID string) bool {
	s.mu.Lock()
	if s.room == nil {
		s.mu.Unlock()
		return false
	}
	removed := false
	for i, p := range s.room.Participants {
		if p.ID == userID {
			s.room.Participants = append(s.room.Participants[:i:i], s.room.Participants[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()
	if removed {
		s.notify(Change{Kind: ChangeParticipants, ID: userID})
	}
	return removed
}

func (s *Store) SetTasks(tasks []domain.Task) {
	s.mu.Lock()
	s.tasks = append([]domain.Task(nil), tasks...)
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeTasks})
}

func (s *Store) Tasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Task(nil), s.tasks...)
}

// SetSubtasks 整体替换某个任务的子任务列表
func (s *Store) SetSubtasks(taskID string, subtasks []domain.Subtask) {
	s.mu.Lock()
	s.subtasks[taskID] = append([]domain.Subtask(nil), subtasks...)
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeSubtasks, ID: taskID})
}

func (s *Store) Subtasks(taskID string) []domain.Subtask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Subtask(nil), s.subtasks[taskID]...)
}

func (s *Store) SetCompletions(list []domain.Completion) {
	s.mu.Lock()
	s.completions = append([]domain.Completion(nil), list...)
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeCompletions})
}

// UpsertCompletion 按 ID 替换或追加
func (s *Store) UpsertCompletion(c domain.Completion) {
	s.mu.Lock()
	replaced := false
	for i := range s.completions {
		if s.completions[i].ID == c.ID {
			s.completions[i] = c
			replaced = true
			break
		}
	}
	if !replaced {
		s.completions = append(s.completions, c)
	}
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeCompletions, ID: c.ID})
}

func (s *Store) Completions() []domain.Completion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Completion(nil), s.completions...)
}

func (s *Store) SetUser(u domain.User) {
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeUser, ID: u.ID})
}

func (s *Store) User(id string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}
