package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-duel/internal/domain"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeConn 是服务端一条打开的事件流
type fakeConn struct {
	frames chan string
	closed chan struct{}
	gone   chan struct{}
	once   sync.Once
}

func (c *fakeConn) send(frame string) { c.frames <- frame }

// hangup 由服务端结束响应
func (c *fakeConn) hangup() { c.once.Do(func() { close(c.closed) }) }

// fakeServer 模拟 REST 读取接口和房间事件流
type fakeServer struct {
	mu           sync.Mutex
	room         domain.Room
	tasks        []domain.Task
	subtasks     map[string][]domain.Subtask
	completions  []domain.Completion
	users        map[string]domain.User
	streamStatus int
	hits         map[string]int
	lastAuth     string
	openStreams  int
	// taskGate 非空时，任务列表请求阻塞到它被关闭
	taskGate    chan struct{}
	taskEntered chan struct{}

	conns chan *fakeConn
	srv   *httptest.Server
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fakeServer{
		room: domain.Room{ID: "R1", Name: "Duel", Code: "ABC123", OwnerID: "U1", Participants: []domain.User{
			{ID: "U2", Name: "Bob"}, {ID: "U1", Name: "Alice"},
		}},
		subtasks: map[string][]domain.Subtask{},
		users:    map[string]domain.User{},
		hits:     map[string]int{},
		conns:    make(chan *fakeConn, 8),
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		f.mu.Lock()
		f.hits[c.FullPath()]++
		f.lastAuth = c.GetHeader("Authorization")
		f.mu.Unlock()
		c.Next()
	})
	r.GET("/api/rooms/:id", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c.Param("id") != f.room.ID {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found."})
			return
		}
		c.JSON(http.StatusOK, f.room)
	})
	r.GET("/api/tasks/room/:id", func(c *gin.Context) {
		f.mu.Lock()
		gate, entered := f.taskGate, f.taskEntered
		f.mu.Unlock()
		if gate != nil {
			entered <- struct{}{}
			<-gate
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		c.JSON(http.StatusOK, append([]domain.Task{}, f.tasks...))
	})
	r.GET("/api/subtasks/task/:id", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		c.JSON(http.StatusOK, append([]domain.Subtask{}, f.subtasks[c.Param("id")]...))
	})
	r.GET("/api/completion/user/:userId", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := []domain.Completion{}
		for _, cp := range f.completions {
			if cp.UserID != c.Param("userId") {
				continue
			}
			if sid := c.Query("subtaskId"); sid != "" && cp.SubtaskID != sid {
				continue
			}
			out = append(out, cp)
		}
		c.JSON(http.StatusOK, out)
	})
	r.GET("/api/completion/room/:id", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		c.JSON(http.StatusOK, append([]domain.Completion{}, f.completions...))
	})
	r.GET("/api/users/:id", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		u, ok := f.users[c.Param("id")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found."})
			return
		}
		c.JSON(http.StatusOK, u)
	})
	r.GET("/api/events/:roomId", f.serveStream)

	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) serveStream(c *gin.Context) {
	f.mu.Lock()
	status := f.streamStatus
	f.mu.Unlock()
	if status != 0 {
		c.JSON(status, gin.H{"error": "Internal server error."})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Status(http.StatusOK)
	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"message\":\"Connected to room %s\"}\n\n", c.Param("roomId"))
	c.Writer.Flush()

	conn := &fakeConn{frames: make(chan string, 16), closed: make(chan struct{}), gone: make(chan struct{})}
	f.update(func(f *fakeServer) { f.openStreams++ })
	defer func() {
		f.update(func(f *fakeServer) { f.openStreams-- })
		close(conn.gone)
	}()
	select {
	case f.conns <- conn:
	case <-c.Request.Context().Done():
		return
	}
	for {
		select {
		case frame := <-conn.frames:
			_, _ = c.Writer.WriteString(frame)
			c.Writer.Flush()
		case <-conn.closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (f *fakeServer) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-f.conns:
		return c
	case <-time.After(waitFor):
		t.Fatal("no stream connection opened")
		return nil
	}
}

func (f *fakeServer) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeServer) streamCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openStreams
}

func (f *fakeServer) update(fn func(f *fakeServer)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func eventFrame(t *testing.T, kind string, payload any) string {
	t.Helper()
	data, err := json.Marshal(domain.RoomEvent{Type: kind, Data: payload, Timestamp: time.Now().UnixMilli()})
	require.NoError(t, err)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", kind, data)
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func newTestReconciler(f *fakeServer, opts Options) (*Reconciler, *Store) {
	api := NewAPIClient(f.srv.URL, f.srv.Client())
	api.SetToken("tok-1")
	store := NewStore("U1")
	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = time.Millisecond
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = 5 * time.Millisecond
	}
	opts.Logger = testLogger()
	return New(api, store, opts), store
}

func connectAndWait(t *testing.T, f *fakeServer, r *Reconciler, roomID string) *fakeConn {
	t.Helper()
	r.Connect(context.Background(), roomID)
	t.Cleanup(r.Disconnect)
	conn := f.nextConn(t)
	require.Eventually(t, func() bool { return r.State() == StateConnected }, waitFor, tick)
	return conn
}

func TestSSEScanner_ParsesFrames(t *testing.T) {
	input := ": ping\n\n" +
		"event: task_created\ndata: {\"a\":1}\n\n" +
		"event: multi\r\ndata: line1\r\ndata: line2\r\nid: 7\r\n\r\n" +
		"data:nospace\n\n" +
		"event: tail\ndata: last"
	s := NewSSEScanner(strings.NewReader(input))

	var got []SSEEvent
	for s.Next() {
		got = append(got, s.Event())
	}
	require.NoError(t, s.Err())
	assert.Equal(t, []SSEEvent{
		{Type: "task_created", Data: `{"a":1}`},
		{Type: "multi", Data: "line1\nline2"},
		{Type: "", Data: "nospace"},
		{Type: "tail", Data: "last"},
	}, got)
}

func TestOpenEventStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/denied", func(c *gin.Context) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required."})
	})
	r.GET("/plain", func(c *gin.Context) {
		c.String(http.StatusOK, "hello")
	})
	r.GET("/noack", func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.String(http.StatusOK, "event: task_created\ndata: {}\n\n")
	})
	r.GET("/ok", func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream; charset=utf-8")
		c.String(http.StatusOK, "event: connected\ndata: {\"message\":\"Connected to room R1\"}\n\nevent: user_left\ndata: {}\n\n")
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	open := func(path string) (*EventStream, error) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		return OpenEventStream(context.Background(), srv.Client(), req)
	}

	_, err := open("/denied")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Authentication required.", apiErr.Message)

	_, err = open("/plain")
	assert.ErrorIs(t, err, ErrNotEventStream)

	_, err = open("/noack")
	assert.ErrorIs(t, err, ErrNoAck)

	s, err := open("/ok")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "Connected to room R1", s.Ack)
	ev, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, domain.EventUserLeft, ev.Type)
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReconciler_ProgressEventPatchesCompletion(t *testing.T) {
	f := newFakeServer(t)
	f.update(func(f *fakeServer) {
		f.completions = []domain.Completion{
			{ID: "C1", UserID: "U2", SubtaskID: "S1", Progress: 0.2},
			{ID: "C2", UserID: "U2", SubtaskID: "S2", Progress: 1},
		}
	})
	r, store := newTestReconciler(f, Options{})
	store.SetCurrentRoom(f.room)

	conn := connectAndWait(t, f, r, "R1")
	before := time.Now()
	conn.send(eventFrame(t, domain.EventSubtaskProgressUpdated, domain.SubtaskProgressPayload{
		SubtaskID: "S1", UserID: "U2", UserName: "Bob", Progress: 0.5,
	}))

	require.Eventually(t, func() bool { return len(store.Completions()) == 1 }, waitFor, tick)
	c := store.Completions()[0]
	assert.Equal(t, "C1", c.ID)
	assert.Equal(t, 0.5, c.Progress)
	assert.False(t, c.UpdatedAt.Before(before))
	f.update(func(f *fakeServer) { assert.Equal(t, "Bearer tok-1", f.lastAuth) })
}

func TestReconciler_ParticipantEvents(t *testing.T) {
	f := newFakeServer(t)
	f.update(func(f *fakeServer) {
		f.users["U3"] = domain.User{ID: "U3", Name: "Carol", Email: "carol@example.com"}
	})
	r, store := newTestReconciler(f, Options{})
	store.SetCurrentRoom(f.room)
	conn := connectAndWait(t, f, r, "R1")

	conn.send(eventFrame(t, domain.EventUserJoined, domain.ParticipantPayload{UserID: "U3", UserName: "Carol"}))
	require.Eventually(t, func() bool {
		room, _ := store.Room()
		return room.HasParticipant("U3")
	}, waitFor, tick)
	u, ok := store.User("U3")
	require.True(t, ok)
	assert.Equal(t, "carol@example.com", u.Email)

	// 资料拉取失败时仍以事件中的名字加入
	conn.send(eventFrame(t, domain.EventUserJoined, domain.ParticipantPayload{UserID: "U9", UserName: "Ghost"}))
	require.Eventually(t, func() bool {
		room, _ := store.Room()
		return room.HasParticipant("U9")
	}, waitFor, tick)

	conn.send(eventFrame(t, domain.EventUserLeft, domain.ParticipantPayload{UserID: "U2", UserName: "Bob"}))
	require.Eventually(t, func() bool {
		room, _ := store.Room()
		return !room.HasParticipant("U2")
	}, waitFor, tick)

	room, _ := store.Room()
	ids := make([]string, 0, len(room.Participants))
	for _, p := range room.Participants {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"U1", "U3", "U9"}, ids)
}

func TestReconciler_CreationEventsRefetch(t *testing.T) {
	f := newFakeServer(t)
	r, store := newTestReconciler(f, Options{})
	store.SetCurrentRoom(f.room)
	conn := connectAndWait(t, f, r, "R1")

	f.update(func(f *fakeServer) {
		f.tasks = []domain.Task{{ID: "T1", Title: "Read", RoomID: "R1"}}
	})
	conn.send(eventFrame(t, domain.EventTaskCreated, domain.TaskCreatedPayload{TaskID: "T1", TaskTitle: "Read"}))
	require.Eventually(t, func() bool { return len(store.Tasks()) == 1 }, waitFor, tick)

	f.update(func(f *fakeServer) {
		f.subtasks["T1"] = []domain.Subtask{{ID: "S1", TaskID: "T1", Title: "Ch 1"}, {ID: "S2", TaskID: "T1", Title: "Ch 2", Order: 1}}
	})
	conn.send(eventFrame(t, domain.EventSubtaskCreated, domain.SubtaskCreatedPayload{TaskID: "T1", SubtasksCount: 2}))
	require.Eventually(t, func() bool { return len(store.Subtasks("T1")) == 2 }, waitFor, tick)
	assert.Empty(t, store.Subtasks("T2"))
}

func TestReconciler_Handle_IgnoresOtherRoomsAndUnknownKinds(t *testing.T) {
	f := newFakeServer(t)
	r, store := newTestReconciler(f, Options{})
	store.SetCurrentRoom(domain.Room{ID: "R2"})

	var changes []Change
	store.OnChange(func(c Change) { changes = append(changes, c) })

	r.Handle("R1", SSEEvent{Type: domain.EventTaskCreated, Data: `{"type":"task_created","data":{"taskId":"T1"},"timestamp":1}`})
	assert.Zero(t, f.hitCount("/api/tasks/room/:id"))

	r.Handle("R2", SSEEvent{Type: "confetti", Data: `{"type":"confetti","data":{},"timestamp":1}`})
	r.Handle("R2", SSEEvent{Type: domain.EventUserLeft, Data: `not json`})
	r.Handle("R2", SSEEvent{Type: domain.EventConnected, Data: `{"message":"hi"}`})
	assert.Empty(t, changes)
}

func TestReconciler_ReconnectResyncs(t *testing.T) {
	f := newFakeServer(t)
	r, store := newTestReconciler(f, Options{})
	store.SetCurrentRoom(f.room)
	conn := connectAndWait(t, f, r, "R1")
	assert.Zero(t, f.hitCount("/api/rooms/:id"))

	// 断线期间产生的变化只能靠重新同步补上
	f.update(func(f *fakeServer) {
		f.tasks = []domain.Task{{ID: "T1", Title: "Read", RoomID: "R1"}}
		f.subtasks["T1"] = []domain.Subtask{{ID: "S1", TaskID: "T1"}}
		f.completions = []domain.Completion{{ID: "C1", UserID: "U2", SubtaskID: "S1", Progress: 1}}
	})
	conn.hangup()

	f.nextConn(t)
	require.Eventually(t, func() bool { return len(store.Completions()) == 1 }, waitFor, tick)
	assert.Equal(t, StateConnected, r.State())
	assert.Equal(t, 1, f.hitCount("/api/rooms/:id"))
	assert.Len(t, store.Tasks(), 1)
	assert.Len(t, store.Subtasks("T1"), 1)
}

func TestReconciler_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFakeServer(t)
	f.update(func(f *fakeServer) { f.streamStatus = http.StatusInternalServerError })
	r, _ := newTestReconciler(f, Options{MaxAttempts: 2})

	r.Connect(context.Background(), "R1")
	defer r.Disconnect()

	require.Eventually(t, func() bool {
		return f.hitCount("/api/events/:roomId") == 3 && r.State() == StateDisconnected
	}, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, f.hitCount("/api/events/:roomId"))
}

func TestReconciler_DisconnectIsIdempotent(t *testing.T) {
	f := newFakeServer(t)
	r, _ := newTestReconciler(f, Options{})

	assert.NotPanics(t, r.Disconnect)
	assert.Equal(t, StateDisconnected, r.State())

	conn := connectAndWait(t, f, r, "R1")
	r.Disconnect()
	r.Disconnect()
	assert.Equal(t, StateDisconnected, r.State())

	select {
	case <-conn.gone:
	case <-time.After(waitFor):
		t.Fatal("server stream should end after disconnect")
	}
}

func TestReconciler_DisconnectDoesNotWaitForFetch(t *testing.T) {
	f := newFakeServer(t)
	gate := make(chan struct{})
	defer close(gate)
	f.update(func(f *fakeServer) {
		f.taskGate = gate
		f.taskEntered = make(chan struct{}, 1)
	})
	r, store := newTestReconciler(f, Options{FetchTimeout: 5 * time.Second})
	store.SetCurrentRoom(f.room)
	conn := connectAndWait(t, f, r, "R1")

	conn.send(eventFrame(t, domain.EventTaskCreated, domain.TaskCreatedPayload{TaskID: "T1", TaskTitle: "Read"}))
	select {
	case <-f.taskEntered:
	case <-time.After(waitFor):
		t.Fatal("task list was never fetched")
	}

	start := time.Now()
	r.Disconnect()
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, StateDisconnected, r.State())

	// 换房间同样不等待进行中的拉取
	start = time.Now()
	r.Connect(context.Background(), "R2")
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	f.nextConn(t)
	require.Eventually(t, func() bool { return r.State() == StateConnected }, waitFor, tick)
	r.Disconnect()
}

func TestReconciler_ConcurrentConnectKeepsOneSubscription(t *testing.T) {
	f := newFakeServer(t)
	r, _ := newTestReconciler(f, Options{})
	t.Cleanup(r.Disconnect)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Connect(context.Background(), "R1")
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return r.State() == StateConnected && f.streamCount() == 1
	}, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.streamCount())

	r.Disconnect()
	require.Eventually(t, func() bool { return f.streamCount() == 0 }, waitFor, tick)
}

func TestReconciler_ConnectReplacesSubscription(t *testing.T) {
	f := newFakeServer(t)
	r, _ := newTestReconciler(f, Options{})

	first := connectAndWait(t, f, r, "R1")
	second := connectAndWait(t, f, r, "R2")
	assert.Equal(t, "R2", r.RoomID())

	select {
	case <-first.gone:
	case <-time.After(waitFor):
		t.Fatal("previous stream should be closed")
	}
	select {
	case <-second.gone:
		t.Fatal("current stream should stay open")
	default:
	}
}

func TestReconciler_Backoff(t *testing.T) {
	r := New(NewAPIClient("http://localhost", nil), NewStore(""), Options{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Logger:         testLogger(),
	})
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{40, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestStore(t *testing.T) {
	s := NewStore("U1")
	var kinds []ChangeKind
	s.OnChange(func(c Change) { kinds = append(kinds, c.Kind) })

	assert.False(t, s.AddParticipant(domain.User{ID: "U5"}), "no room yet")

	s.SetCurrentRoom(domain.Room{ID: "R1", Participants: []domain.User{{ID: "U3"}, {ID: "U2"}, {ID: "U1"}}})
	room, ok := s.Room()
	require.True(t, ok)
	assert.Equal(t, "U1", room.Participants[0].ID)
	assert.Equal(t, "U3", room.Participants[1].ID)
	assert.Equal(t, "U2", room.Participants[2].ID)

	assert.False(t, s.AddParticipant(domain.User{ID: "U2"}))
	assert.True(t, s.AddParticipant(domain.User{ID: "U4"}))
	assert.False(t, s.RemoveParticipant("U9"))
	assert.True(t, s.RemoveParticipant("U3"))

	s.SetCompletions([]domain.Completion{{ID: "C1", Progress: 0.1}})
	s.UpsertCompletion(domain.Completion{ID: "C1", Progress: 0.7})
	s.UpsertCompletion(domain.Completion{ID: "C2", Progress: 1})
	list := s.Completions()
	require.Len(t, list, 2)
	assert.Equal(t, 0.7, list[0].Progress)

	// 返回的是副本
	list[0].Progress = 0
	assert.Equal(t, 0.7, s.Completions()[0].Progress)

	s.ClearCurrentRoom()
	assert.Equal(t, "", s.CurrentRoomID())
	assert.Empty(t, s.Completions())
	assert.Equal(t, []ChangeKind{
		ChangeRoom, ChangeParticipants, ChangeParticipants,
		ChangeCompletions, ChangeCompletions, ChangeCompletions, ChangeCleared,
	}, kinds)
}
