package stream_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-duel/internal/domain"
	"task-duel/internal/handler/stream"
	"task-duel/internal/hub"
	"task-duel/internal/middleware"
	"task-duel/internal/service"
)

type fakeRooms map[string]bool

func (f fakeRooms) GetRoom(_ context.Context, roomID string) (*domain.Room, error) {
	if !f[roomID] {
		return nil, service.ErrRoomNotFound
	}
	return &domain.Room{ID: roomID}, nil
}

func newServer(t *testing.T, h *hub.Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler := stream.NewStreamHandler(h, fakeRooms{"R1": true}, time.Second)

	r := gin.New()
	r.Use(middleware.Language(), func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, "U1")
		c.Next()
	})
	r.GET("/api/events/:roomId", handler.ServeSSE)
	r.GET("/ws/room/:roomId", handler.ServeWS)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// readFrame 读取一个 SSE 帧 (直到空行)
func readFrame(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return event, data
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestServeSSE_StreamsRoomEvents(t *testing.T) {
	h := hub.NewHub(nil)
	srv := newServer(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/R1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	reader := bufio.NewReader(resp.Body)
	event, data := readFrame(t, reader)
	assert.Equal(t, domain.EventConnected, event)
	assert.JSONEq(t, `{"message":"Connected to room R1"}`, data)
	require.Equal(t, 1, h.SubscriberCount("R1"))

	h.Broadcast("R1", domain.EventTaskCreated, domain.RoomEvent{
		Type: domain.EventTaskCreated,
		Data: domain.TaskCreatedPayload{TaskID: "T1", TaskTitle: "Read"},
	})
	event, data = readFrame(t, reader)
	assert.Equal(t, domain.EventTaskCreated, event)
	assert.Contains(t, data, `"taskTitle":"Read"`)

	// 客户端断开后订阅被移除
	cancel()
	assert.Eventually(t, func() bool { return h.SubscriberCount("R1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeSSE_UnknownRoom(t *testing.T) {
	h := hub.NewHub(nil)
	srv := newServer(t, h)

	resp, err := http.Get(srv.URL + "/api/events/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, h.ActiveRooms())
}

func TestServeSSE_CloseRoomEndsResponse(t *testing.T) {
	h := hub.NewHub(nil)
	srv := newServer(t, h)

	resp, err := http.Get(srv.URL + "/api/events/R1")
	require.NoError(t, err)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	event, _ := readFrame(t, reader)
	require.Equal(t, domain.EventConnected, event)

	assert.Equal(t, 1, h.CloseRoom("R1"))
	_, err = reader.ReadString('\n')
	assert.Error(t, err, "stream should end after the room is closed")
}

func TestServeWS_StreamsRoomEvents(t *testing.T) {
	h := hub.NewHub(nil)
	srv := newServer(t, h)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/room/R1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, domain.EventConnected, msg.Event)
	assert.JSONEq(t, `{"message":"Connected to room R1"}`, string(msg.Data))

	h.Broadcast("R1", domain.EventUserJoined, domain.ParticipantPayload{UserID: "U2", UserName: "Bo"})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, domain.EventUserJoined, msg.Event)
	assert.JSONEq(t, `{"userId":"U2","userName":"Bo"}`, string(msg.Data))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.SubscriberCount("R1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
