package reconciler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"task-duel/internal/domain"
)

// APIError 是服务端返回的非 2xx 响应
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}
	return &APIError{Status: resp.StatusCode, Message: body.Error}
}

// AuthResponse 是登录或创建游客的返回
type AuthResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsGuest  bool   `json:"isGuest"`
	Token    string `json:"token"`
	Password string `json:"password,omitempty"`
}

// APIClient 是 REST 接口的类型化读取客户端，请求带 Bearer token
type APIClient struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewAPIClient 创建客户端。baseURL 形如 http://localhost:8080，httpClient 为 nil 时使用默认客户端。
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &APIClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *APIClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *APIClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// HTTPClient 返回底层的 http.Client，事件流复用它
func (c *APIClient) HTTPClient() *http.Client { return c.http }

// Login 登录并保存 token
func (c *APIClient) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var res AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Guest 创建游客账号并保存 token
func (c *APIClient) Guest(ctx context.Context, name string) (*AuthResponse, error) {
	var res AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/guest", map[string]string{"name": name}, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

func (c *APIClient) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *APIClient) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	var r domain.Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// JoinRoom 把当前用户加入房间
func (c *APIClient) JoinRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	var r domain.Room
	if err := c.do(ctx, http.MethodPost, "/api/rooms/"+url.PathEscape(roomID)+"/participants", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *APIClient) GetRoomTasks(ctx context.Context, roomID string) ([]domain.Task, error) {
	var tasks []domain.Task
	err := c.do(ctx, http.MethodGet, "/api/tasks/room/"+url.PathEscape(roomID), nil, &tasks)
	return tasks, err
}

func (c *APIClient) GetTaskSubtasks(ctx context.Context, taskID string) ([]domain.Subtask, error) {
	var subtasks []domain.Subtask
	err := c.do(ctx, http.MethodGet, "/api/subtasks/task/"+url.PathEscape(taskID), nil, &subtasks)
	return subtasks, err
}

// GetUserCompletions 返回用户的完成记录，subtaskID 非空时只返回该子任务的
func (c *APIClient) GetUserCompletions(ctx context.Context, userID, subtaskID string) ([]domain.Completion, error) {
	path := "/api/completion/user/" + url.PathEscape(userID)
	if subtaskID != "" {
		path += "?subtaskId=" + url.QueryEscape(subtaskID)
	}
	var list []domain.Completion
	err := c.do(ctx, http.MethodGet, path, nil, &list)
	return list, err
}

func (c *APIClient) GetRoomCompletions(ctx context.Context, roomID string) ([]domain.Completion, error) {
	var list []domain.Completion
	err := c.do(ctx, http.MethodGet, "/api/completion/room/"+url.PathEscape(roomID), nil, &list)
	return list, err
}

// NewStreamRequest 构造房间事件流的订阅请求
func (c *APIClient) NewStreamRequest(ctx context.Context, roomID string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/events/"+url.PathEscape(roomID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if t := c.Token(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}
	return req, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("reconciler: marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("reconciler: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t := c.Token(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reconciler: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("reconciler: decode %s %s: %w", method, path, err)
	}
	return nil
}
