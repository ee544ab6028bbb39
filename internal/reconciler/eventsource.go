package reconciler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"task-duel/internal/domain"
)

// SSEEvent 是从事件流中解析出的一帧
type SSEEvent struct {
	Type string
	Data string
}

// SSEScanner 按 server-sent events 格式读取事件：
// 空行分隔事件，"data:" 可出现多行 (以换行拼接)，":" 开头的注释行和未知字段被忽略。
type SSEScanner struct {
	reader  *bufio.Reader
	current SSEEvent
	err     error
}

func NewSSEScanner(r io.Reader) *SSEScanner {
	return &SSEScanner{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next 前进到下一个事件。流结束或出错时返回 false，之后用 Err 区分两者。
func (s *SSEScanner) Next() bool {
	s.current = SSEEvent{}
	if s.err != nil {
		return false
	}

	var dataLines []string
	var eventType string
	hasData := false

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) && hasData {
				// 最后一个事件缺少结尾空行
				s.current = SSEEvent{Type: eventType, Data: strings.Join(dataLines, "\n")}
				s.err = io.EOF
				return true
			}
			s.err = err
			return false
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				s.current = SSEEvent{Type: eventType, Data: strings.Join(dataLines, "\n")}
				return true
			}
			eventType = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			field, value = line, ""
		} else {
			value = strings.TrimPrefix(value, " ")
		}
		switch field {
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "event":
			eventType = value
		}
	}
}

func (s *SSEScanner) Event() SSEEvent { return s.current }

// Err 返回扫描中遇到的错误，正常 EOF 时返回 nil
func (s *SSEScanner) Err() error {
	if errors.Is(s.err, io.EOF) {
		return nil
	}
	return s.err
}

// ErrNotEventStream 表示响应不是事件流
var ErrNotEventStream = errors.New("reconciler: response is not an event stream")

// ErrNoAck 表示事件流的第一帧不是 connected
var ErrNoAck = errors.New("reconciler: stream did not acknowledge the subscription")

// EventStream 是一个已经确认打开的房间事件流
type EventStream struct {
	body    io.ReadCloser
	scanner *SSEScanner
	// Ack 是 connected 帧中的消息
	Ack string
}

// OpenEventStream 发出订阅请求，检查状态码和 Content-Type，并读取 connected 确认帧。
func OpenEventStream(ctx context.Context, client *http.Client, req *http.Request) (*EventStream, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("reconciler: open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		return nil, fmt.Errorf("%w (content type %q)", ErrNotEventStream, ct)
	}

	s := &EventStream{body: resp.Body, scanner: NewSSEScanner(resp.Body)}
	ev, err := s.Next()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoAck, err)
	}
	if ev.Type != domain.EventConnected {
		s.Close()
		return nil, fmt.Errorf("%w: first event %q", ErrNoAck, ev.Type)
	}
	var ack domain.ConnectedMessage
	if err := json.Unmarshal([]byte(ev.Data), &ack); err == nil {
		s.Ack = ack.Message
	}
	return s, nil
}

// Next 阻塞到下一个事件；流正常结束时返回 io.EOF
func (s *EventStream) Next() (SSEEvent, error) {
	if s.scanner.Next() {
		return s.scanner.Event(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return SSEEvent{}, err
	}
	return SSEEvent{}, io.EOF
}

func (s *EventStream) Close() error {
	return s.body.Close()
}
