package hub

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrStreamingUnsupported 表示 ResponseWriter 不支持 Flush。
var ErrStreamingUnsupported = errors.New("hub: response writer does not support streaming")

// SSEStream 把事件写成 server-sent events 帧。
type SSEStream struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	writeTimeout time.Duration
}

// NewSSEStream 写出事件流响应头并立即 flush。
// writeTimeout 为每次写入的截止时间，<=0 表示不设置。
func NewSSEStream(w http.ResponseWriter, writeTimeout time.Duration) (*SSEStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEStream{
		w:            w,
		rc:           http.NewResponseController(w),
		writeTimeout: writeTimeout,
	}, nil
}

// WriteEvent 写出 "event: <kind>\ndata: <json>\n\n"。
func (s *SSEStream) WriteEvent(event string, data []byte) error {
	return s.writeFrame(func() error {
		_, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
		return err
	})
}

// Ping 写出一个 SSE 注释行，客户端会忽略它。
func (s *SSEStream) Ping() error {
	return s.writeFrame(func() error {
		_, err := fmt.Fprint(s.w, ": ping\n\n")
		return err
	})
}

// Close 对 SSE 没有可释放的资源，响应由处理函数返回时结束。
func (s *SSEStream) Close() error { return nil }

func (s *SSEStream) writeFrame(write func() error) error {
	if s.writeTimeout > 0 {
		if err := s.rc.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return fmt.Errorf("hub: set sse write deadline: %w", err)
		}
		defer func() { _ = s.rc.SetWriteDeadline(time.Time{}) }()
	}
	if err := write(); err != nil {
		return fmt.Errorf("hub: write sse frame: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("hub: flush sse frame: %w", err)
	}
	return nil
}
