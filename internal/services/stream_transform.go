package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"

	"ai_chat_mini/internal/apperr"
)

const (
	maxErrorBody = 4 << 10  // 读取上游错误体的上限
	maxEventLine = 1 << 20  // 单行事件的上限
	maxJSONBody  = 4 << 20  // 非流式响应体的上限
	doneMarker   = "[DONE]" // 流结束标记
)

// streamEvent 上游流事件中我们关心的字段
type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *upstreamError `json:"error,omitempty"`
}

// content 返回首个choice中的增量文本
func (e *streamEvent) content() string {
	if len(e.Choices) == 0 {
		return ""
	}
	return e.Choices[0].Delta.Content
}

// upstreamError 上游错误体 {"error": {...}}
type upstreamError struct {
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Code    json.RawMessage `json:"code"`
}

// code 上游的code可能是字符串、数字或null
func (e *upstreamError) code() string {
	raw := bytes.TrimSpace(e.Code)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return e.Type
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (e *upstreamError) toAppErr() *apperr.Error {
	return &apperr.Error{Kind: apperr.UpstreamFailure, Code: e.code(), Message: e.Message}
}

// Stream 上游响应转换后的纯文本片段流
type Stream struct {
	body   io.ReadCloser
	single *string // 非流式JSON响应的完整文本
}

// OpenStream 检查上游响应。上游失败时关闭Body并返回*apperr.Error，不开始流。
func OpenStream(resp *http.Response) (*Stream, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeUpstreamError(resp)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return &Stream{body: resp.Body}, nil
	}

	// 上游返回了单个JSON体而不是事件流
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamFailure, err)
	}
	var event streamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, &apperr.Error{Kind: apperr.UpstreamFailure, Code: "DecodeError", Message: fmt.Sprintf("解析上游响应失败: %v", err), Err: err}
	}
	if event.Error != nil {
		return nil, event.Error.toAppErr()
	}
	var text string
	if len(event.Choices) > 0 {
		text = event.Choices[0].Message.Content
	}
	return &Stream{single: &text}, nil
}

// decodeUpstreamError 解析上游的错误体，无法解析时使用原始文本
func decodeUpstreamError(resp *http.Response) *apperr.Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Error *upstreamError `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != nil {
		e := body.Error.toAppErr()
		if e.Code == "" {
			e.Code = http.StatusText(resp.StatusCode)
		}
		return e
	}

	message := strings.TrimSpace(string(data))
	if message == "" {
		message = resp.Status
	}
	return &apperr.Error{
		Kind:    apperr.UpstreamFailure,
		Code:    http.StatusText(resp.StatusCode),
		Message: message,
	}
}

// Pipe 逐行读取上游事件流，只把增量文本交给emit。
// emit直接写入下游连接，下游读得慢时会阻塞这里的读取循环。
// 无法解析的行记录日志后跳过；读到结束标记或上游EOF时返回nil。
func (s *Stream) Pipe(ctx context.Context, emit func(fragment string) error) error {
	if s.single != nil {
		if *s.single == "" {
			return nil
		}
		return emit(*s.single)
	}

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventLine)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		data, ok := eventData(line)
		if !ok {
			continue
		}
		if data == doneMarker {
			return nil
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			log.Printf("%s: 跳过无法解析的事件 %q: %v", apperr.DecodeFailure, truncate(data, 200), err)
			continue
		}
		if event.Error != nil {
			return event.Error.toAppErr()
		}

		text := event.content()
		if text == "" {
			continue
		}
		if err := emit(text); err != nil {
			return fmt.Errorf("写入下游失败: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return apperr.Wrap(apperr.UpstreamFailure, err)
	}
	return nil
}

// Close 关闭上游响应体
func (s *Stream) Close() error {
	if s.body == nil {
		return nil
	}
	return s.body.Close()
}

// eventData 取出 "data:" 行的内容，其它字段和注释行忽略
func eventData(line string) (string, bool) {
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	data := strings.TrimPrefix(line, "data:")
	data = strings.TrimPrefix(data, " ")
	if data == "" {
		return "", false
	}
	return data, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
