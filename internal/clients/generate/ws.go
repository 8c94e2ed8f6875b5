package generate

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"ai_chat_mini/internal/models"

	"github.com/gorilla/websocket"
)

// wsURL 把 http(s) 地址转换为 ws(s) 地址
func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// streamWS 通过WebSocket发送请求，把delta帧拼接为字节流
func (c *Client) streamWS(ctx context.Context, req models.GenerateRequest) (io.ReadCloser, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL(c.config.BaseURL)+"/api/generate/ws", nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusSwitchingProtocols {
				return nil, decodeAPIError(resp)
			}
		}
		return nil, err
	}

	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}

	// 同步读取第一帧，错误帧在开始读取前返回
	var first models.WSFrame
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if first.Type == models.WSFrameError {
		conn.Close()
		return nil, frameError(first)
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})

	// ctx取消时关闭连接，阻塞中的读取随之返回
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
			pw.CloseWithError(ctx.Err())
		case <-done:
		}
	}()

	go func() {
		defer close(done)
		defer conn.Close()

		frame := first
		for {
			switch frame.Type {
			case models.WSFrameDone:
				pw.Close()
				return
			case models.WSFrameError:
				pw.CloseWithError(frameError(frame))
				return
			case models.WSFrameDelta:
				// 写入会阻塞到消费方读走为止
				if _, err := io.WriteString(pw, frame.Content); err != nil {
					return
				}
			default:
				log.Printf("忽略未知的WebSocket帧类型: %s", frame.Type)
			}

			frame = models.WSFrame{}
			if err := conn.ReadJSON(&frame); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					pw.Close()
				} else {
					pw.CloseWithError(err)
				}
				return
			}
		}
	}()

	return pr, nil
}

func frameError(frame models.WSFrame) *APIError {
	apiErr := &APIError{Status: frame.Status}
	if frame.Error != nil {
		apiErr.ErrorMessage = *frame.Error
	}
	return apiErr
}
