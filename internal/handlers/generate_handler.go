package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"ai_chat_mini/internal/apperr"
	"ai_chat_mini/internal/config"
	"ai_chat_mini/internal/models"
	"ai_chat_mini/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Generator 补全服务接口
type Generator interface {
	Generate(ctx context.Context, req *models.GenerateRequest) (*services.Stream, error)
}

// GenerateHandler 补全请求处理器
type GenerateHandler struct {
	generator Generator
	upgrader  websocket.Upgrader
	writeWait time.Duration
}

// NewGenerateHandler 创建补全请求处理器
func NewGenerateHandler(generator Generator, wsCfg config.WebSocketConfig) *GenerateHandler {
	return &GenerateHandler{
		generator: generator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   wsCfg.ReadBufferSize,
			WriteBufferSize:  wsCfg.WriteBufferSize,
		},
		writeWait: wsCfg.WriteWait,
	}
}

// Generate 处理 POST /api/generate，以纯文本分块返回增量内容
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Printf("解析请求体失败: %v", err)
		writeError(c, apperr.New(apperr.InvalidInput, "Invalid request body."))
		return
	}

	ctx := c.Request.Context()
	stream, err := h.generator.Generate(ctx, &req)
	if err != nil {
		writeError(c, apperr.From(err))
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	err = stream.Pipe(ctx, func(fragment string) error {
		if _, err := io.WriteString(c.Writer, fragment); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("转发流失败: %v", err)
	}
}

// GenerateWS 处理 GET /api/generate/ws。
// 客户端先发送一帧请求体，服务端逐帧返回增量内容，最后发送done或error帧并关闭连接。
func (h *GenerateHandler) GenerateWS(c *gin.Context) {
	// 升级HTTP连接为WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("升级WebSocket连接失败: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(4 << 20)

	var req models.GenerateRequest
	if err := conn.ReadJSON(&req); err != nil {
		log.Printf("读取WebSocket请求失败: %v", err)
		h.writeFrameError(conn, apperr.New(apperr.InvalidInput, "Invalid request body."))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// 客户端断开或发送关闭帧时取消上游请求
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	stream, err := h.generator.Generate(ctx, &req)
	if err != nil {
		h.writeFrameError(conn, apperr.From(err))
		return
	}
	defer stream.Close()

	err = stream.Pipe(ctx, func(fragment string) error {
		return h.writeFrame(conn, models.WSFrame{Type: models.WSFrameDelta, Content: fragment})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("转发流失败: %v", err)
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			h.writeFrameError(conn, appErr)
		}
		return
	}

	if err := h.writeFrame(conn, models.WSFrame{Type: models.WSFrameDone}); err != nil {
		log.Printf("发送结束帧失败: %v", err)
		return
	}
	h.closeNormal(conn)
}

// writeFrame 写入一帧JSON
func (h *GenerateHandler) writeFrame(conn *websocket.Conn, frame models.WSFrame) error {
	conn.SetWriteDeadline(time.Now().Add(h.writeWait))
	return conn.WriteJSON(frame)
}

// writeFrameError 写入错误帧并关闭连接
func (h *GenerateHandler) writeFrameError(conn *websocket.Conn, e *apperr.Error) {
	resp := e.Response()
	frame := models.WSFrame{Type: models.WSFrameError, Status: e.Status(), Error: &resp.Error}
	if err := h.writeFrame(conn, frame); err != nil {
		log.Printf("发送错误帧失败: %v", err)
		return
	}
	h.closeNormal(conn)
}

// closeNormal 发送正常关闭帧
func (h *GenerateHandler) closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeWait)); err != nil {
		log.Printf("发送关闭帧失败: %v", err)
	}
}

// RegisterRoutes 注册路由
func (h *GenerateHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/generate", h.Generate)
	r.GET("/generate/ws", h.GenerateWS)
}
