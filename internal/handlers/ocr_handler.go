package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"ai_chat_mini/internal/models"

	"github.com/gin-gonic/gin"
)

// Recognizer 图片识别接口
type Recognizer interface {
	Recognize(ctx context.Context, img string) (json.RawMessage, error)
}

// OCRHandler 手写识别处理器
type OCRHandler struct {
	recognizer Recognizer
}

// NewOCRHandler 创建手写识别处理器
func NewOCRHandler(recognizer Recognizer) *OCRHandler {
	return &OCRHandler{recognizer: recognizer}
}

// Recognize 处理 POST /api/ocr，成功时原样返回服务商的JSON
func (h *OCRHandler) Recognize(c *gin.Context) {
	var req models.OCRRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Img == "" {
		c.JSON(http.StatusBadRequest, models.OCRErrorResponse{Error: "No image."})
		return
	}

	data, err := h.recognizer.Recognize(c.Request.Context(), req.Img)
	if err != nil {
		log.Printf("识别图片失败: %v", err)
		c.JSON(http.StatusInternalServerError, models.OCRErrorResponse{Error: "Fetch error"})
		return
	}

	c.Data(http.StatusOK, "application/json", data)
}

// RegisterRoutes 注册路由
func (h *OCRHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/ocr", h.Recognize)
}
