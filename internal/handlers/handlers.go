package handlers

import (
	"log"
	"net/http"
	"time"

	"ai_chat_mini/internal/apperr"

	"github.com/gin-gonic/gin"
)

// Health 健康检查
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// writeError 以 {"error": {...}} 的形式返回错误
func writeError(c *gin.Context, e *apperr.Error) {
	if e.Kind == apperr.UpstreamFailure {
		log.Printf("请求失败: %v", e)
	}
	c.AbortWithStatusJSON(e.Status(), e.Response())
}
