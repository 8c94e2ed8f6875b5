// Package middleware 提供HTTP中间件
package middleware

import (
	"log"
	"net/http"

	"ai_chat_mini/internal/models"

	"github.com/gin-gonic/gin"
)

// Logger 请求日志中间件，健康检查不记录
func Logger() gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health"},
	})
}

// Recovery 恢复中间件，panic时返回统一的错误体
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Printf("处理请求 %s %s 时发生panic: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorMessage{Code: "internal_error", Message: "Internal server error."},
		})
	})
}

// CORS 跨域中间件。流式响应需要浏览器直接读取，所以放开来源。
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding")
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Setup 设置中间件
func Setup(r *gin.Engine) {
	r.Use(Logger(), Recovery(), CORS())
}
