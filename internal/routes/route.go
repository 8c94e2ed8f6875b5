package routes

import (
	"ai_chat_mini/internal/config"
	"ai_chat_mini/internal/handlers"
	"ai_chat_mini/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, cfg *config.Config, generate *handlers.GenerateHandler, ocr *handlers.OCRHandler) {
	r.GET("/health", handlers.Health)

	api := r.Group("/api")
	if cfg.Server.RateLimit > 0 {
		api.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	}

	// 注册补全路由
	generate.RegisterRoutes(api)

	// 注册OCR路由
	ocr.RegisterRoutes(api)
}
