package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"ai_chat_mini/internal/clients/ocr"
	"ai_chat_mini/internal/clients/openai"
	"ai_chat_mini/internal/config"
	"ai_chat_mini/internal/handlers"
	"ai_chat_mini/internal/services"
)

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Server:    config.ServerConfig{RateLimit: 0.001, RateBurst: 1},
		OpenAI:    config.OpenAIConfig{BaseURL: "http://127.0.0.1:1", Model: "m", Timeout: time.Second},
		WebSocket: config.WebSocketConfig{WriteWait: time.Second},
	}
	client, err := openai.NewClient(openai.Config{BaseURL: cfg.OpenAI.BaseURL, Model: cfg.OpenAI.Model})
	assert.NoError(t, err)

	r := gin.New()
	RegisterRoutes(r, cfg,
		handlers.NewGenerateHandler(services.NewGenerateService(cfg, client), cfg.WebSocket),
		handlers.NewOCRHandler(ocr.NewClient(ocr.Config{URL: "http://127.0.0.1:1"})),
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// 缺少消息的请求直接返回400，第二次被限流
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// health不受限流影响
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
