package services

import (
	"context"
	"log"
	"net/http"

	"ai_chat_mini/internal/apperr"
	"ai_chat_mini/internal/auth"
	"ai_chat_mini/internal/config"
	"ai_chat_mini/internal/models"
)

// Upstream 上游补全接口
type Upstream interface {
	ChatCompletionStream(ctx context.Context, messages []models.ChatMessage, temperature float64) (*http.Response, error)
}

// GenerateService 处理补全请求：校验、构建上游请求、转发并交给流转换
type GenerateService struct {
	auth        config.AuthConfig
	maxHistory  int
	temperature float64
	verifier    *auth.Verifier
	upstream    Upstream
}

// NewGenerateService 创建补全服务
func NewGenerateService(cfg *config.Config, upstream Upstream) *GenerateService {
	if !cfg.Auth.Production {
		log.Printf("非生产模式，已跳过请求签名校验")
	}
	return &GenerateService{
		auth:        cfg.Auth,
		maxHistory:  cfg.Chat.MaxHistoryMessages,
		temperature: cfg.OpenAI.Temperature,
		verifier:    auth.NewVerifier(cfg.Auth.SecretKey, cfg.Auth.SignatureMaxAge),
		upstream:    upstream,
	}
}

// Validate 按顺序校验请求：消息不能为空、站点密码、生产模式下的签名
func (s *GenerateService) Validate(req *models.GenerateRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return apperr.New(apperr.InvalidInput, "No input text.")
	}

	if !auth.CheckPassword(s.auth.SitePassword, req.Pass) {
		return apperr.New(apperr.Unauthorized, "Invalid password.")
	}

	if s.auth.Production {
		payload := auth.Payload{Timestamp: req.Time, LastMessageContent: req.LastContent()}
		if !s.verifier.Verify(payload, req.Sign) {
			return apperr.New(apperr.Unauthorized, "Invalid signature.")
		}
	}
	return nil
}

// Generate 校验请求并调用上游，成功时返回待转发的片段流，调用方负责Close
func (s *GenerateService) Generate(ctx context.Context, req *models.GenerateRequest) (*Stream, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	messages := TrimHistory(req.Messages, s.maxHistory)
	temperature := s.clampTemperature(req.Temperature)

	resp, err := s.upstream.ChatCompletionStream(ctx, messages, temperature)
	if err != nil {
		log.Printf("请求上游失败: %v", err)
		return nil, apperr.Wrap(apperr.UpstreamFailure, err)
	}

	stream, err := OpenStream(resp)
	if err != nil {
		log.Printf("上游返回错误: %v", err)
		return nil, err
	}
	return stream, nil
}

// clampTemperature 缺省使用配置值，并限制在[0,1]
func (s *GenerateService) clampTemperature(t *float64) float64 {
	if t == nil {
		return s.temperature
	}
	switch {
	case *t < 0:
		return 0
	case *t > 1:
		return 1
	}
	return *t
}

// TrimHistory 保留开头的system消息以及最后max条其它消息；max<=0时不截断
func TrimHistory(messages []models.ChatMessage, max int) []models.ChatMessage {
	if max <= 0 {
		return messages
	}

	var head []models.ChatMessage
	rest := messages
	if len(rest) > 0 && rest[0].Role == models.RoleSystem {
		head, rest = rest[:1], rest[1:]
	}
	if len(rest) <= max {
		return messages
	}

	out := make([]models.ChatMessage, 0, len(head)+max)
	out = append(out, head...)
	return append(out, rest[len(rest)-max:]...)
}
