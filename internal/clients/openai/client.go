// Package openai 提供上游 chat completions 接口的客户端
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"ai_chat_mini/internal/models"
)

// Config 上游客户端配置
type Config struct {
	BaseURL    string        // 接口地址，不带末尾斜杠
	APIKey     string        // API密钥
	Model      string        // 使用的模型名称
	HTTPSProxy string        // 可选的转发代理
	Timeout    time.Duration // 连接和等待响应头的超时，不限制流式读取的总时长
}

// Client 上游客户端
type Client struct {
	config Config
	client *http.Client
}

// ChatRequest 上游请求体
type ChatRequest struct {
	Model       string               `json:"model"`       // 模型名称
	Messages    []models.ChatMessage `json:"messages"`    // 对话消息
	Temperature float64              `json:"temperature"` // 温度参数
	Stream      bool                 `json:"stream"`      // 是否流式输出
}

// NewClient 创建上游客户端
func NewClient(config Config) (*Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   config.Timeout,
		ResponseHeaderTimeout: config.Timeout,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	if config.HTTPSProxy != "" {
		proxyURL, err := url.Parse(config.HTTPSProxy)
		if err != nil {
			return nil, fmt.Errorf("解析代理地址失败: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Client{
		config: config,
		client: &http.Client{Transport: transport},
	}, nil
}

// NewPayload 构建上游请求体
func (c *Client) NewPayload(messages []models.ChatMessage, temperature float64) ChatRequest {
	return ChatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: temperature,
		Stream:      true,
	}
}

// ChatCompletionStream 发起流式补全请求。
// 只有网络层失败才返回错误；上游返回的任何HTTP响应都原样交给调用方，由调用方关闭Body。
func (c *Client) ChatCompletionStream(ctx context.Context, messages []models.ChatMessage, temperature float64) (*http.Response, error) {
	// 序列化请求体
	jsonData, err := json.Marshal(c.NewPayload(messages, temperature))
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	// 构建请求URL
	endpoint := fmt.Sprintf("%s/v1/chat/completions", c.config.BaseURL)

	// 创建请求
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	// 设置请求头
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	// 发送请求
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
