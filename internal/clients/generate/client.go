// Package generate 是 /api/generate 的客户端，返回服务端下发的纯文本字节流
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ai_chat_mini/internal/models"
)

// 传输方式
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
)

// Config 客户端配置
type Config struct {
	BaseURL   string // 服务地址，例如 http://localhost:3000
	Transport string // http 或 ws，默认 http
}

// APIError 服务端返回的结构化错误
type APIError struct {
	Status int
	models.ErrorMessage
}

// Error 实现error接口
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("服务端返回错误 %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("服务端返回错误 %d: %s", e.Status, e.Message)
}

// Client 补全接口客户端
type Client struct {
	config Config
	client *http.Client
}

// NewClient 创建客户端
func NewClient(config Config) *Client {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Transport == "" {
		config.Transport = TransportHTTP
	}
	return &Client{
		config: config,
		client: &http.Client{},
	}
}

// Stream 发送补全请求。
// 成功时返回增量文本的字节流，调用方负责Close；ctx取消后读取会尽快返回错误。
// 服务端返回结构化错误时返回*APIError。
func (c *Client) Stream(ctx context.Context, req models.GenerateRequest) (io.ReadCloser, error) {
	if c.config.Transport == TransportWS {
		return c.streamWS(ctx, req)
	}
	return c.streamHTTP(ctx, req)
}

func (c *Client) streamHTTP(ctx context.Context, body models.GenerateRequest) (io.ReadCloser, error) {
	// 序列化请求体
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	// 创建请求
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// 发送请求
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	// 检查响应状态码
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp.Body, nil
}

// decodeAPIError 解析 {"error": {...}} 错误体
func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body models.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		apiErr.ErrorMessage = body.Error
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}
