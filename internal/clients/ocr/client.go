// Package ocr 封装第三方手写识别服务
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config OCR客户端配置
type Config struct {
	URL     string        // 识别服务地址
	AppCode string        // 授权码
	Timeout time.Duration // 请求超时
}

// Client OCR客户端
type Client struct {
	config Config
	client *http.Client
}

// recognizeRequest 识别服务请求体
type recognizeRequest struct {
	Img      string `json:"img"`
	Prob     bool   `json:"prob"`
	CharInfo bool   `json:"charInfo"`
	Rotate   bool   `json:"rotate"`
	Table    bool   `json:"table"`
	SortPage bool   `json:"sortPage"`
}

// NewClient 创建OCR客户端
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Recognize 识别图片，返回服务商的原始JSON
func (c *Client) Recognize(ctx context.Context, img string) (json.RawMessage, error) {
	// 序列化请求体
	jsonData, err := json.Marshal(recognizeRequest{Img: img})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	// 创建请求
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	// 设置请求头
	req.Header.Set("Authorization", "APPCODE "+c.config.AppCode)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	// 发送请求
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	// 检查响应状态码
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("服务器返回错误: %d %s", resp.StatusCode, string(body))
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("解析响应失败: 不是合法的JSON")
	}
	return json.RawMessage(body), nil
}
