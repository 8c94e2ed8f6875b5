package config

import (
	"net/url"
	"strings"
	"time"
)

// OpenAIConfig 上游大模型接口配置
type OpenAIConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`         // API密钥
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`       // 接口地址，不带末尾斜杠
	Model       string        `yaml:"model" mapstructure:"model"`             // 模型名称
	HTTPSProxy  string        `yaml:"https_proxy" mapstructure:"https_proxy"` // 可选的转发代理
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`         // 建立连接及等待响应头的超时时间
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"` // 默认温度，0是合法值
}

// Validate 验证上游配置
func (c *OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return ErrEmptyAPIKey
	}
	if c.BaseURL == "" {
		return ErrEmptyBaseURL
	}
	if c.Model == "" {
		return ErrEmptyModel
	}
	if c.HTTPSProxy != "" {
		if _, err := url.Parse(c.HTTPSProxy); err != nil {
			return ErrInvalidProxy
		}
	}
	return nil
}

// normalizeBaseURL 去掉首尾空白和末尾的斜杠
func normalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
