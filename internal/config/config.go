// Package config 提供配置加载和管理功能
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// 默认值
const (
	DefaultBaseURL            = "https://api.openai.com"
	DefaultModel              = "gpt-3.5-turbo"
	DefaultTemperature        = 0.6
	DefaultMaxHistoryMessages = 9
	DefaultSignatureMaxAge    = 5 * time.Minute
	DefaultOCRURL             = "https://shouxiegen.market.alicloudapi.com/ocrservice/shouxie"
)

// Config 应用程序配置结构，启动时加载一次，之后只读
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Chat      ChatConfig      `yaml:"chat" mapstructure:"chat"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig HTTP服务器配置
type ServerConfig struct {
	Host      string  `yaml:"host" mapstructure:"host"`             // 服务器监听地址
	Port      int     `yaml:"port" mapstructure:"port"`             // 服务器监听端口
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // 每个客户端每秒允许的请求数，0表示不限制
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"` // 突发请求数
}

// AuthConfig 访问控制配置
type AuthConfig struct {
	SitePassword    string        `yaml:"site_password" mapstructure:"site_password"`         // 站点密码，支持逗号分隔的多个密码
	SecretKey       string        `yaml:"secret_key" mapstructure:"secret_key"`               // 请求签名共享密钥
	SignatureMaxAge time.Duration `yaml:"signature_max_age" mapstructure:"signature_max_age"` // 签名时间戳允许的最大偏差
	Production      bool          `yaml:"production" mapstructure:"production"`               // 生产模式下校验签名
}

// ChatConfig 对话相关配置
type ChatConfig struct {
	MaxHistoryMessages int `yaml:"max_history_messages" mapstructure:"max_history_messages"` // 转发给上游的最大历史消息数
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`   // 读缓冲区大小
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"` // 写缓冲区大小
	WriteWait       time.Duration `yaml:"write_wait" mapstructure:"write_wait"`               // 单帧写入超时
}

// Addr 返回监听地址
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// envBindings 配置项与环境变量的对应关系
var envBindings = map[string]string{
	"openai.api_key":            "API_KEY",
	"openai.base_url":           "OPENAI_API_BASE_URL",
	"openai.model":              "OPENAI_API_MODEL",
	"openai.https_proxy":        "HTTPS_PROXY",
	"openai.temperature":        "OPENAI_API_TEMPERATURE",
	"auth.site_password":        "SITE_PASSWORD",
	"auth.secret_key":           "SECRET_KEY",
	"auth.signature_max_age":    "SIGNATURE_MAX_AGE",
	"chat.max_history_messages": "PUBLIC_MAX_HISTORY_MESSAGES",
	"ocr.app_code":              "APP_CODE",
	"ocr.url":                   "OCR_URL",
	"server.host":               "SERVER_HOST",
	"server.port":               "SERVER_PORT",
	appEnvKey:                   "APP_ENV",
}

// appEnvKey 运行环境，值为 production 时开启生产模式
const appEnvKey = "app_env"

// Load 从文件加载配置，环境变量优先于文件。
// 文件不存在时只使用环境变量和默认值。
func Load(filename string) (*Config, error) {
	v := viper.New()

	if filename != "" {
		_, err := os.Stat(filename)
		switch {
		case err == nil:
			v.SetConfigFile(filename)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("解析配置文件失败: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// 没有配置文件时完全依赖环境变量
		default:
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("绑定环境变量%s失败: %w", env, err)
		}
	}

	// 温度0是合法值，不能在setDefaults里按零值补默认
	v.SetDefault("openai.temperature", DefaultTemperature)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	if env := strings.TrimSpace(v.GetString(appEnvKey)); env != "" {
		config.Auth.Production = strings.EqualFold(env, "production")
	}

	setDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// Dump 以YAML输出生效的配置，密钥类字段打码
func (c Config) Dump(w io.Writer) error {
	c.OpenAI.APIKey = mask(c.OpenAI.APIKey)
	c.Auth.SitePassword = mask(c.Auth.SitePassword)
	c.Auth.SecretKey = mask(c.Auth.SecretKey)
	c.OCR.AppCode = mask(c.OCR.AppCode)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("输出配置失败: %w", err)
	}
	return enc.Close()
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "******"
}

// setDefaults 设置默认值
func setDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 3000
	}
	if config.Server.RateLimit > 0 && config.Server.RateBurst <= 0 {
		config.Server.RateBurst = 1
	}

	config.OpenAI.BaseURL = normalizeBaseURL(config.OpenAI.BaseURL)
	if config.OpenAI.BaseURL == "" {
		config.OpenAI.BaseURL = DefaultBaseURL
	}
	if config.OpenAI.Model == "" {
		config.OpenAI.Model = DefaultModel
	}
	if config.OpenAI.Timeout == 0 {
		config.OpenAI.Timeout = 60 * time.Second
	}

	if config.Auth.SignatureMaxAge == 0 {
		config.Auth.SignatureMaxAge = DefaultSignatureMaxAge
	}

	if config.Chat.MaxHistoryMessages == 0 {
		config.Chat.MaxHistoryMessages = DefaultMaxHistoryMessages
	}

	if config.OCR.URL == "" {
		config.OCR.URL = DefaultOCRURL
	}

	if config.WebSocket.ReadBufferSize == 0 {
		config.WebSocket.ReadBufferSize = 1024
	}
	if config.WebSocket.WriteBufferSize == 0 {
		config.WebSocket.WriteBufferSize = 1024
	}
	if config.WebSocket.WriteWait == 0 {
		config.WebSocket.WriteWait = 10 * time.Second
	}
}

// validateConfig 验证配置是否有效
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 {
		return ErrInvalidServerCfg
	}
	if err := config.OpenAI.Validate(); err != nil {
		return err
	}
	if config.OpenAI.Temperature < 0 || config.OpenAI.Temperature > 1 {
		return fmt.Errorf("默认温度必须在0到1之间: %v", config.OpenAI.Temperature)
	}
	if config.Auth.SignatureMaxAge < 0 {
		return ErrInvalidSignAge
	}
	if config.Auth.Production && config.Auth.SecretKey == "" {
		return ErrEmptySecretKey
	}
	if config.Chat.MaxHistoryMessages < 0 {
		return ErrInvalidHistory
	}
	if err := config.OCR.Validate(); err != nil {
		return err
	}
	return nil
}
