package config

import "errors"

// 配置相关错误
var (
	ErrEmptyAPIKey      = errors.New("上游API密钥不能为空")
	ErrEmptyBaseURL     = errors.New("上游API地址不能为空")
	ErrEmptyModel       = errors.New("上游模型名称不能为空")
	ErrInvalidProxy     = errors.New("代理地址格式错误")
	ErrEmptySecretKey   = errors.New("生产模式下签名密钥不能为空")
	ErrInvalidSignAge   = errors.New("签名有效期必须大于0")
	ErrInvalidHistory   = errors.New("最大历史消息数不能为负数")
	ErrEmptyOCRURL      = errors.New("OCR服务地址不能为空")
	ErrInvalidServerCfg = errors.New("服务器端口必须大于0")
)
