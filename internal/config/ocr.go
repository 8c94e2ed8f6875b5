package config

// OCRConfig 手写识别服务配置
type OCRConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`           // 识别服务地址
	AppCode string `yaml:"app_code" mapstructure:"app_code"` // 授权码
}

// Validate 验证OCR配置
func (c *OCRConfig) Validate() error {
	if c.URL == "" {
		return ErrEmptyOCRURL
	}
	return nil
}

// Enabled 是否配置了授权码
func (c *OCRConfig) Enabled() bool {
	return c.AppCode != ""
}
