package models

// Role 消息角色
type Role string

// 消息角色
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid 是否是已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ChatMessage 对话消息
type ChatMessage struct {
	Role    Role   `json:"role"`    // 消息角色：system/user/assistant
	Content string `json:"content"` // 消息内容
}

// ErrorMessage 返回给前端的错误信息
type ErrorMessage struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ErrorResponse 错误响应体 {"error": {...}}
type ErrorResponse struct {
	Error ErrorMessage `json:"error"`
}

// GenerateRequest POST /api/generate 请求体
type GenerateRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Time        int64         `json:"time"`                  // 签名时间戳，毫秒
	Pass        string        `json:"pass"`                  // 站点密码
	Sign        string        `json:"sign"`                  // 请求签名
	Temperature *float64      `json:"temperature,omitempty"` // 温度，缺省使用服务端默认值
}

// LastContent 返回最后一条消息的内容，没有消息时返回空串
func (r *GenerateRequest) LastContent() string {
	return LastContent(r.Messages)
}

// LastContent 返回消息列表中最后一条消息的内容
func LastContent(messages []ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1].Content
}
