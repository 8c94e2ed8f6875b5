package models

// WSFrameType WebSocket帧类型
type WSFrameType string

// WebSocket帧类型
const (
	WSFrameDelta WSFrameType = "delta" // 增量文本
	WSFrameError WSFrameType = "error" // 错误，之后服务端关闭连接
	WSFrameDone  WSFrameType = "done"  // 正常结束
)

// WSFrame GET /api/generate/ws 下行帧。
// 上行只有一帧，内容与 POST /api/generate 的请求体相同。
type WSFrame struct {
	Type    WSFrameType   `json:"type"`
	Content string        `json:"content,omitempty"`
	Status  int           `json:"status,omitempty"` // 错误帧对应的HTTP状态码
	Error   *ErrorMessage `json:"error,omitempty"`
}
