// Package auth 实现请求签名的生成与校验，以及站点密码检查。
//
// 客户端和服务端用同一个共享密钥，对 "时间戳:最后一条消息内容" 这一规范字符串
// 计算 HMAC-SHA256，结果以小写十六进制表示。
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"
)

// Payload 签名载荷
type Payload struct {
	Timestamp          int64  // 毫秒时间戳
	LastMessageContent string // 最后一条消息内容
}

// Canonical 返回规范字符串，两端必须逐字节一致
func (p Payload) Canonical() string {
	var b strings.Builder
	b.Grow(len(p.LastMessageContent) + 21)
	b.WriteString(strconv.FormatInt(p.Timestamp, 10))
	b.WriteByte(':')
	b.WriteString(p.LastMessageContent)
	return b.String()
}

// Sign 计算签名
func Sign(secret string, p Payload) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(p.Canonical()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier 服务端签名校验器
type Verifier struct {
	Secret string
	MaxAge time.Duration    // 时间戳允许的最大偏差，过期或超前都拒绝
	Now    func() time.Time // 为空时使用 time.Now
}

// NewVerifier 创建签名校验器
func NewVerifier(secret string, maxAge time.Duration) *Verifier {
	return &Verifier{Secret: secret, MaxAge: maxAge}
}

// Verify 校验签名是否与载荷匹配且时间戳在有效期内
func (v *Verifier) Verify(p Payload, signature string) bool {
	if signature == "" {
		return false
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	if !withinWindow(now().UnixMilli(), p.Timestamp, v.MaxAge.Milliseconds()) {
		return false
	}

	want, err := hex.DecodeString(Sign(v.Secret, p))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}

// withinWindow 判断 ts 是否在 [now-maxAge, now+maxAge] 内，边界计算不会溢出
func withinWindow(now, ts, maxAge int64) bool {
	if maxAge < 0 {
		maxAge = 0
	}
	lo := int64(math.MinInt64)
	if now >= math.MinInt64+maxAge {
		lo = now - maxAge
	}
	hi := int64(math.MaxInt64)
	if now <= math.MaxInt64-maxAge {
		hi = now + maxAge
	}
	return ts >= lo && ts <= hi
}
