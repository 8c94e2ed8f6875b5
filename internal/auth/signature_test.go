package auth

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedNow(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestPayload_Canonical(t *testing.T) {
	p := Payload{Timestamp: 1700000000123, LastMessageContent: "你好:世界"}
	assert.Equal(t, "1700000000123:你好:世界", p.Canonical())
}

func TestSign_Deterministic(t *testing.T) {
	p := Payload{Timestamp: 1, LastMessageContent: "hi"}
	a := Sign("secret", p)
	assert.Equal(t, a, Sign("secret", p))
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, Sign("other", p))
}

func TestVerifier_Verify(t *testing.T) {
	const now = int64(1_700_000_000_000)
	v := &Verifier{Secret: "secret", MaxAge: 5 * time.Minute, Now: fixedNow(now)}
	signed := Payload{Timestamp: now - 1000, LastMessageContent: "hello"}
	sig := Sign("secret", signed)

	tests := []struct {
		name    string
		payload Payload
		sig     string
		want    bool
	}{
		{"签名正确", signed, sig, true},
		{"大写签名", signed, upper(sig), true},
		{"时间戳被修改", Payload{Timestamp: signed.Timestamp + 1, LastMessageContent: "hello"}, sig, false},
		{"内容被修改", Payload{Timestamp: signed.Timestamp, LastMessageContent: "hello!"}, sig, false},
		{"空签名", signed, "", false},
		{"非十六进制", signed, "zz", false},
		{"密钥不同", signed, Sign("other", signed), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Verify(tt.payload, tt.sig))
		})
	}
}

func TestVerifier_Window(t *testing.T) {
	const now = int64(1_700_000_000_000)
	v := &Verifier{Secret: "secret", MaxAge: 5 * time.Minute, Now: fixedNow(now)}

	stale := Payload{Timestamp: now - (5*time.Minute).Milliseconds() - 1, LastMessageContent: "x"}
	assert.False(t, v.Verify(stale, Sign("secret", stale)), "过期的时间戳即使签名正确也应拒绝")

	future := Payload{Timestamp: now + (5*time.Minute).Milliseconds() + 1, LastMessageContent: "x"}
	assert.False(t, v.Verify(future, Sign("secret", future)))

	edge := Payload{Timestamp: now - (5 * time.Minute).Milliseconds(), LastMessageContent: "x"}
	assert.True(t, v.Verify(edge, Sign("secret", edge)))

	// now-ts 会溢出的极端时间戳
	for _, ts := range []int64{now + math.MinInt64, math.MinInt64, math.MaxInt64, -now} {
		p := Payload{Timestamp: ts, LastMessageContent: "x"}
		assert.False(t, v.Verify(p, Sign("secret", p)), "timestamp=%d", ts)
	}
}

func TestWithinWindow(t *testing.T) {
	tests := []struct {
		name   string
		now    int64
		ts     int64
		maxAge int64
		want   bool
	}{
		{"窗口内", 1000, 900, 100, true},
		{"上边界", 1000, 1100, 100, true},
		{"超出上边界", 1000, 1101, 100, false},
		{"下界溢出", math.MinInt64 + 10, math.MinInt64, 100, true},
		{"上界溢出", math.MaxInt64 - 10, math.MaxInt64, 100, true},
		{"相减溢出", 1_700_000_000_000, 1_700_000_000_000 + math.MinInt64, 300_000, false},
		{"负的有效期按0处理", 1000, 1001, -5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, withinWindow(tt.now, tt.ts, tt.maxAge))
		})
	}
}

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		supplied   string
		want       bool
	}{
		{"未配置", "", "", true},
		{"完全匹配", "abc", "abc", true},
		{"不匹配", "abc", "abd", false},
		{"列表中的一项", "abc,def", "def", true},
		{"列表项不去空白", "abc, def", " def", true},
		{"去空白后不匹配", "abc, def", "def", false},
		{"整串匹配", "abc,def", "abc,def", true},
		{"空密码不匹配列表", "abc,,def", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPassword(tt.configured, tt.supplied))
		})
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
