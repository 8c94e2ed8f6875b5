package middleware

import (
	"net/http"
	"sync"
	"time"

	"ai_chat_mini/internal/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// 超过这个数量的客户端时清理长时间未访问的限流器
const (
	limiterSweepSize = 10000
	limiterIdleTTL   = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiters 按客户端IP划分的限流器
type ipLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*clientLimiter
}

func newIPLimiters(limit float64, burst int) *ipLimiters {
	return &ipLimiters{
		limit:    rate.Limit(limit),
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

// get 返回客户端的限流器，不存在时创建
func (l *ipLimiters) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cl, ok := l.limiters[ip]; ok {
		cl.lastSeen = now
		return cl.limiter
	}

	if len(l.limiters) >= limiterSweepSize {
		for key, cl := range l.limiters {
			if now.Sub(cl.lastSeen) > limiterIdleTTL {
				delete(l.limiters, key)
			}
		}
	}

	cl := &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.limiters[ip] = cl
	return cl.limiter
}

// RateLimit 按客户端IP限流，超出时返回429
func RateLimit(limit float64, burst int) gin.HandlerFunc {
	limiters := newIPLimiters(limit, burst)
	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP(), time.Now()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error: models.ErrorMessage{Code: "rate_limited", Message: "Too many requests."},
			})
			return
		}
		c.Next()
	}
}
