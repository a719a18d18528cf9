package middleware

import (
	"sync"
	"time"

	"csr_chat_server/internal/config"
	"csr_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

var errTooManyRequests = errorx.New(errorx.CodeTooManyRequests, "Too many requests")

// RateLimit 按客户端 IP 限流，窗口内最多 Requests 次
func RateLimit(conf config.RateLimitConfig) gin.HandlerFunc {
	if conf.Requests <= 0 || conf.WindowMinutes <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiters := newIPLimiters(conf.Requests, time.Duration(conf.WindowMinutes)*time.Minute, time.Now)

	return func(c *gin.Context) {
		if !limiters.allow(c.ClientIP()) {
			abortWithError(c, errTooManyRequests)
			return
		}
		c.Next()
	}
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiters 每个 IP 一个令牌桶
// 空闲满一个窗口的桶已回满，丢弃与新建等价；每个窗口清理一次，表中只留最近两个窗口内活跃的 IP
type ipLimiters struct {
	mu        sync.Mutex
	entries   map[string]*ipEntry
	every     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newIPLimiters(requests int, window time.Duration, now func() time.Time) *ipLimiters {
	return &ipLimiters{
		entries:   make(map[string]*ipEntry),
		every:     rate.Every(window / time.Duration(requests)),
		burst:     requests,
		window:    window,
		lastSweep: now(),
		now:       now,
	}
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.window {
		for key, e := range l.entries {
			if now.Sub(e.lastSeen) >= l.window {
				delete(l.entries, key)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(l.every, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// size 当前保留的 IP 数
func (l *ipLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
