// 文件: pkg/notify/ratelimit.go
// 通知限流器 - 按 (渠道, 目标地址) 滑动窗口计数
//
// 窗口语义: 窗口从本轮第一次发送开始计时，到期后下一次发送重新开窗，
// 不是按整点对齐的日历窗口。
//
// 两个实现:
// - MemoryRateLimiter: 单实例内存版
// - RedisRateLimiter:  INCR + 首次开窗 EXPIRE，多进程共享计数

package notify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/alert"
)

// Limit 单渠道限流配置
type Limit struct {
	Count  int           // 窗口内允许的发送次数
	Window time.Duration // 窗口长度
}

// DefaultLimits 默认限流: email 100/h, sms 20/h, push 200/h
func DefaultLimits() map[alert.Channel]Limit {
	return map[alert.Channel]Limit{
		alert.ChannelEmail: {Count: 100, Window: time.Hour},
		alert.ChannelSms:   {Count: 20, Window: time.Hour},
		alert.ChannelPush:  {Count: 200, Window: time.Hour},
	}
}

// RateLimiter 限流器
type RateLimiter interface {
	// Allow 判定本次发送是否放行，放行即计数
	// 限流器故障时放行 (宁可多发，不能因为限流器把通知全部卡死)
	Allow(ctx context.Context, ch alert.Channel, target string) bool
}

// =============================================================================
// MemoryRateLimiter - 内存实现
// =============================================================================

// 确保实现了接口
var _ RateLimiter = (*MemoryRateLimiter)(nil)

type windowState struct {
	start time.Time
	count int
}

// MemoryRateLimiter 内存滑动窗口限流器
type MemoryRateLimiter struct {
	mu      sync.Mutex
	limits  map[alert.Channel]Limit
	windows map[string]*windowState // key: channel + ":" + target
	now     func() time.Time        // 可注入，测试模拟时钟用
}

// NewMemoryRateLimiter 创建内存限流器
// limits 为 nil 时使用默认配置
func NewMemoryRateLimiter(limits map[alert.Channel]Limit) *MemoryRateLimiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &MemoryRateLimiter{
		limits:  limits,
		windows: make(map[string]*windowState),
		now:     time.Now,
	}
}

// SetClock 注入时钟 (测试用)
func (l *MemoryRateLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Allow 判定并计数
func (l *MemoryRateLimiter) Allow(ctx context.Context, ch alert.Channel, target string) bool {
	limit, ok := l.limits[ch]
	if !ok || limit.Count <= 0 {
		return true // 未配置限流的渠道不限
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := string(ch) + ":" + target

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= limit.Window {
		// 开新窗口 (首次发送或旧窗口已过期)
		l.windows[key] = &windowState{start: now, count: 1}
		return true
	}

	if w.count >= limit.Count {
		return false
	}
	w.count++
	return true
}

// =============================================================================
// RedisRateLimiter - Redis 实现
// =============================================================================

var _ RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter 基于 Redis 计数器的限流器
// 计数键在第一次 INCR 时设置过期，窗口随键过期自然重开
type RedisRateLimiter struct {
	client *redis.Client
	limits map[alert.Channel]Limit
}

// NewRedisRateLimiter 创建 Redis 限流器
func NewRedisRateLimiter(client *redis.Client, limits map[alert.Channel]Limit) *RedisRateLimiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &RedisRateLimiter{client: client, limits: limits}
}

// luaAllow 限流脚本: 计数 + 首次开窗设置过期，单次往返保证原子
// KEYS[1]: 计数键
// ARGV[1]: 限流次数
// ARGV[2]: 窗口秒数
const luaAllow = `
	local n = redis.call('INCR', KEYS[1])
	if n == 1 then
		redis.call('EXPIRE', KEYS[1], ARGV[2])
	end
	if n > tonumber(ARGV[1]) then
		return 0
	end
	return 1
`

// Allow 判定并计数
func (l *RedisRateLimiter) Allow(ctx context.Context, ch alert.Channel, target string) bool {
	limit, ok := l.limits[ch]
	if !ok || limit.Count <= 0 {
		return true
	}

	key := "tracker:ratelimit:" + string(ch) + ":" + target
	res, err := l.client.Eval(ctx, luaAllow, []string{key},
		limit.Count, int(limit.Window.Seconds())).Int()
	if err != nil {
		// Redis 故障时放行，不阻断通知
		return true
	}
	return res == 1
}
