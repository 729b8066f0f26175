package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/alert"
)

func TestMemoryRateLimiter_Basic(t *testing.T) {
	limiter := NewMemoryRateLimiter(map[alert.Channel]Limit{
		alert.ChannelSms: {Count: 2, Window: time.Hour},
	})
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, alert.ChannelSms, "+1555000"))
	require.True(t, limiter.Allow(ctx, alert.ChannelSms, "+1555000"))
	// 第三次超限
	require.False(t, limiter.Allow(ctx, alert.ChannelSms, "+1555000"))

	// 不同目标独立计数
	require.True(t, limiter.Allow(ctx, alert.ChannelSms, "+1555111"))

	// 未配置限流的渠道不限
	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(ctx, alert.ChannelEmail, "a@b.c"))
	}
}

// 窗口从第一次发送开始计时，到期后下一次发送重新开窗
func TestMemoryRateLimiter_WindowReset(t *testing.T) {
	limiter := NewMemoryRateLimiter(map[alert.Channel]Limit{
		alert.ChannelEmail: {Count: 1, Window: time.Hour},
	})
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	limiter.SetClock(func() time.Time { return now })

	require.True(t, limiter.Allow(ctx, alert.ChannelEmail, "a@b.c"))
	require.False(t, limiter.Allow(ctx, alert.ChannelEmail, "a@b.c"))

	// 59 分钟后仍在窗口内
	now = now.Add(59 * time.Minute)
	require.False(t, limiter.Allow(ctx, alert.ChannelEmail, "a@b.c"))

	// 60 分钟后窗口过期，重新开窗
	now = now.Add(time.Minute)
	require.True(t, limiter.Allow(ctx, alert.ChannelEmail, "a@b.c"))
	require.False(t, limiter.Allow(ctx, alert.ChannelEmail, "a@b.c"))
}

// Redis 实现集成测试 (需要本地 Redis，不可用时跳过)
func TestRedisRateLimiter_Basic(t *testing.T) {
	rdb := setupTestRedis(t)
	rdb.FlushDB(context.Background())

	limiter := NewRedisRateLimiter(rdb, map[alert.Channel]Limit{
		alert.ChannelSms: {Count: 2, Window: time.Hour},
	})
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, alert.ChannelSms, "+1555000"))
	require.True(t, limiter.Allow(ctx, alert.ChannelSms, "+1555000"))
	require.False(t, limiter.Allow(ctx, alert.ChannelSms, "+1555000"))
	require.True(t, limiter.Allow(ctx, alert.ChannelSms, "+1555111"))
}
