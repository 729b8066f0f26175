package price

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCache_UpdateAndGet(t *testing.T) {
	cache := NewCache()

	// 未写入过 -> 不存在
	_, ok := cache.Get("BTC")
	require.False(t, ok)

	obs := Observation{Symbol: "BTC", Price: 45000, ObservedAt: time.Now()}
	cache.Update("BTC", obs)

	got, ok := cache.Get("BTC")
	require.True(t, ok)
	require.Equal(t, 45000.0, got.Price)

	// 覆盖写入
	obs.Price = 46000
	cache.Update("BTC", obs)
	got, _ = cache.Get("BTC")
	require.Equal(t, 46000.0, got.Price)
}

// 上游失败后，缓存必须保留最后一次成功写入的值
func TestCache_RetainsStaleValue(t *testing.T) {
	cache := NewCache()

	stale := Observation{Symbol: "ETH", Price: 3000, ObservedAt: time.Now().Add(-time.Hour)}
	cache.Update("ETH", stale)

	// 模拟之后的刷新全部失败: 不调用 Update
	got, ok := cache.Get("ETH")
	require.True(t, ok)
	require.Equal(t, 3000.0, got.Price)
	require.True(t, time.Since(got.ObservedAt) >= time.Hour)
}

func TestCache_Snapshot(t *testing.T) {
	cache := NewCache()
	cache.Update("BTC", Observation{Symbol: "BTC", Price: 1})
	cache.Update("ETH", Observation{Symbol: "ETH", Price: 2})

	snap := cache.Snapshot()
	require.Len(t, snap, 2)

	// 修改副本不影响缓存
	snap["BTC"] = Observation{Symbol: "BTC", Price: 999}
	got, _ := cache.Get("BTC")
	require.Equal(t, 1.0, got.Price)
}

func TestSimSource_GetPrices(t *testing.T) {
	src := NewSimSource(map[string]float64{"BTC": 45000})

	obs, err := src.GetPrices(context.Background(), []string{"BTC", "ETH"})
	require.NoError(t, err)
	require.Len(t, obs, 2)

	// 价格恒为正 (GBM 乘法更新)
	require.Greater(t, obs["BTC"].Price, 0.0)
	require.Greater(t, obs["ETH"].Price, 0.0)
	require.Equal(t, "BTC", obs["BTC"].Symbol)
}

func TestSimSource_SetPrice(t *testing.T) {
	src := NewSimSource(map[string]float64{"BTC": 45000})
	src.SetPrice("BTC", 40000)

	obs, err := src.GetPrices(context.Background(), []string{"BTC"})
	require.NoError(t, err)
	// GBM 一步的波动远小于 10%，验证落在设置值附近即可
	require.InDelta(t, 40000, obs["BTC"].Price, 4000)
}
