// 文件: pkg/price/cache.go
// 最新行情缓存 - 每个币种只保留最后一次成功观测
//
// 【设计】
// - 没有 TTL 淘汰: 上游挂掉时，旧数据仍然可读 (降级用)
// - 新鲜度由调用方通过 Observation.ObservedAt 自行判断
// - 不是数据源，只是抵御上游瞬时故障的最后已知值

package price

import (
	"sync"
)

// Cache 行情缓存
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Observation // key: symbol
}

// NewCache 创建行情缓存
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]Observation),
	}
}

// Update 写入/覆盖一条观测
func (c *Cache) Update(symbol string, obs Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[symbol] = obs
}

// Get 读取指定币种的最后一次观测
// 第二个返回值为 false 表示从未观测过该币种
func (c *Cache) Get(symbol string) (Observation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obs, ok := c.entries[symbol]
	return obs, ok
}

// Snapshot 拷贝当前全部观测
// 返回的是副本，调用方可以安全遍历
func (c *Cache) Snapshot() map[string]Observation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Observation, len(c.entries))
	for sym, obs := range c.entries {
		out[sym] = obs
	}
	return out
}

// Len 当前缓存的币种数量
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
