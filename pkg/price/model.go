// 文件: pkg/price/model.go
// 行情数据模型

package price

import (
	"context"
	"time"
)

// Observation 单个币种的一次行情观测
// 不落库，只存在于 Cache 中，每次刷新整体覆盖
type Observation struct {
	Symbol     string    `json:"symbol"`      // 规范化大写，如 "BTC"
	Price      float64   `json:"price"`       // 最新价 (USD)
	Change24h  float64   `json:"change_24h"`  // 24h 涨跌幅 (%)
	Volume24h  float64   `json:"volume_24h"`  // 24h 成交额 (USD)
	MarketCap  float64   `json:"market_cap"`  // 市值 (USD)
	ObservedAt time.Time `json:"observed_at"` // 观测时间，新鲜度只看这个字段
}

// Source 上游行情源
//
// 约定:
// - 必须按 symbol 集合批量请求，禁止每个预警单独调一次
// - 上游限流/不可达时返回 error，由调用方决定降级策略
type Source interface {
	// GetPrices 批量获取最新行情
	// 返回 map 可能缺少部分 symbol (上游没有该币种)，不算错误
	GetPrices(ctx context.Context, symbols []string) (map[string]Observation, error)
}
