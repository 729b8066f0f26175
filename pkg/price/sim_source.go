// 文件: pkg/price/sim_source.go
// 模拟行情源 - 本地开发/演示用，不依赖外部行情服务
//
// 价格使用几何布朗运动 (GBM) 生成:
//   S_new = S * exp(-0.5*σ²*dt + σ*sqrt(dt)*Z), Z ~ N(0,1)
// 乘法更新保证价格恒为正，且符合资产价格的对数正态分布

package price

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// 确保实现了接口
var _ Source = (*SimSource)(nil)

// simState 单个币种的模拟状态
type simState struct {
	price       float64
	basePrice   float64 // 24h 基准价，用于计算涨跌幅
	volume      float64
	supply      float64 // 流通量，市值 = price * supply
	lastUpdated time.Time
}

// SimSource 模拟行情源
type SimSource struct {
	mu         sync.Mutex
	states     map[string]*simState
	volatility float64 // 年化波动率，加密货币典型值 0.5 ~ 1.0
	rng        *rand.Rand
}

// NewSimSource 创建模拟行情源
// seeds: symbol -> 初始价格；未列出的 symbol 请求时按 100 起步
func NewSimSource(seeds map[string]float64) *SimSource {
	s := &SimSource{
		states:     make(map[string]*simState),
		volatility: 0.8,
		// 独立随机源: 全局 rand 内部带锁，避免争用
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	now := time.Now()
	for sym, p := range seeds {
		s.states[sym] = newSimState(p, now)
	}
	return s
}

func newSimState(price float64, now time.Time) *simState {
	return &simState{
		price:       price,
		basePrice:   price,
		volume:      price * 1e6, // 粗略: 成交额与价格同量级放大
		supply:      2e7,
		lastUpdated: now,
	}
}

// GetPrices 批量生成最新行情
func (s *SimSource) GetPrices(ctx context.Context, symbols []string) (map[string]Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	out := make(map[string]Observation, len(symbols))

	for _, sym := range symbols {
		st, ok := s.states[sym]
		if !ok {
			st = newSimState(100, now)
			s.states[sym] = st
		}

		// dt 年化
		dt := now.Sub(st.lastUpdated).Hours() / 24 / 365
		if dt <= 0 {
			dt = 1e-9
		}

		sigma := s.volatility
		z := s.rng.NormFloat64()
		st.price *= math.Exp(-0.5*sigma*sigma*dt + sigma*math.Sqrt(dt)*z)
		st.lastUpdated = now

		// 成交额随机抖动 ±10%
		st.volume *= 1 + (s.rng.Float64()-0.5)*0.2

		out[sym] = Observation{
			Symbol:     sym,
			Price:      st.price,
			Change24h:  (st.price/st.basePrice - 1) * 100,
			Volume24h:  st.volume,
			MarketCap:  st.price * st.supply,
			ObservedAt: now,
		}
	}
	return out, nil
}

// SetPrice 直接设置某币种价格 (测试/演示用，比如模拟暴跌)
func (s *SimSource) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[symbol]
	if !ok {
		s.states[symbol] = newSimState(price, time.Now())
		return
	}
	st.price = price
}
