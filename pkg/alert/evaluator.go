// 文件: pkg/alert/evaluator.go
// 触发判定 - 纯函数，不做任何 I/O
//
// 【判定表】
//   price_above       price >= TargetPrice
//   price_below       price <= TargetPrice
//   price_change      |change24h| >= |PercentChange|
//   volume_spike      volume24h >= VolumeThreshold
//   market_cap_change marketCap >= MarketCapThreshold
//
// 边界取等号 (>= / <=)。条件字段缺失或类型未知一律返回 false，永不 panic。

package alert

import (
	"math"
	"time"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/price"
)

// Evaluate 判定一条预警在给定行情下是否触发
//
// 前置条件短路 (任一命中直接 false):
// 1. 预警未启用
// 2. 已触发且尚未重新武装
// 3. 已过期
// 4. 触发次数用完
func Evaluate(a *Alert, obs price.Observation, now time.Time) bool {
	if !a.Active {
		return false
	}
	if a.Triggered {
		return false
	}
	if a.IsExpired(now) {
		return false
	}
	if a.Exhausted() {
		return false
	}

	cond := a.Condition
	switch a.Kind {
	case KindPriceAbove:
		if cond.TargetPrice == nil {
			return false
		}
		return obs.Price >= *cond.TargetPrice

	case KindPriceBelow:
		if cond.TargetPrice == nil {
			return false
		}
		return obs.Price <= *cond.TargetPrice

	case KindPriceChange:
		// 双向: 涨 6% 和跌 6% 都算超过 5% 阈值
		if cond.PercentChange == nil {
			return false
		}
		return math.Abs(obs.Change24h) >= math.Abs(*cond.PercentChange)

	case KindVolumeSpike:
		if cond.VolumeThreshold == nil {
			return false
		}
		return obs.Volume24h >= *cond.VolumeThreshold

	case KindMarketCapChange:
		if cond.MarketCapThreshold == nil {
			return false
		}
		return obs.MarketCap >= *cond.MarketCapThreshold
	}

	// 未知类型: 这里静默 false，由调用方用 Kind.Valid() 识别并记日志
	return false
}
