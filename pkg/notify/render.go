// 文件: pkg/notify/render.go
// 通知文案渲染 - 按预警类型生成确定性的消息文本

package notify

import (
	"fmt"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/alert"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/price"
)

// Render 生成通知文案
// subject 用于邮件标题，body 三个渠道共用
// 文案只依赖预警类型和当前观测，同样的输入永远得到同样的输出
func Render(a *alert.Alert, obs price.Observation) (subject, body string) {
	name := a.Name
	if name == "" {
		name = a.Symbol
	}
	subject = fmt.Sprintf("Price Alert: %s", name)

	cond := a.Condition
	switch a.Kind {
	case alert.KindPriceAbove:
		body = fmt.Sprintf("%s has reached $%s, above your target of $%s",
			a.Symbol, formatAmount(obs.Price), formatAmount(deref(cond.TargetPrice)))

	case alert.KindPriceBelow:
		body = fmt.Sprintf("%s has dropped to $%s, below your target of $%s",
			a.Symbol, formatAmount(obs.Price), formatAmount(deref(cond.TargetPrice)))

	case alert.KindPriceChange:
		tf := cond.Timeframe
		if tf == "" {
			tf = alert.Timeframe24h
		}
		body = fmt.Sprintf("%s has moved %.2f%% in the last %s, beyond your %.2f%% threshold",
			a.Symbol, obs.Change24h, tf, deref(cond.PercentChange))

	case alert.KindVolumeSpike:
		body = fmt.Sprintf("%s 24h volume has reached $%s, above your threshold of $%s",
			a.Symbol, formatAmount(obs.Volume24h), formatAmount(deref(cond.VolumeThreshold)))

	case alert.KindMarketCapChange:
		body = fmt.Sprintf("%s market cap has reached $%s, above your threshold of $%s",
			a.Symbol, formatAmount(obs.MarketCap), formatAmount(deref(cond.MarketCapThreshold)))

	default:
		body = fmt.Sprintf("%s alert triggered at $%s", a.Symbol, formatAmount(obs.Price))
	}
	return subject, body
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// formatAmount 金额格式化: 大数用 B/M 缩写，小数保留两位
func formatAmount(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
