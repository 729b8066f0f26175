// 文件: pkg/monitor/events.go
// 实时推送接口与事件载荷定义

package monitor

import (
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/alert"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/notify"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/price"
)

// 推送主题
const (
	SubjectPriceUpdate    = "prices.update"    // 整批行情刷新
	SubjectAlertTriggered = "alerts.triggered" // 单条预警触发
)

// Transport 实时推送通道 (fire-and-forget)
// 没有订阅者不算错误；推送失败也只记日志，不影响主流程
type Transport interface {
	Publish(subject string, payload any) error
}

// NopTransport 空实现，未配置实时推送时使用
type NopTransport struct{}

func (NopTransport) Publish(subject string, payload any) error { return nil }

// PriceUpdateEvent 行情刷新事件
type PriceUpdateEvent struct {
	Prices []price.Observation `json:"prices"`
}

// TriggerEvent 预警触发事件
type TriggerEvent struct {
	AlertID     int64            `json:"alert_id"`
	UserID      int64            `json:"user_id"`
	Symbol      string           `json:"symbol"`
	Kind        alert.Kind       `json:"kind"`
	Price       float64          `json:"price"`
	TriggeredAt int64            `json:"triggered_at"` // Unix 毫秒
	Outcomes    []notify.Outcome `json:"outcomes"`
}
