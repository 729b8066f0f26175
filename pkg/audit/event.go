// 文件: pkg/audit/event.go
// 预警生命周期事件 - 数据模型与 Journal 接口
//
// Alert 自身的 Audit 字段是随记录走的审计日志；这里的事件流是
// 独立的全局流水，经 Kafka 异步落到 alert_events 表，供前端的
// 历史页和运营侧查询使用。

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/alert"
)

// TopicAlertEvents 事件流 topic
const TopicAlertEvents = "tracker_alert_events"

// Event 一条生命周期事件
type Event struct {
	EventID string            `gorm:"primaryKey;size:36" json:"event_id"`
	AlertID int64             `gorm:"index" json:"alert_id"`
	UserID  int64             `gorm:"index" json:"user_id"`
	Action  alert.AuditAction `gorm:"size:32" json:"action"`
	Channel alert.Channel     `gorm:"size:16" json:"channel,omitempty"`
	Symbol  string            `gorm:"size:16" json:"symbol"`
	Price   float64           `json:"price,omitempty"`
	Note    string            `gorm:"size:255" json:"note,omitempty"`
	Ts      int64             `gorm:"index" json:"ts"` // Unix 毫秒
}

// TableName GORM 表名
func (Event) TableName() string {
	return "alert_events"
}

// NewEvent 构造事件
func NewEvent(a *alert.Alert, action alert.AuditAction, channel alert.Channel, price float64, note string) Event {
	return Event{
		EventID: uuid.NewString(),
		AlertID: a.ID,
		UserID:  a.UserID,
		Action:  action,
		Channel: channel,
		Symbol:  a.Symbol,
		Price:   price,
		Note:    note,
		Ts:      time.Now().UnixMilli(),
	}
}

// Journal 事件流写入端
//
// 实现:
// - KafkaJournal: 异步写 Kafka (生产配置)
// - NopJournal:   未配置 Kafka 时的空实现
type Journal interface {
	Record(ctx context.Context, e Event) error
}

// NopJournal 空实现
type NopJournal struct{}

var _ Journal = (*NopJournal)(nil)

func (NopJournal) Record(ctx context.Context, e Event) error { return nil }
