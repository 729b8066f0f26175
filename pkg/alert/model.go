// 文件: pkg/alert/model.go
// 预警数据模型
//
// 一条 Alert 是用户的一个常驻监控条件:
// - Kind 决定 Condition 里哪些字段生效
// - 缺少 Kind 要求的字段时，预警不会触发，也不报错 (惰性处理)
// - Symbol 全程规范化为大写

package alert

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/price"
)

// =============================================================================
// 枚举定义
// =============================================================================

// Kind 预警类型 (封闭集合)
type Kind string

const (
	KindPriceAbove      Kind = "price_above"       // 价格 >= 目标价
	KindPriceBelow      Kind = "price_below"       // 价格 <= 目标价
	KindPriceChange     Kind = "price_change"      // |24h 涨跌幅| >= 阈值
	KindVolumeSpike     Kind = "volume_spike"      // 24h 成交额 >= 阈值
	KindMarketCapChange Kind = "market_cap_change" // 市值 >= 阈值
)

// Valid 是否为已知类型
// 未知类型属于程序性错误: 调用方记日志并跳过，不能让监控进程崩溃
func (k Kind) Valid() bool {
	switch k {
	case KindPriceAbove, KindPriceBelow, KindPriceChange, KindVolumeSpike, KindMarketCapChange:
		return true
	}
	return false
}

// Timeframe 涨跌幅观察窗口
type Timeframe string

const (
	Timeframe1h  Timeframe = "1h"
	Timeframe24h Timeframe = "24h"
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"
)

// Channel 通知渠道 (封闭集合)
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSms   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Priority 预警优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// =============================================================================
// 条件与通知配置
// =============================================================================

// Condition 触发条件载荷
// 字段用指针: nil 表示"未设置"，与 0 值区分开
type Condition struct {
	TargetPrice        *float64  `json:"target_price,omitempty"`
	PercentChange      *float64  `json:"percent_change,omitempty"`
	Timeframe          Timeframe `json:"timeframe,omitempty"`
	VolumeThreshold    *float64  `json:"volume_threshold,omitempty"`
	MarketCapThreshold *float64  `json:"market_cap_threshold,omitempty"`
}

// ChannelPref 单渠道通知配置与发送状态
type ChannelPref struct {
	Enabled bool   `json:"enabled"`
	Target  string `json:"target,omitempty"` // 邮箱 / 手机号 / 推送设备标识
	Sent    bool   `json:"sent"`
	SentAt  int64  `json:"sent_at,omitempty"` // Unix 毫秒
}

// Notifications 三个渠道的通知配置
type Notifications struct {
	Email ChannelPref `json:"email"`
	Sms   ChannelPref `json:"sms"`
	Push  ChannelPref `json:"push"`
}

// Pref 按渠道取配置
func (n *Notifications) Pref(ch Channel) *ChannelPref {
	switch ch {
	case ChannelEmail:
		return &n.Email
	case ChannelSms:
		return &n.Sms
	case ChannelPush:
		return &n.Push
	}
	return nil
}

// =============================================================================
// 历史与审计
// =============================================================================

// MaxHistoryEntries 价格历史上限，超出后先进先出
const MaxHistoryEntries = 100

// HistoryEntry 一次行情观测的快照
type HistoryEntry struct {
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume24h float64 `json:"volume_24h"`
	MarketCap float64 `json:"market_cap"`
	Ts        int64   `json:"ts"` // Unix 毫秒
}

// AuditAction 生命周期事件类型
type AuditAction string

const (
	AuditCreated          AuditAction = "created"
	AuditTriggered        AuditAction = "triggered"
	AuditNotificationSent AuditAction = "notification_sent"
	AuditReArmed          AuditAction = "re_armed"
	AuditPaused           AuditAction = "paused"
	AuditResumed          AuditAction = "resumed"
	AuditReset            AuditAction = "reset"
	AuditDeleted          AuditAction = "deleted"
)

// AuditEntry 审计日志条目 (只追加，不修改)
type AuditEntry struct {
	EventID string      `json:"event_id"`
	Action  AuditAction `json:"action"`
	Channel Channel     `json:"channel,omitempty"` // 仅 notification_sent 使用
	Note    string      `json:"note,omitempty"`
	Ts      int64       `json:"ts"` // Unix 毫秒
}

// =============================================================================
// Alert 主体
// =============================================================================

// Alert 预警记录
// 时间类字段统一 Unix 毫秒，0 表示未设置
type Alert struct {
	ID     int64  `gorm:"primaryKey" json:"id"`
	UserID int64  `gorm:"index" json:"user_id"`
	Symbol string `gorm:"size:16;index" json:"symbol"`
	Name   string `gorm:"size:64" json:"name"`

	Kind      Kind      `gorm:"size:32" json:"kind"`
	Condition Condition `gorm:"serializer:json" json:"condition"`

	// 状态
	Active          bool  `json:"active"`
	Triggered       bool  `json:"triggered"`
	TriggerCount    int   `json:"trigger_count"`
	MaxTriggers     int   `json:"max_triggers"`
	LastTriggeredAt int64 `json:"last_triggered_at,omitempty"`

	// 重复与过期策略
	RepeatInterval int   `json:"repeat_interval"` // 分钟，0 = 一次性
	ReArmAt        int64 `json:"re_arm_at,omitempty"`
	ExpiresAt      int64 `json:"expires_at,omitempty"`

	// 元数据
	Priority Priority `gorm:"size:16" json:"priority"`
	Tags     []string `gorm:"serializer:json" json:"tags,omitempty"`
	Notes    string   `json:"notes,omitempty"`

	Notifications Notifications `gorm:"serializer:json" json:"notifications"`

	History []HistoryEntry `gorm:"serializer:json" json:"history,omitempty"`
	Audit   []AuditEntry   `gorm:"serializer:json" json:"audit,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// TableName GORM 表名
func (Alert) TableName() string {
	return "alerts"
}

// NormalizeSymbol 规范化币种符号: 去空白 + 大写
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsExpired 是否已过期
func (a *Alert) IsExpired(now time.Time) bool {
	return a.ExpiresAt > 0 && now.UnixMilli() >= a.ExpiresAt
}

// Exhausted 触发次数是否已用完
// 用完后必须手动 Reset 才能再次触发
func (a *Alert) Exhausted() bool {
	return a.MaxTriggers > 0 && a.TriggerCount >= a.MaxTriggers
}

// RecordObservation 追加一条行情到历史
// 超过上限时丢弃最旧的条目 (追加后截断，FIFO)
func (a *Alert) RecordObservation(obs price.Observation) {
	a.History = append(a.History, HistoryEntry{
		Price:     obs.Price,
		Change24h: obs.Change24h,
		Volume24h: obs.Volume24h,
		MarketCap: obs.MarketCap,
		Ts:        obs.ObservedAt.UnixMilli(),
	})
	if n := len(a.History); n > MaxHistoryEntries {
		a.History = a.History[n-MaxHistoryEntries:]
	}
}

// AppendAudit 追加一条审计日志
func (a *Alert) AppendAudit(action AuditAction, channel Channel, note string) AuditEntry {
	entry := AuditEntry{
		EventID: uuid.NewString(),
		Action:  action,
		Channel: channel,
		Note:    note,
		Ts:      time.Now().UnixMilli(),
	}
	a.Audit = append(a.Audit, entry)
	return entry
}

// MarkTriggered 执行触发时的状态变更
// 不负责通知和落库，那是 monitor 的事
func (a *Alert) MarkTriggered(now time.Time) {
	a.Triggered = true
	a.TriggerCount++
	a.LastTriggeredAt = now.UnixMilli()
	if a.RepeatInterval > 0 {
		// 到点后由评估循环重置 Triggered，而不是给每个预警挂定时器
		a.ReArmAt = now.Add(time.Duration(a.RepeatInterval) * time.Minute).UnixMilli()
	}
}

// ReArm 重新武装: 到达 ReArmAt 后由评估循环调用
func (a *Alert) ReArm() {
	a.Triggered = false
	a.ReArmAt = 0
}
