// 文件: pkg/notify/model.go
// 通知模块数据模型与外部接口定义
//
// 约定: 发送器的 error 只表示"提交失败"这种普通投递失败，
// 作为结果返回给路由器记录，不允许 panic

package notify

import (
	"context"
	"log"
	"time"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/alert"
)

// =============================================================================
// 发送器接口 - 由外部投递服务实现
// =============================================================================

// EmailSender 邮件发送器
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SmsSender 短信发送器
type SmsSender interface {
	SendSms(ctx context.Context, to, body string) error
}

// PushSender 推送发送器
type PushSender interface {
	SendPush(ctx context.Context, userID int64, title, body string) error
}

// Sinks 三个渠道的发送器集合
// 某个渠道为 nil 时该渠道视为未配置，路由时跳过
type Sinks struct {
	Email EmailSender
	Sms   SmsSender
	Push  PushSender
}

// =============================================================================
// 投递结果
// =============================================================================

// Status 单渠道投递结果状态
type Status string

const (
	StatusSent        Status = "sent"
	StatusDisabled    Status = "disabled"     // 渠道未启用或未配置
	StatusRateLimited Status = "rate_limited" // 被限流跳过
	StatusFailed      Status = "failed"       // 投递失败
)

// Outcome 单渠道的投递结果
// 一次 Notify 返回每个渠道各一条，互不影响
type Outcome struct {
	Channel alert.Channel `json:"channel"`
	Status  Status        `json:"status"`
	Target  string        `json:"target,omitempty"`
	Error   string        `json:"error,omitempty"`
	SentAt  time.Time     `json:"sent_at,omitempty"`
}

// =============================================================================
// LogSink - 默认发送器，只打日志
// =============================================================================

// LogSink 本地开发用发送器: 不对接真实供应商，打日志即视为发送成功
type LogSink struct{}

var (
	_ EmailSender = (*LogSink)(nil)
	_ SmsSender   = (*LogSink)(nil)
	_ PushSender  = (*LogSink)(nil)
)

func (LogSink) SendEmail(ctx context.Context, to, subject, body string) error {
	log.Printf("[Notify] email to=%s subject=%q", to, subject)
	return nil
}

func (LogSink) SendSms(ctx context.Context, to, body string) error {
	log.Printf("[Notify] sms to=%s body=%q", to, body)
	return nil
}

func (LogSink) SendPush(ctx context.Context, userID int64, title, body string) error {
	log.Printf("[Notify] push user=%d title=%q", userID, title)
	return nil
}
