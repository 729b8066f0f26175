// 文件: pkg/notify/router.go
// 通知路由器 - 把触发的预警扇出到各渠道
//
// 【隔离性】三个渠道互相独立:
// - 某渠道被限流只跳过该渠道，其他渠道照常尝试
// - 某渠道投递失败只记录结果，不中断其他渠道
//
// 投递成功后原地更新 ChannelPref 的 Sent/SentAt，落库由调用方负责

package notify

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/alert"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/price"
)

// channels 路由顺序固定，结果顺序可预测
var channels = []alert.Channel{alert.ChannelEmail, alert.ChannelSms, alert.ChannelPush}

// Router 通知路由器
type Router struct {
	sinks   Sinks
	limiter RateLimiter
}

// NewRouter 创建通知路由器
// limiter 为 nil 时使用默认配置的内存限流器
func NewRouter(sinks Sinks, limiter RateLimiter) *Router {
	if limiter == nil {
		limiter = NewMemoryRateLimiter(nil)
	}
	return &Router{sinks: sinks, limiter: limiter}
}

// Notify 对一条已触发的预警执行全渠道投递
// 返回每个渠道的结果，永不返回 error: 投递失败是结果，不是异常
func (r *Router) Notify(ctx context.Context, a *alert.Alert, obs price.Observation) []Outcome {
	subject, body := Render(a, obs)

	outcomes := make([]Outcome, 0, len(channels))
	for _, ch := range channels {
		outcomes = append(outcomes, r.attempt(ctx, ch, a, obs, subject, body))
	}
	return outcomes
}

// attempt 单渠道投递
func (r *Router) attempt(ctx context.Context, ch alert.Channel, a *alert.Alert, obs price.Observation, subject, body string) Outcome {
	out := Outcome{Channel: ch}

	pref := a.Notifications.Pref(ch)
	if pref == nil || !pref.Enabled {
		out.Status = StatusDisabled
		return out
	}
	out.Target = pref.Target

	// 限流键: push 渠道按用户，email/sms 按目标地址
	limitKey := pref.Target
	if ch == alert.ChannelPush {
		limitKey = formatUserKey(a.UserID)
	}
	if !r.limiter.Allow(ctx, ch, limitKey) {
		log.Printf("[Notify] rate limited: channel=%s alert=%d target=%s", ch, a.ID, limitKey)
		out.Status = StatusRateLimited
		return out
	}

	var err error
	switch ch {
	case alert.ChannelEmail:
		if r.sinks.Email == nil {
			out.Status = StatusDisabled
			return out
		}
		err = r.sinks.Email.SendEmail(ctx, pref.Target, subject, body)
	case alert.ChannelSms:
		if r.sinks.Sms == nil {
			out.Status = StatusDisabled
			return out
		}
		err = r.sinks.Sms.SendSms(ctx, pref.Target, body)
	case alert.ChannelPush:
		if r.sinks.Push == nil {
			out.Status = StatusDisabled
			return out
		}
		err = r.sinks.Push.SendPush(ctx, a.UserID, subject, body)
	}

	if err != nil {
		log.Printf("[Notify] send failed: channel=%s alert=%d err=%v", ch, a.ID, err)
		out.Status = StatusFailed
		out.Error = err.Error()
		return out
	}

	now := time.Now()
	out.Status = StatusSent
	out.SentAt = now
	pref.Sent = true
	pref.SentAt = now.UnixMilli()
	return out
}

// formatUserKey push 没有外部地址，按用户维度限流
func formatUserKey(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}
