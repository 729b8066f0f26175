package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/price"
)

func TestNormalizeSymbol(t *testing.T) {
	require.Equal(t, "BTC", NormalizeSymbol(" btc "))
	require.Equal(t, "ETH", NormalizeSymbol("eTh"))
}

// 历史上限 100 条，超出后丢最旧的 (FIFO)
func TestRecordObservation_HistoryCap(t *testing.T) {
	a := &Alert{Symbol: "BTC"}

	for i := 0; i < MaxHistoryEntries+20; i++ {
		a.RecordObservation(price.Observation{
			Symbol:     "BTC",
			Price:      float64(i),
			ObservedAt: time.Now(),
		})
	}

	require.Len(t, a.History, MaxHistoryEntries)
	// 最旧的 20 条被丢弃，第一条应该是 price=20
	require.Equal(t, 20.0, a.History[0].Price)
	require.Equal(t, float64(MaxHistoryEntries+19), a.History[len(a.History)-1].Price)
}

func TestMarkTriggered_OneShot(t *testing.T) {
	now := time.Now()
	a := &Alert{Active: true, MaxTriggers: 1, RepeatInterval: 0}

	a.MarkTriggered(now)

	require.True(t, a.Triggered)
	require.Equal(t, 1, a.TriggerCount)
	require.Equal(t, now.UnixMilli(), a.LastTriggeredAt)
	// 一次性预警不安排重新武装
	require.Zero(t, a.ReArmAt)
}

func TestMarkTriggered_Repeat(t *testing.T) {
	now := time.Now()
	a := &Alert{Active: true, MaxTriggers: 10, RepeatInterval: 60}

	a.MarkTriggered(now)

	require.True(t, a.Triggered)
	require.Equal(t, now.Add(60*time.Minute).UnixMilli(), a.ReArmAt)

	// 到点重新武装
	a.ReArm()
	require.False(t, a.Triggered)
	require.Zero(t, a.ReArmAt)
	// 触发计数保留
	require.Equal(t, 1, a.TriggerCount)
}

func TestAppendAudit(t *testing.T) {
	a := &Alert{}

	e1 := a.AppendAudit(AuditCreated, "", "")
	e2 := a.AppendAudit(AuditTriggered, "", "price 45250 >= 45000")
	a.AppendAudit(AuditNotificationSent, ChannelSms, "")

	require.Len(t, a.Audit, 3)
	require.NotEmpty(t, e1.EventID)
	require.NotEqual(t, e1.EventID, e2.EventID)
	require.Equal(t, AuditTriggered, a.Audit[1].Action)
	require.Equal(t, ChannelSms, a.Audit[2].Channel)
}

func TestNotifications_Pref(t *testing.T) {
	n := &Notifications{
		Email: ChannelPref{Enabled: true, Target: "a@b.c"},
		Sms:   ChannelPref{Enabled: false},
	}

	require.True(t, n.Pref(ChannelEmail).Enabled)
	require.False(t, n.Pref(ChannelSms).Enabled)
	require.Nil(t, n.Pref(Channel("pigeon")))

	// 返回的是指针，可以原地更新发送状态
	n.Pref(ChannelEmail).Sent = true
	require.True(t, n.Email.Sent)
}

func TestExhausted(t *testing.T) {
	a := &Alert{MaxTriggers: 2, TriggerCount: 1}
	require.False(t, a.Exhausted())

	a.TriggerCount = 2
	require.True(t, a.Exhausted())

	// MaxTriggers = 0 视为未限制 (创建路径会保证 >= 1，这里只是防御)
	a = &Alert{MaxTriggers: 0, TriggerCount: 100}
	require.False(t, a.Exhausted())
}
