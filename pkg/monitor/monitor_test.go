package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/alert"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/audit"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/notify"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/price"
)

// =============================================================================
// 假件
// =============================================================================

// memStore 内存版 Store
type memStore struct {
	mu     sync.Mutex
	alerts map[int64]*alert.Alert
	saves  int
}

func newMemStore() *memStore {
	return &memStore{alerts: make(map[int64]*alert.Alert)}
}

func (s *memStore) LoadActive(ctx context.Context) ([]*alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*alert.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, alert.ErrAlertNotFound
	}
	return a, nil
}

func (s *memStore) Create(ctx context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; ok {
		return alert.ErrAlertExists
	}
	s.alerts[a.ID] = a
	return nil
}

func (s *memStore) Save(ctx context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = a
	s.saves++
	return nil
}

func (s *memStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[id]; !ok {
		return alert.ErrAlertNotFound
	}
	delete(s.alerts, id)
	return nil
}

func (s *memStore) ListByUser(ctx context.Context, userID int64) ([]*alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*alert.Alert
	for _, a := range s.alerts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeSource 固定报价的行情源
type fakeSource struct {
	mu      sync.Mutex
	prices  map[string]price.Observation
	err     error
	batches int // GetPrices 调用次数
}

func newFakeSource() *fakeSource {
	return &fakeSource{prices: make(map[string]price.Observation)}
}

func (s *fakeSource) set(symbol string, p, change, volume, mcap float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price.Observation{
		Symbol: symbol, Price: p, Change24h: change,
		Volume24h: volume, MarketCap: mcap, ObservedAt: time.Now(),
	}
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSource) GetPrices(ctx context.Context, symbols []string) (map[string]price.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]price.Observation, len(symbols))
	for _, sym := range symbols {
		if obs, ok := s.prices[sym]; ok {
			out[sym] = obs
		}
	}
	return out, nil
}

// recordingTransport 记录所有推送
type recordingTransport struct {
	mu     sync.Mutex
	events []struct {
		Subject string
		Payload any
	}
}

func (t *recordingTransport) Publish(subject string, payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, struct {
		Subject string
		Payload any
	}{subject, payload})
	return nil
}

func (t *recordingTransport) triggers() []TriggerEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []TriggerEvent
	for _, e := range t.events {
		if e.Subject == SubjectAlertTriggered {
			out = append(out, e.Payload.(TriggerEvent))
		}
	}
	return out
}

// recordingJournal 记录所有事件流写入
type recordingJournal struct {
	mu     sync.Mutex
	events []audit.Event
}

func (j *recordingJournal) Record(ctx context.Context, e audit.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
	return nil
}

func (j *recordingJournal) actions() []alert.AuditAction {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]alert.AuditAction, 0, len(j.events))
	for _, e := range j.events {
		out = append(out, e.Action)
	}
	return out
}

// =============================================================================
// 搭建
// =============================================================================

type fixture struct {
	m         *Monitor
	store     *memStore
	source    *fakeSource
	transport *recordingTransport
	journal   *recordingJournal
	limiter   *notify.MemoryRateLimiter
	clock     time.Time
}

func newFixture(t *testing.T, limits map[alert.Channel]notify.Limit) *fixture {
	t.Helper()
	f := &fixture{
		store:     newMemStore(),
		source:    newFakeSource(),
		transport: &recordingTransport{},
		journal:   &recordingJournal{},
		clock:     time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
	f.limiter = notify.NewMemoryRateLimiter(limits)
	f.limiter.SetClock(func() time.Time { return f.clock })

	router := notify.NewRouter(notify.Sinks{
		Email: notify.LogSink{}, Sms: notify.LogSink{}, Push: notify.LogSink{},
	}, f.limiter)

	f.m = New(DefaultConfig(), f.store, f.source, router, f.transport, f.journal)
	f.m.SetClock(func() time.Time { return f.clock })
	return f
}

// advance 拨快时钟
func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

// cycle 跑一个 刷新+评估 周期
func (f *fixture) cycle() {
	f.m.refreshOnce(context.Background())
	f.m.evalOnce(context.Background())
}

func baseAlert(id int64, kind alert.Kind) *alert.Alert {
	target := 45000.0
	return &alert.Alert{
		ID:     id,
		UserID: 7,
		Symbol: "BTC",
		Name:   "BTC watch",
		Kind:   kind,
		Condition: alert.Condition{
			TargetPrice: &target,
		},
		Active:      true,
		MaxTriggers: 1,
		Priority:    alert.PriorityMedium,
		Notifications: alert.Notifications{
			Email: alert.ChannelPref{Enabled: true, Target: "u7@example.com"},
		},
	}
}

// =============================================================================
// 场景测试
// =============================================================================

// 价格未到目标不触发，到达后触发一次性预警并离场
func TestOneShotTriggerLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	a := baseAlert(1, alert.KindPriceAbove)
	require.NoError(t, f.store.Create(context.Background(), a))
	require.NoError(t, f.m.resync(context.Background()))

	// 低于目标价: 不触发，但历史要记
	f.source.set("BTC", 44800, 1.2, 2e10, 8.8e11)
	f.cycle()
	require.False(t, a.Triggered)
	require.Len(t, a.History, 1)
	require.Empty(t, f.transport.triggers())

	// 到达目标价: 触发
	f.source.set("BTC", 45250, 2.1, 2e10, 8.8e11)
	f.cycle()

	require.True(t, a.Triggered)
	require.Equal(t, 1, a.TriggerCount)
	require.Equal(t, f.clock.UnixMilli(), a.LastTriggeredAt)
	require.Zero(t, a.ReArmAt) // 一次性预警不重新武装

	// 一次性预警触发后离开工作集
	require.Equal(t, 0, f.m.index.Len())

	// 审计链: created 不在这条里 (直接塞的 store)，triggered + notification_sent
	var actions []alert.AuditAction
	for _, e := range a.Audit {
		actions = append(actions, e.Action)
	}
	require.Contains(t, actions, alert.AuditTriggered)
	require.Contains(t, actions, alert.AuditNotificationSent)

	// 触发事件推送
	triggers := f.transport.triggers()
	require.Len(t, triggers, 1)
	require.Equal(t, int64(1), triggers[0].AlertID)
	require.Equal(t, 45250.0, triggers[0].Price)

	// 事件流: triggered + notification_sent (email)
	require.Contains(t, f.journal.actions(), alert.AuditTriggered)
	require.Contains(t, f.journal.actions(), alert.AuditNotificationSent)

	// 条件持续成立也不再触发
	f.cycle()
	require.Equal(t, 1, a.TriggerCount)
}

// 重复型预警: 到点重新武装后条件仍成立则再次触发
func TestRepeatingAlertReArms(t *testing.T) {
	f := newFixture(t, nil)
	a := baseAlert(2, alert.KindPriceAbove)
	a.RepeatInterval = 60 // 分钟
	a.MaxTriggers = 10
	require.NoError(t, f.store.Create(context.Background(), a))
	require.NoError(t, f.m.resync(context.Background()))

	f.source.set("BTC", 45500, 2.0, 2e10, 8.8e11)
	f.cycle()
	require.True(t, a.Triggered)
	require.Equal(t, 1, a.TriggerCount)
	firstReArm := a.ReArmAt
	require.Equal(t, f.clock.Add(60*time.Minute).UnixMilli(), firstReArm)

	// 重复型预警留在工作集里
	require.Equal(t, 1, f.m.index.Len())

	// 到点之前不动
	f.advance(59 * time.Minute)
	f.cycle()
	require.True(t, a.Triggered)
	require.Equal(t, 1, a.TriggerCount)

	// 过了重复间隔: 重新武装，同周期条件仍成立 → 再触发
	f.advance(2 * time.Minute)
	f.cycle()
	require.Equal(t, 2, a.TriggerCount)
	require.Greater(t, a.ReArmAt, firstReArm)
	require.Contains(t, f.journal.actions(), alert.AuditReArmed)
}

// 触发次数用完后静默，Reset 后恢复
func TestExhaustionAndReset(t *testing.T) {
	f := newFixture(t, nil)
	a := baseAlert(3, alert.KindPriceAbove)
	a.RepeatInterval = 30
	a.MaxTriggers = 2
	require.NoError(t, f.store.Create(context.Background(), a))
	require.NoError(t, f.m.resync(context.Background()))

	f.source.set("BTC", 46000, 3.0, 2e10, 8.8e11)
	for i := 0; i < 4; i++ {
		f.cycle()
		f.advance(31 * time.Minute)
	}
	require.Equal(t, 2, a.TriggerCount) // 上限拦住了

	require.NoError(t, f.m.ResetAlert(context.Background(), a.ID))
	require.Zero(t, a.TriggerCount)
	require.False(t, a.Triggered)

	f.cycle()
	require.Equal(t, 1, a.TriggerCount)
}

// 行情批量失败: 旧缓存继续评估
func TestStaleCacheOnSourceFailure(t *testing.T) {
	f := newFixture(t, nil)
	a := baseAlert(4, alert.KindPriceAbove)
	require.NoError(t, f.store.Create(context.Background(), a))
	require.NoError(t, f.m.resync(context.Background()))

	f.source.set("BTC", 44000, 0.5, 2e10, 8.8e11)
	f.cycle()
	require.False(t, a.Triggered)

	// 上游故障，缓存里还是 44000 → 依旧不触发，也不崩
	f.source.fail(errors.New("upstream 503"))
	f.cycle()
	require.False(t, a.Triggered)
	obs, ok := f.m.cache.Get("BTC")
	require.True(t, ok)
	require.Equal(t, 44000.0, obs.Price)
}

// 涨跌幅预警取绝对值: 跌 6.2% 触发 5% 阈值
func TestPriceChangeAbsolute(t *testing.T) {
	f := newFixture(t, nil)
	a := baseAlert(5, alert.KindPriceChange)
	pct := 5.0
	a.Condition = alert.Condition{PercentChange: &pct, Timeframe: alert.Timeframe24h}
	require.NoError(t, f.store.Create(context.Background(), a))
	require.NoError(t, f.m.resync(context.Background()))

	f.source.set("BTC", 42000, -6.2, 2e10, 8.8e11)
	f.cycle()
	require.True(t, a.Triggered)
}

// 渠道限流互不影响: email 被限流时 sms 照发
func TestRateLimitedChannelIsolation(t *testing.T) {
	limits := map[alert.Channel]notify.Limit{
		alert.ChannelEmail: {Count: 1, Window: time.Hour},
		alert.ChannelSms:   {Count: 20, Window: time.Hour},
	}
	f := newFixture(t, limits)

	// 先用掉 email 的配额
	require.True(t, f.limiter.Allow(context.Background(), alert.ChannelEmail, "u7@example.com"))

	a := baseAlert(6, alert.KindPriceAbove)
	a.Notifications.Sms = alert.ChannelPref{Enabled: true, Target: "+8613800000000"}
	require.NoError(t, f.store.Create(context.Background(), a))
	require.NoError(t, f.m.resync(context.Background()))

	f.source.set("BTC", 45500, 2.0, 2e10, 8.8e11)
	f.cycle()

	require.True(t, a.Triggered)
	triggers := f.transport.triggers()
	require.Len(t, triggers, 1)

	byChannel := make(map[alert.Channel]notify.Status)
	for _, out := range triggers[0].Outcomes {
		byChannel[out.Channel] = out.Status
	}
	require.Equal(t, notify.StatusRateLimited, byChannel[alert.ChannelEmail])
	require.Equal(t, notify.StatusSent, byChannel[alert.ChannelSms])

	// 发送状态只更新成功的渠道
	require.False(t, a.Notifications.Email.Sent)
	require.True(t, a.Notifications.Sms.Sent)
}

// 过期预警移出工作集，不评估不触发
func TestExpiredAlertRemoved(t *testing.T) {
	f := newFixture(t, nil)
	a := baseAlert(7, alert.KindPriceAbove)
	a.ExpiresAt = f.clock.Add(10 * time.Minute).UnixMilli()
	require.NoError(t, f.store.Create(context.Background(), a))
	require.NoError(t, f.m.resync(context.Background()))

	f.source.set("BTC", 46000, 2.0, 2e10, 8.8e11)
	f.advance(11 * time.Minute)
	f.cycle()

	require.False(t, a.Triggered)
	require.Equal(t, 0, f.m.index.Len())
}

// 缓存 miss 走单币种补拉
func TestSingleSymbolBackfill(t *testing.T) {
	f := newFixture(t, nil)
	a := baseAlert(8, alert.KindPriceAbove)
	require.NoError(t, f.store.Create(context.Background(), a))
	require.NoError(t, f.m.resync(context.Background()))

	// 不跑 refreshOnce，缓存是空的
	f.source.set("BTC", 45100, 1.0, 2e10, 8.8e11)
	f.m.evalOnce(context.Background())

	require.True(t, a.Triggered)
	_, ok := f.m.cache.Get("BTC")
	require.True(t, ok)
}

// =============================================================================
// 用户侧操作
// =============================================================================

func TestCreatePauseResumeDelete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	target := 45000.0
	a := &alert.Alert{
		UserID: 9,
		Symbol: "  eth ", // 要规范化
		Kind:   alert.KindPriceBelow,
		Condition: alert.Condition{
			TargetPrice: &target,
		},
		Active: true,
		Notifications: alert.Notifications{
			Push: alert.ChannelPref{Enabled: true},
		},
	}
	require.NoError(t, f.m.CreateAlert(ctx, a))
	require.NotZero(t, a.ID)
	require.Equal(t, "ETH", a.Symbol)
	require.Equal(t, 1, a.MaxTriggers)
	require.Equal(t, alert.PriorityMedium, a.Priority)
	require.Equal(t, 1, f.m.index.Len())
	require.Equal(t, alert.AuditCreated, a.Audit[0].Action)

	// 暂停: 离开工作集，持久记录保留
	require.NoError(t, f.m.PauseAlert(ctx, a.ID))
	require.False(t, a.Active)
	require.Equal(t, 0, f.m.index.Len())
	stored, err := f.store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, stored.Active)

	// 恢复: 清触发态重新入场
	a.Triggered = true
	require.NoError(t, f.m.ResumeAlert(ctx, a.ID))
	require.True(t, a.Active)
	require.False(t, a.Triggered)
	require.Equal(t, 1, f.m.index.Len())

	// 删除
	require.NoError(t, f.m.DeleteAlert(ctx, a.ID))
	require.Equal(t, 0, f.m.index.Len())
	_, err = f.store.GetByID(ctx, a.ID)
	require.ErrorIs(t, err, alert.ErrAlertNotFound)

	// 对不存在的 ID 返回错误
	require.ErrorIs(t, f.m.PauseAlert(ctx, 999999), alert.ErrAlertNotFound)
}

func TestCreateAlertValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.m.CreateAlert(ctx, &alert.Alert{Symbol: " ", Kind: alert.KindPriceAbove})
	require.Error(t, err)

	err = f.m.CreateAlert(ctx, &alert.Alert{Symbol: "BTC", Kind: "nonsense"})
	require.Error(t, err)
}

func TestStartStopIdempotent(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.m.Start(context.Background()))
	require.NoError(t, f.m.Start(context.Background())) // 重复启动无害
	require.True(t, f.m.Running())

	st := f.m.GetStatus()
	require.True(t, st.Running)

	f.m.Stop()
	f.m.Stop() // 重复停止无害
	require.False(t, f.m.Running())
}

// 刷新事件推送整批行情
func TestPriceUpdateBroadcast(t *testing.T) {
	f := newFixture(t, nil)
	a := baseAlert(10, alert.KindPriceAbove)
	b := baseAlert(11, alert.KindPriceAbove)
	b.Symbol = "ETH"
	require.NoError(t, f.store.Create(context.Background(), a))
	require.NoError(t, f.store.Create(context.Background(), b))
	require.NoError(t, f.m.resync(context.Background()))

	f.source.set("BTC", 44000, 1.0, 2e10, 8.8e11)
	f.source.set("ETH", 2400, -0.5, 9e9, 2.9e11)
	f.m.refreshOnce(context.Background())

	require.Len(t, f.transport.events, 1)
	require.Equal(t, SubjectPriceUpdate, f.transport.events[0].Subject)
	update := f.transport.events[0].Payload.(PriceUpdateEvent)
	require.Len(t, update.Prices, 2)

	// 单次批量请求覆盖两个币种
	require.Equal(t, 1, f.source.batches)
}
