// 文件: pkg/monitor/monitor.go
// 预警监控器 - 整个核心的调度中枢
//
// 职责:
// 1. 行情刷新循环: 按工作集引用的币种批量拉行情，写入缓存并广播
// 2. 评估循环: 扫描工作集，逐条判定触发，执行触发序列
// 3. 维护 ActiveIndex 与 Store 的一致性 (创建/暂停/恢复/删除/重置)
//
// 【调度】两个循环独立计时:
// - 刷新默认 30s (上游有限流，批量拉)
// - 评估默认 5s  (故意比刷新密，触发要贴着最新缓存价尽快发现)
// 一个循环的慢 I/O 不会拖住另一个循环。
//
// 【并发】监控器是 Index/Cache 的唯一逻辑属主。
// 评估循环和外部变更 (暂停/删除等) 都会改预警状态，用 stateMu 串行化，
// 等价于单线程事件循环里的离散步骤。stop() 只保证不再开新周期，
// 进行中的周期会跑完。
//
// 【故障语义】这里没有任何致命错误:
// - 上游行情失败: 记 warning，本周期结束，旧缓存继续用
// - 触发后落库失败: 记 error，内存状态保持触发 (极端情况下进程崩溃会
//   丢这次触发记录，接受的 at-most-once 缺口)
// - 单条预警评估出错: 记日志跳过，不影响本周期其余预警

package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/alert"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/audit"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/notify"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/price"
)

// =============================================================================
// 配置
// =============================================================================

const (
	DefaultRefreshInterval = 30 * time.Second
	DefaultEvalInterval    = 5 * time.Second
	DefaultResyncInterval  = 10 * time.Minute
)

// Config 监控器配置
type Config struct {
	RefreshInterval time.Duration // 行情刷新周期
	EvalInterval    time.Duration // 评估周期
	ResyncInterval  time.Duration // 工作集全量重同步周期，0 = 关闭

	// DefaultRepeatInterval 创建预警时 RepeatInterval 未填的默认值 (分钟)
	DefaultRepeatInterval int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		RefreshInterval: DefaultRefreshInterval,
		EvalInterval:    DefaultEvalInterval,
		ResyncInterval:  DefaultResyncInterval,
	}
}

// =============================================================================
// Monitor
// =============================================================================

// Monitor 预警监控器
// 显式构造、按引用传递，进程内只建一个实例。
// 多实例部署会重复发通知，这里不做分布式协调 (已知限制)。
type Monitor struct {
	cfg       Config
	store     alert.Store
	index     *alert.Index
	cache     *price.Cache
	source    price.Source
	router    *notify.Router
	transport Transport
	journal   audit.Journal

	// 状态变更串行化 (评估循环 vs 外部增删改)
	stateMu sync.Mutex

	// 生命周期
	lifeMu  sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// 可注入时钟 (测试模拟重复预警的到点重置用)
	now func() time.Time

	// 统计
	refreshCount atomic.Int64
	evalCount    atomic.Int64
	triggerTotal atomic.Int64
}

// New 创建监控器
// transport/journal 传 nil 时自动用空实现
func New(cfg Config, store alert.Store, source price.Source, router *notify.Router, transport Transport, journal audit.Journal) *Monitor {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.EvalInterval <= 0 {
		cfg.EvalInterval = DefaultEvalInterval
	}
	if transport == nil {
		transport = NopTransport{}
	}
	if journal == nil {
		journal = audit.NopJournal{}
	}
	return &Monitor{
		cfg:       cfg,
		store:     store,
		index:     alert.NewIndex(),
		cache:     price.NewCache(),
		source:    source,
		router:    router,
		transport: transport,
		journal:   journal,
		now:       time.Now,
	}
}

// SetClock 注入时钟 (测试用)
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// =============================================================================
// 生命周期
// =============================================================================

// Start 启动监控器 (幂等: 已在运行则直接返回)
// 先从 Store 加载活跃工作集，再起两个后台循环
func (m *Monitor) Start(ctx context.Context) error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.running {
		return nil
	}

	if err := m.resync(ctx); err != nil {
		return fmt.Errorf("load active alerts: %w", err)
	}

	m.running = true
	m.stopCh = make(chan struct{})

	m.wg.Add(2)
	go m.refreshLoop()
	go m.evalLoop()

	log.Printf("[Monitor] started: refresh=%v, eval=%v, alerts=%d",
		m.cfg.RefreshInterval, m.cfg.EvalInterval, m.index.Len())
	return nil
}

// Stop 停止监控器 (幂等)
// 只保证不再开新周期，进行中的周期会跑完
func (m *Monitor) Stop() {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if !m.running {
		return
	}
	close(m.stopCh)
	m.wg.Wait()
	m.running = false
	log.Println("[Monitor] stopped")
}

// Running 是否在运行
func (m *Monitor) Running() bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	return m.running
}

// refreshLoop 行情刷新循环
func (m *Monitor) refreshLoop() {
	defer m.wg.Done()

	// 启动时立即刷一次，评估循环不用等第一个 30s
	m.refreshOnce(context.Background())

	ticker := time.NewTicker(m.cfg.RefreshInterval)
	defer ticker.Stop()
	lastResync := m.now()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.refreshOnce(context.Background())

			if m.cfg.ResyncInterval > 0 && m.now().Sub(lastResync) >= m.cfg.ResyncInterval {
				if err := m.resync(context.Background()); err != nil {
					log.Printf("[Monitor] resync failed: %v", err)
				} else {
					lastResync = m.now()
				}
			}
		}
	}
}

// evalLoop 评估循环
func (m *Monitor) evalLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.EvalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.evalOnce(context.Background())
		}
	}
}

// resync 从 Store 全量重建工作集
func (m *Monitor) resync(ctx context.Context) error {
	alerts, err := m.store.LoadActive(ctx)
	if err != nil {
		return err
	}
	m.index.Load(alerts)
	return nil
}

// =============================================================================
// 行情刷新
// =============================================================================

// refreshOnce 执行一次行情刷新
func (m *Monitor) refreshOnce(ctx context.Context) {
	symbols := m.index.Symbols()
	if len(symbols) == 0 {
		return // 没有预警引用任何币种，本周期跳过
	}

	observations, err := m.source.GetPrices(ctx, symbols)
	if err != nil {
		// 上游挂了: 旧缓存留在原地给评估循环用
		log.Printf("[Monitor] price refresh failed (stale cache retained): symbols=%d, err=%v",
			len(symbols), err)
		return
	}

	batch := make([]price.Observation, 0, len(observations))
	for sym, obs := range observations {
		m.cache.Update(sym, obs)
		batch = append(batch, obs)
	}
	m.refreshCount.Add(1)

	if err := m.transport.Publish(SubjectPriceUpdate, PriceUpdateEvent{Prices: batch}); err != nil {
		log.Printf("[Monitor] publish price update failed: %v", err)
	}
}

// =============================================================================
// 评估
// =============================================================================

// evalOnce 执行一轮评估
// 拿工作集快照逐条处理，单条出错不影响其余
func (m *Monitor) evalOnce(ctx context.Context) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	now := m.now()
	for _, a := range m.index.All() {
		m.evaluateAlert(ctx, a, now)
	}
	m.evalCount.Add(1)
}

// evaluateAlert 处理单条预警的一个评估周期
func (m *Monitor) evaluateAlert(ctx context.Context, a *alert.Alert, now time.Time) {
	// 1. 到点重新武装 (重复型预警)
	if a.Triggered && a.ReArmAt > 0 && now.UnixMilli() >= a.ReArmAt {
		a.ReArm()
		a.AppendAudit(alert.AuditReArmed, "", "")
		m.persist(ctx, a)
		// 注意: 重新武装后如果条件仍然成立，本周期就会再次触发。
		// 没有额外冷却，这是刻意保留的行为 (心跳式重复提醒)。
	}

	// 2. 过期的移出工作集，持久记录保留
	if a.IsExpired(now) {
		m.index.Remove(a.ID)
		log.Printf("[Monitor] alert expired, removed from working set: id=%d", a.ID)
		return
	}

	// 3. 未知类型: 程序性错误，跳过但不崩
	if !a.Kind.Valid() {
		log.Printf("[Monitor] unknown alert kind, skipped: id=%d kind=%q", a.ID, a.Kind)
		return
	}

	// 4. 取行情: 缓存 miss 时做一次单币种补拉
	obs, ok := m.cache.Get(a.Symbol)
	if !ok {
		fetched, err := m.source.GetPrices(ctx, []string{a.Symbol})
		if err != nil {
			log.Printf("[Monitor] single fetch failed: symbol=%s, err=%v", a.Symbol, err)
			return // 本周期放弃这条，下周期再试
		}
		obs, ok = fetched[a.Symbol]
		if !ok {
			log.Printf("[Monitor] symbol not found upstream: %s", a.Symbol)
			return
		}
		m.cache.Update(a.Symbol, obs)
	}

	// 5. 记历史并持久化 (尽力而为)
	a.RecordObservation(obs)
	m.persist(ctx, a)

	// 6. 判定
	if !alert.Evaluate(a, obs, now) {
		return
	}

	// 7. 触发序列
	m.fireTrigger(ctx, a, obs, now)
}

// fireTrigger 执行完整触发序列
func (m *Monitor) fireTrigger(ctx context.Context, a *alert.Alert, obs price.Observation, now time.Time) {
	a.MarkTriggered(now)
	note := fmt.Sprintf("price=%.8g change24h=%.2f", obs.Price, obs.Change24h)
	a.AppendAudit(alert.AuditTriggered, "", note)

	// 通知: 渠道间互相独立，结果逐渠道记录
	outcomes := m.router.Notify(ctx, a, obs)
	for _, out := range outcomes {
		if out.Status != notify.StatusSent {
			continue
		}
		a.AppendAudit(alert.AuditNotificationSent, out.Channel, "")
		m.record(ctx, audit.NewEvent(a, alert.AuditNotificationSent, out.Channel, obs.Price, ""))
	}

	// 落库失败只记日志，内存里的触发状态保持
	m.persist(ctx, a)

	// 工作集成员资格: 一次性预警触发即离场，重复型留下等重新武装
	if a.RepeatInterval == 0 {
		m.index.Remove(a.ID)
	}

	m.triggerTotal.Add(1)
	log.Printf("[Monitor] alert triggered: id=%d user=%d symbol=%s kind=%s count=%d/%d",
		a.ID, a.UserID, a.Symbol, a.Kind, a.TriggerCount, a.MaxTriggers)

	event := TriggerEvent{
		AlertID:     a.ID,
		UserID:      a.UserID,
		Symbol:      a.Symbol,
		Kind:        a.Kind,
		Price:       obs.Price,
		TriggeredAt: a.LastTriggeredAt,
		Outcomes:    outcomes,
	}
	if err := m.transport.Publish(SubjectAlertTriggered, event); err != nil {
		log.Printf("[Monitor] publish trigger event failed: %v", err)
	}
	m.record(ctx, audit.NewEvent(a, alert.AuditTriggered, "", obs.Price, note))
}

// persist 尽力而为落库
func (m *Monitor) persist(ctx context.Context, a *alert.Alert) {
	if err := m.store.Save(ctx, a); err != nil {
		log.Printf("[Monitor] save alert failed (in-memory state stands): id=%d, err=%v", a.ID, err)
	}
}

// record 尽力而为写事件流
func (m *Monitor) record(ctx context.Context, e audit.Event) {
	if err := m.journal.Record(ctx, e); err != nil {
		log.Printf("[Monitor] journal record failed: %v", err)
	}
}
