// 文件: pkg/monitor/ops.go
// 用户侧操作: 创建/暂停/恢复/删除/重置
//
// 所有操作同时维护 Store (持久) 与 Index (工作集) 两份状态，
// 和评估循环共用 stateMu，保证不会在评估到一半时改预警。

package monitor

import (
	"context"
	"fmt"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/alert"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/audit"
)

// CreateAlert 创建预警
// 填默认值、生成 ID、入库后加入工作集 (active 才加)
func (m *Monitor) CreateAlert(ctx context.Context, a *alert.Alert) error {
	if a == nil {
		return fmt.Errorf("nil alert")
	}
	a.Symbol = alert.NormalizeSymbol(a.Symbol)
	if a.Symbol == "" {
		return fmt.Errorf("empty symbol")
	}
	if !a.Kind.Valid() {
		return fmt.Errorf("unknown alert kind: %q", a.Kind)
	}

	// 默认值
	if a.ID == 0 {
		a.ID = alert.GenerateAlertID()
	}
	if a.MaxTriggers < 1 {
		a.MaxTriggers = 1
	}
	if a.RepeatInterval < 0 {
		a.RepeatInterval = 0
	}
	if a.RepeatInterval == 0 && m.cfg.DefaultRepeatInterval > 0 {
		a.RepeatInterval = m.cfg.DefaultRepeatInterval
	}
	if a.Priority == "" {
		a.Priority = alert.PriorityMedium
	}
	a.Triggered = false
	a.TriggerCount = 0
	a.ReArmAt = 0

	a.AppendAudit(alert.AuditCreated, "", "")

	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if err := m.store.Create(ctx, a); err != nil {
		return err
	}
	if a.Active {
		m.index.Upsert(a)
	}
	m.record(ctx, audit.NewEvent(a, alert.AuditCreated, "", 0, ""))
	return nil
}

// PauseAlert 暂停预警: active=false，移出工作集
func (m *Monitor) PauseAlert(ctx context.Context, id int64) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	a, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	a.Active = false
	a.AppendAudit(alert.AuditPaused, "", "")
	if err := m.store.Save(ctx, a); err != nil {
		return err
	}
	m.index.Remove(id)
	m.record(ctx, audit.NewEvent(a, alert.AuditPaused, "", 0, ""))
	return nil
}

// ResumeAlert 恢复预警: active=true，清触发态，重新入工作集
func (m *Monitor) ResumeAlert(ctx context.Context, id int64) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	a, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	a.Active = true
	a.Triggered = false
	a.ReArmAt = 0
	a.AppendAudit(alert.AuditResumed, "", "")
	if err := m.store.Save(ctx, a); err != nil {
		return err
	}
	m.index.Upsert(a)
	m.record(ctx, audit.NewEvent(a, alert.AuditResumed, "", 0, ""))
	return nil
}

// ResetAlert 重置触发计数，耗尽的预警重新可触发
func (m *Monitor) ResetAlert(ctx context.Context, id int64) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	a, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	a.TriggerCount = 0
	a.Triggered = false
	a.ReArmAt = 0
	a.AppendAudit(alert.AuditReset, "", "")
	if err := m.store.Save(ctx, a); err != nil {
		return err
	}
	if a.Active {
		m.index.Upsert(a)
	}
	m.record(ctx, audit.NewEvent(a, alert.AuditReset, "", 0, ""))
	return nil
}

// DeleteAlert 删除预警
// 记录本身没了，删除事件只活在事件流里
func (m *Monitor) DeleteAlert(ctx context.Context, id int64) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	a, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.index.Remove(id)
	m.record(ctx, audit.NewEvent(a, alert.AuditDeleted, "", 0, ""))
	return nil
}

// load 优先拿工作集里的指针 (带未落库的内存状态)，不在才查库
func (m *Monitor) load(ctx context.Context, id int64) (*alert.Alert, error) {
	if a, ok := m.index.Get(id); ok {
		return a, nil
	}
	return m.store.GetByID(ctx, id)
}

// =============================================================================
// 状态快照
// =============================================================================

// Status 监控器状态
type Status struct {
	Running       bool  `json:"running"`
	ActiveAlerts  int   `json:"active_alerts"`
	CachedSymbols int   `json:"cached_symbols"`
	RefreshCycles int64 `json:"refresh_cycles"`
	EvalCycles    int64 `json:"eval_cycles"`
	TriggerTotal  int64 `json:"trigger_total"`
}

// GetStatus 状态快照
func (m *Monitor) GetStatus() Status {
	return Status{
		Running:       m.Running(),
		ActiveAlerts:  m.index.Len(),
		CachedSymbols: m.cache.Len(),
		RefreshCycles: m.refreshCount.Load(),
		EvalCycles:    m.evalCount.Load(),
		TriggerTotal:  m.triggerTotal.Load(),
	}
}
