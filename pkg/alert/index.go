// 文件: pkg/alert/index.go
// 活跃预警索引 - 内存工作集
//
// 持久层 (Store) 的活跃子集镜像，monitor 的评估循环只扫这里。
// 启动时 Load 全量，之后由 monitor 在增删改/触发时同步维护。

package alert

import (
	"sync"
)

// Index 活跃预警索引，按 AlertID 建键
type Index struct {
	mu     sync.RWMutex
	alerts map[int64]*Alert
}

// NewIndex 创建空索引
func NewIndex() *Index {
	return &Index{
		alerts: make(map[int64]*Alert),
	}
}

// Load 整体替换工作集 (启动和定期重同步用)
func (idx *Index) Load(alerts []*Alert) {
	next := make(map[int64]*Alert, len(alerts))
	for _, a := range alerts {
		next[a.ID] = a
	}

	idx.mu.Lock()
	idx.alerts = next
	idx.mu.Unlock()
}

// Upsert 新增或覆盖一条预警
func (idx *Index) Upsert(a *Alert) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.alerts[a.ID] = a
}

// Remove 移除一条预警，返回是否存在
func (idx *Index) Remove(alertID int64) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	_, ok := idx.alerts[alertID]
	delete(idx.alerts, alertID)
	return ok
}

// Get 按 ID 查找
func (idx *Index) Get(alertID int64) (*Alert, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	a, ok := idx.alerts[alertID]
	return a, ok
}

// All 当前工作集快照
// 返回新切片: 评估循环遍历期间其他 goroutine 的增删不影响本次遍历
func (idx *Index) All() []*Alert {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]*Alert, 0, len(idx.alerts))
	for _, a := range idx.alerts {
		out = append(out, a)
	}
	return out
}

// Symbols 工作集引用到的币种集合 (去重)
// 行情刷新按这个集合批量请求
func (idx *Index) Symbols() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[string]struct{}, len(idx.alerts))
	out := make([]string, 0, len(idx.alerts))
	for _, a := range idx.alerts {
		if _, ok := seen[a.Symbol]; ok {
			continue
		}
		seen[a.Symbol] = struct{}{}
		out = append(out, a.Symbol)
	}
	return out
}

// Len 工作集大小
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.alerts)
}
