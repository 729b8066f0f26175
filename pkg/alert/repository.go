// 文件: pkg/alert/repository.go
// 预警持久层接口定义

package alert

import (
	"context"
	"errors"
)

// 错误定义
var (
	ErrAlertNotFound = errors.New("alert not found")
	ErrAlertExists   = errors.New("alert already exists")
	ErrTooManyAlerts = errors.New("user reached max alerts limit")
)

// Store 预警持久层
//
// 实现:
// - MySQLStore: GORM + MySQL
// - CachedStore: Redis 缓存装饰器，包在 MySQLStore 外层
type Store interface {
	// LoadActive 加载全部活跃且未过期的预警 (启动和重同步用)
	LoadActive(ctx context.Context) ([]*Alert, error)

	// GetByID 按 ID 查询
	GetByID(ctx context.Context, alertID int64) (*Alert, error)

	// Create 创建预警，写入前检查单用户上限
	Create(ctx context.Context, a *Alert) error

	// Save 整体保存一条已变更的预警
	Save(ctx context.Context, a *Alert) error

	// Delete 删除预警
	Delete(ctx context.Context, alertID int64) error

	// ListByUser 按用户查询全部预警
	ListByUser(ctx context.Context, userID int64) ([]*Alert, error)
}
