// 文件: pkg/alert/mysql_store.go
// 预警 MySQL 存储实现
//
// 【设计】
// - 使用 GORM 作为 ORM
// - Alert 的嵌套结构 (条件/通知配置/历史/审计) 走 JSON 序列化列
// - 所有操作带 context 支持超时控制

package alert

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// 确保实现了接口
var _ Store = (*MySQLStore)(nil)

// DefaultMaxAlertsPerUser 单用户预警数量上限的默认值
const DefaultMaxAlertsPerUser = 50

// MySQLStore MySQL 实现
type MySQLStore struct {
	db         *gorm.DB
	maxPerUser int
}

// NewMySQLStore 创建 MySQL 存储
// maxPerUser <= 0 时使用默认上限
func NewMySQLStore(db *gorm.DB, maxPerUser int) *MySQLStore {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxAlertsPerUser
	}
	return &MySQLStore{db: db, maxPerUser: maxPerUser}
}

// LoadActive 加载活跃且未过期的预警
func (s *MySQLStore) LoadActive(ctx context.Context) ([]*Alert, error) {
	var alerts []*Alert
	now := time.Now().UnixMilli()
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Where("expires_at = 0 OR expires_at > ?", now).
		Find(&alerts).Error
	return alerts, err
}

// GetByID 按 ID 查询
func (s *MySQLStore) GetByID(ctx context.Context, alertID int64) (*Alert, error) {
	var a Alert
	err := s.db.WithContext(ctx).
		Where("id = ?", alertID).
		First(&a).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create 创建预警
// 先检查单用户上限，再写入
func (s *MySQLStore) Create(ctx context.Context, a *Alert) error {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Alert{}).
		Where("user_id = ?", a.UserID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count >= int64(s.maxPerUser) {
		return ErrTooManyAlerts
	}

	now := time.Now().UnixMilli()
	a.CreatedAt = now
	a.UpdatedAt = now

	err = s.db.WithContext(ctx).Create(a).Error
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrAlertExists
		}
		return err
	}
	return nil
}

// Save 整体保存
// 用 Save 而不是 Updates: 触发后 Triggered=true、Sent 状态这类
// 布尔字段需要覆盖写，Updates 会跳过零值
func (s *MySQLStore) Save(ctx context.Context, a *Alert) error {
	a.UpdatedAt = time.Now().UnixMilli()

	result := s.db.WithContext(ctx).Save(a)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

// Delete 删除预警
func (s *MySQLStore) Delete(ctx context.Context, alertID int64) error {
	result := s.db.WithContext(ctx).
		Where("id = ?", alertID).
		Delete(&Alert{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// ListByUser 按用户查询
func (s *MySQLStore) ListByUser(ctx context.Context, userID int64) ([]*Alert, error) {
	var alerts []*Alert
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&alerts).Error
	return alerts, err
}

// isDuplicateKeyError 判断是否为重复键错误
// MySQL error code 1062 = Duplicate entry
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Duplicate entry") || strings.Contains(errStr, "1062")
}
