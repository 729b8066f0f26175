// 文件: pkg/alert/cache_store.go
// 预警 Redis 缓存层
//
// 【设计模式】装饰器模式
// - 包装底层 Store，透明添加缓存能力
// - 调用方无感知，只看到 Store 接口
//
// 【缓存策略】
// - 读: 先查 Redis，miss 则查 DB 并回填
// - 写: 先写 DB，成功后删除缓存 (Cache Aside)

package alert

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// 确保实现了接口
var _ Store = (*CachedStore)(nil)

const (
	// 缓存 Key 前缀
	cacheKeyPrefix = "tracker:alert:"

	// 单条预警: tracker:alert:id:{id}
	cacheKeyByID = cacheKeyPrefix + "id:"

	// 活跃列表: tracker:alert:active
	cacheKeyActiveList = cacheKeyPrefix + "active"

	// 单条缓存过期时间
	cacheTTL = 1 * time.Hour

	// 活跃列表过期时间 (短，触发/暂停都会让它失真)
	activeListTTL = 30 * time.Second
)

// CachedStore Redis 缓存装饰器
type CachedStore struct {
	store Store
	redis *redis.Client
}

// NewCachedStore 创建带缓存的 Store
//
// 用法:
//
//	mysqlStore := NewMySQLStore(db, 50)
//	cached := NewCachedStore(mysqlStore, redisClient)
func NewCachedStore(store Store, rds *redis.Client) *CachedStore {
	return &CachedStore{store: store, redis: rds}
}

// LoadActive 加载活跃预警 (带短 TTL 列表缓存)
func (s *CachedStore) LoadActive(ctx context.Context) ([]*Alert, error) {
	data, err := s.redis.Get(ctx, cacheKeyActiveList).Bytes()
	if err == nil {
		var alerts []*Alert
		if json.Unmarshal(data, &alerts) == nil {
			return alerts, nil // Cache hit
		}
	}

	alerts, err := s.store.LoadActive(ctx)
	if err != nil {
		return nil, err
	}

	// 回填 (异步，不阻塞主流程)
	go func() {
		if data, err := json.Marshal(alerts); err == nil {
			s.redis.Set(context.Background(), cacheKeyActiveList, data, activeListTTL)
		}
	}()

	return alerts, nil
}

// GetByID 按 ID 查询 (带缓存)
func (s *CachedStore) GetByID(ctx context.Context, alertID int64) (*Alert, error) {
	key := cacheKeyByID + strconv.FormatInt(alertID, 10)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == nil {
		var a Alert
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.store.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	go func() {
		if data, err := json.Marshal(a); err == nil {
			s.redis.Set(context.Background(), key, data, cacheTTL)
		}
	}()

	return a, nil
}

// Create 创建预警
func (s *CachedStore) Create(ctx context.Context, a *Alert) error {
	if err := s.store.Create(ctx, a); err != nil {
		return err
	}
	// 新记录下次读取时自动缓存，只需让列表缓存失效
	s.redis.Del(ctx, cacheKeyActiveList)
	return nil
}

// Save 保存预警
func (s *CachedStore) Save(ctx context.Context, a *Alert) error {
	if err := s.store.Save(ctx, a); err != nil {
		return err
	}
	s.invalidate(ctx, a.ID)
	return nil
}

// Delete 删除预警
func (s *CachedStore) Delete(ctx context.Context, alertID int64) error {
	if err := s.store.Delete(ctx, alertID); err != nil {
		return err
	}
	s.invalidate(ctx, alertID)
	return nil
}

// ListByUser 按用户查询
// 列表不缓存: 用户侧读取频率低，缓存一致性成本不划算
func (s *CachedStore) ListByUser(ctx context.Context, userID int64) ([]*Alert, error) {
	return s.store.ListByUser(ctx, userID)
}

// invalidate 删除单条缓存和列表缓存
func (s *CachedStore) invalidate(ctx context.Context, alertID int64) {
	s.redis.Del(ctx, cacheKeyByID+strconv.FormatInt(alertID, 10))
	s.redis.Del(ctx, cacheKeyActiveList)
}
