// 文件: pkg/config/config.go
// 进程配置 - 环境变量驱动
//
// 约定: 所有项都有可跑的默认值，本地 .env 覆盖，生产用真实环境变量。
// 外部依赖 (MySQL/Redis/NATS/Kafka) 的地址留空表示不启用对应组件，
// 进程退化为纯内存模式，方便本地开发。

package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 进程配置
type Config struct {
	// 持久层
	MySQLDSN  string // 空 = 不可用，进程启动失败 (预警必须有持久层)
	RedisAddr string // 空 = 不启用缓存/分布式限流

	// 消息
	NATSURL      string   // 空 = 不启用实时推送
	KafkaBrokers []string // 空 = 不启用事件流

	// 行情源
	PriceAPIBaseURL string // 空 = 用内置模拟行情

	// 监控节奏
	RefreshInterval time.Duration
	EvalInterval    time.Duration

	// 业务参数
	DefaultRepeatInterval int // 分钟，0 = 创建时不补默认
	MaxAlertsPerUser      int

	// 雪花节点 (多实例部署时每个进程配不同值)
	NodeID int64
}

// Load 读取配置
// 先尝试加载 .env (没有也不算错)，再读环境变量，缺省用默认值
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[Config] no .env file, using system environment")
	}

	return Config{
		MySQLDSN:        getEnv("TRACKER_MYSQL_DSN", "root:123456@tcp(127.0.0.1:3306)/crypto_tracker?charset=utf8mb4&parseTime=True&loc=Local"),
		RedisAddr:       getEnv("TRACKER_REDIS_ADDR", ""),
		NATSURL:         getEnv("TRACKER_NATS_URL", ""),
		KafkaBrokers:    getEnvList("TRACKER_KAFKA_BROKERS"),
		PriceAPIBaseURL: getEnv("TRACKER_PRICE_API_URL", ""),

		RefreshInterval: getEnvDuration("TRACKER_REFRESH_INTERVAL", 30*time.Second),
		EvalInterval:    getEnvDuration("TRACKER_EVAL_INTERVAL", 5*time.Second),

		DefaultRepeatInterval: getEnvInt("TRACKER_DEFAULT_REPEAT_MINUTES", 0),
		MaxAlertsPerUser:      getEnvInt("TRACKER_MAX_ALERTS_PER_USER", 50),

		NodeID: int64(getEnvInt("TRACKER_NODE_ID", 0)),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[Config] invalid %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[Config] invalid %s=%q, using default %v", key, v, def)
		return def
	}
	return d
}

// getEnvList 逗号分隔的列表，空串 = 空列表
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
