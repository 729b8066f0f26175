// 文件: cmd/tracker/main.go
// 预警监控进程入口
//
// 组装链路: 配置 → 持久层 → 行情源 → 通知 → 消息 → 监控器。
// Redis/NATS/Kafka/行情 API 地址未配置时各自退化:
// - 无 Redis:  直连 MySQL，限流用内存版
// - 无 NATS:   不做实时推送
// - 无 Kafka:  不写事件流
// - 无行情 API: 用内置模拟行情 (本地开发演示用)

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/alert"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/audit"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/config"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/monitor"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/notify"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/price"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/realtime"
)

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Println("🚀 Starting Crypto Tracker...")

	cfg := config.Load()

	if err := alert.InitSnowflake(cfg.NodeID); err != nil {
		log.Fatalf("init snowflake: %v", err)
	}

	// 1. 持久层
	// -------------------------------------------------------------------------
	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("connect mysql: %v", err)
	}
	if err := db.AutoMigrate(&alert.Alert{}); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	var store alert.Store = alert.NewMySQLStore(db, cfg.MaxAlertsPerUser)
	var limiter notify.RateLimiter

	if cfg.RedisAddr != "" {
		rds := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rds.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		store = alert.NewCachedStore(store, rds)
		limiter = notify.NewRedisRateLimiter(rds, nil)
		log.Println("✅ Redis ready: cached store + shared rate limiter")
	}

	// 2. 行情源
	// -------------------------------------------------------------------------
	var source price.Source
	if cfg.PriceAPIBaseURL != "" {
		source = price.NewHTTPSource(cfg.PriceAPIBaseURL)
		log.Printf("✅ Price source: %s", cfg.PriceAPIBaseURL)
	} else {
		source = price.NewSimSource(map[string]float64{
			"BTC": 45000, "ETH": 2500, "SOL": 110,
		})
		log.Println("⚠️ No price API configured, using simulated prices")
	}

	// 3. 通知
	// -------------------------------------------------------------------------
	// TODO: 对接真实邮件/短信供应商后替换 LogSink
	router := notify.NewRouter(notify.Sinks{
		Email: notify.LogSink{},
		Sms:   notify.LogSink{},
		Push:  notify.LogSink{},
	}, limiter)

	// 4. 实时推送与事件流
	// -------------------------------------------------------------------------
	var transport monitor.Transport
	if cfg.NATSURL != "" {
		pub, err := realtime.NewPublisher(cfg.NATSURL)
		if err != nil {
			log.Fatalf("connect nats: %v", err)
		}
		defer pub.Close()
		transport = pub
		log.Println("✅ NATS realtime transport ready")
	}

	var journal audit.Journal
	if len(cfg.KafkaBrokers) > 0 {
		kj, err := audit.NewKafkaJournal(audit.DefaultKafkaJournalConfig(cfg.KafkaBrokers))
		if err != nil {
			log.Fatalf("connect kafka: %v", err)
		}
		defer kj.Close()
		journal = kj
		log.Println("✅ Kafka audit journal ready")
	}

	// 5. 监控器
	// -------------------------------------------------------------------------
	monCfg := monitor.DefaultConfig()
	monCfg.RefreshInterval = cfg.RefreshInterval
	monCfg.EvalInterval = cfg.EvalInterval
	monCfg.DefaultRepeatInterval = cfg.DefaultRepeatInterval

	mon := monitor.New(monCfg, store, source, router, transport, journal)
	if err := mon.Start(context.Background()); err != nil {
		log.Fatalf("start monitor: %v", err)
	}
	log.Println("✅ Alert Monitor Started")

	// 6. 等待退出信号
	// -------------------------------------------------------------------------
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	mon.Stop()

	st := mon.GetStatus()
	log.Printf("Final stats: refresh=%d eval=%d triggered=%d",
		st.RefreshCycles, st.EvalCycles, st.TriggerTotal)
	log.Println("Shutdown complete")
}
