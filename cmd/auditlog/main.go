// 文件: cmd/auditlog/main.go
// 审计落库进程入口
//
// 独立进程: 消费 Kafka 事件流，批量写入 MySQL alert_events 表。
// 和监控进程分开部署，事件流堆积不影响预警评估。

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/audit"
	"github.com/Business-Integration-Technologies/Crypto-Tracker/pkg/config"
)

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Println("🚀 Starting Audit Log Writer...")

	cfg := config.Load()
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("TRACKER_KAFKA_BROKERS is required for the audit writer")
	}

	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatalf("connect mysql: %v", err)
	}
	if err := db.AutoMigrate(&audit.Event{}); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	writer, err := audit.NewWriter(audit.DefaultWriterConfig(cfg.KafkaBrokers), db)
	if err != nil {
		log.Fatalf("create writer: %v", err)
	}
	writer.Start()
	log.Println("✅ Audit Writer Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	if err := writer.Stop(); err != nil {
		log.Printf("stop writer: %v", err)
	}

	st := writer.Stats()
	log.Printf("Final stats: received=%d written=%d errors=%d batches=%d",
		st.ReceivedCount, st.WrittenCount, st.ErrorCount, st.BatchCount)
	log.Println("Shutdown complete")
}
