// 文件: pkg/audit/writer.go
// 事件流消费端 - 消费 Kafka 事件批量落 MySQL
//
// - 消费者组，多实例可分摊分区
// - 批量缓冲: 满批或到时都会刷盘
// - EventID 做主键，重复消费天然幂等 (冲突即忽略)

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WriterConfig 消费端配置
type WriterConfig struct {
	Brokers       []string      // Kafka brokers
	GroupID       string        // 消费者组
	BatchSize     int           // 批量大小
	FlushInterval time.Duration // 刷新间隔
}

// DefaultWriterConfig 默认配置
func DefaultWriterConfig(brokers []string) WriterConfig {
	return WriterConfig{
		Brokers:       brokers,
		GroupID:       "tracker_audit_writer",
		BatchSize:     100,
		FlushInterval: 500 * time.Millisecond,
	}
}

// WriterStats 写入统计
type WriterStats struct {
	ReceivedCount int64
	WrittenCount  int64
	ErrorCount    int64
	BatchCount    int64
}

// Writer 事件流落库写入器
type Writer struct {
	db     *gorm.DB
	client sarama.ConsumerGroup
	config WriterConfig

	buffer   []Event
	bufferMu sync.Mutex
	flushCh  chan struct{}

	statsMu sync.Mutex
	stats   WriterStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter 创建写入器
func NewWriter(cfg WriterConfig, db *gorm.DB) (*Writer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Writer{
		db:      db,
		client:  client,
		config:  cfg,
		buffer:  make([]Event, 0, cfg.BatchSize),
		flushCh: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start 启动消费与定时刷盘
func (w *Writer) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			if err := w.client.Consume(w.ctx, []string{TopicAlertEvents}, w); err != nil {
				log.Printf("[Audit] consume error: %v", err)
			}
			if w.ctx.Err() != nil {
				return
			}
		}
	}()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.config.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				w.flush() // 最后刷一次
				return
			case <-ticker.C:
				w.flush()
			case <-w.flushCh:
				w.flush()
			}
		}
	}()

	log.Printf("[Audit] writer started: group=%s, batch=%d", w.config.GroupID, w.config.BatchSize)
}

// Stop 停止写入器
func (w *Writer) Stop() error {
	w.cancel()
	w.wg.Wait()
	return w.client.Close()
}

// Stats 获取统计
func (w *Writer) Stats() WriterStats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats
}

// flush 批量落库
func (w *Writer) flush() {
	w.bufferMu.Lock()
	events := w.buffer
	w.buffer = make([]Event, 0, w.config.BatchSize)
	w.bufferMu.Unlock()

	if len(events) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// EventID 冲突直接忽略: 重复消费幂等
	err := w.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&events).Error

	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	if err != nil {
		w.stats.ErrorCount++
		log.Printf("[Audit] batch insert error: %v", err)
		return
	}
	w.stats.WrittenCount += int64(len(events))
	w.stats.BatchCount++
}

// =============================================================================
// sarama.ConsumerGroupHandler 实现
// =============================================================================

func (w *Writer) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (w *Writer) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (w *Writer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var e Event
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			log.Printf("[Audit] bad event: topic=%s offset=%d err=%v", msg.Topic, msg.Offset, err)
			session.MarkMessage(msg, "")
			continue
		}

		w.bufferMu.Lock()
		w.buffer = append(w.buffer, e)
		shouldFlush := len(w.buffer) >= w.config.BatchSize
		w.bufferMu.Unlock()

		w.statsMu.Lock()
		w.stats.ReceivedCount++
		w.statsMu.Unlock()

		if shouldFlush {
			select {
			case w.flushCh <- struct{}{}:
			default:
			}
		}

		session.MarkMessage(msg, "")
	}
	return nil
}
