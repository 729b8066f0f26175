// 文件: pkg/audit/kafka_journal.go
// 事件流 Kafka 生产端
//
// 特点:
// - 异步发送，不阻塞触发主流程
// - 按 AlertID 做分区 key，同一预警的事件保序
// - 错误单独排水，统计计数

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
)

// 确保实现了接口
var _ Journal = (*KafkaJournal)(nil)

// KafkaJournalConfig 生产端配置
type KafkaJournalConfig struct {
	Brokers        []string      // Kafka broker 地址列表
	RequiredAcks   int           // 确认模式: 0=不等待, 1=leader确认, -1=全部确认
	FlushFrequency time.Duration // 刷新间隔
	FlushMessages  int           // 批量消息数
	MaxRetries     int           // 最大重试次数
}

// DefaultKafkaJournalConfig 默认配置
// 审计流允许短暂丢失，acks=1 换吞吐
func DefaultKafkaJournalConfig(brokers []string) KafkaJournalConfig {
	return KafkaJournalConfig{
		Brokers:        brokers,
		RequiredAcks:   1,
		FlushFrequency: 100 * time.Millisecond,
		FlushMessages:  50,
		MaxRetries:     3,
	}
}

// JournalStats 生产统计
type JournalStats struct {
	SentCount  int64
	ErrorCount int64
}

// KafkaJournal Kafka 事件流写入端
type KafkaJournal struct {
	producer sarama.AsyncProducer

	sentCount  atomic.Int64
	errorCount atomic.Int64

	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewKafkaJournal 创建事件流写入端
func NewKafkaJournal(cfg KafkaJournalConfig) (*KafkaJournal, error) {
	saramaConfig := sarama.NewConfig()

	switch cfg.RequiredAcks {
	case 0:
		saramaConfig.Producer.RequiredAcks = sarama.NoResponse
	case -1:
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	default:
		saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	}
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = cfg.FlushFrequency
	saramaConfig.Producer.Flush.Messages = cfg.FlushMessages
	saramaConfig.Producer.Retry.Max = cfg.MaxRetries

	// 异步模式: 只关心错误，不回读成功
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	j := &KafkaJournal{producer: producer}

	j.wg.Add(1)
	go j.drainErrors()

	return j, nil
}

// Record 写入一条事件 (异步)
func (j *KafkaJournal) Record(ctx context.Context, e Event) error {
	if j.closed.Load() {
		return fmt.Errorf("journal is closed")
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	j.producer.Input() <- &sarama.ProducerMessage{
		Topic: TopicAlertEvents,
		// 同一预警的事件落到同一分区，保证顺序
		Key:   sarama.StringEncoder(strconv.FormatInt(e.AlertID, 10)),
		Value: sarama.ByteEncoder(data),
	}
	j.sentCount.Add(1)
	return nil
}

// drainErrors 排水错误通道
func (j *KafkaJournal) drainErrors() {
	defer j.wg.Done()

	for err := range j.producer.Errors() {
		j.errorCount.Add(1)
		log.Printf("[Audit] kafka send error: topic=%s, err=%v", err.Msg.Topic, err.Err)
	}
}

// Stats 获取统计
func (j *KafkaJournal) Stats() JournalStats {
	return JournalStats{
		SentCount:  j.sentCount.Load(),
		ErrorCount: j.errorCount.Load(),
	}
}

// Close 关闭生产端
func (j *KafkaJournal) Close() error {
	if j.closed.Swap(true) {
		return nil // 已经关闭
	}

	err := j.producer.Close()
	j.wg.Wait() // 等待错误排水完成
	return err
}
