// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"github.com/johnpham4/legal-rag-llm/internal/config"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
	"github.com/johnpham4/legal-rag-llm/pkg/tasks"
)

// MaxAttempts 是同一任务失败后重试的上限，达到后提交 offset 放弃该任务。
const MaxAttempts = 3

// retryBackoff 是原地重试的基础等待时间，第 n 次重试等待 n 倍。
const retryBackoff = 2 * time.Second

// TaskProcessor 定义了处理片段索引任务的接口。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.ChunkIndexTask) error
}

// AttemptCounter 记录任务失败次数。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string)
}

type redisAttempts struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisAttemptCounter 返回基于 Redis INCR 的失败计数器，计数保留 ttl。
func NewRedisAttemptCounter(rdb *redis.Client, ttl time.Duration) AttemptCounter {
	return &redisAttempts{rdb: rdb, ttl: ttl}
}

func (a *redisAttempts) Incr(ctx context.Context, key string) (int64, error) {
	n, err := a.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = a.rdb.Expire(ctx, key, a.ttl).Err()
	return n, nil
}

func (a *redisAttempts) Reset(ctx context.Context, key string) {
	_ = a.rdb.Del(ctx, key).Err()
}

func attemptsKey(batchID string) string {
	return fmt.Sprintf("kafka:attempts:%s", batchID)
}

func brokers(cfg config.KafkaConfig) []string {
	parts := strings.Split(cfg.Brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Producer 发送片段索引任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers(cfg)...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}}
}

// ProduceChunkTask 以 BatchID 为消息 key 发送一个任务。
func (p *Producer) ProduceChunkTask(ctx context.Context, task tasks.ChunkIndexTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.BatchID),
		Value: taskBytes,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// messageCommitter 是消费循环所需的 Reader 能力。
type messageCommitter interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// StartConsumer 启动消费者，阻塞直到 ctx 取消或读取失败。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, attempts AttemptCounter) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}
		log.Infof("收到 Kafka 消息: offset %d", m.Offset)
		consumeMessage(ctx, r, m, processor, attempts, retryBackoff)
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

// messageResult 是单次处理消息的结果。
type messageResult int

const (
	// messageCommitted 表示 offset 已提交。
	messageCommitted messageResult = iota
	// messageRetry 表示任务失败但未达上限，应在原地重新处理。
	messageRetry
	// messageCommitFailed 表示需要提交但提交失败。
	messageCommitFailed
)

// consumeMessage 处理一条消息，失败时在原地重试，直到成功或达到 MaxAttempts 后提交 offset。
// group Reader 在同一会话内不会重新投递未提交的消息，因此重试必须在这里完成。
// ctx 取消时直接返回，offset 不提交。
func consumeMessage(ctx context.Context, r messageCommitter, m kafka.Message, processor TaskProcessor, attempts AttemptCounter, backoff time.Duration) messageResult {
	for attempt := 1; ; attempt++ {
		res := handleMessage(ctx, r, m, processor, attempts)
		if res != messageRetry {
			return res
		}
		if attempt >= MaxAttempts {
			log.Errorf("索引任务在本地重试 %d 次后仍失败，提交 offset 终止重试: offset %d", attempt, m.Offset)
			return commitMessage(ctx, r, m)
		}
		select {
		case <-ctx.Done():
			return messageRetry
		case <-time.After(backoff * time.Duration(attempt)):
		}
	}
}

func commitMessage(ctx context.Context, r messageCommitter, m kafka.Message) messageResult {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		return messageCommitFailed
	}
	return messageCommitted
}

// handleMessage 处理一次消息：成功、消息无法解析、或 Redis 中累计失败次数达到 MaxAttempts 时提交；
// 其余失败返回 messageRetry。计数器不可用时同样返回 messageRetry，由 consumeMessage 的本地次数兜底。
func handleMessage(ctx context.Context, r messageCommitter, m kafka.Message, processor TaskProcessor, attempts AttemptCounter) messageResult {
	var task tasks.ChunkIndexTask
	if err := json.Unmarshal(m.Value, &task); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		return commitMessage(ctx, r, m)
	}

	log.Infof("开始处理索引任务: batch=%s, chunks=%d", task.BatchID, len(task.Chunks))
	if err := processor.Process(ctx, task); err != nil {
		log.Errorf("处理索引任务失败: batch=%s, Error: %v", task.BatchID, err)
		if attempts == nil {
			return messageRetry
		}
		n, incErr := attempts.Incr(ctx, attemptsKey(task.BatchID))
		if incErr != nil {
			log.Warnf("记录任务失败次数失败: batch=%s, Error: %v", task.BatchID, incErr)
			return messageRetry
		}
		if n >= MaxAttempts {
			log.Errorf("索引任务多次失败(>=%d)，提交 offset 终止重试: batch=%s", MaxAttempts, task.BatchID)
			return commitMessage(ctx, r, m)
		}
		return messageRetry
	}

	log.Infof("索引任务处理成功: batch=%s", task.BatchID)
	if attempts != nil {
		attempts.Reset(ctx, attemptsKey(task.BatchID))
	}
	return commitMessage(ctx, r, m)
}
