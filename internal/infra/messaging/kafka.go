// Package messaging は監査ログエントリをイベントバス (Kafka / NATS) に配信する。
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	kafka "github.com/segmentio/kafka-go"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/config"
)

// messageWriter は Kafka Writer の抽象インターフェース。
// テスト時にモックへ差し替え可能にする。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...writerMessage) error
	Close() error
}

// writerMessage は Kafka に送信するメッセージを表す。
type writerMessage struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// kafkaGoWriter は kafka-go の Writer をラップする本番実装。
type kafkaGoWriter struct {
	w *kafka.Writer
}

func (k *kafkaGoWriter) WriteMessages(ctx context.Context, msgs ...writerMessage) error {
	kafkaMsgs := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		headers := make([]kafka.Header, 0, len(m.Headers))
		for k, v := range m.Headers {
			headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
		}
		kafkaMsgs[i] = kafka.Message{
			Topic:   m.Topic,
			Key:     m.Key,
			Value:   m.Value,
			Headers: headers,
		}
	}
	return k.w.WriteMessages(ctx, kafkaMsgs...)
}

func (k *kafkaGoWriter) Close() error {
	return k.w.Close()
}

// KafkaPublisher は監査イベントを Kafka に配信する。
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher は新しい KafkaPublisher を作成する。
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},    // パーティションキーによる分散
		RequiredAcks: kafka.RequireAll, // acks=all
		Async:        false,
	}
	return &KafkaPublisher{
		writer: &kafkaGoWriter{w: w},
		topic:  cfg.Topics.Audit,
	}
}

// Publish は監査ログエントリを Kafka に配信する。
// パーティションキーは entity_type.entity_id で、同じエンティティのイベント順序を保つ。
func (p *KafkaPublisher) Publish(ctx context.Context, entry *model.AuditLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize audit log entry: %w", err)
	}

	msg := writerMessage{
		Topic: p.topic,
		Key:   []byte(eventKey(entry)),
		Value: data,
		Headers: map[string]string{
			"event_type": eventType(entry),
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

// Healthy は Kafka への接続を確認する。Writer は送信時に接続するため常に nil を返す。
func (p *KafkaPublisher) Healthy(_ context.Context) error {
	return nil
}

// Close は Kafka プロデューサーを閉じる。
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func eventKey(entry *model.AuditLogEntry) string {
	return string(entry.EntityType) + "." + entry.EntityID
}

// eventType は "Configuration.UPDATE" のようなイベント種別を返す。
func eventType(entry *model.AuditLogEntry) string {
	return string(entry.EntityType) + "." + entry.Action
}
