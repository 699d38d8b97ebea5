package infra

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/accredit/compliance/internal/domain"
)

// KafkaProducer publishes outbox events. Messages are keyed by sender wallet and
// hash-balanced, so events for one wallet land on one partition in outbox order.
type KafkaProducer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaProducer returns a producer for cfg. When Kafka is disabled or has no
// brokers the producer accepts and discards every message.
func NewKafkaProducer(cfg *Config, logger *slog.Logger) *KafkaProducer {
	if !cfg.KafkaEnabled || len(cfg.KafkaBrokers) == 0 {
		logger.Info("kafka producer disabled")
		return &KafkaProducer{logger: logger}
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}

	logger.Info("kafka producer initialized",
		"brokers", strings.Join(cfg.KafkaBrokers, ","),
		"topic_prefix", cfg.KafkaTopicPrefix)
	return &KafkaProducer{writer: w, logger: logger}
}

// Enabled reports whether messages actually leave the process.
func (p *KafkaProducer) Enabled() bool { return p.writer != nil }

// Publish writes one event. eventType is carried in a header so consumers can
// route without decoding the payload.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, eventType domain.EventType, key, value []byte) error {
	if p.writer == nil {
		return nil
	}
	return p.writer.WriteMessages(ctx, eventMessage(topic, eventType, key, value))
}

func eventMessage(topic string, eventType domain.EventType, key, value []byte) kafka.Message {
	return kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	}
}

// Close flushes and shuts down the writer.
func (p *KafkaProducer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
