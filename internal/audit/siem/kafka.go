package siem

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"veritas/internal/audit/models"
)

// KafkaSink produces committed events onto a security topic. Records are
// keyed by tenant so one tenant's events stay ordered within a partition,
// which downstream SIEM correlation relies on.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// KafkaConfig holds connection settings for the security stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// NewKafka connects a producer for the security topic.
func NewKafka(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: cfg.Topic}, nil
}

// Deliver produces the event synchronously; the dispatcher that calls this
// already runs off the submit path, so blocking here is fine.
func (s *KafkaSink) Deliver(ctx context.Context, event models.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal siem record: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Context.TenantID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce siem record: %w", err)
	}
	return nil
}

// Close flushes outstanding records and releases the client.
func (s *KafkaSink) Close() error {
	s.client.Close()
	return nil
}
