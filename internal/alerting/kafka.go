package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"aidchain/internal/priority/models"
)

// KafkaPublisher publishes escalation events to a Kafka topic, keyed by
// beneficiary id so per-beneficiary ordering is preserved.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

var _ Publisher = (*KafkaPublisher)(nil)

// KafkaOption configures the KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

// WithLogger sets a logger for publish failures.
func WithLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

// NewKafka connects to the given brokers and publishes to topic.
func NewKafka(brokers []string, topic string, opts ...KafkaOption) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	p := &KafkaPublisher{
		client: client,
		topic:  topic,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PublishEscalation synchronously produces one JSON-encoded escalation event.
func (p *KafkaPublisher) PublishEscalation(ctx context.Context, event models.Escalation) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal escalation event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.BeneficiaryID.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce escalation event: %w", err)
	}

	p.logger.DebugContext(ctx, "escalation alert published",
		"beneficiary_id", event.BeneficiaryID,
		"new_tier", event.NewTier,
	)
	return nil
}

// Close flushes pending records and releases the client.
func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}
