package repository

import (
	"context"
	"fmt"

	"BarForge/internal/domain/models"
	domrepo "BarForge/internal/domain/repository"
	pkgkafka "BarForge/pkg/kafka"
)

// KafkaSignalPublisher implements SignalPublisher over a Kafka topic.
// Messages are keyed by symbol so one symbol's signals keep their order
// within a partition.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSignalPublisher creates a Kafka-backed signal publisher.
func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) domrepo.SignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) PublishSignals(ctx context.Context, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(signals))
	for _, sig := range signals {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(sig.Symbol),
			Value: sig,
		})
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		return fmt.Errorf("publish signals: %w", err)
	}
	return nil
}
