package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes transaction events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("Kafka publisher initialized", "topic", topic, "brokers", brokers)
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger,
	}
}

func (p *KafkaPublisher) PublishTransactionCreated(ctx context.Context, event TransactionCreatedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// Keyed by transaction id so retries of one event land on one partition.
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TransactionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.EventType)},
		},
	})
	if err != nil {
		p.logger.Error("Failed to publish event", "transaction_id", event.TransactionID, "topic", p.topic, "error", err)
		return err
	}

	p.logger.Debug("Published event", "transaction_id", event.TransactionID, "topic", p.topic)
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
