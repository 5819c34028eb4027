// Package audit publishes admission denial events to Kafka.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/quotagate/internal/config"
	"github.com/turtacn/quotagate/internal/domain/models"
	"github.com/turtacn/quotagate/internal/domain/service"
	"github.com/turtacn/quotagate/pkg/logger"
)

var _ service.DenialPublisher = (*KafkaDenialPublisher)(nil)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// FailureRecorder counts events the writer could not deliver.
type FailureRecorder interface {
	RecordAuditFailure()
}

// KafkaDenialPublisher is a Kafka-backed DenialPublisher.
type KafkaDenialPublisher struct {
	writer MessageWriter
	logger logger.Logger
}

// NewKafkaDenialPublisher creates an asynchronous Kafka writer for denial events.
// Delivery failures are logged and reported to failures, which may be nil.
func NewKafkaDenialPublisher(cfg config.AuditConfig, failures FailureRecorder, log logger.Logger) *KafkaDenialPublisher {
	log = log.WithComponent("kafka_denial_publisher")
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Completion: func(messages []kafka.Message, err error) {
			if err == nil {
				return
			}
			log.Error(context.Background(), "failed to deliver denial events", err, logger.Int("count", len(messages)))
			if failures != nil {
				for range messages {
					failures.RecordAuditFailure()
				}
			}
		},
	}
	return NewKafkaDenialPublisherWithWriter(writer, log)
}

// NewKafkaDenialPublisherWithWriter wraps an existing writer.
func NewKafkaDenialPublisherWithWriter(writer MessageWriter, log logger.Logger) *KafkaDenialPublisher {
	return &KafkaDenialPublisher{
		writer: writer,
		logger: log,
	}
}

// Publish sends a denial event keyed by identity so events for one caller stay ordered.
func (p *KafkaDenialPublisher) Publish(ctx context.Context, event models.DenialEvent) error {
	bytes, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal denial event", err)
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(string(event.KeyType) + ":" + event.KeyValue),
		Value: bytes,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "outcome", Value: []byte(event.Outcome)},
		},
	})
	if err != nil {
		p.logger.Error(ctx, "failed to write denial event to Kafka", err)
	}
	return err
}

// Close flushes and closes the underlying Kafka writer.
func (p *KafkaDenialPublisher) Close() error {
	return p.writer.Close()
}

//Personal.AI order the ending
