package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the wire format of a forwarded stock event
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
}

// KafkaStockEventPublisher is an event bus handler that forwards every stock
// event to a Kafka topic, keyed by product id so one product's events stay
// ordered within a partition.
type KafkaStockEventPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaWriter builds the writer for topic on brokers
func NewKafkaWriter(brokers []string, topic string, batchTimeout time.Duration) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaStockEventPublisher wraps writer
func NewKafkaStockEventPublisher(writer MessageWriter, logger *zap.Logger) *KafkaStockEventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaStockEventPublisher{writer: writer, logger: logger.Named("kafka")}
}

// Handle implements shared.EventHandler
func (p *KafkaStockEventPublisher) Handle(ctx context.Context, ev shared.DomainEvent) error {
	msg, err := EncodeMessage(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s to kafka: %w", ev.EventType(), err)
	}
	p.logger.Debug("event forwarded",
		zap.String("event_type", ev.EventType()),
		zap.String("event_id", ev.EventID().String()),
	)
	return nil
}

// EventTypes implements shared.EventHandler; empty means all events
func (p *KafkaStockEventPublisher) EventTypes() []string {
	return nil
}

// Close flushes and closes the writer
func (p *KafkaStockEventPublisher) Close() error {
	return p.writer.Close()
}

// EncodeMessage wraps ev in an Envelope
func EncodeMessage(ev shared.DomainEvent) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s: %w", ev.EventType(), err)
	}
	value, err := json.Marshal(Envelope{
		ID:            ev.EventID(),
		Type:          ev.EventType(),
		OccurredAt:    ev.OccurredAt(),
		AggregateType: ev.AggregateType(),
		AggregateID:   ev.AggregateID(),
		Payload:       payload,
	})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.AggregateID().String()),
		Value: value,
		Time:  ev.OccurredAt(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.EventType())},
			{Key: "event_id", Value: []byte(ev.EventID().String())},
		},
	}, nil
}

var _ shared.EventHandler = (*KafkaStockEventPublisher)(nil)
