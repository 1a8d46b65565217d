package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaStockEventPublisher_Handle(t *testing.T) {
	writer := &fakeWriter{}
	pub := NewKafkaStockEventPublisher(writer, zap.NewNop())

	productID := uuid.New()
	alert := inventory.NewReorderAlert(productID, uuid.New(), 12, decimal.NewFromInt(50), inventory.AlertKindBelowSafetyFloor, time.Now())
	ev := inventory.NewReorderAlertRaisedEvent(alert)

	require.NoError(t, pub.Handle(context.Background(), ev))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, productID.String(), string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, inventory.EventTypeReorderAlertRaised, string(msg.Headers[0].Value))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, ev.EventID(), env.ID)
	assert.Equal(t, inventory.AggregateTypeProductStock, env.AggregateType)
	assert.Equal(t, productID, env.AggregateID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "50", payload["threshold"])
	assert.Equal(t, string(inventory.AlertKindBelowSafetyFloor), payload["kind"])
}

func TestKafkaStockEventPublisher_WriteFailure(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker unreachable")}
	pub := NewKafkaStockEventPublisher(writer, nil)

	err := pub.Handle(context.Background(), inventory.NewStockMovedEvent(inventory.EventTypeStockDeducted, uuid.New(), nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), inventory.EventTypeStockDeducted)
}

func TestKafkaStockEventPublisher_ReceivesAllEventsOnBus(t *testing.T) {
	writer := &fakeWriter{}
	pub := NewKafkaStockEventPublisher(writer, nil)
	assert.Empty(t, pub.EventTypes())

	bus := startedBus(t)
	bus.Subscribe(pub)
	require.NoError(t, bus.Publish(context.Background(),
		inventory.NewStockMovedEvent(inventory.EventTypeBatchReceived, uuid.New(), nil),
		inventory.NewStockMovedEvent(inventory.EventTypeStockTransferred, uuid.New(), nil),
	))
	assert.Len(t, writer.messages, 2)

	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"k1:9092"}, "stock-events", 0)
	assert.Equal(t, "stock-events", w.Topic)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
}
