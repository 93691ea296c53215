package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Kafka publishes events to a single topic keyed by order ID, so all events
// for one order land on the same partition in order.
type Kafka struct {
	writer *kafka.Writer
	lg     *zap.Logger
}

// NewKafka creates a Kafka publisher for the given brokers and topic.
func NewKafka(brokers []string, topic string, lg *zap.Logger) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		lg: lg,
	}
}

// Close flushes and closes the underlying writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

func (k *Kafka) OrderCreated(ctx context.Context, e OrderCreated) {
	k.publish(ctx, "order.created", e.OrderID, e)
}

func (k *Kafka) OrderStatusChanged(ctx context.Context, e OrderStatusChanged) {
	k.publish(ctx, "order.status_changed", e.OrderID, e)
}

func (k *Kafka) publish(ctx context.Context, eventType, key string, payload any) {
	value, err := json.Marshal(payload)
	if err != nil {
		k.lg.Error("marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
	if err != nil {
		k.lg.Error("publish event",
			zap.String("type", eventType),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
