package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Aleph-Alpha/gravity/v1/observability"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

//go:generate mockgen -source=producer.go -destination=mock_publisher.go -package=kafka

// Publisher is what domain code depends on to emit events.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value any, headers map[string]string) error
}

var _ Publisher = (*KafkaClient)(nil)

// Publish encodes value as JSON exactly once and writes it to topic.
// []byte and json.RawMessage values are taken as already encoded.
// The trace context of ctx is injected into the headers.
func (k *KafkaClient) Publish(ctx context.Context, topic, key string, value any, headers map[string]string) error {
	var body []byte
	switch v := value.(type) {
	case []byte:
		body = v
	case json.RawMessage:
		body = v
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("kafka: failed to encode %s payload: %w", topic, err)
		}
		body = encoded
	}

	carrier := propagation.MapCarrier{}
	for hk, hv := range headers {
		carrier[hk] = hv
	}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return k.write(ctx, topic, key, body, carrier)
}

func (k *KafkaClient) write(ctx context.Context, topic, key string, body []byte, headers map[string]string) error {
	start := time.Now()
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   body,
		Headers: toKafkaHeaders(headers),
	})

	k.observer.ObserveOperation(observability.OperationContext{
		Component: "kafka",
		Operation: "produce",
		Resource:  topic,
		Duration:  time.Since(start),
		Error:     err,
		Size:      int64(len(body)),
	})

	if err != nil {
		k.logger.ErrorWithContext(ctx, "Failed to publish message", err, map[string]interface{}{
			"topic": topic,
			"key":   key,
		})
		return fmt.Errorf("kafka: publish to %s failed: %w", topic, err)
	}
	return nil
}
