package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"stormcrier/internal/retry"
)

// Kafka mirrors published posts onto a topic for downstream consumers such
// as archival or analytics jobs.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka returns a mirror sink writing to topic on the given brokers.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Name returns the publisher identifier.
func (k *Kafka) Name() string {
	return "kafka"
}

type mirrorMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Publish writes the post to the mirror topic keyed by message id.
func (k *Kafka) Publish(ctx context.Context, text string) (Receipt, error) {
	msg := mirrorMessage{
		ID:        uuid.New().String(),
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return Receipt{}, fmt.Errorf("marshal mirror message: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ID),
		Value: payload,
	})
	if err != nil {
		return Receipt{}, &retry.TransientError{Op: "write mirror message", Err: err}
	}
	return Receipt{ID: msg.ID, CreatedAt: msg.CreatedAt}, nil
}

// Close flushes and closes the underlying writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
