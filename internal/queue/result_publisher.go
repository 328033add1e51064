package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ResultPublisher publishes stored call results, keyed by call id so every
// update of one call lands on the same partition.
type ResultPublisher struct {
	writer messageWriter
}

// NewResultPublisher constructs a result publisher for the given topic.
func NewResultPublisher(k *Kafka, topic string) *ResultPublisher {
	return &ResultPublisher{writer: k.NewWriter(topic)}
}

// PublishResult emits a result event to Kafka.
func (p *ResultPublisher) PublishResult(ctx context.Context, event ResultEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("result publisher: marshal event: %w", err)
	}
	record := kafka.Message{
		Key:   []byte(event.CallSID),
		Value: value,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID.String())},
		},
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("result publisher: write message: %w", err)
	}
	return nil
}

// Close closes the publisher.
func (p *ResultPublisher) Close() error {
	return p.writer.Close()
}
