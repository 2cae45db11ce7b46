// Package kafka publishes committed ledger events to Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
)

// Publisher implements billing.Publisher. The writer carries no default
// topic; each message names its own.
type Publisher struct {
	writer *kafka.Writer
	topic  string
}

// NewPublisher writes to brokers. A non-empty topic overrides the topic
// callers pass to Publish.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 2 * time.Second,
			MaxAttempts:  3,
		},
		topic: topic,
	}
}

// Publish writes event as JSON, keyed so one company's events stay ordered.
func (p *Publisher) Publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	if p.topic != "" {
		topic = p.topic
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	})
	return errors.Wrapf(err, "write to %s", topic)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
