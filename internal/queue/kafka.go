// Package queue wraps the Kafka client used to deliver outbound
// notification and email events.
package queue

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Client holds the broker list shared by all writers. An empty broker list
// means publishing is disabled and the caller should drain locally.
type Client struct {
	Brokers []string
}

// NewClient creates a client for the given brokers.
func NewClient(brokers []string) *Client {
	return &Client{Brokers: brokers}
}

// Enabled reports whether any broker is configured.
func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// NewWriter creates a topic writer keyed by event key.
func (c *Client) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// Publish writes one pre-encoded message.
func Publish(ctx context.Context, writer *kafka.Writer, key string, payload []byte) error {
	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}
