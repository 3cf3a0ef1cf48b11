package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"jadbank/internal/logger"
)

// KafkaPublisher writes events to Kafka. One writer serves every topic; the
// topic is set per message.
type KafkaPublisher struct {
	writer *kafka.Writer
	prefix string
}

// NewKafkaPublisher creates a publisher for brokers. Topics are namespaced
// with prefix.
func NewKafkaPublisher(brokers []string, prefix string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
			BatchTimeout:           10 * time.Millisecond,
			// Delivery must not hold up the operation that raised the event.
			Async: true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.Get().Warnw("failed to deliver events", "count", len(messages), "error", err)
				}
			},
		},
		prefix: prefix,
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	msg, err := newMessage(p.prefix, topic, key, event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func newMessage(prefix, topic, key string, event any) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: TopicName(prefix, topic),
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	}, nil
}

// TopicName joins prefix and topic.
func TopicName(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return prefix + "." + topic
}
