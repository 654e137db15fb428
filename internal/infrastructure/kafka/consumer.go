package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one record. A returned error is logged, the
// record goes to the dead-letter topic if one is set, and is committed.
type MessageHandler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader          *kafka.Reader
	deadLetter      KafkaProducer
	deadLetterTopic string
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

// Consume blocks until ctx is canceled.
func (c *Consumer) Consume(ctx context.Context, handle MessageHandler) {
	topic := c.reader.Config().Topic
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				slog.Info("Kafka consumer stopped", "topic", topic)
				return
			}
			slog.Error("failed to read Kafka message", "topic", topic, "error", err)
			continue
		}

		slog.Debug("Kafka message received", "topic", msg.Topic, "key", string(msg.Key), "offset", msg.Offset)

		c.process(ctx, msg, handle)
	}
}

// WithDeadLetter publishes records the handler fails on to topic.
func (c *Consumer) WithDeadLetter(producer KafkaProducer, topic string) *Consumer {
	c.deadLetter = producer
	c.deadLetterTopic = topic
	return c
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message, handle MessageHandler) {
	err := handle(ctx, msg.Key, msg.Value)
	if err == nil {
		return
	}
	slog.Error("failed to handle Kafka message", "topic", msg.Topic, "key", string(msg.Key), "error", err)
	if c.deadLetter == nil || c.deadLetterTopic == "" {
		return
	}

	key, _ := strconv.ParseInt(string(msg.Key), 10, 64)
	if err := c.deadLetter.Send(ctx, c.deadLetterTopic, key, msg.Value); err != nil {
		slog.Error("failed to dead-letter Kafka message", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return
	}
	slog.Warn("Kafka message dead-lettered", "topic", msg.Topic, "offset", msg.Offset, "dead_letter_topic", c.deadLetterTopic)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
