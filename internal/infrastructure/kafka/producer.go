package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/honeynil/ShopBotLedger/internal/notify"
)

//go:generate mockgen -source=producer.go -destination=mocks/mock_producer.go -package=mocks

type KafkaProducer interface {
	Send(ctx context.Context, topic string, key int64, value []byte) error
	Close() error
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Send(ctx context.Context, topic string, key int64, value []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(key, 10)),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("failed to send Kafka message", "topic", topic, "key", key, "error", err)
		return err
	}
	slog.Debug("Kafka message sent", "topic", topic, "key", key)
	return nil
}

func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		slog.Error("failed to close Kafka writer", "error", err)
		return err
	}
	slog.Info("Kafka writer closed")
	return nil
}

// Notifier publishes notifications to the outbound topic keyed by chat id,
// so messages for one chat stay ordered on a single partition.
type Notifier struct {
	producer KafkaProducer
	topic    string
}

func NewNotifier(producer KafkaProducer, topic string) *Notifier {
	return &Notifier{producer: producer, topic: topic}
}

func (n *Notifier) Notify(ctx context.Context, msg notify.Notification) error {
	value, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal notification", "chat_id", msg.ChatID, "error", err)
		return err
	}
	return n.producer.Send(ctx, n.topic, msg.ChatID, value)
}
