package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"ms-reservation/internal/fault"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer, Logger: log}
}

// PublishPaymentCompleted emits the payment-request event keyed by seat so
// deliveries for one seat stay on one partition.
func (p *Producer) PublishPaymentCompleted(ctx context.Context, seatID, userID string) error {
	payload := models.EncodePaymentMessage(seatID, userID)
	p.Logger.LogKafka("PUBLISH", p.Writer.Topic, payload)

	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(seatID),
		Value: []byte(payload),
	})
	if err != nil {
		return fault.Transient("payment event publish failed", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
