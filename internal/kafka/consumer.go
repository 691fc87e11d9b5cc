package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-reservation/internal/fault"
	"ms-reservation/internal/logger"
)

// Handler processes one delivered message. A nil return commits the
// message; a transient error is retried on the configured budget and then
// dead-lettered; any other error skips the retries and dead-letters
// immediately.
type Handler func(ctx context.Context, msg kafka.Message) error

type Consumer struct {
	reader  *kafka.Reader
	dlq     *kafka.Writer
	Logger  *logger.Logger
	retries int
	backoff time.Duration
}

func NewConsumer(brokers []string, topic, groupID, dlqTopic string, retries int, backoff time.Duration, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	dlq := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   dlqTopic,
	})
	return &Consumer{reader: reader, dlq: dlq, Logger: log, retries: retries, backoff: backoff}
}

// Run fetches, handles and commits until ctx is cancelled. Commits are
// manual: a message is acknowledged only after it was handled or
// dead-lettered, so a crash means redelivery, never loss.
func (c *Consumer) Run(ctx context.Context, handler Handler) {
	c.Logger.LogKafka("START", c.reader.Config().Topic, fmt.Sprintf("consumer group %s running", c.reader.Config().GroupID))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("fetch failed: %v", err))
			continue
		}

		if err := c.process(ctx, msg, handler); err != nil {
			c.deadLetter(ctx, msg, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.Logger.Error("KAFKA", fmt.Sprintf("commit failed at offset %d: %v", msg.Offset, err))
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message, handler Handler) error {
	attempts := c.retries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = handler(ctx, msg)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			c.Logger.Error("KAFKA", fmt.Sprintf("non-retryable failure at offset %d: %v", msg.Offset, err))
			return err
		}
		c.Logger.Warn("KAFKA", fmt.Sprintf("attempt %d/%d failed at offset %d: %v", attempt, attempts, msg.Offset, err))
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(c.backoff):
			}
		}
	}
	return err
}

func retryable(err error) bool {
	switch fault.KindOf(err) {
	case fault.KindTransient, fault.KindUnknown:
		return true
	default:
		return false
	}
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	dead := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers, kafka.Header{
			Key:   "x-dead-letter-reason",
			Value: []byte(cause.Error()),
		}),
	}
	if err := c.dlq.WriteMessages(ctx, dead); err != nil {
		c.Logger.Error("KAFKA", fmt.Sprintf("dead-letter write failed at offset %d: %v", msg.Offset, err))
		return
	}
	c.Logger.LogKafka("DEAD_LETTER", c.dlq.Topic, string(msg.Value))
}

func (c *Consumer) Close() error {
	if err := c.dlq.Close(); err != nil {
		c.Logger.Warn("KAFKA", fmt.Sprintf("dlq writer close failed: %v", err))
	}
	return c.reader.Close()
}
