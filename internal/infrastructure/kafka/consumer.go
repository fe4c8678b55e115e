package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	minReadBackoff = 100 * time.Millisecond
	maxReadBackoff = 10 * time.Second
)

// MessageHandler receives one message. ctx carries the producer's trace context.
type MessageHandler func(ctx context.Context, key, value []byte) error

// messageReader is the part of *kafka.Reader the consumer loop uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader     messageReader
	logger     *zap.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{
		reader:     reader,
		logger:     logger.Named("kafka.consumer"),
		minBackoff: minReadBackoff,
		maxBackoff: maxReadBackoff,
	}
}

// Consume blocks until ctx is done. Handler errors are logged and the message
// is skipped. Read errors back off exponentially until a read succeeds.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	backoff := c.minBackoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Warn("read failed", zap.Duration("retry_in", backoff), zap.Error(err))
				if err := sleep(ctx, backoff); err != nil {
					return err
				}
				backoff = min(backoff*2, c.maxBackoff)
				continue
			}
			backoff = c.minBackoff

			msgCtx := ExtractHeaders(ctx, msg.Headers)
			if err := handler(msgCtx, msg.Key, msg.Value); err != nil {
				c.logger.Error("handler failed",
					zap.String("key", string(msg.Key)),
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
