package kafka

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/whisperjob/logger"
)

// MessageHandler processes one fetched message. A nil return commits it.
type MessageHandler func(ctx context.Context, msg kafkago.Message) error

// reader is the part of kafkago.Reader the consumer uses.
type reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer reads the jobs topic as a member of the consumer group. Messages
// are handled one at a time and committed only after the handler returns.
type Consumer struct {
	r        reader
	topic    string
	groupID  string
	log      *logger.Logger
	failures int
}

// NewConsumer creates a consumer for cfg.JobsTopic.
func NewConsumer(cfg Config, log *logger.Logger) (*Consumer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka consumer config: %w", err)
	}
	dialer, err := CreateDialer(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer dialer: %w", err)
	}
	clog := log.WithComponent("kafka.consumer")

	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:           cfg.Brokers,
		Topic:             cfg.JobsTopic,
		GroupID:           cfg.GroupID,
		Dialer:            dialer,
		StartOffset:       kafkago.FirstOffset,
		MinBytes:          1,
		MaxBytes:          cfg.MaxBytes,
		SessionTimeout:    ParseDuration(cfg.SessionTimeout),
		HeartbeatInterval: ParseDuration(cfg.HeartbeatInterval),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...any) {
			clog.Error("reader: "+fmt.Sprintf(msg, args...), logger.Fields("topic", cfg.JobsTopic))
		}),
	})
	clog.Info("Kafka consumer initialized", logger.Fields(
		"topic", cfg.JobsTopic,
		"group_id", cfg.GroupID,
		"brokers", cfg.Brokers,
	))
	return newConsumer(r, cfg.JobsTopic, cfg.GroupID, clog), nil
}

func newConsumer(r reader, topic, groupID string, log *logger.Logger) *Consumer {
	return &Consumer{r: r, topic: topic, groupID: groupID, log: log}
}

// Consume fetches and handles messages until ctx ends. Read errors back off
// linearly up to 30s. A handler error is logged and the message is left
// uncommitted.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	c.log.Info("Starting consume loop", logger.Fields("topic", c.topic, "group_id", c.groupID))
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := c.backoff(ctx, err); err != nil {
				return err
			}
			continue
		}
		c.failures = 0

		if err := handler(ctx, msg); err != nil {
			c.log.Error("Message processing failed", logger.MergeWithError(logger.Fields(
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
			), err))
			continue
		}
		if err := c.r.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
			c.log.Warn("Commit failed", logger.MergeWithError(logger.Fields("offset", msg.Offset), err))
		}
	}
}

func (c *Consumer) backoff(ctx context.Context, err error) error {
	c.failures++
	if c.failures <= 3 {
		c.log.Error("Kafka read error", logger.MergeWithError(logger.Fields(
			"failures", c.failures,
			"topic", c.topic,
		), err))
	}
	wait := min(time.Duration(c.failures)*time.Second, 30*time.Second)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// Topic returns the consumed topic.
func (c *Consumer) Topic() string { return c.topic }

// Close leaves the group and closes the reader.
func (c *Consumer) Close() error {
	c.log.Info("Kafka consumer closing", logger.Fields("topic", c.topic))
	return c.r.Close()
}
