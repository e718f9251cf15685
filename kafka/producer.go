package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/whisperjob/logger"
	"github.com/kbukum/whisperjob/resilience"
	"github.com/kbukum/whisperjob/runtime"
	"github.com/kbukum/whisperjob/worker"
)

// Header keys and the type values set on every results message.
const (
	HeaderType        = "type"
	HeaderContentType = "content-type"

	TypeDone = "done"
)

// writer is the part of kafkago.Writer the producer uses.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Done is the value of the final message written for a job.
type Done struct {
	ID     string         `json:"id"`
	Status runtime.Status `json:"status"`
	Error  string         `json:"error,omitempty"`
}

// Producer writes job output to the results topic. Every message of a job is
// keyed by the job id so a single partition keeps them in order.
type Producer struct {
	w       writer
	topic   string
	retries int
	log     *logger.Logger

	mu     sync.RWMutex
	closed bool
}

// NewProducer creates a producer for cfg.ResultsTopic.
func NewProducer(cfg Config, log *logger.Logger) (*Producer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka producer config: %w", err)
	}
	transport, err := CreateTransport(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer transport: %w", err)
	}
	plog := log.WithComponent("kafka.producer")

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.ResultsTopic,
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: ParseDuration(cfg.BatchTimeout),
		WriteTimeout: ParseDuration(cfg.WriteTimeout),
		RequiredAcks: kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:  ResolveCompression(cfg.Compression),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...any) {
			plog.Error("writer: "+fmt.Sprintf(msg, args...), logger.Fields("topic", cfg.ResultsTopic))
		}),
	}
	plog.Info("Kafka producer initialized", logger.Fields(
		"brokers", cfg.Brokers,
		"topic", cfg.ResultsTopic,
		"compression", cfg.Compression,
	))
	return newProducer(w, cfg.ResultsTopic, cfg.Retries, plog), nil
}

func newProducer(w writer, topic string, retries int, log *logger.Logger) *Producer {
	return &Producer{w: w, topic: topic, retries: max(retries, 1), log: log}
}

// Publish writes one worker message with its kind as the type header.
func (p *Producer) Publish(ctx context.Context, jobID string, msg worker.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Kind(), err)
	}
	return p.write(ctx, jobID, string(msg.Kind()), value)
}

// PublishDone writes the terminal marker of a job.
func (p *Producer) PublishDone(ctx context.Context, done Done) error {
	value, err := json.Marshal(done)
	if err != nil {
		return fmt.Errorf("marshal done marker: %w", err)
	}
	return p.write(ctx, done.ID, TypeDone, value)
}

func (p *Producer) write(ctx context.Context, key, typ string, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("producer is closed")
	}

	msg := kafkago.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafkago.Header{
			{Key: HeaderType, Value: []byte(typ)},
			{Key: HeaderContentType, Value: []byte("application/json")},
		},
	}

	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = p.retries
	cfg.RetryIf = IsRetryableError
	err := resilience.RetryFunc(ctx, cfg, func() error {
		return p.w.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("write %s message for job %s to %s: %w", typ, key, p.topic, err)
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.log.Info("Kafka producer closing")
	return p.w.Close()
}
