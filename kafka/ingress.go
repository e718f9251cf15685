package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/whisperjob/component"
	"github.com/kbukum/whisperjob/errors"
	"github.com/kbukum/whisperjob/job"
	"github.com/kbukum/whisperjob/logger"
	"github.com/kbukum/whisperjob/pipeline"
	"github.com/kbukum/whisperjob/runtime"
	"github.com/kbukum/whisperjob/worker"
)

// envelope is the value of a jobs topic message.
type envelope struct {
	ID    string         `json:"id"`
	Input map[string]any `json:"input"`
}

// Ingress runs jobs read from the jobs topic and writes their messages to the
// results topic. Jobs are handled strictly one after another.
type Ingress struct {
	cfg      Config
	consumer *Consumer
	producer *Producer
	handler  runtime.Handler
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var (
	_ component.Component   = (*Ingress)(nil)
	_ component.Describable = (*Ingress)(nil)
)

// NewIngress creates the consumer and producer for cfg.
func NewIngress(cfg Config, handler runtime.Handler, log *logger.Logger) (*Ingress, error) {
	cfg.ApplyDefaults()
	consumer, err := NewConsumer(cfg, log)
	if err != nil {
		return nil, err
	}
	producer, err := NewProducer(cfg, log)
	if err != nil {
		_ = consumer.Close()
		return nil, err
	}
	return newIngress(cfg, consumer, producer, handler, log), nil
}

func newIngress(cfg Config, c *Consumer, p *Producer, handler runtime.Handler, log *logger.Logger) *Ingress {
	return &Ingress{cfg: cfg, consumer: c, producer: p, handler: handler, log: log.WithComponent("kafka")}
}

func (i *Ingress) Name() string { return "kafka-ingress" }

// Start runs the consume loop in the background.
func (i *Ingress) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.running {
		return nil
	}
	consumeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	i.cancel = cancel
	i.running = true

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		if err := i.consumer.Consume(consumeCtx, i.handle); err != nil && !stderrors.Is(err, context.Canceled) {
			i.log.Error("Consumer stopped with error", logger.MergeWithError(nil, err))
		}
	}()
	i.log.Info("Kafka ingress started", logger.Fields(
		"jobs_topic", i.cfg.JobsTopic,
		"results_topic", i.cfg.ResultsTopic,
	))
	return nil
}

// Stop cancels the running job, waits for the loop to return and closes the
// consumer and producer.
func (i *Ingress) Stop(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.running {
		return nil
	}
	i.cancel()
	i.wg.Wait()
	i.running = false

	if err := stderrors.Join(i.consumer.Close(), i.producer.Close()); err != nil {
		return fmt.Errorf("kafka ingress stop: %w", err)
	}
	return nil
}

// Health dials the first broker.
func (i *Ingress) Health(ctx context.Context) component.Health {
	i.mu.Lock()
	running := i.running
	i.mu.Unlock()
	if !running {
		return component.Health{Name: i.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}

	dialer, err := CreateDialer(&i.cfg)
	if err != nil {
		return component.Health{Name: i.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	conn, err := dialer.DialContext(ctx, "tcp", i.cfg.Brokers[0])
	if err != nil {
		return component.Health{
			Name:    i.Name(),
			Status:  component.StatusUnhealthy,
			Message: fmt.Sprintf("broker unreachable: %v", err),
		}
	}
	defer conn.Close()
	return component.Health{Name: i.Name(), Status: component.StatusHealthy}
}

func (i *Ingress) Describe() component.Description {
	return component.Description{
		Type: "kafka",
		Details: fmt.Sprintf("brokers=%v jobs=%s results=%s group=%s",
			i.cfg.Brokers, i.cfg.JobsTopic, i.cfg.ResultsTopic, i.cfg.GroupID),
	}
}

// handle runs one job to completion. A message that is not a job envelope is
// answered with an error message and a FAILED marker so it is not retried.
func (i *Ingress) handle(ctx context.Context, msg kafkago.Message) error {
	var env envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil || env.ID == "" {
		id := env.ID
		if id == "" {
			id = string(msg.Key)
		}
		reason := "Job message must be a JSON object with 'id' and 'input'."
		i.log.Warn("Rejected job message", logger.Fields("offset", msg.Offset, logger.FieldJobID, id))
		if err := i.producer.Publish(ctx, id, worker.NewError(reason)); err != nil {
			return err
		}
		return i.producer.PublishDone(ctx, Done{ID: id, Status: runtime.StatusFailed, Error: reason})
	}

	ctx = logger.ContextWithJobID(ctx, env.ID)
	it := i.handler.Handle(ctx, job.Job{ID: env.ID, Input: env.Input})
	defer it.Close()

	// Output already produced is written even when shutdown cancels the job.
	pubCtx := context.WithoutCancel(ctx)
	var publishErr error
	runErr := pipeline.DrainIter(ctx, it, func(_ context.Context, m worker.Message) error {
		if err := i.producer.Publish(pubCtx, env.ID, m); err != nil {
			publishErr = err
			return err
		}
		return nil
	})
	if publishErr != nil {
		return publishErr
	}

	done := Done{ID: env.ID, Status: runtime.StatusCompleted}
	switch {
	case runErr == nil:
	case ctx.Err() != nil:
		done.Status = runtime.StatusCancelled
	default:
		done.Status = runtime.StatusFailed
		done.Error = errors.Message(runErr)
	}
	return i.producer.PublishDone(pubCtx, done)
}
