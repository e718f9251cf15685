// Package worker runs one transcription job end to end: interpret the input,
// load or reuse the model, transcribe, and emit outbound messages.
package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/whisperjob/aggregate"
	"github.com/kbukum/whisperjob/job"
	"github.com/kbukum/whisperjob/logger"
	"github.com/kbukum/whisperjob/modelcache"
	"github.com/kbukum/whisperjob/observability"
	"github.com/kbukum/whisperjob/pipeline"
	"github.com/kbukum/whisperjob/transcription"
)

// Job outcomes reported to metrics and logs.
const (
	OutcomeCompleted = "completed"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
)

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics records job, batch and model metrics.
func WithMetrics(m *observability.JobMetrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// Handler turns jobs into outbound messages. It is safe for concurrent use,
// but jobs asking for different models evict each other from the cache.
type Handler struct {
	cache      *modelcache.Cache
	aggregator *aggregate.Aggregator
	metrics    *observability.JobMetrics
	log        *logger.Logger
}

// New creates a Handler.
func New(cache *modelcache.Cache, aggregator *aggregate.Aggregator, opts ...Option) *Handler {
	h := &Handler{
		cache:      cache,
		aggregator: aggregator,
		log:        logger.Get("worker"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Cache returns the model cache used by the handler.
func (h *Handler) Cache() *modelcache.Cache { return h.cache }

// Handle returns the lazy message sequence of j. Nothing runs until the first
// call to Next.
//
// Invalid input yields one error message per failed check and ends the
// sequence without loading a model. A load or transcription failure ends the
// sequence with a non-nil error from Next. In streaming mode every batch is
// returned as soon as it is produced; otherwise the batches are flattened
// into one result message, and a failure discards what was collected.
//
// The caller must Close the iterator.
func (h *Handler) Handle(ctx context.Context, j job.Job) pipeline.Iterator[Message] {
	ctx, span := observability.StartSpan(ctx, observability.SpanHandle,
		trace.WithAttributes(attribute.String(observability.AttrJobID, j.ID)))
	return &jobIter{
		h:     h,
		job:   j,
		span:  span,
		log:   h.log.WithContext(logger.ContextWithJobID(ctx, j.ID)),
		start: time.Now(),
	}
}

type jobState int

const (
	stateStart jobState = iota
	statePending
	stateStreaming
	stateDone
)

type jobIter struct {
	h    *Handler
	job  job.Job
	span trace.Span
	log  *logger.Logger

	state   jobState
	pending []Message
	batches pipeline.Iterator[aggregate.Batch]
	start   time.Time
	emitted int
	ended   bool
}

func (it *jobIter) Next(ctx context.Context) (Message, bool, error) {
	ctx = trace.ContextWithSpan(ctx, it.span)
	for {
		switch it.state {
		case stateStart:
			if err := it.begin(ctx); err != nil {
				it.state = stateDone
				it.end(ctx, OutcomeFailed, err)
				return Message{}, false, err
			}

		case statePending:
			if len(it.pending) > 0 {
				msg := it.pending[0]
				it.pending = it.pending[1:]
				return msg, true, nil
			}
			it.state = stateDone

		case stateStreaming:
			b, ok, err := it.batches.Next(ctx)
			if err != nil {
				it.state = stateDone
				it.end(ctx, OutcomeFailed, err)
				return Message{}, false, err
			}
			if !ok {
				it.state = stateDone
				it.end(ctx, OutcomeCompleted, nil)
				continue
			}
			return NewBatch(b.Records), true, nil

		case stateDone:
			return Message{}, false, nil
		}
	}
}

// begin runs validation, loading and the model call, then selects the next
// state.
func (it *jobIter) begin(ctx context.Context) error {
	req, problems := job.Interpret(it.job)
	if len(problems) > 0 {
		for _, p := range problems {
			it.log.Warn("Invalid job input", logger.Fields(logger.FieldError, p.Message))
			it.pending = append(it.pending, NewError(p.Message))
		}
		it.state = statePending
		it.end(ctx, OutcomeInvalid, nil)
		return nil
	}

	it.span.SetAttributes(
		attribute.String(observability.AttrEngine, req.Engine),
		attribute.String(observability.AttrModel, req.Model),
		attribute.Bool(observability.AttrStreaming, req.Streaming),
	)
	it.log = it.log.WithFields(logger.ModelFields(req.Engine, req.Model))
	it.log.Debug("Job accepted", logger.Fields(
		logger.FieldFormat, string(req.Format),
		logger.FieldStreaming, req.Streaming,
	))

	model, err := it.h.cache.EnsureLoaded(ctx, req.Engine, req.Model)
	if err != nil {
		return err
	}

	p, err := it.h.aggregator.Run(ctx, model, req.Args)
	if err != nil {
		return err
	}
	p = pipeline.Tap(p, it.observeBatch)

	if req.Streaming {
		it.batches = p.Iter(ctx)
		it.state = stateStreaming
		return nil
	}
	return it.collect(ctx, p)
}

// collect pulls every batch and flattens them into a single result message.
func (it *jobIter) collect(ctx context.Context, p *pipeline.Pipeline[aggregate.Batch]) error {
	batches, err := pipeline.Collect(ctx, p)
	if err != nil {
		return err
	}
	var records []transcription.Record
	for _, b := range batches {
		records = append(records, b.Records...)
	}
	it.pending = []Message{NewResult(records)}
	it.state = statePending
	it.end(ctx, OutcomeCompleted, nil)
	return nil
}

func (it *jobIter) observeBatch(ctx context.Context, b aggregate.Batch) error {
	it.emitted++
	it.h.metrics.RecordBatch(ctx, string(b.Mode), b.Size)
	it.log.Debug("Batch produced", logger.Fields(
		logger.FieldBatchSize, len(b.Records),
		logger.FieldBatchBytes, b.Size,
	))
	return nil
}

// end closes the span and records the outcome once.
func (it *jobIter) end(ctx context.Context, outcome string, err error) {
	if it.ended {
		return
	}
	it.ended = true
	took := time.Since(it.start)

	it.span.SetAttributes(
		attribute.Int(observability.AttrBatches, it.emitted),
		attribute.String(observability.AttrStatus, outcome),
	)
	if err != nil {
		it.span.RecordError(err)
		it.span.SetStatus(codes.Error, err.Error())
		it.log.Error("Job failed", logger.MergeWithDuration(logger.MergeWithError(nil, err), took))
	} else {
		it.log.Debug("Job finished", logger.MergeWithDuration(logger.Fields(logger.FieldStatus, outcome), took))
	}
	it.span.End()
	it.h.metrics.RecordJob(ctx, outcome, took)
}

func (it *jobIter) Close() error {
	it.end(context.Background(), OutcomeAbandoned, nil)
	it.state = stateDone
	if it.batches != nil {
		return it.batches.Close()
	}
	return nil
}
