// Package aggregate turns a model's transcription result into a lazy
// sequence of outbound batches.
//
// A true stream is forwarded one segment per batch as segments arrive. A
// materialized result, and any diarized result, is packed greedily into
// batches whose summed record size stays within the message size ceiling.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kbukum/whisperjob/errors"
	"github.com/kbukum/whisperjob/logger"
	"github.com/kbukum/whisperjob/pipeline"
	"github.com/kbukum/whisperjob/transcription"
)

// DefaultMaxMessageSize is the size ceiling of one outbound batch.
const DefaultMaxMessageSize = 500000

// Mode tells how a batch was produced.
type Mode string

const (
	ModeStream Mode = "stream"
	ModePacked Mode = "packed"
)

// Batch is one outbound group of records.
type Batch struct {
	Records []transcription.Record
	// Size is the summed Sizer estimate of Records.
	Size int
	Mode Mode
}

// Sizer estimates the transport size of a record.
type Sizer func(transcription.Record) int

// JSONSize measures a record by the length of its JSON encoding.
func JSONSize(r transcription.Record) int {
	b, err := json.Marshal(r)
	if err != nil {
		return len(fmt.Sprint(map[string]any(r)))
	}
	return len(b)
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMaxMessageSize overrides the batch size ceiling.
func WithMaxMessageSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxSize = n
		}
	}
}

// WithSizer overrides the record size estimate.
func WithSizer(s Sizer) Option {
	return func(a *Aggregator) { a.sizer = s }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(a *Aggregator) { a.log = log }
}

// Aggregator invokes a model and shapes its output into batches.
type Aggregator struct {
	maxSize int
	sizer   Sizer
	log     *logger.Logger
}

// New creates an Aggregator with the default ceiling and JSON sizer.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		maxSize: DefaultMaxMessageSize,
		sizer:   JSONSize,
		log:     logger.Get("aggregate"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MaxMessageSize returns the configured ceiling.
func (a *Aggregator) MaxMessageSize() int { return a.maxSize }

// Run calls model with args and returns the batch pipeline. Without diarize
// the call asks for a stream on a copy of args; args itself is not modified.
// A failing call returns a TRANSCRIPTION_FAILED error, and so does the
// pipeline when the model fails mid-stream.
//
// The pipeline is single-pass: it wraps the result of one model call.
func (a *Aggregator) Run(ctx context.Context, model transcription.Model, args transcription.Args) (*pipeline.Pipeline[Batch], error) {
	diarize := args.Bool(transcription.ArgDiarize)
	callArgs := args
	if !diarize {
		callArgs = args.With(transcription.ArgStream, true)
	}

	res, err := model.Transcribe(ctx, callArgs)
	if err != nil {
		return nil, transcriptionError(err)
	}

	a.log.Debug("Transcription started", logger.Fields(
		"kind", res.Kind().String(),
		"diarize", diarize,
	))

	if res.Kind() == transcription.KindStreamed && !diarize {
		return a.streamBatches(res.Stream()), nil
	}
	return a.packedBatches(res), nil
}

// streamBatches emits every segment alone, as soon as it is produced.
func (a *Aggregator) streamBatches(stream pipeline.Iterator[transcription.Segment]) *pipeline.Pipeline[Batch] {
	records := toRecords(pipeline.From[transcription.Segment](&failIter{source: stream}))
	return pipeline.Map(records, func(_ context.Context, r transcription.Record) (Batch, error) {
		return Batch{Records: []transcription.Record{r}, Size: a.sizer(r), Mode: ModeStream}, nil
	})
}

// packedBatches bin-packs the result's segments. A streamed result reaching
// here came from a diarize call and is drained in order like a list.
func (a *Aggregator) packedBatches(res transcription.Result) *pipeline.Pipeline[Batch] {
	var source *pipeline.Pipeline[transcription.Segment]
	if res.Kind() == transcription.KindStreamed {
		source = pipeline.From[transcription.Segment](&failIter{source: res.Stream()})
	} else {
		source = pipeline.FromSlice(res.Segments())
	}

	bins := pipeline.Pack(toRecords(source), a.maxSize, a.sizer)
	return pipeline.Map(bins, func(_ context.Context, b pipeline.Bin[transcription.Record]) (Batch, error) {
		return Batch{Records: b.Items, Size: b.Size, Mode: ModePacked}, nil
	})
}

func toRecords(p *pipeline.Pipeline[transcription.Segment]) *pipeline.Pipeline[transcription.Record] {
	return pipeline.Map(p, func(_ context.Context, seg transcription.Segment) (transcription.Record, error) {
		r, err := transcription.ToRecord(seg)
		if err != nil {
			return nil, errors.Internal(err)
		}
		return r, nil
	})
}

// failIter marks errors raised by a model stream as transcription failures.
type failIter struct {
	source pipeline.Iterator[transcription.Segment]
}

func (it *failIter) Next(ctx context.Context) (transcription.Segment, bool, error) {
	seg, ok, err := it.source.Next(ctx)
	if err != nil {
		return transcription.Segment{}, false, transcriptionError(err)
	}
	return seg, ok, nil
}

func (it *failIter) Close() error { return it.source.Close() }

func transcriptionError(err error) error {
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	return errors.TranscriptionFailed(err)
}
