package transcription

import "github.com/kbukum/whisperjob/pipeline"

// Kind tells which variant a Result holds.
type Kind int

const (
	// KindMaterialized is a finite, fully computed list of segments.
	KindMaterialized Kind = iota + 1
	// KindStreamed is a single-pass sequence produced while inference runs.
	KindStreamed
)

func (k Kind) String() string {
	switch k {
	case KindMaterialized:
		return "materialized"
	case KindStreamed:
		return "streamed"
	default:
		return "unknown"
	}
}

// Result is what Model.Transcribe returns: either Materialized segments or a
// Streamed iterator of segments.
type Result struct {
	kind     Kind
	segments []Segment
	stream   pipeline.Iterator[Segment]
}

// Materialized wraps a finite ordered list of segments.
func Materialized(segments []Segment) Result {
	return Result{kind: KindMaterialized, segments: segments}
}

// Streamed wraps a lazily produced sequence of segments.
func Streamed(stream pipeline.Iterator[Segment]) Result {
	return Result{kind: KindStreamed, stream: stream}
}

// Kind returns the variant.
func (r Result) Kind() Kind { return r.kind }

// Segments returns the materialized segments; nil for a streamed result.
func (r Result) Segments() []Segment { return r.segments }

// Stream returns the segment iterator; nil for a materialized result.
func (r Result) Stream() pipeline.Iterator[Segment] { return r.stream }

// Close releases the underlying stream, if any.
func (r Result) Close() error {
	if r.stream != nil {
		return r.stream.Close()
	}
	return nil
}
