package transcription

import (
	"context"
	"slices"
)

// Supported engines.
const (
	EngineFasterWhisper = "faster-whisper"
	EngineStableWhisper = "stable-whisper"
)

// Engines lists the supported engine identifiers.
var Engines = []string{EngineFasterWhisper, EngineStableWhisper}

// IsSupportedEngine reports whether engine is one of Engines.
func IsSupportedEngine(engine string) bool {
	return slices.Contains(Engines, engine)
}

// Model is a loaded transcription model.
type Model interface {
	Engine() string
	Name() string
	// Transcribe runs inference. A request with diarize set yields a
	// Materialized result; otherwise the model may stream.
	Transcribe(ctx context.Context, args Args) (Result, error)
}

// Loader constructs models. Loading is expected to be slow.
type Loader interface {
	Load(ctx context.Context, engine, model string) (Model, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, engine, model string) (Model, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, engine, model string) (Model, error) {
	return f(ctx, engine, model)
}
