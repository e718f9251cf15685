// Package job turns a raw job input into a transcription request.
//
// Two input shapes are accepted. The library format nests the transcription
// arguments under "transcribe_args" and reads engine, model and streaming
// from the outer mapping:
//
//	{"engine": "stable-whisper", "model": "large-v3", "transcribe_args": {"url": "..."}}
//
// The direct format has no wrapper; the whole input is the argument mapping:
//
//	{"engine": "faster-whisper", "model": "large-v3", "url": "..."}
package job

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/whisperjob/errors"
	"github.com/kbukum/whisperjob/transcription"
	"github.com/kbukum/whisperjob/validation"
)

// Input keys.
const (
	KeyEngine         = "engine"
	KeyModel          = "model"
	KeyStreaming      = "streaming"
	KeyTranscribeArgs = "transcribe_args"
)

// Defaults applied when a key is absent.
const (
	DefaultEngine = transcription.EngineFasterWhisper
	// DefaultLibraryModel only applies to the library format.
	DefaultLibraryModel = "openai/whisper-large-v3"
)

// Format is the detected input shape.
type Format string

const (
	FormatLibrary Format = "library"
	FormatDirect  Format = "direct"
)

// Job is one unit of work handed to the worker.
type Job struct {
	ID    string         `json:"id"`
	Input map[string]any `json:"input"`
}

// Input is the typed view of the known keys of a job input. Nil pointers mean
// the key was absent or null.
type Input struct {
	Engine         *string        `mapstructure:"engine"`
	Model          *string        `mapstructure:"model"`
	Streaming      *bool          `mapstructure:"streaming"`
	TranscribeArgs map[string]any `mapstructure:"transcribe_args"`
}

// Request is the canonical form of a transcription job.
type Request struct {
	Engine    string             `json:"engine" validate:"oneof=faster-whisper stable-whisper"`
	Model     string             `json:"model" validate:"required"`
	Streaming bool               `json:"streaming"`
	Args      transcription.Args `json:"args" validate:"anykey=blob url"`
	Format    Format             `json:"-"`
}

// DetectFormat reports which input shape input uses.
func DetectFormat(input map[string]any) Format {
	if _, ok := input[KeyTranscribeArgs]; ok {
		return FormatLibrary
	}
	return FormatDirect
}

// Decode reads the known keys of input. Scalars are converted weakly, so
// "true" and 1 are both accepted for streaming.
func Decode(input map[string]any) (Input, error) {
	var in Input
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &in,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Input{}, err
	}
	if err := dec.Decode(input); err != nil {
		return Input{}, err
	}
	return in, nil
}

// Interpret derives the Request for j and checks it. All checks run; the
// returned errors are in the order engine, model, audio. A nil slice means
// the request is valid. Interpret has no side effects.
func Interpret(j Job) (Request, []*errors.AppError) {
	in, err := Decode(j.Input)
	if err != nil {
		return Request{}, []*errors.AppError{
			errors.InvalidInput("input", err.Error()).WithCause(err),
		}
	}

	req := Request{
		Format:    DetectFormat(j.Input),
		Engine:    stringOr(j.Input, KeyEngine, in.Engine, DefaultEngine),
		Streaming: in.Streaming != nil && *in.Streaming,
	}
	switch req.Format {
	case FormatLibrary:
		req.Model = stringOr(j.Input, KeyModel, in.Model, DefaultLibraryModel)
		req.Args = transcription.Args(in.TranscribeArgs)
	default:
		req.Model = stringOr(j.Input, KeyModel, in.Model, "")
		req.Args = transcription.Args(j.Input)
	}

	return req, check(req)
}

func check(req Request) []*errors.AppError {
	var out []*errors.AppError
	for _, fe := range validation.Check(req) {
		switch fe.Field {
		case KeyEngine:
			out = append(out, errors.InvalidEngine(req.Engine))
		case KeyModel:
			out = append(out, errors.MissingModel())
		case "args":
			out = append(out, errors.MissingAudio())
		default:
			out = append(out, errors.InvalidInput(fe.Field, fe.Message))
		}
	}
	return out
}

// stringOr returns the decoded value, def when key is absent and "" when the
// key is present but null.
func stringOr(input map[string]any, key string, v *string, def string) string {
	if v != nil {
		return *v
	}
	if _, ok := input[key]; ok {
		return ""
	}
	return def
}
