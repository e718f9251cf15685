package sidecar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kbukum/whisperjob/httpclient"
	"github.com/kbukum/whisperjob/httpclient/sse"
	"github.com/kbukum/whisperjob/transcription"
)

// SSE event names sent by the sidecar.
const (
	eventSegment = "segment"
	eventError   = "error"
	eventDone    = "done"
)

// Model is a model loaded on the sidecar.
type Model struct {
	id     string
	engine string
	name   string
	loader *Loader
}

var _ transcription.Model = (*Model)(nil)

func (m *Model) Engine() string { return m.engine }
func (m *Model) Name() string   { return m.name }

// ID is the sidecar's handle for the loaded model.
func (m *Model) ID() string { return m.id }

type transcribeRequest struct {
	ModelID string             `json:"model_id"`
	Engine  string             `json:"engine"`
	Model   string             `json:"model"`
	Args    transcription.Args `json:"args"`
}

type transcribeResponse struct {
	Segments []transcription.Segment `json:"segments"`
}

// Transcribe runs inference on the sidecar. The response content type picks
// the result variant: an event stream becomes Streamed, a JSON document
// becomes Materialized.
func (m *Model) Transcribe(ctx context.Context, args transcription.Args) (transcription.Result, error) {
	args, err := m.resolveAudio(ctx, args)
	if err != nil {
		return transcription.Result{}, err
	}

	accept := "application/json"
	if args.Bool(transcription.ArgStream) {
		accept = "text/event-stream"
	}
	stream, err := m.loader.client.DoStream(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    pathTranscriptions,
		Headers: map[string]string{"Accept": accept},
		Body:    transcribeRequest{ModelID: m.id, Engine: m.engine, Model: m.name, Args: args},
	})
	if err != nil {
		return transcription.Result{}, fmt.Errorf("sidecar: transcribe: %w", err)
	}

	if stream.IsSSE() {
		return transcription.Streamed(&segmentStream{events: stream.SSE, closer: stream}), nil
	}

	defer stream.Close()
	var out transcribeResponse
	if err := json.NewDecoder(stream.Body).Decode(&out); err != nil {
		return transcription.Result{}, fmt.Errorf("sidecar: decode transcription: %w", err)
	}
	return transcription.Materialized(out.Segments), nil
}

// resolveAudio rewrites a string url argument through the resolver. The
// caller's args are never modified.
func (m *Model) resolveAudio(ctx context.Context, args transcription.Args) (transcription.Args, error) {
	raw, ok := args.String(transcription.ArgURL)
	if !ok || m.loader.resolver == nil {
		return args, nil
	}
	resolved, err := m.loader.resolver.Resolve(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("sidecar: resolve audio url: %w", err)
	}
	if resolved == raw {
		return args, nil
	}
	return args.With(transcription.ArgURL, resolved), nil
}

// segmentStream adapts the sidecar's event stream to an iterator of segments.
type segmentStream struct {
	events sse.Reader
	closer io.Closer
	done   bool
}

func (s *segmentStream) Next(ctx context.Context) (transcription.Segment, bool, error) {
	for !s.done {
		if err := ctx.Err(); err != nil {
			return transcription.Segment{}, false, err
		}
		ev, err := s.events.Next()
		if errors.Is(err, io.EOF) {
			s.done = true
			break
		}
		if err != nil {
			return transcription.Segment{}, false, fmt.Errorf("sidecar: read stream: %w", err)
		}

		switch ev.Event {
		case eventSegment, "":
			var seg transcription.Segment
			if err := json.Unmarshal([]byte(ev.Data), &seg); err != nil {
				return transcription.Segment{}, false, fmt.Errorf("sidecar: decode segment: %w", err)
			}
			return seg, true, nil
		case eventError:
			s.done = true
			return transcription.Segment{}, false, fmt.Errorf("sidecar: %s", streamErrorMessage(ev.Data))
		case eventDone:
			s.done = true
		}
	}
	return transcription.Segment{}, false, nil
}

func (s *segmentStream) Close() error { return s.closer.Close() }

func streamErrorMessage(data string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(data), &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return data
}
